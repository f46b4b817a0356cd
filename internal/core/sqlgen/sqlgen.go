// Package sqlgen compiles layer queries into Snowflake SQL text.
package sqlgen

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/apperr"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/model"
)

// Query is the compiler input. Zero values mean "not supplied".
type Query struct {
	Table           string
	Select          string // comma-joined field list
	GeographyColumn string
	SpatialFilter   string // quoted WKT literal, embedded as-is
	Where           string
	MaxRows         int
	Pagination      bool
	PrimaryID       string
	Offset          int
}

type Compiler struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{logger: logger}
}

// Compile builds:
//
//	select <fields>, st_asgeojson(<geo>) as LOCATION from <table>
//	[where ...] [order by <pk>] [limit <n>] [offset <n>]
func (c *Compiler) Compile(q Query) (model.CompiledQuery, error) {
	if err := validate(q); err != nil {
		return model.CompiledQuery{}, err
	}
	if strings.TrimSpace(q.Select) == "" {
		return model.CompiledQuery{}, apperr.Compilationf("empty select field list")
	}
	if q.MaxRows < 0 {
		return model.CompiledQuery{}, apperr.Compilationf("negative row limit %d", q.MaxRows)
	}
	if q.Offset < 0 {
		return model.CompiledQuery{}, apperr.Compilationf("negative offset %d", q.Offset)
	}

	primaryID := strings.TrimSpace(q.PrimaryID)
	if q.Pagination && primaryID == "" {
		return model.CompiledQuery{}, apperr.Compilationf("no primary key configured for pagination on %s", q.Table)
	}

	parts := []string{
		"select " + q.Select + ", st_asgeojson(" + q.GeographyColumn + ") as " + model.LocationColumn,
		"from " + q.Table,
	}
	if w := whereClause(q); w != "" {
		parts = append(parts, w)
	}
	if q.Pagination {
		parts = append(parts, "order by "+primaryID)
	}
	if q.MaxRows > 0 {
		parts = append(parts, "limit "+strconv.Itoa(q.MaxRows))
	}
	if q.Offset > 0 {
		if q.Pagination {
			parts = append(parts, "offset "+strconv.Itoa(q.Offset))
		} else {
			c.logger.Warn("offset ignored: pagination not supported for layer",
				"table", q.Table, "offset", q.Offset)
		}
	}

	return model.CompiledQuery{SQL: strings.Join(parts, " "), Table: q.Table}, nil
}

// CompileCount builds the count variant; ordering and paging inputs are ignored.
func (c *Compiler) CompileCount(q Query) (model.CompiledQuery, error) {
	if err := validate(q); err != nil {
		return model.CompiledQuery{}, err
	}
	parts := []string{
		"select count(*) as " + model.LocationColumn,
		"from " + q.Table,
	}
	if w := whereClause(q); w != "" {
		parts = append(parts, w)
	}
	return model.CompiledQuery{SQL: strings.Join(parts, " "), Count: true, Table: q.Table}, nil
}

func validate(q Query) error {
	if strings.TrimSpace(q.Table) == "" {
		return apperr.Compilationf("empty table name")
	}
	if strings.TrimSpace(q.GeographyColumn) == "" {
		return apperr.Compilationf("empty geography column for %s", q.Table)
	}
	return nil
}

// whereClause returns "" when neither predicate nor spatial filter is set.
func whereClause(q Query) string {
	pred := strings.TrimSpace(q.Where)
	spatial := ""
	if wkt := strings.TrimSpace(q.SpatialFilter); wkt != "" {
		spatial = "(st_intersects(" + q.GeographyColumn + ",ST_GEOGRAPHYFROMWKT(" + wkt + ")))"
	}
	switch {
	case pred != "" && spatial != "":
		return "where " + pred + " and " + spatial
	case pred != "":
		return "where " + pred
	case spatial != "":
		return "where " + spatial
	default:
		return ""
	}
}
