// Package model defines core domain types shared across the service.
package model

import "strings"

// LocationColumn is the alias every compiled statement gives its geometry
// (or count) expression.
const LocationColumn = "LOCATION"

type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// LayerConfig describes one queryable sublayer backed by a warehouse table.
// Loaded once at startup and never mutated afterwards.
type LayerConfig struct {
	Name               string  `json:"name"`
	TableName          string  `json:"tableName"`
	Fields             []Field `json:"fields"`
	GeographyField     string  `json:"geographyField"`
	PrimaryID          string  `json:"primaryId"`
	MaxReturnCount     int     `json:"maxReturnCount"`
	SupportsPagination bool    `json:"supportsPagination"`
	Description        string  `json:"description"`
	GeometryType       string  `json:"geometryType"`
}

func (l LayerConfig) FieldNames() []string {
	out := make([]string, 0, len(l.Fields))
	for _, f := range l.Fields {
		out = append(out, f.Name)
	}
	return out
}

// SelectList is the comma-joined field list used in the select clause.
func (l LayerConfig) SelectList() string {
	return strings.Join(l.FieldNames(), ",")
}

// SpatialFilter is an encoded WKT literal (already single-quoted) plus the
// geography column it applies to. The zero value means no spatial filter.
type SpatialFilter struct {
	WKT    string
	Column string
}

func (s SpatialFilter) Empty() bool { return s.WKT == "" }

// QueryRequest holds the caller-supplied parameters of one query. Empty
// strings and nil pointers both mean "not supplied".
type QueryRequest struct {
	Service      string
	Layer        int
	Geometry     string
	GeometryType string
	InSR         string
	Where        string
	CountOnly    bool
	RecordCount  *int
	Pagination   *bool
	Offset       *int
}

type CompiledQuery struct {
	SQL   string
	Count bool
	Table string
}

// Row is one warehouse result row keyed by column name.
type Row map[string]any
