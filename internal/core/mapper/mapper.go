package mapper

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/apperr"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/model"
)

// Features maps rows to features in row order. Each feature's properties hold
// exactly the requested fields, in field order; geometry comes from LOCATION.
func Features(fields []string, rows []model.Row) ([]Feature, error) {
	out := make([]Feature, 0, len(rows))
	for i, row := range rows {
		geom, err := rowGeometry(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		props := NewProperties(len(fields))
		for _, f := range fields {
			v, ok := row[f]
			if !ok {
				return nil, apperr.DataShapef("row %d: missing column %q", i, f)
			}
			props.Set(f, v)
		}
		out = append(out, Feature{Type: "Feature", Geometry: geom, Properties: props})
	}
	return out, nil
}

// CountFeature maps the single row of a count statement to
// {geometry: null, properties: {count: N}}.
func CountFeature(rows []model.Row) (Feature, int64, error) {
	if len(rows) != 1 {
		return Feature{}, 0, apperr.DataShapef("count query returned %d rows, want 1", len(rows))
	}
	raw, ok := rows[0][model.LocationColumn]
	if !ok {
		return Feature{}, 0, apperr.DataShapef("count row missing column %q", model.LocationColumn)
	}
	n, err := toCount(raw)
	if err != nil {
		return Feature{}, 0, err
	}
	props := NewProperties(1)
	props.Set("count", n)
	return Feature{Type: "Feature", Geometry: nil, Properties: props}, n, nil
}

func rowGeometry(row model.Row) (*geojson.Geometry, error) {
	raw, ok := row[model.LocationColumn]
	if !ok {
		return nil, apperr.DataShapef("missing column %q", model.LocationColumn)
	}
	var data []byte
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		return nil, apperr.DataShapef("column %q has type %T, want GeoJSON text", model.LocationColumn, raw)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, apperr.Wrap(apperr.DataShape, err, "decode geometry")
	}
	return g, nil
}

func toCount(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, apperr.DataShapef("count %d overflows int64", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, apperr.DataShapef("count %v is not an integer", n)
		}
		return int64(n), nil
	case json.Number:
		return parseCount(string(n))
	case string:
		return parseCount(n)
	case []byte:
		return parseCount(string(n))
	default:
		return 0, apperr.DataShapef("count has type %T", v)
	}
}

func parseCount(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, apperr.Wrap(apperr.DataShape, err, "parse count")
	}
	return n, nil
}
