package router

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/model"
)

// ParseQueryRequest reads the query-string parameters of a layer query.
// Empty values are treated as absent. Service and layer come from the path
// and are left for the caller to fill in.
func ParseQueryRequest(r *http.Request) (model.QueryRequest, string, error) {
	var warn string
	v, err := url.ParseQuery(r.URL.RawQuery)
	if err != nil {
		return model.QueryRequest{}, "", fmt.Errorf("malformed query string: %w", err)
	}
	get := func(k string) string { return strings.TrimSpace(v.Get(k)) }

	q := model.QueryRequest{
		Geometry:     get("geometry"),
		GeometryType: get("geometryType"),
		InSR:         get("inSR"),
		Where:        get("where"),
	}

	if q.Where != "" && !isSafeWhere(q.Where) {
		return model.QueryRequest{}, "", errors.New("invalid or disallowed where clause")
	}

	if q.CountOnly, err = optBool(get("returnCountOnly")); err != nil {
		return model.QueryRequest{}, "", fmt.Errorf("returnCountOnly: %w", err)
	}
	if q.RecordCount, err = optCount(get("resultRecordCount")); err != nil {
		return model.QueryRequest{}, "", fmt.Errorf("resultRecordCount: %w", err)
	}
	if q.Offset, err = optCount(get("resultOffset")); err != nil {
		return model.QueryRequest{}, "", fmt.Errorf("resultOffset: %w", err)
	}
	if raw := get("pagination"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return model.QueryRequest{}, "", fmt.Errorf("pagination: %w", err)
		}
		q.Pagination = &b
	}

	if q.CountOnly && (q.RecordCount != nil || q.Offset != nil) {
		warn = "resultRecordCount/resultOffset ignored for returnCountOnly"
	}
	return q, warn, nil
}

func optBool(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse bool: %w", err)
	}
	return b, nil
}

func optCount(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("parse int: %w", err)
	}
	if n < 0 {
		return nil, fmt.Errorf("must be non-negative (got %d)", n)
	}
	return &n, nil
}

var safeWherePattern = regexp.MustCompile(`^[\w\s=<>!().,'"%+*/:\-]+$`)

// isSafeWhere rejects statement separators, comments and anything outside a
// conservative character set.
func isSafeWhere(s string) bool {
	if len(s) > 2000 {
		return false
	}
	if strings.Contains(s, "--") || strings.Contains(s, "/*") || strings.Contains(s, "*/") {
		return false
	}
	return safeWherePattern.MatchString(s)
}
