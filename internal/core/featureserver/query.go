package featureserver

import (
	"context"
	"errors"

	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/apperr"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/geometry"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/mapper"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/model"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/sqlgen"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/logger"
)

// Query runs one layer query. It fails fast with an Unavailable error unless
// the warehouse connection is established; nothing is retried.
func (s *Service) Query(ctx context.Context, req model.QueryRequest) (*Response, error) {
	if st := s.State(); st != Connected {
		s.logger.WarnContext(ctx, "query rejected: warehouse not connected", "state", st.String())
		return nil, apperr.New(apperr.Unavailable, "service unavailable")
	}
	ctx = logger.WithLayer(ctx, req.Service, req.Layer)

	layer, err := s.layer(req.Service, req.Layer)
	if err != nil {
		return nil, err
	}

	wkt, err := geometry.SpatialFilterWKT(req.Geometry, req.GeometryType, req.InSR)
	if err != nil {
		return nil, err
	}

	limit := s.effectiveLimit(ctx, layer, req)
	q := sqlgen.Query{
		Table:           layer.TableName,
		Select:          layer.SelectList(),
		GeographyColumn: layer.GeographyField,
		SpatialFilter:   wkt,
		Where:           req.Where,
		MaxRows:         limit,
		Pagination:      layer.SupportsPagination && (req.Pagination == nil || *req.Pagination),
		PrimaryID:       layer.PrimaryID,
	}
	if req.Offset != nil {
		q.Offset = *req.Offset
	}

	var cq model.CompiledQuery
	if req.CountOnly {
		cq, err = s.compiler.CompileCount(q)
	} else {
		cq, err = s.compiler.Compile(q)
	}
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "compiled statement", "sql", cq.SQL, "count", cq.Count)

	rows, err := s.exec.Execute(ctx, cq)
	if err != nil {
		return nil, executionError(err)
	}

	resp := &Response{
		Type: "FeatureCollection",
		Metadata: Metadata{
			IDField:        idField(layer),
			MaxRecordCount: maxRecordCount(layer, limit),
		},
	}
	if req.CountOnly {
		f, n, err := mapper.CountFeature(rows)
		if err != nil {
			return nil, err
		}
		resp.Features = []mapper.Feature{f}
		resp.Count = &n
		return resp, nil
	}

	features, err := mapper.Features(layer.FieldNames(), rows)
	if err != nil {
		return nil, err
	}
	resp.Features = features
	resp.Metadata.LimitExceeded = limit > 0 && len(rows) >= limit
	return resp, nil
}

// effectiveLimit honors resultRecordCount only on layers that support
// pagination, capped at the layer's maxReturnCount.
func (s *Service) effectiveLimit(ctx context.Context, layer model.LayerConfig, req model.QueryRequest) int {
	def := layer.MaxReturnCount
	if req.RecordCount == nil || req.CountOnly {
		return def
	}
	n := *req.RecordCount
	if !layer.SupportsPagination {
		s.logger.WarnContext(ctx, "resultRecordCount ignored: pagination not supported for layer",
			"requested", n, "limit", def)
		return def
	}
	if n == 0 {
		return def
	}
	if def > 0 && n > def {
		return def
	}
	return n
}

// executionError classifies warehouse failures as client errors, keeping
// any classification the executor already attached.
func executionError(err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Wrap(apperr.Execution, err, "query execution failed")
}

func idField(l model.LayerConfig) string {
	if l.PrimaryID != "" {
		return l.PrimaryID
	}
	return defaultIDField
}

func maxRecordCount(l model.LayerConfig, limit int) int {
	if l.MaxReturnCount > 0 {
		return l.MaxReturnCount
	}
	return limit
}
