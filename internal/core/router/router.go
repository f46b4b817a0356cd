// Package router maps the FeatureServer REST paths onto the feature service.
package router

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/apperr"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/featureserver"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/model"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/observability"
)

// FeatureService answers the three supported FeatureServer operations.
// Readiness gates the query route before any request validation.
type FeatureService interface {
	Query(ctx context.Context, req model.QueryRequest) (*featureserver.Response, error)
	Describe(service string, layer int) (*featureserver.LayerDescription, error)
	Info(service string) (*featureserver.ServiceInfo, error)
	Readiness() (bool, string)
}

const (
	routeInfo        = "/{service}/FeatureServer"
	routeLayer       = "/{service}/FeatureServer/{layer}"
	routeQuery       = "/{service}/FeatureServer/{layer}/query"
	routeUnsupported = "/{service}/FeatureServer/{layer}/*"
)

// Mount registers the FeatureServer routes on r.
func Mount(r chi.Router, logger *slog.Logger, svc FeatureService) {
	h := &handlers{logger: logger, svc: svc}
	r.Get(routeInfo, h.observe(routeInfo, h.info))
	r.Get(routeLayer, h.observe(routeLayer, h.describe))
	r.Get(routeQuery, h.observe(routeQuery, h.query))
	r.Get(routeUnsupported, h.observe(routeUnsupported, h.unsupported))
}

type handlers struct {
	logger *slog.Logger
	svc    FeatureService
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (h *handlers) observe(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

func (h *handlers) info(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Info(chi.URLParam(r, "service"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) describe(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	layer, err := layerID(service, chi.URLParam(r, "layer"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.svc.Describe(service, layer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) query(w http.ResponseWriter, r *http.Request) {
	if ok, state := h.svc.Readiness(); !ok {
		h.logger.WarnContext(r.Context(), "query rejected: warehouse not connected", "state", state)
		h.writeError(w, r, apperr.New(apperr.Unavailable, "service unavailable"))
		return
	}
	service := chi.URLParam(r, "service")
	layer, err := layerID(service, chi.URLParam(r, "layer"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	q, warn, err := ParseQueryRequest(r)
	if warn != "" {
		h.logger.WarnContext(r.Context(), warn, "service", service, "layer", layer)
	}
	if err != nil {
		h.writeError(w, r, apperr.Wrap(apperr.DataShape, err, "invalid query parameters"))
		return
	}
	q.Service = service
	q.Layer = layer

	out, err := h.svc.Query(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) unsupported(w http.ResponseWriter, r *http.Request) {
	op := chi.URLParam(r, "*")
	h.writeError(w, r, apperr.NotFoundf("unsupported operation %q", op))
}

func layerID(service, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, apperr.NotFoundf("layer %q not found in service %q", raw, service)
	}
	return n, nil
}
