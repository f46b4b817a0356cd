package router

import (
	"encoding/json"
	"net/http"

	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/apperr"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its status; unclassified errors are not echoed to
// the client.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	msg := err.Error()
	switch {
	case status >= 500 && status != http.StatusServiceUnavailable:
		h.logger.ErrorContext(r.Context(), "request failed", "status", status, "err", err)
		msg = http.StatusText(status)
	default:
		h.logger.WarnContext(r.Context(), "request rejected",
			"status", status, "kind", apperr.KindOf(err).String(), "err", err)
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: status, Message: msg}})
}
