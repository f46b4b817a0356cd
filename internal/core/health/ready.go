package health

import (
	"encoding/json"
	"net/http"
)

// ReadinessReporter tells whether queries can be served and, if not, what
// state the warehouse connection is in.
type ReadinessReporter interface {
	Readiness() (ready bool, state string)
}

func Readiness(rr ReadinessReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status     string `json:"status"`
			Connection string `json:"connection"`
		}
		ready, state := rr.Readiness()
		out := resp{Status: "not_ready", Connection: state}
		if ready {
			out.Status = "ready"
		}
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
