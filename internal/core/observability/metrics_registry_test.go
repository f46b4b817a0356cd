package observability

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// puts the default-registry instruments back after the test
func restore(t *testing.T) {
	prev := current.Load()
	t.Cleanup(func() { current.Store(prev) })
}

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("metrics scrape: %v", err)
	}
	t.Cleanup(func() {
		if cerr := resp.Body.Close(); cerr != nil {
			t.Fatalf("close body: %v", cerr)
		}
	})
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	return string(b)
}

func TestWarehouseAndConnectionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	restore(t)
	Init(reg, true)

	ObserveWarehouse("query", nil, 0.2)
	ObserveWarehouse("query", errors.New("boom"), 0.1)
	SetConnectionState("connected", []string{"disconnected", "connecting", "connected", "failed"})

	out := scrape(t, reg)
	for _, want := range []string{
		`warehouse_statements_total{kind="query",outcome="ok"} 1`,
		`warehouse_statements_total{kind="query",outcome="error"} 1`,
		`warehouse_connection_state{state="connected"} 1`,
		`warehouse_connection_state{state="failed"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in metrics; got:\n%s", want, out)
		}
	}
}

func TestCacheAndInvalidationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	restore(t)
	Init(reg, true)

	IncCacheHit()
	IncCacheMiss()
	IncCacheMiss()
	ObserveInvalidation("update", "applied")
	IncKafkaConsumerError("decode")

	out := scrape(t, reg)
	for _, want := range []string{
		`cache_results_total{outcome="hit"} 1`,
		`cache_results_total{outcome="miss"} 2`,
		`invalidation_events_total{op="update",result="applied"} 1`,
		`kafka_consumer_errors_total{kind="decode"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in metrics; got:\n%s", want, out)
		}
	}
}

func TestInit_DisabledDoesNotTouchRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	restore(t)
	Init(reg, false)

	ObserveHTTP("GET", "/x", 200, 0.01)
	if out := scrape(t, reg); strings.Contains(out, "http_requests_total") {
		t.Fatalf("disabled metrics leaked into registry:\n%s", out)
	}
}
