package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/httpclient"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/invalidation"
)

func TestQueryURL(t *testing.T) {
	got, err := queryURL("http://localhost:8080/arcgis/rest/services/", "citibike", 0)
	if err != nil {
		t.Fatalf("queryURL: %v", err)
	}
	want := "http://localhost:8080/arcgis/rest/services/citibike/FeatureServer/0/query?returnCountOnly=true&where=1%3D1"
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
	if _, err := queryURL("ftp://x", "s", 0); err == nil {
		t.Fatalf("expected scheme error")
	}
}

func TestEventPayload_RoundTrips(t *testing.T) {
	ts := time.Date(2025, 10, 26, 12, 0, 0, 0, time.UTC)
	b, err := eventPayload("citibike.public.stations", "update", ts)
	if err != nil {
		t.Fatalf("eventPayload: %v", err)
	}
	var ev invalidation.Event
	if err := json.Unmarshal(b, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := ev.Validate(); err != nil || !ev.TS.Equal(ts) || ev.Source != "smoke" {
		t.Fatalf("event=%+v err=%v", ev, err)
	}
	if _, err := eventPayload("bad;table", "update", ts); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestFeatureServer_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/citibike/FeatureServer/0/query" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","count":3}`))
	}))
	defer srv.Close()

	client := httpclient.NewOutbound()
	if err := testFeatureServer(context.Background(), client, srv.URL, "citibike"); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if err := testFeatureServer(context.Background(), client, srv.URL, "other"); err == nil {
		t.Fatalf("expected error for 404")
	}
}
