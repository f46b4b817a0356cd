package featureserver

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/apperr"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/model"
)

func intp(n int) *int    { return &n }
func boolp(b bool) *bool { return &b }

func stationRows(n int) []model.Row {
	rows := make([]model.Row, n)
	for i := range rows {
		rows[i] = model.Row{
			"ID":       i + 1,
			"NAME":     "station",
			"LOCATION": `{"type":"Point","coordinates":[-73.99,40.73]}`,
		}
	}
	return rows
}

func TestQuery_FeatureCollection(t *testing.T) {
	exec := &fakeExec{rows: stationRows(2)}
	s := newConnected(t, exec)

	resp, err := s.Query(context.Background(), model.QueryRequest{Service: "citibike", Layer: 0})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := "select ID,NAME, st_asgeojson(GEOG) as LOCATION from CITIBIKE.PUBLIC.STATIONS order by ID limit 2000"
	if got := exec.last(t).SQL; got != want {
		t.Fatalf("sql=\n%s\nwant\n%s", got, want)
	}
	if resp.Type != "FeatureCollection" || len(resp.Features) != 2 {
		t.Fatalf("resp type=%q features=%d", resp.Type, len(resp.Features))
	}
	if resp.Count != nil {
		t.Fatalf("count must be absent outside count mode")
	}
	md := resp.Metadata
	if md.IDField != "ID" || md.MaxRecordCount != 2000 || md.LimitExceeded {
		t.Fatalf("metadata=%+v", md)
	}

	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"properties":{"ID":1,"NAME":"station"}`) {
		t.Fatalf("unexpected body: %s", b)
	}
	if strings.Contains(string(b), `"count"`) {
		t.Fatalf("count leaked into body: %s", b)
	}
}

func TestQuery_CountOnly(t *testing.T) {
	exec := &fakeExec{rows: []model.Row{{"LOCATION": "42"}}}
	s := newConnected(t, exec)

	resp, err := s.Query(context.Background(), model.QueryRequest{
		Service: "citibike", Layer: 0, CountOnly: true,
		Where: "CAPACITY > 10", RecordCount: intp(5), Offset: intp(20),
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	cq := exec.last(t)
	if !cq.Count || cq.SQL != "select count(*) as LOCATION from CITIBIKE.PUBLIC.STATIONS where CAPACITY > 10" {
		t.Fatalf("count sql=%q count=%v", cq.SQL, cq.Count)
	}
	if resp.Count == nil || *resp.Count != 42 {
		t.Fatalf("count=%v want 42", resp.Count)
	}
	if len(resp.Features) != 1 || resp.Features[0].Geometry != nil {
		t.Fatalf("count features=%+v", resp.Features)
	}

	b, _ := json.Marshal(resp)
	for _, s := range []string{`"count":42`, `"geometry":null`, `"properties":{"count":42}`} {
		if !strings.Contains(string(b), s) {
			t.Fatalf("body missing %s: %s", s, b)
		}
	}
}

func TestQuery_RecordCountRules(t *testing.T) {
	cases := []struct {
		name      string
		req       model.QueryRequest
		wantLimit string
	}{
		{"pagination honors request", model.QueryRequest{Service: "citibike", Layer: 0, RecordCount: intp(10)}, "limit 10"},
		{"capped at maxReturnCount", model.QueryRequest{Service: "citibike", Layer: 0, RecordCount: intp(5000)}, "limit 2000"},
		{"zero means default", model.QueryRequest{Service: "citibike", Layer: 0, RecordCount: intp(0)}, "limit 2000"},
		{"no pagination uses default", model.QueryRequest{Service: "parcels", Layer: 0, RecordCount: intp(10)}, "limit 500"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exec := &fakeExec{rows: stationRows(0)}
			s := newConnected(t, exec)
			if _, err := s.Query(context.Background(), tc.req); err != nil {
				t.Fatalf("Query: %v", err)
			}
			if got := exec.last(t).SQL; !strings.HasSuffix(got, tc.wantLimit) {
				t.Fatalf("sql=%q want suffix %q", got, tc.wantLimit)
			}
		})
	}
}

func TestQuery_LimitExceeded(t *testing.T) {
	exec := &fakeExec{rows: stationRows(3)}
	s := newConnected(t, exec)

	resp, err := s.Query(context.Background(), model.QueryRequest{Service: "citibike", Layer: 0, RecordCount: intp(3)})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !resp.Metadata.LimitExceeded {
		t.Fatalf("limitExceeded=false with rows == limit")
	}
}

func TestQuery_PaginationWithOffset(t *testing.T) {
	exec := &fakeExec{rows: stationRows(0)}
	s := newConnected(t, exec)

	_, err := s.Query(context.Background(), model.QueryRequest{
		Service: "citibike", Layer: 0,
		Where: "NAME like 'W%'", RecordCount: intp(10), Offset: intp(30),
		Geometry: `{"xmin":-74,"ymin":40,"xmax":-73,"ymax":41,"spatialReference":{"wkid":4326}}`,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := "select ID,NAME, st_asgeojson(GEOG) as LOCATION from CITIBIKE.PUBLIC.STATIONS" +
		" where NAME like 'W%' and (st_intersects(GEOG,ST_GEOGRAPHYFROMWKT('POLYGON((-73 40,-73 41,-74 41,-74 40,-73 40))')))" +
		" order by ID limit 10 offset 30"
	if got := exec.last(t).SQL; got != want {
		t.Fatalf("sql=\n%s\nwant\n%s", got, want)
	}
}

func TestQuery_PaginationOptOutDropsOrderAndOffset(t *testing.T) {
	exec := &fakeExec{rows: stationRows(0)}
	s := newConnected(t, exec)

	_, err := s.Query(context.Background(), model.QueryRequest{
		Service: "citibike", Layer: 0, Pagination: boolp(false), Offset: intp(30),
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	got := exec.last(t).SQL
	if strings.Contains(got, "order by") || strings.Contains(got, "offset") {
		t.Fatalf("sql=%q must not page", got)
	}
}

func TestQuery_PaginationWithoutPrimaryKey(t *testing.T) {
	exec := &fakeExec{}
	s := newConnected(t, exec)

	_, err := s.Query(context.Background(), model.QueryRequest{Service: "citibike", Layer: 1})
	if apperr.KindOf(err) != apperr.Compilation || apperr.Status(err) != 400 {
		t.Fatalf("err=%v kind=%s", err, apperr.KindOf(err))
	}
	if len(exec.seen) != 0 {
		t.Fatalf("statement executed despite compile error")
	}
}

func TestQuery_WebMercatorEnvelope(t *testing.T) {
	exec := &fakeExec{rows: stationRows(0)}
	s := newConnected(t, exec)

	// +-10 degrees of longitude on the sphere of radius 6378137
	_, err := s.Query(context.Background(), model.QueryRequest{
		Service: "parcels", Layer: 0, InSR: "102100",
		Geometry: `{"xmin":-1113194.9079327357,"ymin":0,"xmax":1113194.9079327357,"ymax":0}`,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	got := exec.last(t).SQL
	start := strings.Index(got, "'POLYGON((")
	end := strings.Index(got, "))'")
	if start < 0 || end < start {
		t.Fatalf("no WKT literal in %q", got)
	}
	pts := strings.Split(got[start+len("'POLYGON(("):end], ",")
	if len(pts) != 5 {
		t.Fatalf("vertices=%d want 5 in %q", len(pts), got)
	}
	wantX := []float64{10, 10, -10, -10, 10}
	for i, p := range pts {
		xy := strings.Fields(p)
		x, errX := strconv.ParseFloat(xy[0], 64)
		y, errY := strconv.ParseFloat(xy[1], 64)
		if errX != nil || errY != nil {
			t.Fatalf("vertex %d %q unparsable", i, p)
		}
		if math.Abs(x-wantX[i]) > 1e-6 || math.Abs(y) > 1e-6 {
			t.Fatalf("vertex %d = (%v,%v) want (%v,0)", i, x, y, wantX[i])
		}
	}
}

func TestQuery_InputErrors(t *testing.T) {
	cases := []struct {
		name string
		req  model.QueryRequest
		kind apperr.Kind
	}{
		{"unknown service", model.QueryRequest{Service: "bogus"}, apperr.NotFound},
		{"unknown layer", model.QueryRequest{Service: "citibike", Layer: 7}, apperr.NotFound},
		{"missing bound", model.QueryRequest{Service: "citibike", Geometry: `{"xmin":1,"ymin":2,"xmax":3}`}, apperr.DataShape},
		{"polygon type", model.QueryRequest{Service: "citibike", Geometry: "1,2,3,4", GeometryType: "esriGeometryPolygon"}, apperr.DataShape},
		{"unsupported sr", model.QueryRequest{Service: "citibike", Geometry: "1,2,3,4", InSR: "2263"}, apperr.DataShape},
		{"negative count", model.QueryRequest{Service: "citibike", RecordCount: intp(-1)}, apperr.Compilation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exec := &fakeExec{}
			s := newConnected(t, exec)
			_, err := s.Query(context.Background(), tc.req)
			if apperr.KindOf(err) != tc.kind {
				t.Fatalf("err=%v kind=%s want %s", err, apperr.KindOf(err), tc.kind)
			}
			if len(exec.seen) != 0 {
				t.Fatalf("statement executed for invalid input")
			}
		})
	}
}

func TestQuery_ExecutionError(t *testing.T) {
	driverErr := errors.New("SQL compilation error: invalid identifier 'FOO'")
	exec := &fakeExec{err: driverErr}
	s := newConnected(t, exec)

	_, err := s.Query(context.Background(), model.QueryRequest{Service: "citibike", Where: "FOO = 1"})
	if apperr.KindOf(err) != apperr.Execution || apperr.Status(err) != 400 {
		t.Fatalf("err=%v kind=%s", err, apperr.KindOf(err))
	}
	if !errors.Is(err, driverErr) {
		t.Fatalf("driver error not wrapped: %v", err)
	}
	if len(exec.seen) != 1 {
		t.Fatalf("execute calls=%d want exactly 1 (no retry)", len(exec.seen))
	}
}

func TestQuery_MissingColumnIsDataShape(t *testing.T) {
	exec := &fakeExec{rows: []model.Row{{"ID": 1, "LOCATION": nil}}}
	s := newConnected(t, exec)

	_, err := s.Query(context.Background(), model.QueryRequest{Service: "citibike"})
	if apperr.KindOf(err) != apperr.DataShape {
		t.Fatalf("err=%v kind=%s want data_shape", err, apperr.KindOf(err))
	}
}
