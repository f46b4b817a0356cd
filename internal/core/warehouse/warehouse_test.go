package warehouse

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/config"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/model"
)

type fakeRows struct {
	cols    []string
	data    [][]any
	i       int
	scanErr error
	iterErr error
}

func (f *fakeRows) Columns() ([]string, error) { return f.cols, nil }
func (f *fakeRows) Next() bool {
	if f.i >= len(f.data) {
		return false
	}
	f.i++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	if f.scanErr != nil {
		return f.scanErr
	}
	row := f.data[f.i-1]
	for i := range dest {
		p := dest[i].(*any)
		*p = row[i]
	}
	return nil
}
func (f *fakeRows) Err() error { return f.iterErr }

func TestScanRows_ConvertsBytesAndKeepsOrder(t *testing.T) {
	rs := &fakeRows{
		cols: []string{"ID", "NAME", "LOCATION"},
		data: [][]any{
			{int64(1), []byte("a"), `{"type":"Point","coordinates":[1,2]}`},
			{int64(2), nil, nil},
		},
	}
	rows, err := scanRows(rs)
	if err != nil {
		t.Fatalf("scanRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len=%d want 2", len(rows))
	}
	if rows[0]["NAME"] != "a" {
		t.Fatalf("[]byte not converted: %#v", rows[0]["NAME"])
	}
	if rows[1]["ID"] != int64(2) {
		t.Fatalf("row order broken: %#v", rows[1])
	}
	if v, ok := rows[1]["NAME"]; !ok || v != nil {
		t.Fatalf("null column must be present and nil: %#v", rows[1])
	}
}

func TestScanRows_Errors(t *testing.T) {
	if _, err := scanRows(&fakeRows{cols: []string{"A"}, data: [][]any{{1}}, scanErr: errors.New("bad")}); err == nil {
		t.Fatalf("expected scan error")
	}
	if _, err := scanRows(&fakeRows{cols: []string{"A"}, iterErr: errors.New("net")}); err == nil {
		t.Fatalf("expected iteration error")
	}
}

func TestScanRows_EmptyIsNonNil(t *testing.T) {
	rows, err := scanRows(&fakeRows{cols: []string{"A"}})
	if err != nil || rows == nil || len(rows) != 0 {
		t.Fatalf("got (%#v, %v)", rows, err)
	}
}

func TestDSN(t *testing.T) {
	if _, err := DSN(config.SnowflakeCfg{}); err == nil {
		t.Fatalf("expected error without account/user")
	}
	dsn, err := DSN(config.SnowflakeCfg{Account: "acme", User: "svc", Password: "pw", Warehouse: "WH"})
	if err != nil {
		t.Fatalf("DSN: %v", err)
	}
	if !strings.Contains(dsn, "svc") || !strings.Contains(dsn, "acme") || !strings.Contains(dsn, "warehouse=WH") {
		t.Fatalf("unexpected dsn %q", dsn)
	}
}

func TestExecute_NotConnected(t *testing.T) {
	c := New(config.SnowflakeCfg{}, nil)
	if _, err := c.Execute(context.Background(), model.CompiledQuery{SQL: "select 1"}); !errors.Is(err, errNotConnected) {
		t.Fatalf("err=%v want errNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close on unconnected client: %v", err)
	}
}
