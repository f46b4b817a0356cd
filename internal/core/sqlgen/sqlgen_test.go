package sqlgen

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/apperr"
)

func quiet() *Compiler {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCompile_FullStatement(t *testing.T) {
	q := Query{
		Table:           "t",
		Select:          "a,b",
		GeographyColumn: "g",
		SpatialFilter:   "'WKT'",
		Where:           "a>1",
		MaxRows:         10,
		Pagination:      true,
		PrimaryID:       "id",
		Offset:          5,
	}
	got, err := quiet().Compile(q)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := "select a,b, st_asgeojson(g) as LOCATION from t " +
		"where a>1 and (st_intersects(g,ST_GEOGRAPHYFROMWKT('WKT'))) " +
		"order by id limit 10 offset 5"
	if got.SQL != want {
		t.Fatalf("sql:\n got %q\nwant %q", got.SQL, want)
	}
	if got.Count {
		t.Fatalf("full query flagged as count")
	}
	if got.Table != "t" {
		t.Fatalf("table=%q want t", got.Table)
	}
}

func TestCompile_NoFilters(t *testing.T) {
	got, err := quiet().Compile(Query{Table: "t", Select: "a", GeographyColumn: "g"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if want := "select a, st_asgeojson(g) as LOCATION from t"; got.SQL != want {
		t.Fatalf("got %q want %q", got.SQL, want)
	}
}

func TestCompile_SpatialOnly_EmitsSingleWhere(t *testing.T) {
	got, err := quiet().Compile(Query{Table: "t", Select: "a", GeographyColumn: "g", SpatialFilter: "'P'"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := "select a, st_asgeojson(g) as LOCATION from t where (st_intersects(g,ST_GEOGRAPHYFROMWKT('P')))"
	if got.SQL != want {
		t.Fatalf("got %q want %q", got.SQL, want)
	}
	if strings.Contains(got.SQL, " and ") {
		t.Fatalf("dangling and: %q", got.SQL)
	}
}

// clause order must always be where, order by, limit, offset, each present
// exactly when its inputs call for it
func TestCompile_ClauseCombinations(t *testing.T) {
	c := quiet()
	for _, pred := range []string{"", "a>1"} {
		for _, spatial := range []string{"", "'W'"} {
			for _, pag := range []bool{false, true} {
				for _, pk := range []string{"", "id"} {
					for _, limit := range []int{0, 10} {
						for _, off := range []int{0, 5} {
							q := Query{
								Table: "t", Select: "a,b", GeographyColumn: "g",
								SpatialFilter: spatial, Where: pred,
								MaxRows: limit, Pagination: pag, PrimaryID: pk, Offset: off,
							}
							got, err := c.Compile(q)
							if pag && pk == "" {
								if apperr.KindOf(err) != apperr.Compilation {
									t.Fatalf("%+v: want compilation error, got %v", q, err)
								}
								continue
							}
							if err != nil {
								t.Fatalf("%+v: %v", q, err)
							}
							checkClauses(t, q, got.SQL)
						}
					}
				}
			}
		}
	}
}

func checkClauses(t *testing.T, q Query, sql string) {
	t.Helper()
	idx := func(s string) int { return strings.Index(sql, s) }

	hasWhere := q.Where != "" || q.SpatialFilter != ""
	if got := strings.Count(sql, " where "); (got == 1) != hasWhere || got > 1 {
		t.Fatalf("%+v: where count=%d in %q", q, got, sql)
	}
	if (idx(" and ") >= 0) != (q.Where != "" && q.SpatialFilter != "") {
		t.Fatalf("%+v: unexpected and-join in %q", q, sql)
	}
	if (idx(" order by ") >= 0) != q.Pagination {
		t.Fatalf("%+v: order by presence wrong in %q", q, sql)
	}
	if (idx(" limit ") >= 0) != (q.MaxRows > 0) {
		t.Fatalf("%+v: limit presence wrong in %q", q, sql)
	}
	if (idx(" offset ") >= 0) != (q.Offset > 0 && q.Pagination) {
		t.Fatalf("%+v: offset presence wrong in %q", q, sql)
	}

	last := -1
	for _, kw := range []string{" from ", " where ", " order by ", " limit ", " offset "} {
		i := idx(kw)
		if i < 0 {
			continue
		}
		if i < last {
			t.Fatalf("%+v: clause %q out of order in %q", q, kw, sql)
		}
		last = i
	}
}

func TestCompile_PaginationWithoutPrimaryKey(t *testing.T) {
	_, err := quiet().Compile(Query{Table: "t", Select: "a", GeographyColumn: "g", Pagination: true})
	if err == nil {
		t.Fatalf("expected compilation error")
	}
	if !strings.Contains(err.Error(), "no primary key configured for pagination") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if apperr.KindOf(err) != apperr.Compilation {
		t.Fatalf("kind=%v want compilation", apperr.KindOf(err))
	}
}

func TestCompile_OffsetWithoutPaginationWarns(t *testing.T) {
	var buf bytes.Buffer
	c := New(slog.New(slog.NewTextHandler(&buf, nil)))

	got, err := c.Compile(Query{
		Table: "t", Select: "a", GeographyColumn: "g",
		Where: "a>1", SpatialFilter: "'W'", MaxRows: 7, Offset: 20,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if strings.Contains(got.SQL, "offset") {
		t.Fatalf("offset leaked into %q", got.SQL)
	}
	for _, part := range []string{"where a>1", "ST_GEOGRAPHYFROMWKT('W')", "limit 7"} {
		if !strings.Contains(got.SQL, part) {
			t.Fatalf("missing %q in %q", part, got.SQL)
		}
	}
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "offset ignored") {
		t.Fatalf("expected warning log, got %q", buf.String())
	}
}

func TestCompile_RejectsBadInputs(t *testing.T) {
	c := quiet()
	bad := []Query{
		{Select: "a", GeographyColumn: "g"},
		{Table: "t", GeographyColumn: "g"},
		{Table: "t", Select: "a"},
		{Table: "t", Select: "a", GeographyColumn: "g", MaxRows: -1},
		{Table: "t", Select: "a", GeographyColumn: "g", Offset: -1},
	}
	for i, q := range bad {
		if _, err := c.Compile(q); apperr.KindOf(err) != apperr.Compilation {
			t.Fatalf("case %d: want compilation error, got %v", i, err)
		}
	}
}

func TestCompileCount_NeverPages(t *testing.T) {
	c := quiet()
	q := Query{
		Table: "t", Select: "a,b", GeographyColumn: "g",
		SpatialFilter: "'W'", Where: "a>1",
		MaxRows: 10, Pagination: true, PrimaryID: "id", Offset: 5,
	}
	got, err := c.CompileCount(q)
	if err != nil {
		t.Fatalf("CompileCount: %v", err)
	}
	want := "select count(*) as LOCATION from t where a>1 and (st_intersects(g,ST_GEOGRAPHYFROMWKT('W')))"
	if got.SQL != want {
		t.Fatalf("got %q want %q", got.SQL, want)
	}
	if !got.Count {
		t.Fatalf("count flag not set")
	}

	// pagination without a key does not matter for counts
	q.PrimaryID = ""
	got, err = c.CompileCount(q)
	if err != nil {
		t.Fatalf("CompileCount without key: %v", err)
	}
	for _, kw := range []string{"order by", "limit", "offset"} {
		if strings.Contains(got.SQL, kw) {
			t.Fatalf("count query contains %q: %q", kw, got.SQL)
		}
	}
}

func TestCompileCount_NoFilters(t *testing.T) {
	got, err := quiet().CompileCount(Query{Table: "t", GeographyColumn: "g"})
	if err != nil {
		t.Fatalf("CompileCount: %v", err)
	}
	if want := "select count(*) as LOCATION from t"; got.SQL != want {
		t.Fatalf("got %q want %q", got.SQL, want)
	}
}
