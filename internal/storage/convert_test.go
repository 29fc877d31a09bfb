package storage

import (
	"strings"
	"testing"
	"time"

	"filesift/internal/infer"
	"filesift/internal/schema"
)

func bindDef() schema.Definition {
	return schema.Definition{Columns: []schema.ColumnDef{
		{Normalized: "active", Type: infer.Column{Kind: infer.KindBoolean}},
		{Normalized: "qty", Type: infer.Column{Kind: infer.KindInteger}},
		{Normalized: "total", Type: infer.Column{Kind: infer.KindDecimal, Precision: 18, Scale: 4, Nullable: true}},
		{Normalized: "created", Type: infer.Column{Kind: infer.KindDate}},
		{Normalized: "note", Type: infer.Column{Kind: infer.KindText, Length: 50, Nullable: true}},
	}}
}

func TestBinderBind(t *testing.T) {
	t.Parallel()

	b := NewBinder(bindDef(), false, infer.Config{})

	got, err := b.Bind([]string{"yes", "42", "19.9900", "2024-03-01", "ok"})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	if v, ok := got[0].(bool); !ok || v != true {
		t.Fatalf("active = %#v, want true", got[0])
	}
	if v, ok := got[1].(int64); !ok || v != 42 {
		t.Fatalf("qty = %#v, want int64(42)", got[1])
	}
	if v, ok := got[2].(string); !ok || v != "19.9900" {
		t.Fatalf("total = %#v, want decimal text passthrough", got[2])
	}
	want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if v, ok := got[3].(time.Time); !ok || !v.Equal(want) {
		t.Fatalf("created = %#v, want %v", got[3], want)
	}
	if v, ok := got[4].(string); !ok || v != "ok" {
		t.Fatalf("note = %#v, want %q", got[4], "ok")
	}
}

func TestBinderNullMarkers(t *testing.T) {
	t.Parallel()

	b := NewBinder(bindDef(), false, infer.Config{})

	got, err := b.Bind([]string{"true", "7", "N/A", "2024-03-01", ""})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if got[2] != nil {
		t.Fatalf("total = %#v, want nil for null marker", got[2])
	}
	if got[4] != nil {
		t.Fatalf("note = %#v, want nil for empty cell", got[4])
	}
}

func TestBinderProvenanceColumns(t *testing.T) {
	t.Parallel()

	b := NewBinder(bindDef(), true, infer.Config{})

	cols := b.Columns()
	if len(cols) != 7 || cols[5] != "_source_file" || cols[6] != "_source_path" {
		t.Fatalf("columns = %v", cols)
	}

	got, err := b.Bind([]string{"no", "1", "2.5", "2024-01-02", "x", "a.csv", "/in/a.csv"})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if got[5] != "a.csv" || got[6] != "/in/a.csv" {
		t.Fatalf("provenance = %#v %#v", got[5], got[6])
	}
}

func TestBinderRejectsBadCells(t *testing.T) {
	t.Parallel()

	b := NewBinder(bindDef(), false, infer.Config{})

	cases := []struct {
		name string
		row  []string
	}{
		{"bad boolean", []string{"maybe", "1", "2.5", "2024-01-02", "x"}},
		{"bad integer", []string{"true", "12x", "2.5", "2024-01-02", "x"}},
		{"bad date", []string{"true", "1", "2.5", "2024-13-40", "x"}},
		{"short row", []string{"true", "1"}},
	}
	for _, tc := range cases {
		if _, err := b.Bind(tc.row); err == nil {
			t.Fatalf("%s: expected error for %v", tc.name, tc.row)
		}
	}
}

func TestBinderDateTimeLayouts(t *testing.T) {
	t.Parallel()

	def := schema.Definition{Columns: []schema.ColumnDef{
		{Normalized: "at", Type: infer.Column{Kind: infer.KindDateTime}},
	}}
	b := NewBinder(def, false, infer.Config{})

	got, err := b.Bind([]string{"2024-03-01 10:30:00"})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	want := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	if v := got[0].(time.Time); !v.Equal(want) {
		t.Fatalf("at = %v, want %v", v, want)
	}
}

func TestBinderBindAllReportsRowNumber(t *testing.T) {
	t.Parallel()

	def := schema.Definition{Columns: []schema.ColumnDef{
		{Normalized: "qty", Type: infer.Column{Kind: infer.KindInteger}},
	}}
	b := NewBinder(def, false, infer.Config{})

	rows, err := b.BindAll([][]string{{"1"}, {"2"}, {"three"}})
	if err == nil {
		t.Fatalf("expected error, got rows %v", rows)
	}
	if want := "row 3"; !strings.Contains(err.Error(), want) {
		t.Fatalf("error %q should name %q", err, want)
	}
}
