package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"filesift/internal/infer"
	"filesift/internal/schema"
)

// Binder converts text cells from combined group output into driver-ready
// values matching the inferred column types.
//
// Conversion rules:
//   - Null markers bind to nil for every column kind.
//   - Boolean binds to bool, integers to int64, temporals to time.Time.
//   - Decimals pass through as trimmed text. float64 cannot carry
//     DECIMAL(38) digits, and every supported driver coerces numeric text.
type Binder struct {
	names   []string
	cols    []infer.Column
	layouts []string
	nulls   map[string]struct{}
}

// booleanValues maps accepted boolean tokens to their value. Tokens are
// matched lowercase.
var booleanValues = map[string]bool{
	"1": true, "true": true, "yes": true,
	"0": false, "false": false, "no": false,
}

// NewBinder builds a binder for a combined table: the definition's columns
// plus, when provenance is set, the two appended source columns. cfg supplies
// the null markers and date layouts the inference pass ran with, so binding
// and inference agree on what a null or a date is.
func NewBinder(def schema.Definition, provenance bool, cfg infer.Config) *Binder {
	markers := cfg.NullMarkers
	if len(markers) == 0 {
		markers = infer.DefaultNullMarkers
	}
	layouts := cfg.DatePatterns
	if len(layouts) == 0 {
		layouts = infer.DefaultDatePatterns
	}

	b := &Binder{
		layouts: layouts,
		nulls:   make(map[string]struct{}, len(markers)),
	}
	for _, m := range markers {
		b.nulls[strings.ToLower(m)] = struct{}{}
	}

	for _, c := range def.Columns {
		b.names = append(b.names, c.Normalized)
		b.cols = append(b.cols, c.Type)
	}
	if provenance {
		prov := infer.Column{Kind: infer.KindText, Length: 255}
		b.names = append(b.names, schema.SourceFileColumn, schema.SourcePathColumn)
		b.cols = append(b.cols, prov, prov)
	}
	return b
}

// Columns returns the destination column names in bind order.
func (b *Binder) Columns() []string {
	return append([]string(nil), b.names...)
}

// Bind converts one text row. The row must match the binder's width.
func (b *Binder) Bind(row []string) ([]any, error) {
	if len(row) != len(b.cols) {
		return nil, fmt.Errorf("storage: row has %d cells, want %d", len(row), len(b.cols))
	}

	out := make([]any, len(row))
	for i, cell := range row {
		v, err := b.bindValue(b.cols[i], cell)
		if err != nil {
			return nil, fmt.Errorf("storage: column %s: %w", b.names[i], err)
		}
		out[i] = v
	}
	return out, nil
}

// BindAll converts a batch of rows, stopping at the first bad cell.
func (b *Binder) BindAll(rows [][]string) ([][]any, error) {
	out := make([][]any, 0, len(rows))
	for i, row := range rows {
		bound, err := b.Bind(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, bound)
	}
	return out, nil
}

func (b *Binder) bindValue(col infer.Column, cell string) (any, error) {
	cell = strings.TrimSpace(cell)
	if _, null := b.nulls[strings.ToLower(cell)]; null {
		return nil, nil
	}

	switch col.Kind {
	case infer.KindBoolean:
		v, ok := booleanValues[strings.ToLower(cell)]
		if !ok {
			return nil, fmt.Errorf("not a boolean: %q", cell)
		}
		return v, nil

	case infer.KindInteger, infer.KindBigInteger:
		v, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", cell)
		}
		return v, nil

	case infer.KindDecimal:
		return cell, nil

	case infer.KindDate, infer.KindDateTime:
		for _, layout := range b.layouts {
			if t, err := time.Parse(layout, cell); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("not a date: %q", cell)

	default:
		return cell, nil
	}
}
