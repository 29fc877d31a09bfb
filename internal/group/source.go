package group

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"filesift/internal/htmltable"
	"filesift/internal/schema"
	"filesift/internal/sniff"
)

// FileRows is the production RowSource: it re-reads the scanned file in full
// and returns its data rows, header excluded. Rows whose width differs from
// the scanned schema are dropped and counted, mirroring the sampler's
// policy, so everything returned matches the group's column count.
func FileRows(ctx context.Context, rec *schema.FileRecord) ([][]string, int, error) {
	r, closeFn, err := sniff.Open(rec.Path)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = closeFn() }()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	text, _, err := sniff.Decode(raw)
	if err != nil {
		return nil, 0, err
	}

	width := rec.Schema.Width()

	if rec.Format == "html" {
		_, all, err := htmltable.Extract(strings.NewReader(text))
		if err != nil {
			return nil, 0, err
		}
		kept := make([][]string, 0, len(all))
		dropped := 0
		for _, row := range all {
			if len(row) != width {
				dropped++
				continue
			}
			kept = append(kept, row)
		}
		return kept, dropped, nil
	}

	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = rec.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	if _, err := cr.Read(); err != nil { // header
		if err == io.EOF {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	var (
		rows    [][]string
		dropped int
	)
	for n := 0; ; n++ {
		if n%4096 == 0 {
			select {
			case <-ctx.Done():
				return nil, 0, context.Cause(ctx)
			default:
			}
		}

		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			dropped++
			continue
		}
		if len(fields) != width {
			dropped++
			continue
		}
		for i, v := range fields {
			fields[i] = strings.TrimSpace(v)
		}
		rows = append(rows, fields)
	}
	return rows, dropped, nil
}
