// Package schema holds the records the pipeline stages exchange: per-column
// definitions, per-file scan results and per-file failure entries.
package schema

import "filesift/internal/infer"

// Provenance columns appended to every combined output row. The leading
// underscore keeps them clear of normalized data columns, which never start
// with one unless the original header did.
const (
	SourceFileColumn = "_source_file"
	SourcePathColumn = "_source_path"
)

// ColumnDef pairs a column's original header text with its normalized
// identifier and inferred type.
type ColumnDef struct {
	Original   string
	Normalized string
	Type       infer.Column
}

// Definition is the ordered column layout of a file, and by extension of
// every file in a fingerprint group.
type Definition struct {
	Columns []ColumnDef
}

// Width returns the number of data columns, excluding provenance.
func (d Definition) Width() int { return len(d.Columns) }

// NormalizedNames returns the normalized column names in order.
func (d Definition) NormalizedNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Normalized
	}
	return names
}

// OutputNames returns the combined-output header: the normalized names with
// the two provenance columns appended.
func (d Definition) OutputNames() []string {
	names := d.NormalizedNames()
	return append(names, SourceFileColumn, SourcePathColumn)
}

// FileRecord describes one successfully sampled file.
type FileRecord struct {
	Path        string
	Name        string // base name, provenance value for _source_file
	Format      string // "csv" or "html"
	Encoding    string
	Delimiter   rune
	Fingerprint string
	Schema      Definition
	RowsSampled int
	Mismatched  int
}

// FailureRecord describes one file the run could not sample, kept for the
// audit trail rather than silently dropped.
type FailureRecord struct {
	Path   string
	Kind   string
	Reason string
}
