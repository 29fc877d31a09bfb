// Package scan drives per-file processing: open, decode, detect the
// delimiter, sample rows, infer column types, normalize identifiers and
// fingerprint the schema. Every per-file problem becomes a FailureRecord;
// no single bad file aborts a run.
package scan

import (
	"errors"
	"log"
	"path/filepath"
	"strings"

	"filesift/internal/fingerprint"
	"filesift/internal/htmltable"
	"filesift/internal/ident"
	"filesift/internal/infer"
	"filesift/internal/schema"
	"filesift/internal/sniff"
)

// Failure kinds recorded on FailureRecord entries. The run completes
// regardless; these only classify the audit trail.
const (
	KindUndetectableDelimiter = "UndetectableDelimiter"
	KindMalformedFile         = "MalformedFile"
	KindEncodingFailure       = "EncodingFailure"
	KindIdentifierCollision   = "IdentifierCollisionUnresolved"
	KindIO                    = "IOError"
)

// Logger is the minimal logging interface used by the scanner. *log.Logger
// satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (n int, err error) { return len(p), nil }

// Result is the outcome of processing one file. Exactly one of Record and
// Failure is set.
type Result struct {
	Path    string
	Record  *schema.FileRecord
	Failure *schema.FailureRecord
}

// Scanner holds the per-run knobs shared by every file. The zero value is
// not usable; construct one with the config-derived fields set.
type Scanner struct {
	// SampleRows bounds the data rows read per file.
	SampleRows int
	// MaxSampleBytes bounds the prefix read per file.
	MaxSampleBytes int
	// Delimiters is the candidate set for detection, in preference order.
	Delimiters string
	// IdentMaxLen bounds normalized column identifiers.
	IdentMaxLen int
	// Inferrer decides column types.
	Inferrer *infer.Inferrer
	// Logger receives stage= lines; nil discards them.
	Logger Logger
}

func (s *Scanner) logf() func(format string, v ...any) {
	if s.Logger == nil {
		l := log.New(discardWriter{}, "", 0)
		return l.Printf
	}
	return s.Logger.Printf
}

func (s *Scanner) sampleRows() int {
	if s.SampleRows <= 0 {
		return 20
	}
	return s.SampleRows
}

// Process runs the full per-file pipeline and converts any error into a
// classified FailureRecord.
func (s *Scanner) Process(path string) Result {
	logf := s.logf()

	rec, err := s.process(path)
	if err != nil {
		kind := kindOf(err)
		logf("stage=scan status=failed file=%s kind=%s err=%v", path, kind, err)
		return Result{
			Path:    path,
			Failure: &schema.FailureRecord{Path: path, Kind: kind, Reason: err.Error()},
		}
	}

	logf("stage=scan status=ok file=%s format=%s columns=%d rows=%d mismatched=%d fp=%s",
		path, rec.Format, rec.Schema.Width(), rec.RowsSampled, rec.Mismatched,
		fingerprint.Short(rec.Fingerprint))
	return Result{Path: path, Record: rec}
}

func (s *Scanner) process(path string) (*schema.FileRecord, error) {
	r, closeFn, err := sniff.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closeFn() }()

	raw, err := sniff.ReadPrefix(r, s.MaxSampleBytes)
	if err != nil {
		return nil, err
	}
	text, encoding, err := sniff.Decode(raw)
	if err != nil {
		return nil, err
	}

	var (
		sample *sniff.FileSample
		delim  rune
		format string
	)
	switch strings.ToLower(filepath.Ext(sniff.LogicalPath(path))) {
	case ".html", ".htm":
		// HTML tables carry no delimiter of their own; the synthetic tab
		// lets them share fingerprints with equivalent TSV exports.
		format, delim = "html", '\t'
		header, rows, err := htmltable.Extract(strings.NewReader(text))
		if err != nil {
			return nil, err
		}
		sample, err = sniff.FromRows(header, rows, s.sampleRows())
		if err != nil {
			return nil, err
		}

	default:
		format = "csv"
		lines := sniff.SampleLines(text, s.sampleRows()+1)
		delim, err = sniff.Detect(lines, []rune(s.Delimiters))
		if err != nil {
			return nil, err
		}
		sample, err = sniff.SampleText(text, delim, s.sampleRows())
		if err != nil {
			return nil, err
		}
	}

	totalRows := sample.Rows + sample.Mismatched
	scope := ident.NewScope(s.IdentMaxLen)
	cols := make([]schema.ColumnDef, len(sample.Header))
	for i, name := range sample.Header {
		normalized, err := scope.Claim(name)
		if err != nil {
			return nil, err
		}
		cols[i] = schema.ColumnDef{
			Original:   name,
			Normalized: normalized,
			Type:       s.Inferrer.Column(sample.Columns[i], totalRows),
		}
	}

	def := schema.Definition{Columns: cols}
	return &schema.FileRecord{
		Path:        path,
		Name:        filepath.Base(path),
		Format:      format,
		Encoding:    encoding,
		Delimiter:   delim,
		Fingerprint: fingerprint.Compute(def, delim),
		Schema:      def,
		RowsSampled: sample.Rows,
		Mismatched:  sample.Mismatched,
	}, nil
}

// kindOf classifies an error into a failure kind for the audit trail.
func kindOf(err error) string {
	switch {
	case errors.Is(err, sniff.ErrUndetectableDelimiter):
		return KindUndetectableDelimiter
	case errors.Is(err, sniff.ErrMalformedFile), errors.Is(err, htmltable.ErrNoTable):
		return KindMalformedFile
	case errors.Is(err, sniff.ErrEncodingFailure):
		return KindEncodingFailure
	case errors.Is(err, ident.ErrCollision):
		return KindIdentifierCollision
	default:
		return KindIO
	}
}
