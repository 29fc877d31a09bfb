package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filesift/internal/group"
	"filesift/internal/ident"
	"filesift/internal/infer"
	"filesift/internal/render"
	"filesift/internal/storage"
)

// LoadReportName is the file name of the database load report.
const LoadReportName = "sift_load_report.txt"

// LoadResult records the outcome of loading one flushed group.
type LoadResult struct {
	GroupName string
	Table     string
	Rows      int64
	Err       string
}

// LoadSink chains the file sink with a database load. The disk artifact is
// the flush: a write failure retires the group, while a load failure is
// recorded and reported without failing the group, since the artifact on
// disk stays authoritative and the load can be retried against it.
type LoadSink struct {
	// Files receives the group first; its error fails the flush.
	Files group.Sink

	// Loader is the open database backend.
	Loader storage.Loader

	// Dialect selects the DDL flavor; it must match the loader's backend.
	Dialect render.Dialect

	// Tables is the run-wide identifier scope for table names.
	Tables *ident.Scope

	// TablePrefix is prepended to the group name before normalization.
	TablePrefix string

	// TableSchema optionally qualifies created tables (e.g. "dbo").
	TableSchema string

	// SurrogateKey adds the synthetic identity column to created tables.
	SurrogateKey bool

	// BatchSize caps rows per LoadRows call. Backends chunk further when
	// their parameter limits require it.
	BatchSize int

	// InferCfg supplies the null markers and date layouts the run inferred
	// with, so value binding agrees with inference.
	InferCfg infer.Config

	// Logger receives stage= lines; nil discards them.
	Logger Logger

	results []LoadResult
}

func (s *LoadSink) logf() Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return discardWriter{}
}

func (s *LoadSink) batch() int {
	if s.BatchSize <= 0 {
		return 5000
	}
	return s.BatchSize
}

// WriteCombined implements group.Sink.
func (s *LoadSink) WriteCombined(ctx context.Context, c *group.Combined) error {
	if s.Files != nil {
		if err := s.Files.WriteCombined(ctx, c); err != nil {
			return err
		}
	}

	start := time.Now()
	table, rows, err := s.load(ctx, c)
	res := LoadResult{GroupName: c.Name(), Table: table, Rows: rows}
	if err != nil {
		res.Err = err.Error()
		s.logf().Printf("stage=load status=failed group=%s table=%s err=%v", c.Name(), table, err)
	} else {
		s.logf().Printf("stage=load status=ok group=%s table=%s rows=%d dur_ms=%d",
			c.Name(), table, rows, time.Since(start).Milliseconds())
	}
	s.results = append(s.results, res)
	return nil
}

// load creates the destination table and inserts the combined rows in
// batches. It returns the claimed table name even on error so the report can
// point at the partially loaded table.
func (s *LoadSink) load(ctx context.Context, c *group.Combined) (string, int64, error) {
	name, err := s.Tables.Claim(s.TablePrefix + c.Name())
	if err != nil {
		return "", 0, fmt.Errorf("table name: %w", err)
	}
	table := name
	if s.TableSchema != "" {
		table = s.TableSchema + "." + name
	}

	sources := make([]string, len(c.Members))
	for i, m := range c.Members {
		sources[i] = m.Record.Path
	}

	ddl, err := render.CreateTable(s.Dialect, table, c.Def, render.Options{
		SurrogateKey: s.SurrogateKey,
		Provenance:   true,
		GuardExists:  true,
		SourceFiles:  sources,
	})
	if err != nil {
		return table, 0, err
	}
	if err := s.Loader.EnsureTable(ctx, ddl); err != nil {
		return table, 0, fmt.Errorf("ensure table %s: %w", table, err)
	}

	binder := storage.NewBinder(c.Def, true, s.InferCfg)
	columns := binder.Columns()

	var total int64
	for lo := 0; lo < len(c.Rows); lo += s.batch() {
		hi := lo + s.batch()
		if hi > len(c.Rows) {
			hi = len(c.Rows)
		}
		bound, err := binder.BindAll(c.Rows[lo:hi])
		if err != nil {
			return table, total, fmt.Errorf("bind rows %d-%d: %w", lo+1, hi, err)
		}
		n, err := s.Loader.LoadRows(ctx, table, columns, bound)
		total += n
		if err != nil {
			return table, total, fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	return table, total, nil
}

// Results returns the per-group load outcomes in flush order.
func (s *LoadSink) Results() []LoadResult {
	return append([]LoadResult(nil), s.results...)
}

// WriteReport writes the load report into dir and returns its path: one line
// per loaded table plus a failure section, the audit trail for the database
// side of the run.
func (s *LoadSink) WriteReport(dir string) (string, error) {
	var loaded, failed []LoadResult
	for _, r := range s.results {
		if r.Err == "" {
			loaded = append(loaded, r)
		} else {
			failed = append(failed, r)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "database load report\n")
	fmt.Fprintf(&b, "loaded %d of %d groups\n", len(loaded), len(s.results))

	if len(loaded) > 0 {
		b.WriteString("\ntables:\n")
		for _, r := range loaded {
			fmt.Fprintf(&b, "  %s  rows=%d  from=%s\n", r.Table, r.Rows, r.GroupName)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(&b, "\nfailures (%d):\n", len(failed))
		for _, r := range failed {
			fmt.Fprintf(&b, "  %s (table %s): %s\n", r.GroupName, r.Table, r.Err)
		}
	}

	path := filepath.Join(dir, LoadReportName)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("sink: load report: %w", err)
	}
	return path, nil
}

var _ group.Sink = (*LoadSink)(nil)
