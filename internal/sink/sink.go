// Package sink writes flushed groups to disk: one consolidated dataset per
// group in each configured format, a metadata record per group, and the
// end-of-run report.
package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filesift/internal/group"
)

// Logger is the minimal logging interface used here. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

type discardWriter struct{}

func (discardWriter) Printf(string, ...any) {}

// DirSink implements group.Sink by writing artifacts under a directory.
//
// It is not safe for concurrent use. The group engine flushes sequentially,
// and the accumulated entries feed the report.
type DirSink struct {
	// Dir receives all artifacts. Created on first write.
	Dir string

	// Formats selects the dataset encodings: "csv", "parquet", "xlsx".
	// Empty means csv only. Metadata records are always written.
	Formats []string

	// RunID tags metadata records and the report with the run that
	// produced them. Empty omits the tag.
	RunID string

	// DryRun records groups for the report without writing dataset or
	// metadata files.
	DryRun bool

	// Logger receives progress lines. nil discards them.
	Logger Logger

	// now is a test seam for report timestamps.
	now func() time.Time

	entries []reportEntry
}

type reportEntry struct {
	Name        string
	Fingerprint string
	Files       []string
	Rows        int
	Columns     int
}

func (s *DirSink) logf() Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return discardWriter{}
}

func (s *DirSink) formats() []string {
	if len(s.Formats) == 0 {
		return []string{"csv"}
	}
	return s.Formats
}

// WriteCombined writes one flushed group in every configured format plus its
// metadata record. A failure in any writer fails the flush; the group engine
// marks the group failed and the run continues.
func (s *DirSink) WriteCombined(ctx context.Context, c *group.Combined) error {
	start := time.Now()
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("sink: %w", err)
	}

	if !s.DryRun {
		for _, format := range s.formats() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var err error
			switch format {
			case "csv":
				err = s.writeCSV(c)
			case "parquet":
				err = s.writeParquet(c)
			case "xlsx":
				err = s.writeXLSX(c)
			default:
				err = fmt.Errorf("unknown format %q", format)
			}
			if err != nil {
				return fmt.Errorf("sink: %s: %w", format, err)
			}
		}

		if err := s.writeMetadata(c); err != nil {
			return fmt.Errorf("sink: metadata: %w", err)
		}
	}

	s.entries = append(s.entries, reportEntry{
		Name:        c.Name(),
		Fingerprint: c.Fingerprint,
		Files:       memberNames(c),
		Rows:        len(c.Rows),
		Columns:     len(c.Def.Columns),
	})

	s.logf().Printf("stage=sink status=ok group=%s files=%d rows=%d formats=%s dur_ms=%d",
		c.Name(), len(c.Members), len(c.Rows), strings.Join(s.formats(), ","), time.Since(start).Milliseconds())
	return nil
}

func (s *DirSink) path(c *group.Combined, ext string) string {
	return filepath.Join(s.Dir, c.Name()+ext)
}

func (s *DirSink) writeCSV(c *group.Combined) error {
	f, err := os.Create(s.path(c, ".csv"))
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(c.Header()); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(c.Rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// metadataRecord is the JSON document written next to each dataset.
type metadataRecord struct {
	Name        string           `json:"name"`
	Fingerprint string           `json:"fingerprint"`
	Group       int              `json:"group"`
	RunID       string           `json:"run_id,omitempty"`
	Rows        int              `json:"rows"`
	Columns     []metadataColumn `json:"columns"`
	Members     []metadataMember `json:"members"`
}

type metadataColumn struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Nullable bool     `json:"nullable"`
	Sources  []string `json:"sources,omitempty"`
}

type metadataMember struct {
	Path    string `json:"path"`
	Rows    int    `json:"rows"`
	Dropped int    `json:"dropped,omitempty"`
}

func (s *DirSink) writeMetadata(c *group.Combined) error {
	rec := metadataRecord{
		Name:        c.Name(),
		Fingerprint: c.Fingerprint,
		Group:       c.Number,
		RunID:       s.RunID,
		Rows:        len(c.Rows),
	}

	for _, col := range c.Def.Columns {
		mc := metadataColumn{
			Name:     col.Normalized,
			Type:     col.Type.Token(),
			Nullable: col.Type.Nullable,
		}
		if col.Original != col.Normalized {
			mc.Sources = []string{col.Original}
		}
		rec.Columns = append(rec.Columns, mc)
	}
	for _, m := range c.Members {
		rec.Members = append(rec.Members, metadataMember{
			Path:    m.Record.Path,
			Rows:    m.Rows,
			Dropped: m.Dropped,
		})
	}

	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(c, ".json"), append(b, '\n'), 0o644)
}

func memberNames(c *group.Combined) []string {
	names := make([]string, len(c.Members))
	for i, m := range c.Members {
		names[i] = m.Record.Name
	}
	return names
}

// writeAtomically is shared by writers that buffer whole files in memory.
func writeAtomically(path string, write func(w io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
