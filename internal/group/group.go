// Package group buckets scanned files by schema fingerprint, accumulates
// their full row data and flushes consolidated datasets. Groups seal when
// they reach the membership cap; undersized groups are reported as ungrouped
// at the end of the run instead of silently dropped.
package group

import (
	"context"
	"fmt"
	"log"

	"filesift/internal/fingerprint"
	"filesift/internal/schema"
)

// Logger is the minimal logging interface used by the engine. *log.Logger
// satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (n int, err error) { return len(p), nil }

// RowSource provides the full data rows of a scanned file, already width
// checked against the file's own header: rows is the kept data, dropped
// counts ragged rows excluded from it.
//
// When to use:
//   - Unit tests: inject deterministic rows without file I/O.
//   - Production: leave nil; FileRows re-reads the scanned file.
type RowSource func(ctx context.Context, rec *schema.FileRecord) (rows [][]string, dropped int, err error)

// Sink receives flushed groups.
type Sink interface {
	WriteCombined(ctx context.Context, c *Combined) error
}

// Member is one file's contribution to a group.
type Member struct {
	Record  *schema.FileRecord
	Rows    int
	Dropped int
}

// Combined is the flush payload: the consolidated rows of one sealed or
// finalized group, provenance columns included.
type Combined struct {
	Fingerprint string
	Number      int
	Def         schema.Definition
	Members     []Member
	Rows        [][]string
}

// Header returns the output column names: the group's normalized schema plus
// the two provenance columns.
func (c *Combined) Header() []string { return c.Def.OutputNames() }

// Name returns the artifact base name shared by every writer.
func (c *Combined) Name() string {
	return fmt.Sprintf("combined_%s_g%d_%dfiles", fingerprint.Short(c.Fingerprint), c.Number, len(c.Members))
}

type groupState int

const (
	stateAccumulating groupState = iota
	stateSealed
	stateFlushed
	stateFailed
)

// Group accumulates same-fingerprint files. Number disambiguates successive
// groups of one fingerprint once the cap seals an earlier one.
type Group struct {
	Fingerprint string
	Number      int
	Def         schema.Definition
	Members     []Member

	rows  [][]string
	state groupState
}

// GroupFailure records a group-fatal flush problem. The run continues; the
// member files are reported so the audit trail stays complete.
type GroupFailure struct {
	Fingerprint string
	Number      int
	Files       []string
	Reason      string
}

// Summary is the end-of-run accounting.
type Summary struct {
	GroupsFlushed int
	FilesGrouped  int
	RowsWritten   int64
	Ungrouped     []string
	Failures      []GroupFailure
}

// Engine is the grouping state machine. It is not safe for concurrent use:
// callers feed scan results one at a time in input order, which keeps group
// numbering and artifact order deterministic.
type Engine struct {
	// MinFiles is the smallest membership flushed at finalize; smaller
	// groups report their files as ungrouped.
	MinFiles int
	// MaxFiles seals a group and flushes it immediately; further matching
	// files start a new group.
	MaxFiles int
	// Source is an optional seam over full-file row reads. Nil uses
	// FileRows.
	Source RowSource
	// Sink receives flushed groups.
	Sink Sink
	// Logger receives stage= lines; nil discards them.
	Logger Logger

	open    map[string]*Group
	order   []*Group
	seq     map[string]int
	summary Summary
}

func (e *Engine) logf() func(format string, v ...any) {
	if e.Logger == nil {
		l := log.New(discardWriter{}, "", 0)
		return l.Printf
	}
	return e.Logger.Printf
}

func (e *Engine) source() RowSource {
	if e.Source != nil {
		return e.Source
	}
	return FileRows
}

func (e *Engine) init() {
	if e.open == nil {
		e.open = make(map[string]*Group)
		e.seq = make(map[string]int)
	}
}

func (e *Engine) minFiles() int {
	if e.MinFiles < 1 {
		return 1
	}
	return e.MinFiles
}

// Add routes one scanned file into its fingerprint group, reading the file's
// full rows through the source. A read error fails only this file (the
// caller converts it to a FailureRecord); the group keeps its other members.
func (e *Engine) Add(ctx context.Context, rec *schema.FileRecord) error {
	e.init()
	logf := e.logf()

	rows, dropped, err := e.source()(ctx, rec)
	if err != nil {
		return fmt.Errorf("group: read rows of %s: %w", rec.Path, err)
	}

	g := e.open[rec.Fingerprint]
	if g == nil {
		e.seq[rec.Fingerprint]++
		g = &Group{
			Fingerprint: rec.Fingerprint,
			Number:      e.seq[rec.Fingerprint],
			Def:         rec.Schema,
			state:       stateAccumulating,
		}
		e.open[rec.Fingerprint] = g
		e.order = append(e.order, g)
		logf("stage=group status=open fp=%s group=%d columns=%d",
			fingerprint.Short(g.Fingerprint), g.Number, g.Def.Width())
	}

	// Width violations here are structurally impossible for rows produced
	// by FileRows; a misbehaving source fails the whole group, not the run.
	width := g.Def.Width()
	for _, row := range rows {
		if len(row) != width {
			g.Members = append(g.Members, Member{Record: rec, Dropped: dropped})
			e.fail(g, fmt.Sprintf("row width %d != schema width %d in %s", len(row), width, rec.Path))
			return nil
		}
	}

	g.Members = append(g.Members, Member{Record: rec, Rows: len(rows), Dropped: dropped})
	for _, row := range rows {
		out := make([]string, 0, width+2)
		out = append(out, row...)
		out = append(out, rec.Name, rec.Path)
		g.rows = append(g.rows, out)
	}

	if e.MaxFiles > 0 && len(g.Members) >= e.MaxFiles {
		g.state = stateSealed
		logf("stage=group status=sealed fp=%s group=%d files=%d rows=%d",
			fingerprint.Short(g.Fingerprint), g.Number, len(g.Members), len(g.rows))
		e.flush(ctx, g)
	}
	return nil
}

// Finalize flushes every remaining group that meets the minimum membership
// and reports the rest as ungrouped. The engine is spent afterwards.
func (e *Engine) Finalize(ctx context.Context) Summary {
	e.init()
	logf := e.logf()

	for _, g := range e.order {
		if g.state != stateAccumulating {
			continue
		}
		if len(g.Members) < e.minFiles() {
			for _, m := range g.Members {
				e.summary.Ungrouped = append(e.summary.Ungrouped, m.Record.Path)
			}
			logf("stage=group status=ungrouped fp=%s group=%d files=%d min=%d",
				fingerprint.Short(g.Fingerprint), g.Number, len(g.Members), e.minFiles())
			continue
		}
		e.flush(ctx, g)
	}

	logf("stage=group status=done groups=%d grouped_files=%d ungrouped_files=%d failed_groups=%d rows=%d",
		e.summary.GroupsFlushed, e.summary.FilesGrouped, len(e.summary.Ungrouped),
		len(e.summary.Failures), e.summary.RowsWritten)
	return e.summary
}

// flush hands a group to the sink and retires it. Sink errors are fatal to
// the group only.
func (e *Engine) flush(ctx context.Context, g *Group) {
	logf := e.logf()
	delete(e.open, g.Fingerprint)

	c := &Combined{
		Fingerprint: g.Fingerprint,
		Number:      g.Number,
		Def:         g.Def,
		Members:     g.Members,
		Rows:        g.rows,
	}
	if err := e.Sink.WriteCombined(ctx, c); err != nil {
		g.state = stateFailed
		g.rows = nil
		e.recordFailure(g, err.Error())
		logf("stage=group status=flush_failed fp=%s group=%d err=%v",
			fingerprint.Short(g.Fingerprint), g.Number, err)
		return
	}

	g.state = stateFlushed
	g.rows = nil
	e.summary.GroupsFlushed++
	e.summary.FilesGrouped += len(g.Members)
	e.summary.RowsWritten += int64(len(c.Rows))
	logf("stage=group status=flushed fp=%s group=%d name=%s files=%d rows=%d",
		fingerprint.Short(g.Fingerprint), g.Number, c.Name(), len(g.Members), len(c.Rows))
}

// fail retires a group without flushing it.
func (e *Engine) fail(g *Group, reason string) {
	delete(e.open, g.Fingerprint)
	g.state = stateFailed
	g.rows = nil
	e.recordFailure(g, reason)
	e.logf()("stage=group status=failed fp=%s group=%d reason=%s",
		fingerprint.Short(g.Fingerprint), g.Number, reason)
}

func (e *Engine) recordFailure(g *Group, reason string) {
	files := make([]string, len(g.Members))
	for i, m := range g.Members {
		files[i] = m.Record.Path
	}
	e.summary.Failures = append(e.summary.Failures, GroupFailure{
		Fingerprint: g.Fingerprint,
		Number:      g.Number,
		Files:       files,
		Reason:      reason,
	})
}
