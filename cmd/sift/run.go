package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"filesift/internal/config"
	"filesift/internal/group"
	"filesift/internal/ident"
	"filesift/internal/infer"
	"filesift/internal/metrics"
	"filesift/internal/render"
	"filesift/internal/scan"
	"filesift/internal/schema"
	"filesift/internal/sink"
	"filesift/internal/storage"
)

// pipelineTotals is the end-of-run accounting printed by the CLI.
type pipelineTotals struct {
	Scanned       int
	Grouped       int
	Groups        int
	Ungrouped     int
	FileFailures  int
	GroupFailures int
	RowsWritten   int64
	TablesLoaded  int
	Report        string
}

// pipelineOptions wires one run: the metrics backend, the run identity, and
// seams tests override.
type pipelineOptions struct {
	Metrics    metrics.Backend
	RunID      string
	ReportOnly bool
	Verbose    bool
	LogWriter  io.Writer

	discover  func(root string, extensions []string) ([]string, error)
	newLoader func(ctx context.Context, cfg storage.Config) (storage.Loader, error)
}

// pipeline runs discover, scan, group, flush and report over one config.
type pipeline struct {
	opts pipelineOptions
	log  *log.Logger
}

func newPipeline(o pipelineOptions) *pipeline {
	if o.Metrics == nil {
		o.Metrics = metrics.Nop{}
	}
	if o.LogWriter == nil {
		o.LogWriter = os.Stderr
	}
	if o.discover == nil {
		o.discover = scan.DiscoverFiles
	}
	if o.newLoader == nil {
		o.newLoader = storage.New
	}
	return &pipeline{opts: o, log: log.New(o.LogWriter, "", log.LstdFlags)}
}

// Run executes one full pass. Per-file and per-group problems are recorded
// and reported without stopping the run; only startup problems (unreadable
// input root, unreachable database, unwritable output) return an error.
func (p *pipeline) Run(ctx context.Context, cfg config.Config) (pipelineTotals, error) {
	var totals pipelineTotals
	mets := p.opts.Metrics
	start := time.Now()
	p.log.Printf("stage=run status=start run=%s job=%s input=%s", p.opts.RunID, cfg.Job, cfg.Input.Dir)

	paths, err := p.opts.discover(cfg.Input.Dir, cfg.Input.Extensions)
	if err != nil {
		return totals, fmt.Errorf("discover %s: %w", cfg.Input.Dir, err)
	}
	totals.Scanned = len(paths)

	scanner := &scan.Scanner{
		SampleRows:     cfg.Sample.Rows,
		MaxSampleBytes: cfg.Sample.MaxBytes,
		Delimiters:     cfg.Inference.Delimiters,
		IdentMaxLen:    cfg.Identifier.MaxLength,
		Inferrer:       infer.New(inferConfig(cfg)),
	}
	if p.opts.Verbose {
		scanner.Logger = p.log
	}

	scanStart := time.Now()
	results := scanner.Scan(ctx, paths, cfg.Runtime.ScanWorkers)
	mets.ObserveHistogram(metrics.MetricStageDurationSeconds, time.Since(scanStart).Seconds(),
		metrics.Labels{"stage": "scan", "status": "ok"})

	var failures []schema.FailureRecord
	sampled := 0
	for _, res := range results {
		if res.Failure != nil {
			failures = append(failures, *res.Failure)
			mets.IncCounter(metrics.MetricFilesTotal, 1, metrics.Labels{"stage": "scan", "status": "failed"})
			continue
		}
		sampled += res.Record.RowsSampled
		mets.IncCounter(metrics.MetricFilesTotal, 1, metrics.Labels{"stage": "scan", "status": "ok"})
	}
	mets.IncCounter(metrics.MetricRowsTotal, float64(sampled), metrics.Labels{"kind": "sampled"})
	p.log.Printf("stage=scan status=done files=%d ok=%d failed=%d dur_ms=%d",
		len(paths), len(paths)-len(failures), len(failures), time.Since(scanStart).Milliseconds())

	dirSink := &sink.DirSink{
		Dir:     cfg.Output.Dir,
		Formats: cfg.Output.Formats,
		RunID:   p.opts.RunID,
		DryRun:  p.opts.ReportOnly,
		Logger:  p.log,
	}

	var (
		groupSink group.Sink = dirSink
		loadSink  *sink.LoadSink
	)
	if cfg.Storage != nil && !p.opts.ReportOnly {
		loader, err := p.opts.newLoader(ctx, storage.Config{Kind: cfg.Storage.Kind, DSN: cfg.Storage.DSN})
		if err != nil {
			return totals, fmt.Errorf("open %s storage: %w", cfg.Storage.Kind, err)
		}
		defer loader.Close()

		loadSink = &sink.LoadSink{
			Files:        dirSink,
			Loader:       loader,
			Dialect:      render.Dialect(cfg.Storage.Kind),
			Tables:       ident.NewScope(cfg.Identifier.MaxLength),
			TablePrefix:  cfg.Identifier.TablePrefix,
			TableSchema:  cfg.Storage.Options.String("schema", ""),
			SurrogateKey: cfg.Storage.SurrogateKey,
			BatchSize:    cfg.Storage.BatchSize,
			InferCfg:     inferConfig(cfg),
			Logger:       p.log,
		}
		groupSink = loadSink
	}

	eng := &group.Engine{
		MinFiles: cfg.Grouping.MinFilesPerGroup,
		MaxFiles: cfg.Grouping.MaxFilesPerGroup,
		Sink:     groupSink,
		Logger:   p.log,
	}

	groupStart := time.Now()
	for _, res := range results {
		if res.Record == nil {
			continue
		}
		// A full-file read error here fails only this file; the group keeps
		// its other members.
		if err := eng.Add(ctx, res.Record); err != nil {
			failures = append(failures, schema.FailureRecord{Path: res.Path, Kind: scan.KindIO, Reason: err.Error()})
			mets.IncCounter(metrics.MetricFilesTotal, 1, metrics.Labels{"stage": "group", "status": "failed"})
		}
	}
	sum := eng.Finalize(ctx)
	mets.ObserveHistogram(metrics.MetricStageDurationSeconds, time.Since(groupStart).Seconds(),
		metrics.Labels{"stage": "group", "status": "ok"})
	mets.IncCounter(metrics.MetricGroupsTotal, float64(sum.GroupsFlushed), nil)
	mets.IncCounter(metrics.MetricRowsTotal, float64(sum.RowsWritten), metrics.Labels{"kind": "written"})

	totals.Grouped = sum.FilesGrouped
	totals.Groups = sum.GroupsFlushed
	totals.Ungrouped = len(sum.Ungrouped)
	totals.FileFailures = len(failures)
	totals.GroupFailures = len(sum.Failures)
	totals.RowsWritten = sum.RowsWritten

	if cfg.Output.Report {
		path, err := dirSink.WriteReport(len(paths), failures, sum)
		if err != nil {
			return totals, err
		}
		totals.Report = path
		p.log.Printf("stage=report status=ok path=%s", path)
	}

	if loadSink != nil {
		for _, r := range loadSink.Results() {
			if r.Err == "" {
				totals.TablesLoaded++
				mets.IncCounter(metrics.MetricRowsTotal, float64(r.Rows), metrics.Labels{"kind": "loaded"})
			}
		}
		if _, err := loadSink.WriteReport(cfg.Output.Dir); err != nil {
			return totals, err
		}
	}

	p.log.Printf("stage=run status=done run=%s files=%d grouped=%d groups=%d ungrouped=%d failed=%d rows=%d dur_ms=%d",
		p.opts.RunID, totals.Scanned, totals.Grouped, totals.Groups, totals.Ungrouped,
		totals.FileFailures+totals.GroupFailures, totals.RowsWritten, time.Since(start).Milliseconds())
	return totals, nil
}

// inferConfig maps the run configuration onto the inference engine's config.
func inferConfig(cfg config.Config) infer.Config {
	return infer.Config{
		Policy:        cfg.Inference.Policy,
		Threshold:     cfg.Inference.Threshold,
		NullMarkers:   cfg.Inference.NullMarkers,
		BooleanTokens: cfg.Inference.BooleanTokens,
		DatePatterns:  cfg.Inference.DatePatterns,
	}
}

var _ runner = (*pipeline)(nil)
