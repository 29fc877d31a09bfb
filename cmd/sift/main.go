// Command sift scans a directory tree of delimited text files, infers a
// typed schema for each file, fingerprints the schemas, and merges files
// that share a fingerprint into consolidated datasets with provenance
// columns. Optionally every consolidated dataset is also loaded into a
// database table.
//
// Typical use:
//
//	sift -input ./drops -out ./combined
//	sift -config run.json -load postgres -dsn "$DSN"
//
// # DSN overrides
//
// The storage DSN can be supplied without editing the config file, using
// either:
//
//   - -dsn "<dsn>"                     (flag, highest priority)
//   - DSN="<dsn>"                      (full DSN via env var)
//   - DSN_HOST / DSN_PORT / DSN_USER / DSN_PASSWORD / DSN_DB
//     plus backend-specific knobs:
//     postgres: DSN_SSLMODE (default "disable"),
//     mssql: DSN_ENCRYPT (default "disable"),
//     sqlite: DSN_SQLITE (path or full DSN),
//     and optional DSN_PARAMS for extra query parameters.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"filesift/internal/config"
	"filesift/internal/metrics"
	"filesift/internal/metrics/datadog"

	// register all loader backends with the storage factory.
	// the config selects which one a run uses.
	_ "filesift/internal/storage/all"
)

// runner executes a configured run. The production implementation is the
// pipeline in run.go; CLI tests substitute a fake.
type runner interface {
	Run(ctx context.Context, cfg config.Config) (pipelineTotals, error)
}

// Package-level seams so unit tests can fake backend construction and
// logging without real network work.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metrics.Backend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	logPrintf = log.Printf
)

// appDeps carries the side-effecting dependencies of runMain, so tests can
// drive the CLI deterministically.
type appDeps struct {
	loadConfig  func(path string) (config.Config, error)
	newRunner   func(o pipelineOptions) runner
	initMetrics func(ctx context.Context, jobName, backendName, tagsCSV string, flushEvery time.Duration) (metrics.Backend, func(), error)
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig:  config.Load,
		newRunner:   func(o pipelineOptions) runner { return newPipeline(o) },
		initMetrics: initMetrics,
	}
}

func main() {
	os.Exit(runMain(context.Background(), os.Args[1:], os.Stdout, os.Stderr, defaultDeps()))
}

// flagValues collects the parsed flag state handed to applyFlags. Zero
// values mean "keep the config".
type flagValues struct {
	input   string
	out     string
	formats string
	min     int
	max     int
	sample  int
	workers int
	load    string
}

// runMain is the testable entry point. Exit codes: 0 success, 1 runtime or
// config error, 2 usage error.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	fs := flag.NewFlagSet("sift", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		cfgPath    = fs.String("config", "", "run config JSON path; flags override individual fields")
		metricsFlg = fs.String("metrics", "", "metrics backend: none|datadog (default: SIFT_METRICS env, then config)")
		dsnFlg     = fs.String("dsn", "", "storage DSN override (highest priority; see package doc for env forms)")
		reportOnly = fs.Bool("report-only", false, "scan and group without writing datasets or loading tables")
		verbose    = fs.Bool("v", false, "log each scanned file")
		fv         flagValues
	)
	fs.StringVar(&fv.input, "input", "", "directory tree to scan (overrides input.dir)")
	fs.StringVar(&fv.out, "out", "", "output directory (overrides output.dir)")
	fs.StringVar(&fv.formats, "formats", "", "comma-separated dataset formats: csv,parquet,xlsx")
	fs.IntVar(&fv.min, "min", 0, "minimum files per group (overrides grouping.min_files_per_group)")
	fs.IntVar(&fv.max, "max", 0, "maximum files per group before it seals (overrides grouping.max_files_per_group)")
	fs.IntVar(&fv.sample, "sample", 0, "data rows sampled per file for inference (overrides sample.rows)")
	fs.IntVar(&fv.workers, "workers", 0, "concurrent file scans (overrides runtime.scan_workers)")
	fs.StringVar(&fv.load, "load", "", "load flushed groups into this backend: mssql|postgres|sqlite (overrides storage.kind)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := deps.loadConfig(strings.TrimSpace(*cfgPath))
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	applyFlags(&cfg, fv)

	if strings.TrimSpace(cfg.Input.Dir) == "" {
		fmt.Fprintln(stderr, "usage: sift -input <dir> [-config <file>] [flags]")
		return 2
	}

	if cfg.Storage != nil {
		dsn, ok, err := resolveDSN(cfg.Storage.Kind, strings.TrimSpace(*dsnFlg))
		if err != nil {
			fmt.Fprintf(stderr, "resolve dsn: %v\n", err)
			return 1
		}
		if ok {
			cfg.Storage.DSN = dsn
		}
	}

	if issues := config.Validate(cfg); len(issues) > 0 {
		for _, iss := range issues {
			fmt.Fprintf(stderr, "config: %s\n", iss)
		}
		return 1
	}

	// Decide metrics backend: flag, then env, then config.
	backendName := strings.TrimSpace(*metricsFlg)
	if backendName == "" {
		backendName = strings.TrimSpace(os.Getenv("SIFT_METRICS"))
	}
	if backendName == "" {
		backendName = cfg.Metrics.Backend
	}
	jobName := cfg.Metrics.Job
	if jobName == "" {
		jobName = cfg.Job
	}

	runID := uuid.NewString()
	mets, cleanup, err := deps.initMetrics(ctx, jobName, backendName, joinTags(cfg.Metrics.Tags, "run:"+runID), cfg.MetricsFlushInterval())
	if err != nil {
		fmt.Fprintf(stderr, "init metrics: %v\n", err)
		return 1
	}
	defer cleanup()

	r := deps.newRunner(pipelineOptions{
		Metrics:    mets,
		RunID:      runID,
		ReportOnly: *reportOnly,
		Verbose:    *verbose,
		LogWriter:  stderr,
	})
	totals, err := r.Run(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "ok scanned=%d grouped=%d groups=%d ungrouped=%d failed=%d rows=%d\n",
		totals.Scanned, totals.Grouped, totals.Groups, totals.Ungrouped,
		totals.FileFailures+totals.GroupFailures, totals.RowsWritten)
	return 0
}

// applyFlags layers non-zero flag values over the loaded config.
func applyFlags(cfg *config.Config, fv flagValues) {
	if fv.input != "" {
		cfg.Input.Dir = fv.input
	}
	if fv.out != "" {
		cfg.Output.Dir = fv.out
	}
	if fv.formats != "" {
		cfg.Output.Formats = splitCSV(fv.formats)
	}
	if fv.min > 0 {
		cfg.Grouping.MinFilesPerGroup = fv.min
	}
	if fv.max > 0 {
		cfg.Grouping.MaxFilesPerGroup = fv.max
	}
	if fv.sample > 0 {
		cfg.Sample.Rows = fv.sample
	}
	if fv.workers > 0 {
		cfg.Runtime.ScanWorkers = fv.workers
	}
	if fv.load != "" {
		if cfg.Storage == nil {
			cfg.Storage = &config.Storage{}
		}
		cfg.Storage.Kind = fv.load
	}
}

// initMetrics selects and starts the metrics backend. The returned cleanup
// is always non-nil and safe to call; for datadog it stops the flush loop
// and submits one final time.
func initMetrics(ctx context.Context, jobName, backendName, tagsCSV string, flushEvery time.Duration) (metrics.Backend, func(), error) {
	switch backendName {
	case "", "none":
		return metrics.Nop{}, func() {}, nil

	case "datadog", "dd":
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    jobName,
			Tags:       datadog.ParseTagsCSV(tagsCSV),
			FlushEvery: flushEvery,
		})
		if err != nil {
			return metrics.Nop{}, func() {}, fmt.Errorf("datadog: %w", err)
		}
		cleanup := func() {
			if err := b.Close(); err != nil {
				logPrintf("metrics: datadog close error: %v", err)
			}
		}
		return b, cleanup, nil

	default:
		return metrics.Nop{}, func() {}, fmt.Errorf("unknown metrics backend %q (none|datadog)", backendName)
	}
}

func joinTags(tagsCSV, extra string) string {
	if strings.TrimSpace(tagsCSV) == "" {
		return extra
	}
	return tagsCSV + "," + extra
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
