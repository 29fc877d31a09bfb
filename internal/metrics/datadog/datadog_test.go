package datadog

import (
	"context"
	"errors"
	"net/http"
	"os"
	"reflect"
	"runtime"
	"sort"
	"sync"
	"testing"
	"time"

	"filesift/internal/metrics"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

// newTestBackend builds a backend with a fake submitter and an effectively
// disabled flush loop.
func newTestBackend(t *testing.T, fs *fakeSubmitter) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), Options{
		JobName:    "job1",
		FlushEvery: 24 * time.Hour,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(1000, 0) },
		newTicker:  func(d time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	return b
}

// TestResolveEnvTag verifies environment-tag precedence and defaults.
//
// Edge cases:
//   - ENV wins over DD_ENV.
//   - Whitespace-only env vars are ignored.
//   - If neither is set, "env:unknown" is returned.
func TestResolveEnvTag(t *testing.T) {
	oldENV := os.Getenv("ENV")
	oldDDENV := os.Getenv("DD_ENV")
	t.Cleanup(func() {
		_ = os.Setenv("ENV", oldENV)
		_ = os.Setenv("DD_ENV", oldDDENV)
	})

	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "whitespace_ignored", env: "   ", dd: "\n\t", want: "env:unknown"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_ = os.Setenv("ENV", tc.env)
			_ = os.Setenv("DD_ENV", tc.dd)
			if got := resolveEnvTag(); got != tc.want {
				t.Fatalf("resolveEnvTag()=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestStageStatusKeyRoundTrip(t *testing.T) {
	t.Parallel()

	k := stageStatusKey("scan", "ok")
	stage, status := splitStageStatusKey(k)
	if stage != "scan" || status != "ok" {
		t.Fatalf("round trip = (%q, %q)", stage, status)
	}

	stage, status = splitStageStatusKey("no-separator")
	if stage != "no-separator" || status != "unknown" {
		t.Fatalf("malformed key = (%q, %q)", stage, status)
	}
}

func TestWithTags(t *testing.T) {
	t.Parallel()

	base := []string{"env:test", "job:sift"}
	got := withTags(base, "stage:scan", "status:ok")

	want := []string{"env:test", "job:sift", "stage:scan", "status:ok"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("withTags=%v, want %v", got, want)
	}
	if len(base) != 2 {
		t.Fatalf("base mutated: %v", base)
	}
}

func TestPercentileNearestRank(t *testing.T) {
	t.Parallel()

	s := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		p    float64
		want float64
	}{
		{p: 0, want: 1},
		{p: 0.50, want: 6},
		{p: 0.90, want: 9},
		{p: 0.99, want: 10},
		{p: 1, want: 10},
	}
	for _, tc := range tests {
		if got := percentileNearestRank(s, tc.p); got != tc.want {
			t.Fatalf("percentileNearestRank(p=%v)=%v, want %v", tc.p, got, tc.want)
		}
	}

	if got := percentileNearestRank(nil, 0.5); got != 0 {
		t.Fatalf("empty samples=%v, want 0", got)
	}
	if got := percentileNearestRank([]float64{7}, 0.99); got != 7 {
		t.Fatalf("single sample=%v, want 7", got)
	}
}

func TestGaugeSeries(t *testing.T) {
	t.Parallel()

	s := gaugeSeries("sift.stage.duration_seconds.p50", 0.25, []string{"env:test"}, 1234)
	if s.Metric != "sift.stage.duration_seconds.p50" {
		t.Fatalf("metric=%q", s.Metric)
	}
	if s.Type == nil || *s.Type != datadogV2.METRICINTAKETYPE_GAUGE {
		t.Fatalf("type=%v, want gauge", s.Type)
	}
	if len(s.Points) != 1 || *s.Points[0].Timestamp != 1234 || *s.Points[0].Value != 0.25 {
		t.Fatalf("points=%v", s.Points)
	}
	if !contains(s.Tags, "env:test") {
		t.Fatalf("tags=%v", s.Tags)
	}
}

func TestAddPercentiles(t *testing.T) {
	t.Parallel()

	var series []datadogV2.MetricSeries
	addPercentiles(&series, []string{"env:test"}, "sift.stage.duration_seconds", stageStatusKey("scan", "ok"), []float64{0.3, 0.1, 0.2}, 99)

	if len(series) != 6 {
		t.Fatalf("series count=%d, want 6", len(series))
	}

	byName := map[string]datadogV2.MetricSeries{}
	for _, s := range series {
		byName[s.Metric] = s
	}

	p50 := byName["sift.stage.duration_seconds.p50"]
	if *p50.Points[0].Value != 0.2 {
		t.Fatalf("p50=%v, want 0.2", *p50.Points[0].Value)
	}
	max := byName["sift.stage.duration_seconds.max"]
	if *max.Points[0].Value != 0.3 {
		t.Fatalf("max=%v, want 0.3", *max.Points[0].Value)
	}
	n := byName["sift.stage.duration_seconds.samples"]
	if *n.Points[0].Value != 3 {
		t.Fatalf("samples=%v, want 3", *n.Points[0].Value)
	}
	if !contains(p50.Tags, "stage:scan") || !contains(p50.Tags, "status:ok") {
		t.Fatalf("tags=%v", p50.Tags)
	}

	// Empty samples add nothing.
	addPercentiles(&series, nil, "x", "k", nil, 99)
	if len(series) != 6 {
		t.Fatalf("empty samples appended series")
	}
}

func TestNewBackend_Defaults(t *testing.T) {
	fs := &fakeSubmitter{}
	opts := Options{
		JobName:    "", // should default
		FlushEvery: 0,  // should default
		Tags:       []string{"service:sift"},
		submitter:  fs,
		now:        func() time.Time { return time.Unix(123, 0) },
		newTicker:  func(d time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) }, // effectively disables loop in this test
	}

	b, err := NewBackend(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewBackend() err=%v, want nil", err)
	}
	defer func() { _ = b.Close() }()

	// baseTags should include env tag + job tag + provided tags.
	// env tag depends on env vars; we just require the defaults exist.
	if !contains(b.baseTags, "job:sift") {
		t.Fatalf("baseTags missing job:sift: %v", b.baseTags)
	}
	if !contains(b.baseTags, "service:sift") {
		t.Fatalf("baseTags missing service:sift: %v", b.baseTags)
	}
	if b.flushEvery != 60*time.Second {
		t.Fatalf("flushEvery=%s, want 60s", b.flushEvery)
	}
}

// TestFlush_SubmitsAndResets verifies Flush submits buffered metrics and
// resets buffers.
func TestFlush_SubmitsAndResets(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs)
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.MetricFilesTotal, 2, metrics.Labels{"stage": "scan", "status": "ok"})
	b.IncCounter(metrics.MetricRowsTotal, 3, metrics.Labels{"kind": "written"})
	b.IncCounter(metrics.MetricGroupsTotal, 1, nil)
	b.ObserveHistogram(metrics.MetricStageDurationSeconds, 0.5, metrics.Labels{"stage": "scan", "status": "ok"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}

	// Buffers should be reset after flush.
	if len(b.fileCounts) != 0 || len(b.rowCounts) != 0 || b.groupCount != 0 || len(b.durationSamples) != 0 {
		t.Fatalf("buffers not reset after Flush")
	}

	payload, ok := fs.last()
	if !ok {
		t.Fatalf("missing payload")
	}

	var metricNames []string
	for _, s := range payload.Series {
		metricNames = append(metricNames, s.Metric)
	}
	sort.Strings(metricNames)

	wantContains := []string{
		"sift.files.total",
		"sift.rows.total",
		"sift.groups.total",
		"sift.stage.duration_seconds.p50",
		"sift.stage.duration_seconds.samples",
	}
	for _, w := range wantContains {
		if !contains(metricNames, w) {
			t.Fatalf("payload missing metric %q; got=%v", w, metricNames)
		}
	}
}

// TestFlush_NoDataDoesNotSubmit verifies Flush returns nil and does not
// submit when empty.
func TestFlush_NoDataDoesNotSubmit(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs)
	defer func() { _ = b.Close() }()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 0 {
		t.Fatalf("unexpected submission count=%d, want 0", fs.count())
	}
}

func TestFlush_PropagatesSubmitError(t *testing.T) {
	fs := &fakeSubmitter{err: errors.New("intake unavailable")}
	b := newTestBackend(t, fs)

	b.IncCounter(metrics.MetricGroupsTotal, 1, nil)
	if err := b.Flush(); err == nil {
		t.Fatalf("Flush() err=nil, want submit error")
	}

	// Buffers reset even on failed submission.
	if b.groupCount != 0 {
		t.Fatalf("groupCount=%v, want reset", b.groupCount)
	}

	fs.err = nil
	_ = b.Close()
}

// TestLoopAndClose verifies the background loop flushes periodically and
// Close performs a final flush.
func TestLoopAndClose(t *testing.T) {
	fs := &fakeSubmitter{}

	// Use a fast ticker to trigger at least one background flush.
	opts := Options{
		JobName:    "job1",
		FlushEvery: 5 * time.Millisecond,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(2000, 0) },
		// Use real ticker for this test (default), so loop is exercised.
	}

	b, err := NewBackend(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}

	// Put some data in the buffers; loop should flush it.
	b.IncCounter(metrics.MetricGroupsTotal, 1, nil)

	// Wait briefly for at least one tick.
	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) {
		if fs.count() >= 1 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if fs.count() < 1 {
		_ = b.Close()
		t.Fatalf("expected at least one background Flush submission; got %d", fs.count())
	}

	// Add more data; Close should perform a final flush.
	b.IncCounter(metrics.MetricGroupsTotal, 1, nil)
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v, want nil", err)
	}

	// Close performs a final flush, so we expect at least 2 submissions total:
	// one from the periodic loop, one from Close()'s final Flush().
	if fs.count() < 2 {
		t.Fatalf("expected at least 2 submissions after Close; got %d", fs.count())
	}
}

// TestBackend_ConcurrentAccess verifies thread-safety of buffering.
func TestBackend_ConcurrentAccess(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs)
	defer func() { _ = b.Close() }()

	workers := runtime.GOMAXPROCS(0) * 4
	iters := 2000

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				b.IncCounter(metrics.MetricGroupsTotal, 1, nil)
				b.IncCounter(metrics.MetricFilesTotal, 1, metrics.Labels{"stage": "scan", "status": "ok"})
				b.IncCounter(metrics.MetricRowsTotal, 1, metrics.Labels{"kind": "written"})
				b.ObserveHistogram(metrics.MetricStageDurationSeconds, 0.01, metrics.Labels{"stage": "scan", "status": "ok"})
			}
		}()
	}
	wg.Wait()

	// Force a flush and validate no panic and one submission.
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}
}

// TestIncCounterAndObserveHistogram_EdgeCases verifies ignored paths.
func TestIncCounterAndObserveHistogram_EdgeCases(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs)
	defer func() { _ = b.Close() }()

	// Non-positive counter should be ignored.
	b.IncCounter(metrics.MetricGroupsTotal, 0, nil)
	// Missing kind should be ignored.
	b.IncCounter(metrics.MetricRowsTotal, 1, metrics.Labels{})
	// Unknown metric should be ignored.
	b.IncCounter("unknown_total", 1, metrics.Labels{"x": "y"})
	// Unknown histogram should be ignored.
	b.ObserveHistogram("unknown_seconds", 1, metrics.Labels{"x": "y"})
	// Negative histogram should be ignored.
	b.ObserveHistogram(metrics.MetricStageDurationSeconds, -1, metrics.Labels{"stage": "scan", "status": "ok"})

	// Everything was ignored, so Flush has nothing to submit.
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 0 {
		t.Fatalf("submit calls=%d, want 0", fs.count())
	}
}

func contains[T comparable](xs []T, v T) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "empty_returns_nil",
			in:   "",
			want: nil,
		},
		{
			name: "trims_and_skips_empty_segments",
			in:   " env:prod , ,service:sift,  ,team:data ",
			want: []string{"env:prod", "service:sift", "team:data"},
		},
		{
			name: "single_tag",
			in:   "service:sift",
			want: []string{"service:sift"},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ParseTagsCSV(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseTagsCSV(%q)=%v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
