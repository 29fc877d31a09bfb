// Package metrics defines the minimal instrumentation interface the pipeline
// reports through. The core stages depend only on Backend; concrete backends
// live in subpackages.
package metrics

// Metric names the pipeline emits. Backends switch on these and ignore
// names they do not understand.
const (
	// MetricFilesTotal counts scanned files. Labels: stage, status.
	MetricFilesTotal = "sift_files_total"

	// MetricRowsTotal counts data rows. Labels: kind (sampled, written, dropped).
	MetricRowsTotal = "sift_rows_total"

	// MetricGroupsTotal counts flushed groups. No labels.
	MetricGroupsTotal = "sift_groups_total"

	// MetricStageDurationSeconds samples stage wall time. Labels: stage, status.
	MetricStageDurationSeconds = "sift_stage_duration_seconds"
)

// Labels carries metric dimensions. Backends pick the keys they understand.
type Labels map[string]string

// Backend buffers and ships metrics. Implementations must be safe for
// concurrent use by the scan workers.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)

	// Flush submits buffered metrics. Safe to call at any time.
	Flush() error

	// Close stops background flushing and submits one final time.
	Close() error
}

// Nop discards all metrics. It is the default backend.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels) {}

func (Nop) ObserveHistogram(string, float64, Labels) {}

func (Nop) Flush() error { return nil }

func (Nop) Close() error { return nil }

var _ Backend = Nop{}
