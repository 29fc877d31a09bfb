// Package config defines the run configuration shared by the sift and
// schemagen commands. Configs are plain JSON files; flags may override
// individual fields after Load, and Validate reports every problem it finds
// rather than stopping at the first one.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	// Job names the run in reports and metric tags. Defaults to "sift".
	Job string `json:"job"`

	Input      Input      `json:"input"`
	Sample     Sample     `json:"sample"`
	Inference  Inference  `json:"inference"`
	Identifier Identifier `json:"identifier"`
	Grouping   Grouping   `json:"grouping"`
	Output     Output     `json:"output"`

	// Storage is optional; when nil, flushed groups are not loaded anywhere.
	Storage *Storage `json:"storage,omitempty"`

	Metrics Metrics `json:"metrics"`
	Runtime Runtime `json:"runtime"`
}

type Input struct {
	// Dir is the root scanned for candidate files.
	Dir string `json:"dir"`

	// Extensions is the allowlist applied to discovered files before any
	// compression suffix is stripped. Empty means the built-in default set.
	Extensions []string `json:"extensions,omitempty"`
}

type Sample struct {
	// Rows is the number of data rows read per file for inference.
	Rows int `json:"rows"`

	// MaxBytes bounds the raw prefix read while detecting the delimiter.
	MaxBytes int `json:"max_bytes"`
}

type Inference struct {
	// Policy is "strict" (every non-null sample must match a type predicate)
	// or "majority" (a fraction >= Threshold must match).
	Policy    string  `json:"policy"`
	Threshold float64 `json:"threshold"`

	// Delimiters lists candidate delimiter runes as a single string.
	Delimiters string `json:"delimiters"`

	// NullMarkers are compared case-insensitively after trimming.
	NullMarkers []string `json:"null_markers,omitempty"`

	// BooleanTokens are compared case-insensitively.
	BooleanTokens []string `json:"boolean_tokens,omitempty"`

	// DatePatterns are Go time layouts tried in order. Layouts containing a
	// clock component promote matching columns to DateTime.
	DatePatterns []string `json:"date_patterns,omitempty"`
}

type Identifier struct {
	MaxLength   int    `json:"max_length"`
	TablePrefix string `json:"table_prefix"`
}

type Grouping struct {
	MinFilesPerGroup int `json:"min_files_per_group"`
	MaxFilesPerGroup int `json:"max_files_per_group"`
}

type Output struct {
	// Dir receives consolidated datasets, metadata records and the report.
	Dir string `json:"dir"`

	// Formats selects consolidated output encodings: csv, parquet, xlsx.
	Formats []string `json:"formats,omitempty"`

	// Report toggles the end-of-run text report.
	Report bool `json:"report"`
}

type Storage struct {
	// Kind selects the loader backend: "mssql", "postgres" or "sqlite".
	Kind string `json:"kind"`
	DSN  string `json:"dsn"`

	// BatchSize caps rows per insert statement. Backends shrink it further
	// when their parameter limits require it.
	BatchSize int `json:"batch_size"`

	// SurrogateKey adds a synthetic identity column to created tables.
	SurrogateKey bool `json:"surrogate_key"`

	Options Options `json:"options,omitempty"`
}

type Metrics struct {
	// Backend is "none" or "datadog".
	Backend      string `json:"backend"`
	Job          string `json:"job"`
	Tags         string `json:"tags"`
	FlushSeconds int    `json:"flush_seconds"`
}

type Runtime struct {
	// ScanWorkers bounds concurrent file sampling. Grouping itself is
	// sequential in input order regardless of this value.
	ScanWorkers int `json:"scan_workers"`
}

// Default returns the configuration used when no file or flag says otherwise.
// The marker, token and pattern lists here are the documented defaults; they
// are replaced wholesale (not merged) when the config file sets them.
func Default() Config {
	return Config{
		Job: "sift",
		Input: Input{
			Extensions: []string{".csv", ".tsv", ".txt", ".psv", ".html", ".htm"},
		},
		Sample: Sample{
			Rows:     20,
			MaxBytes: 256 * 1024,
		},
		Inference: Inference{
			Policy:        "strict",
			Threshold:     1.0,
			Delimiters:    ",\t|;",
			NullMarkers:   []string{"", "NULL", "N/A", "NA", "-"},
			BooleanTokens: []string{"0", "1", "true", "false", "yes", "no"},
			DatePatterns: []string{
				"2006-01-02",
				"01/02/2006",
				"02.01.2006",
				"2006-01-02 15:04:05",
				"01/02/2006 15:04:05",
				"2006-01-02T15:04:05",
			},
		},
		Identifier: Identifier{
			MaxLength: 128,
		},
		Grouping: Grouping{
			MinFilesPerGroup: 2,
			MaxFilesPerGroup: 1000,
		},
		Output: Output{
			Dir:     "out",
			Formats: []string{"csv"},
			Report:  true,
		},
		Metrics: Metrics{
			Backend:      "none",
			FlushSeconds: 60,
		},
		Runtime: Runtime{
			ScanWorkers: 4,
		},
	}
}

// Load reads a JSON config file over the defaults. A missing path returns the
// defaults unchanged. Environment variables in the storage DSN are expanded so
// configs can be committed without credentials.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Storage != nil {
		cfg.Storage.DSN = os.ExpandEnv(cfg.Storage.DSN)
	}
	return cfg, nil
}

// MetricsFlushInterval converts the configured flush cadence to a duration.
func (c Config) MetricsFlushInterval() time.Duration {
	if c.Metrics.FlushSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Metrics.FlushSeconds) * time.Second
}

// Validate returns one message per problem. An empty slice means the config
// is usable. Callers decide whether issues are fatal; the commands treat any
// issue as a startup error.
func Validate(cfg Config) []string {
	var issues []string

	if cfg.Sample.Rows <= 0 {
		issues = append(issues, "sample.rows must be positive")
	}
	if cfg.Sample.MaxBytes <= 0 {
		issues = append(issues, "sample.max_bytes must be positive")
	}

	switch cfg.Inference.Policy {
	case "strict", "majority":
	default:
		issues = append(issues, fmt.Sprintf("inference.policy must be strict or majority, got %q", cfg.Inference.Policy))
	}
	if cfg.Inference.Threshold <= 0 || cfg.Inference.Threshold > 1 {
		issues = append(issues, fmt.Sprintf("inference.threshold must be in (0,1], got %v", cfg.Inference.Threshold))
	}
	if strings.TrimSpace(cfg.Inference.Delimiters) == "" {
		issues = append(issues, "inference.delimiters must list at least one candidate")
	}
	if len(cfg.Inference.DatePatterns) == 0 {
		issues = append(issues, "inference.date_patterns must not be empty")
	}

	if cfg.Identifier.MaxLength < 4 {
		issues = append(issues, fmt.Sprintf("identifier.max_length %d is too small", cfg.Identifier.MaxLength))
	}

	if cfg.Grouping.MinFilesPerGroup < 1 {
		issues = append(issues, "grouping.min_files_per_group must be at least 1")
	}
	if cfg.Grouping.MaxFilesPerGroup < cfg.Grouping.MinFilesPerGroup {
		issues = append(issues, "grouping.max_files_per_group must be >= min_files_per_group")
	}

	for _, f := range cfg.Output.Formats {
		switch f {
		case "csv", "parquet", "xlsx":
		default:
			issues = append(issues, fmt.Sprintf("output.formats: unknown format %q", f))
		}
	}

	if cfg.Storage != nil {
		switch cfg.Storage.Kind {
		case "mssql", "postgres", "sqlite":
		default:
			issues = append(issues, fmt.Sprintf("storage.kind must be mssql, postgres or sqlite, got %q", cfg.Storage.Kind))
		}
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			issues = append(issues, "storage.dsn is required when storage is configured")
		}
	}

	switch cfg.Metrics.Backend {
	case "", "none", "datadog":
	default:
		issues = append(issues, fmt.Sprintf("metrics.backend must be none or datadog, got %q", cfg.Metrics.Backend))
	}

	if cfg.Runtime.ScanWorkers < 0 {
		issues = append(issues, "runtime.scan_workers must not be negative")
	}

	return issues
}
