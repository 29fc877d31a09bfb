// Package storage defines the backend-agnostic loader interface used to
// materialize combined groups into a database, plus the factory registry the
// backend packages hook into.
package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to open a loader.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Loader is a backend-agnostic interface for table creation and row loading.
//
// IMPORTANT: This interface is intentionally minimal and focused on what the
// grouping pipeline needs: execute renderer DDL, append typed rows. Each
// backend implements these semantics in its own idiomatic way (pgx CopyFrom,
// parameterized multi-row INSERT, etc).
type Loader interface {
	// EnsureTable executes a CREATE TABLE statement produced by the renderer.
	// Statements are expected to carry their own existence guard, so re-runs
	// are idempotent.
	EnsureTable(ctx context.Context, ddl string) error

	// LoadRows appends rows to table. columns names the destination columns
	// in row order; every row must have len(columns) values. Returns the
	// number of rows written.
	LoadRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// Close releases backend resources. Callers should treat Close as
	// "call once" at shutdown.
	Close()
}

type factory func(ctx context.Context, cfg Config) (Loader, error)

var (
	registryMu sync.RWMutex
	factories  = map[string]factory{}
)

// Register registers a loader backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The `kind` string becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered. This is intentional to fail fast and
//     avoid ambiguous backend selection.
func Register(kind string, f factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// Kinds returns the registered backend kinds, for error messages and flag help.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}

// New constructs a Loader using the registered backend factory.
//
// Concurrency:
//   - Safe for concurrent use with Register. New takes a read lock while
//     selecting the factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Loader, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing storage.kind")
	}

	registryMu.RLock()
	f := factories[cfg.Kind]
	registryMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
