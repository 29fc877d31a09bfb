// Package postgres implements the storage.Loader interface on top of a pgx
// connection pool. Bulk loading uses the COPY protocol.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"filesift/internal/storage"
)

func init() {
	storage.Register("postgres", New)
}

type Loader struct {
	pool *pgxpool.Pool
}

// New opens a pooled connection and validates connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Loader, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Loader{pool: pool}, nil
}

// Close closes the connection pool.
func (l *Loader) Close() {
	l.pool.Close()
}

// EnsureTable executes the renderer's CREATE TABLE statement. When the table
// name is schema-qualified the schema is created first, so auto-created
// tables work outside the default search path.
func (l *Loader) EnsureTable(ctx context.Context, ddl string) error {
	if schema := schemaOf(ddl); schema != "" {
		q := fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %q;`, schema)
		if _, err := l.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("create schema %s: %w", schema, err)
		}
	}
	if _, err := l.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// LoadRows streams rows into table via COPY.
func (l *Loader) LoadRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	ident := pgx.Identifier(strings.Split(table, "."))
	n, err := l.pool.CopyFrom(ctx, ident, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

// schemaOf extracts the schema part of the quoted table name inside a
// renderer CREATE TABLE statement, or "" when the table is unqualified.
//
// The renderer always quotes part by part ("schema"."table"), so scanning for
// the first quoted pair is enough. This is pure so it can be tested without a
// database.
func schemaOf(ddl string) string {
	start := strings.Index(ddl, `"`)
	if start < 0 {
		return ""
	}
	rest := ddl[start+1:]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return ""
	}
	if !strings.HasPrefix(rest[end+1:], `.`) {
		return ""
	}
	return rest[:end]
}
