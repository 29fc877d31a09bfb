// Package sqlite implements the storage.Loader interface using the pure-Go
// modernc.org/sqlite driver.
//
// Key design points vs the server backends:
//   - SQLite has no BOOLEAN or TIMESTAMP storage classes. Booleans are bound
//     as 0/1 integers and timestamps as RFC3339Nano strings for reliable
//     round-trip behavior and easy debugging.
//   - The variable limit per statement is much lower than SQL Server's, so
//     inserts are chunked against a 999 parameter budget.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"filesift/internal/storage"
)

func init() {
	storage.Register("sqlite", New)
}

type Loader struct {
	db *sql.DB
}

func New(ctx context.Context, cfg storage.Config) (storage.Loader, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Loader{db: db}, nil
}

func (l *Loader) Close() { _ = l.db.Close() }

// EnsureTable executes the renderer's CREATE TABLE statement.
func (l *Loader) EnsureTable(ctx context.Context, ddl string) error {
	if _, err := l.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// LoadRows appends rows with chunked multi-row INSERTs inside a transaction,
// so a partially failed batch does not leave a half-loaded table behind.
func (l *Loader) LoadRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: no columns for %s", table)
	}

	chunk := 999 / len(columns)
	if chunk < 1 {
		chunk = 1
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var total int64
	for start := 0; start < len(rows); start += chunk {
		end := start + chunk
		if end > len(rows) {
			end = len(rows)
		}

		query, args := buildInsertSQL(table, columns, rows[start:end])
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

// buildInsertSQL constructs a single multi-row INSERT with ? placeholders.
// Values are normalized to SQLite storage classes as args are collected.
//
// Pure, so chunking and normalization are testable without a database.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ident(c))
	}
	b.WriteString(") VALUES ")

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholder)
		for j := range columns {
			args = append(args, normalizeValue(row[j]))
		}
	}
	b.WriteString(";")
	return b.String(), args
}

// normalizeValue maps driver values onto SQLite storage classes.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return v
	}
}

func ident(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// tableIdent quotes a possibly qualified name part by part, matching how the
// renderer quotes the same name in its CREATE TABLE.
func tableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = ident(p)
	}
	return strings.Join(parts, ".")
}
