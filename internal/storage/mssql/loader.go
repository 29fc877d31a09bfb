// Package mssql implements the storage.Loader interface for Microsoft SQL
// Server using database/sql and the go-mssqldb driver.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"filesift/internal/storage"
)

func init() {
	storage.Register("mssql", New)
}

type Loader struct {
	db *sql.DB
}

// New opens a connection via the "sqlserver" driver and validates
// connectivity with PingContext.
func New(ctx context.Context, cfg storage.Config) (storage.Loader, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}

	// Conservative defaults for bursty batch loads.
	db.SetMaxOpenConns(64)
	db.SetMaxIdleConns(64)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Loader{db: db}, nil
}

func (l *Loader) Close() { _ = l.db.Close() }

// EnsureTable executes the renderer's guarded CREATE TABLE statement.
func (l *Loader) EnsureTable(ctx context.Context, ddl string) error {
	if _, err := l.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// LoadRows appends rows with chunked multi-row INSERTs.
//
// SQL Server has a hard limit of 2100 parameters per statement. Each row uses
// len(columns) parameters, so the chunk size is derived per call and stays
// comfortably below the limit.
func (l *Loader) LoadRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("mssql: no columns for %s", table)
	}

	chunk := 2000 / len(columns)
	if chunk < 1 {
		chunk = 1
	}

	var total int64
	for start := 0; start < len(rows); start += chunk {
		end := start + chunk
		if end > len(rows) {
			end = len(rows)
		}

		query, args := buildInsertSQL(table, columns, rows[start:end])
		res, err := l.db.ExecContext(ctx, query, args...)
		if err != nil {
			return total, fmt.Errorf("insert into %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// buildInsertSQL constructs a single multi-row INSERT and its args.
//
// It is pure and deterministic, so placeholder numbering and quoting can be
// unit tested without a database.
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

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "@p%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	b.WriteString(";")
	return b.String(), args
}

// ident quotes a SQL Server identifier with brackets, escaping closing
// brackets by doubling.
func ident(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// tableIdent quotes a possibly schema-qualified name part by part, so
// "dbo.imports" becomes [dbo].[imports].
func tableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = ident(p)
	}
	return strings.Join(parts, ".")
}
