// Package render emits CREATE TABLE statements and bulk-load templates from
// inferred schema definitions. The type mapping is a fixed table per
// dialect; the renderer never invents constraints beyond nullability and the
// optional surrogate key.
package render

import (
	"fmt"
	"strings"

	"filesift/internal/infer"
	"filesift/internal/schema"
)

// Dialect selects the target database flavor.
type Dialect string

const (
	DialectMSSQL    Dialect = "mssql"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// SurrogateKeyColumn is the synthetic identity column added on request.
const SurrogateKeyColumn = "_sift_id"

// Dialects lists the supported targets in documentation order.
func Dialects() []Dialect {
	return []Dialect{DialectMSSQL, DialectPostgres, DialectSQLite}
}

// fixed type names per dialect; decimal and text carry parameters and are
// formatted in ColumnType.
var typeNames = map[Dialect]map[infer.Kind]string{
	DialectMSSQL: {
		infer.KindBoolean:    "BIT",
		infer.KindInteger:    "INT",
		infer.KindBigInteger: "BIGINT",
		infer.KindDate:       "DATE",
		infer.KindDateTime:   "DATETIME2",
	},
	DialectPostgres: {
		infer.KindBoolean:    "BOOLEAN",
		infer.KindInteger:    "INTEGER",
		infer.KindBigInteger: "BIGINT",
		infer.KindDate:       "DATE",
		infer.KindDateTime:   "TIMESTAMP",
	},
	DialectSQLite: {
		infer.KindBoolean:    "INTEGER",
		infer.KindInteger:    "INTEGER",
		infer.KindBigInteger: "INTEGER",
		infer.KindDate:       "TEXT",
		infer.KindDateTime:   "TEXT",
	},
}

// ColumnType maps an inferred column to the dialect's type name.
func ColumnType(d Dialect, c infer.Column) (string, error) {
	switch c.Kind {
	case infer.KindDecimal:
		switch d {
		case DialectMSSQL:
			return fmt.Sprintf("DECIMAL(%d,%d)", c.Precision, c.Scale), nil
		case DialectPostgres:
			return fmt.Sprintf("NUMERIC(%d,%d)", c.Precision, c.Scale), nil
		case DialectSQLite:
			return "NUMERIC", nil
		}

	case infer.KindText:
		switch d {
		case DialectMSSQL:
			if c.Length == 0 {
				return "NVARCHAR(MAX)", nil
			}
			return fmt.Sprintf("NVARCHAR(%d)", c.Length), nil
		case DialectPostgres:
			if c.Length == 0 {
				return "TEXT", nil
			}
			return fmt.Sprintf("VARCHAR(%d)", c.Length), nil
		case DialectSQLite:
			return "TEXT", nil
		}

	default:
		if name, ok := typeNames[d][c.Kind]; ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("render: no %s mapping for %s", d, c.Kind)
}

// Ident quotes a single identifier for the dialect. SQL Server brackets with
// ]] escaping; Postgres and SQLite double-quote with "" escaping.
func Ident(d Dialect, name string) string {
	if d == DialectMSSQL {
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// TableIdent quotes a possibly schema-qualified table name part by part, so
// "dbo.imports" renders as [dbo].[imports].
func TableIdent(d Dialect, name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = Ident(d, p)
	}
	return strings.Join(parts, ".")
}

// Options tune a rendered CREATE TABLE.
type Options struct {
	// SurrogateKey prepends a synthetic identity primary key column.
	SurrogateKey bool
	// Provenance appends the _source_file/_source_path text columns, for
	// tables that will hold combined group output.
	Provenance bool
	// GuardExists wraps or marks the statement so re-runs are idempotent.
	GuardExists bool
	// SourceFiles are emitted as leading "-- source:" comment lines.
	SourceFiles []string
}

// CreateTable renders one CREATE TABLE statement for the definition. Columns
// whose normalized name differs from the original header carry a trailing
// "-- from:" comment recording the rename.
func CreateTable(d Dialect, table string, def schema.Definition, opts Options) (string, error) {
	var cols, notes []string

	if opts.SurrogateKey {
		cols = append(cols, surrogateKeyDef(d))
		notes = append(notes, "")
	}

	for _, c := range def.Columns {
		typ, err := ColumnType(d, c.Type)
		if err != nil {
			return "", err
		}
		null := " NOT NULL"
		if c.Type.Nullable {
			null = " NULL"
		}
		cols = append(cols, fmt.Sprintf("%s %s%s", Ident(d, c.Normalized), typ, null))
		note := ""
		if c.Original != "" && c.Original != c.Normalized {
			note = " -- from: " + commentText(c.Original)
		}
		notes = append(notes, note)
	}

	if opts.Provenance {
		provType, err := ColumnType(d, infer.Column{Kind: infer.KindText, Length: 255})
		if err != nil {
			return "", err
		}
		cols = append(cols,
			fmt.Sprintf("%s %s NOT NULL", Ident(d, schema.SourceFileColumn), provType),
			fmt.Sprintf("%s %s NOT NULL", Ident(d, schema.SourcePathColumn), provType),
		)
		notes = append(notes, "", "")
	}

	var b strings.Builder
	for _, src := range opts.SourceFiles {
		fmt.Fprintf(&b, "-- source: %s\n", src)
	}

	// Trailing comments must land after the separating comma, so the column
	// list is joined by hand.
	var list strings.Builder
	for i, col := range cols {
		list.WriteString("\n  ")
		list.WriteString(col)
		if i < len(cols)-1 {
			list.WriteString(",")
		}
		list.WriteString(notes[i])
	}
	list.WriteString("\n")
	inner := list.String()

	switch {
	case d == DialectMSSQL && opts.GuardExists:
		fmt.Fprintf(&b, "IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
			table, TableIdent(d, table), inner)
	case opts.GuardExists:
		fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (%s);", TableIdent(d, table), inner)
	default:
		fmt.Fprintf(&b, "CREATE TABLE %s (%s);", TableIdent(d, table), inner)
	}
	return b.String(), nil
}

// commentText flattens a header cell so it stays on the comment's line.
func commentText(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

func surrogateKeyDef(d Dialect) string {
	switch d {
	case DialectMSSQL:
		return fmt.Sprintf("%s BIGINT IDENTITY(1,1) NOT NULL PRIMARY KEY", Ident(d, SurrogateKeyColumn))
	case DialectPostgres:
		return fmt.Sprintf("%s BIGSERIAL PRIMARY KEY", Ident(d, SurrogateKeyColumn))
	default:
		return fmt.Sprintf("%s INTEGER PRIMARY KEY AUTOINCREMENT", Ident(d, SurrogateKeyColumn))
	}
}
