package render

import (
	"fmt"
	"strings"
)

// BulkLoad renders a load command template for a delimited data file with a
// header row. The output is a script fragment, not an executed statement:
// SQL Server gets a BULK INSERT, Postgres a psql \copy, SQLite dot commands.
func BulkLoad(d Dialect, table, dataPath string, delimiter rune) string {
	switch d {
	case DialectMSSQL:
		return fmt.Sprintf(
			"BULK INSERT %s FROM '%s' WITH (FIELDTERMINATOR = '%s', ROWTERMINATOR = '\\n', FIRSTROW = 2, CODEPAGE = '65001', TABLOCK);",
			TableIdent(d, table), escapeSingle(dataPath), delimToken(delimiter))
	case DialectPostgres:
		delim := string(delimiter)
		quoted := "'" + escapeSingle(delim) + "'"
		if delimiter == '\t' {
			quoted = `E'\t'`
		}
		return fmt.Sprintf(
			"\\copy %s FROM '%s' WITH (FORMAT csv, HEADER true, DELIMITER %s);",
			TableIdent(d, table), escapeSingle(dataPath), quoted)
	default:
		var b strings.Builder
		b.WriteString(".mode csv\n")
		// %q spells a tab as \t, which the sqlite shell unescapes back.
		fmt.Fprintf(&b, ".separator %q\n", string(delimiter))
		fmt.Fprintf(&b, ".import --skip 1 %q %s", dataPath, table)
		return b.String()
	}
}

// delimToken renders a delimiter for embedding in a command, spelling tab as
// the two-character escape the tools expect.
func delimToken(delimiter rune) string {
	if delimiter == '\t' {
		return "\\t"
	}
	return string(delimiter)
}

func escapeSingle(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
