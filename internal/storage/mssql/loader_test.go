package mssql

import "testing"

func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	rows := [][]any{
		{int64(1), "a"},
		{int64(2), "b"},
	}
	query, args := buildInsertSQL("dbo.orders", []string{"qty", "note"}, rows)

	want := "INSERT INTO [dbo].[orders] ([qty], [note]) VALUES (@p1, @p2), (@p3, @p4);"
	if query != want {
		t.Fatalf("query = %q, want %q", query, want)
	}
	if len(args) != 4 {
		t.Fatalf("args = %v", args)
	}
	if args[0] != int64(1) || args[1] != "a" || args[2] != int64(2) || args[3] != "b" {
		t.Fatalf("args out of order: %v", args)
	}
}

func TestBuildInsertSQLSingleRow(t *testing.T) {
	t.Parallel()

	query, args := buildInsertSQL("orders", []string{"a"}, [][]any{{nil}})
	want := "INSERT INTO [orders] ([a]) VALUES (@p1);"
	if query != want {
		t.Fatalf("query = %q, want %q", query, want)
	}
	if len(args) != 1 || args[0] != nil {
		t.Fatalf("args = %v", args)
	}
}

func TestIdentEscaping(t *testing.T) {
	t.Parallel()

	if got := ident("odd]name"); got != "[odd]]name]" {
		t.Fatalf("ident = %q", got)
	}
	if got := tableIdent("dbo.imports"); got != "[dbo].[imports]" {
		t.Fatalf("tableIdent = %q", got)
	}
	if got := tableIdent("imports"); got != "[imports]" {
		t.Fatalf("tableIdent unqualified = %q", got)
	}
}
