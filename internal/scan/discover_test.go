package scan

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// TestDiscoverFiles verifies extension filtering on logical paths, hidden
// entry skipping and deterministic ordering.
func TestDiscoverFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mkdir := func(rel string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Join(dir, rel), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
	}
	touch := func(rel string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, rel), []byte("x,y\n1,2\n"), 0o644); err != nil {
			t.Fatalf("touch %s: %v", rel, err)
		}
	}

	mkdir("sub")
	mkdir(".hidden")
	touch("b.csv")
	touch("a.tsv")
	touch("notes.md")
	touch("archive.csv.gz")
	touch(".secret.csv")
	touch("sub/c.csv")
	touch(".hidden/d.csv")

	got, err := DiscoverFiles(dir, []string{".csv", "tsv"})
	if err != nil {
		t.Fatalf("DiscoverFiles() error: %v", err)
	}

	want := []string{
		filepath.Join(dir, "a.tsv"),
		filepath.Join(dir, "archive.csv.gz"),
		filepath.Join(dir, "b.csv"),
		filepath.Join(dir, "sub", "c.csv"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DiscoverFiles() = %v, want %v", got, want)
	}
}

// TestDiscoverFilesMissingRoot verifies a bad root is a hard error, not an
// empty result.
func TestDiscoverFilesMissingRoot(t *testing.T) {
	t.Parallel()

	if _, err := DiscoverFiles(filepath.Join(t.TempDir(), "nope"), []string{".csv"}); err == nil {
		t.Fatal("DiscoverFiles() on missing root returned nil error")
	}
}
