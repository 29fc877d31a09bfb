package sniff

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// TestLogicalPath verifies compression suffixes are stripped for format
// routing while ordinary extensions pass through.
func TestLogicalPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"report.csv", "report.csv"},
		{"report.csv.gz", "report.csv"},
		{"report.tsv.BZ2", "report.tsv"},
		{"data.txt.xz", "data.txt"},
		{"data.psv.zst", "data.psv"},
		{"archive.tar.gz", "archive.tar"},
		{"noext", "noext"},
		{"dir.gz/plain.csv", "dir.gz/plain.csv"},
	}

	for _, tt := range tests {
		if got := LogicalPath(tt.path); got != tt.want {
			t.Fatalf("LogicalPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

// TestOpenPlain verifies an uncompressed file reads back byte for byte.
func TestOpenPlain(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "plain.csv")
	content := []byte("id,name\n1,alpha\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got := mustReadThrough(t, path)
	if !bytes.Equal(got, content) {
		t.Fatalf("Open() read %q, want %q", got, content)
	}
}

// TestOpenGzip verifies transparent gzip decompression.
func TestOpenGzip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "rows.csv.gz")
	content := []byte("a|b\n1|2\n")

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(content); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got := mustReadThrough(t, path)
	if !bytes.Equal(got, content) {
		t.Fatalf("Open() read %q, want %q", got, content)
	}
}

// TestOpenZstd verifies transparent zstd decompression.
func TestOpenZstd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "rows.csv.zst")
	content := []byte("x;y\n3;4\n")

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	compressed := enc.EncodeAll(content, nil)
	if err := enc.Close(); err != nil {
		t.Fatalf("zstd close: %v", err)
	}
	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got := mustReadThrough(t, path)
	if !bytes.Equal(got, content) {
		t.Fatalf("Open() read %q, want %q", got, content)
	}
}

// TestOpenXz verifies transparent xz decompression.
func TestOpenXz(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "rows.csv.xz")
	content := []byte("k\tv\n9\t8\n")

	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("xz writer: %v", err)
	}
	if _, err := xw.Write(content); err != nil {
		t.Fatalf("xz write: %v", err)
	}
	if err := xw.Close(); err != nil {
		t.Fatalf("xz close: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got := mustReadThrough(t, path)
	if !bytes.Equal(got, content) {
		t.Fatalf("Open() read %q, want %q", got, content)
	}
}

// TestOpenMissing verifies a clean error for a nonexistent path.
func TestOpenMissing(t *testing.T) {
	t.Parallel()

	_, _, err := Open(filepath.Join(t.TempDir(), "nope.csv"))
	if err == nil {
		t.Fatal("Open() on missing file returned nil error")
	}
}

// TestReadPrefix verifies the byte cap and the zero-value default.
func TestReadPrefix(t *testing.T) {
	t.Parallel()

	t.Run("bounded", func(t *testing.T) {
		t.Parallel()
		got, err := ReadPrefix(strings.NewReader("abcdefgh"), 4)
		if err != nil {
			t.Fatalf("ReadPrefix() error: %v", err)
		}
		if string(got) != "abcd" {
			t.Fatalf("ReadPrefix() = %q, want %q", got, "abcd")
		}
	})

	t.Run("short input", func(t *testing.T) {
		t.Parallel()
		got, err := ReadPrefix(strings.NewReader("ab"), 100)
		if err != nil {
			t.Fatalf("ReadPrefix() error: %v", err)
		}
		if string(got) != "ab" {
			t.Fatalf("ReadPrefix() = %q, want %q", got, "ab")
		}
	})

	t.Run("default cap on zero", func(t *testing.T) {
		t.Parallel()
		big := strings.Repeat("z", 300*1024)
		got, err := ReadPrefix(strings.NewReader(big), 0)
		if err != nil {
			t.Fatalf("ReadPrefix() error: %v", err)
		}
		if len(got) != 256*1024 {
			t.Fatalf("ReadPrefix() len = %d, want %d", len(got), 256*1024)
		}
	})
}

// mustReadThrough opens path via Open, drains the reader and closes it.
func mustReadThrough(t *testing.T, path string) []byte {
	t.Helper()

	r, closeFn, err := Open(path)
	if err != nil {
		t.Fatalf("Open(%q): %v", path, err)
	}
	defer func() {
		if err := closeFn(); err != nil {
			t.Fatalf("close %q: %v", path, err)
		}
	}()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("read %q: %v", path, err)
	}
	return buf.Bytes()
}
