// Package sniff handles the first contact with an input file: opening it
// (including compressed variants), decoding it to text, detecting the field
// delimiter and reading the bounded row sample that drives type inference.
package sniff

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

var compressionExts = map[string]struct{}{
	".gz":  {},
	".bz2": {},
	".xz":  {},
	".zst": {},
}

// LogicalPath returns path with a recognized compression suffix removed, so
// format routing sees "report.csv" for "report.csv.gz".
func LogicalPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := compressionExts[ext]; ok {
		return strings.TrimSuffix(path, filepath.Ext(path))
	}
	return path
}

// Open opens path for reading, transparently decompressing .gz, .bz2, .xz and
// .zst inputs. The returned close function releases the decompressor and the
// underlying file; callers must always invoke it.
func Open(path string) (io.Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	var reader io.Reader = f
	closer := f.Close

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		reader = gz
		closer = func() error {
			_ = gz.Close()
			return f.Close()
		}

	case ".bz2":
		reader = bzip2.NewReader(f)

	case ".xz":
		xzr, err := xz.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("xz %s: %w", path, err)
		}
		reader = xzr

	case ".zst":
		dec, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("zstd %s: %w", path, err)
		}
		reader = dec
		closer = func() error {
			dec.Close()
			return f.Close()
		}
	}

	return reader, closer, nil
}

// ReadPrefix reads at most maxBytes from r. It is the only full-buffer read
// in the pipeline; everything downstream works on this bounded prefix or on
// streamed records.
func ReadPrefix(r io.Reader, maxBytes int) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = 256 * 1024
	}
	buf, err := io.ReadAll(io.LimitReader(r, int64(maxBytes)))
	if err != nil {
		return nil, err
	}
	return buf, nil
}
