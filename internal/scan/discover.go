package scan

import (
	"io/fs"
	"path/filepath"
	"strings"

	"filesift/internal/sniff"
)

// DiscoverFiles walks root and returns every file whose logical extension
// (after stripping a compression suffix) is in the allowlist. Hidden files
// and directories are skipped. WalkDir visits entries in lexical order, so
// the result is deterministic for a given tree.
func DiscoverFiles(root string, extensions []string) ([]string, error) {
	allow := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allow[ext] = struct{}{}
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(sniff.LogicalPath(path)))
		if _, ok := allow[ext]; !ok {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
