package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"filesift/internal/fingerprint"
	"filesift/internal/group"
	"filesift/internal/schema"
)

// ReportName is the file name of the end-of-run report.
const ReportName = "sift_report.txt"

// WriteReport renders the audit trail: every flushed group with its member
// files, ungrouped files, and all failures with reasons. It returns the
// report path.
//
// Call it once, after the group engine has finalized; the per-group sections
// come from the groups this sink has written.
func (s *DirSink) WriteReport(scanned int, scanFailures []schema.FailureRecord, sum group.Summary) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("sink: %w", err)
	}

	now := time.Now
	if s.now != nil {
		now = s.now
	}

	entries := append([]reportEntry(nil), s.entries...)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Rows != entries[j].Rows {
			return entries[i].Rows > entries[j].Rows
		}
		return entries[i].Name < entries[j].Name
	})

	var b strings.Builder
	fmt.Fprintf(&b, "file sift report\ngenerated %s\n", now().UTC().Format(time.RFC3339))
	if s.RunID != "" {
		fmt.Fprintf(&b, "run %s\n", s.RunID)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "scanned %d files: %d grouped into %d groups, %d ungrouped, %d scan failures, %d group failures\n",
		scanned, sum.FilesGrouped, sum.GroupsFlushed, len(sum.Ungrouped), len(scanFailures), len(sum.Failures))
	fmt.Fprintf(&b, "rows written: %d\n", sum.RowsWritten)

	if len(entries) > 0 {
		b.WriteString("\ngroups (by row count):\n")
		for _, e := range entries {
			fmt.Fprintf(&b, "  %s  rows=%d columns=%d fingerprint=%s\n", e.Name, e.Rows, e.Columns, fingerprint.Short(e.Fingerprint))
			for _, f := range e.Files {
				fmt.Fprintf(&b, "    - %s\n", f)
			}
		}
	}

	if len(sum.Ungrouped) > 0 {
		fmt.Fprintf(&b, "\nungrouped (%d):\n", len(sum.Ungrouped))
		for _, p := range sum.Ungrouped {
			fmt.Fprintf(&b, "  %s\n", p)
		}
	}

	if len(scanFailures) > 0 || len(sum.Failures) > 0 {
		fmt.Fprintf(&b, "\nfailures (%d):\n", len(scanFailures)+len(sum.Failures))
		for _, f := range scanFailures {
			fmt.Fprintf(&b, "  scan %s: %s: %s\n", f.Path, f.Kind, f.Reason)
		}
		for _, f := range sum.Failures {
			fmt.Fprintf(&b, "  group %s#%d files=%s: %s\n",
				fingerprint.Short(f.Fingerprint), f.Number, strings.Join(f.Files, ","), f.Reason)
		}
	}

	path := filepath.Join(s.Dir, ReportName)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("sink: report: %w", err)
	}
	return path, nil
}
