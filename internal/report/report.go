// Package report writes per-run markdown report files.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/pkgadvisor/pkgadvisor/internal/logging"
	"github.com/pkgadvisor/pkgadvisor/internal/types"
)

// Entry pairs one analyzed package with its recommendation text.
type Entry struct {
	Subject types.AnalysisSubject
	Text    string
}

// Write renders a markdown report for one analysis run and writes it to dir.
// Returns the path of the written file.
func Write(dir, runID string, entries []Entry) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("pkgadvisor-report-%s.md", runID))

	var b strings.Builder
	fmt.Fprintf(&b, "# Upgrade Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().Format(time.RFC1123))
	fmt.Fprintf(&b, "Packages analyzed: %d\n\n", len(entries))

	for _, e := range entries {
		fmt.Fprintf(&b, "---\n\n## %s\n\n", e.Subject.Label())
		fmt.Fprintf(&b, "`%s` → `%s`\n\n", e.Subject.CurrentVersion, e.Subject.AvailableVersion)
		b.WriteString(strings.TrimSpace(e.Text))
		b.WriteString("\n\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0640); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}

	L_info("report: written", "path", path, "packages", len(entries))
	return path, nil
}
