// Package pkgmgr wraps the system package manager to list upgrade candidates.
//
// The AI layer treats this as an external collaborator: it only ever sees the
// AnalysisSubject values produced here.
package pkgmgr

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	. "github.com/pkgadvisor/pkgadvisor/internal/logging"
	"github.com/pkgadvisor/pkgadvisor/internal/types"
)

// Manager is a detected package manager.
type Manager struct {
	name string
}

// Detect finds the first supported package manager on PATH.
// Checked in order: brew, apt, winget.
func Detect() (*Manager, error) {
	for _, name := range []string{"brew", "apt", "winget"} {
		if _, err := exec.LookPath(name); err == nil {
			L_debug("pkgmgr: detected", "manager", name)
			return &Manager{name: name}, nil
		}
	}
	return nil, fmt.Errorf("no supported package manager found (tried brew, apt, winget)")
}

// Name returns the detected manager's command name.
func (m *Manager) Name() string {
	return m.name
}

// ListUpgradable returns the packages with a newer version available.
func (m *Manager) ListUpgradable(ctx context.Context) ([]types.AnalysisSubject, error) {
	var cmd *exec.Cmd
	switch m.name {
	case "brew":
		cmd = exec.CommandContext(ctx, "brew", "outdated", "--verbose")
	case "apt":
		cmd = exec.CommandContext(ctx, "apt", "list", "--upgradable")
	case "winget":
		cmd = exec.CommandContext(ctx, "winget", "upgrade", "--disable-interactivity")
	default:
		return nil, fmt.Errorf("unsupported package manager: %s", m.name)
	}

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.name, err)
	}

	subjects := m.parse(string(out))
	L_info("pkgmgr: upgrade candidates listed", "manager", m.name, "count", len(subjects))
	return subjects, nil
}

func (m *Manager) parse(output string) []types.AnalysisSubject {
	switch m.name {
	case "brew":
		return parseBrew(output)
	case "apt":
		return parseApt(output)
	default:
		return parseWinget(output)
	}
}

// parseBrew parses `brew outdated --verbose` lines:
//
//	wget (1.24.5) < 1.25.0
func parseBrew(output string) []types.AnalysisSubject {
	var subjects []types.AnalysisSubject
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 || fields[2] != "<" {
			continue
		}
		current := strings.Trim(fields[1], "()")
		subjects = append(subjects, types.AnalysisSubject{
			Name:             fields[0],
			ID:               fields[0],
			CurrentVersion:   current,
			AvailableVersion: fields[3],
		})
	}
	return subjects
}

// parseApt parses `apt list --upgradable` lines:
//
//	curl/noble-updates 8.5.0-2ubuntu10.6 amd64 [upgradable from: 8.5.0-2ubuntu10.5]
func parseApt(output string) []types.AnalysisSubject {
	var subjects []types.AnalysisSubject
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Listing") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 || !strings.Contains(fields[0], "/") {
			continue
		}
		name := fields[0][:strings.Index(fields[0], "/")]
		current := ""
		if i := strings.Index(line, "[upgradable from: "); i >= 0 {
			current = strings.TrimSuffix(line[i+len("[upgradable from: "):], "]")
		}
		subjects = append(subjects, types.AnalysisSubject{
			Name:             name,
			ID:               fields[0],
			CurrentVersion:   current,
			AvailableVersion: fields[1],
		})
	}
	return subjects
}

// parseWinget parses the `winget upgrade` table. Names may contain spaces, so
// fields are taken from the right: version, available, source.
func parseWinget(output string) []types.AnalysisSubject {
	var subjects []types.AnalysisSubject
	inTable := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "---") {
			inTable = true
			continue
		}
		if !inTable || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		n := len(fields)
		name := strings.Join(fields[:n-4], " ")
		subjects = append(subjects, types.AnalysisSubject{
			Name:             name,
			ID:               fields[n-4],
			CurrentVersion:   fields[n-3],
			AvailableVersion: fields[n-2],
		})
	}
	return subjects
}
