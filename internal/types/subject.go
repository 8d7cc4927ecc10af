// Package types contains shared value types passed between pkgadvisor components.
package types

// AnalysisSubject describes one upgrade candidate handed to the AI layer.
// Immutable: created by the package-manager wrapper, read-only everywhere else.
type AnalysisSubject struct {
	Name             string `json:"name"`             // Display name (e.g., "Visual Studio Code")
	ID               string `json:"id"`               // Unique package identifier (e.g., "Microsoft.VisualStudioCode")
	CurrentVersion   string `json:"currentVersion"`   // Installed version
	AvailableVersion string `json:"availableVersion"` // Version offered by the package manager
}

// Label returns a short human-readable identifier for log lines.
func (s AnalysisSubject) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}
