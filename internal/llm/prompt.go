// Package llm - prompt construction for the analysis pipelines.
package llm

import (
	"fmt"
	"strings"

	"github.com/pkgadvisor/pkgadvisor/internal/types"
)

// analysisPrompt is the single-shot prompt used for the direct chat and cloud
// gateway pipelines.
func analysisPrompt(s types.AnalysisSubject) string {
	return fmt.Sprintf(`You are advising a user about a pending software upgrade.

Package: %s
Identifier: %s
Installed version: %s
Available version: %s

Write a concise upgrade recommendation in markdown covering:
- What this application is and who publishes it
- What changed between the installed and available versions, if known
- Any security fixes or known vulnerabilities addressed
- Breaking changes or migration steps the user should expect
- A clear verdict: upgrade now, upgrade with caution, or hold back

If you are not certain about version-specific details, say so rather than guessing.`,
		s.Name, s.ID, s.CurrentVersion, s.AvailableVersion)
}

// researchSystemPrompt sets the role for the research provider.
const researchSystemPrompt = "You are a factual research assistant. Answer each question with verifiable, " +
	"current information and cite the source where possible. If something cannot be verified, state that explicitly."

// researchQuestions is the structured questionnaire sent to the research
// provider. Eighteen numbered points covering application identity, the version
// diff, security posture, and user impact.
var researchQuestions = []string{
	"What is this application and what is it used for?",
	"Who is the publisher or maintainer, and is the project actively maintained?",
	"What license does it ship under?",
	"When was the installed version released?",
	"When was the available version released?",
	"What are the headline changes between the installed and available versions?",
	"Does the changelog mention bug fixes relevant to everyday use?",
	"Does the changelog mention performance improvements or regressions?",
	"Are there any known security vulnerabilities (CVEs) fixed by this upgrade?",
	"Are there any known security vulnerabilities in the new version itself?",
	"Are there breaking changes to configuration files, file formats, or APIs?",
	"Does the upgrade require manual migration steps?",
	"Does the new version change system requirements or drop platform support?",
	"Have users reported problems with the new version (crashes, data loss, instability)?",
	"Does the new version change licensing, pricing, or telemetry behavior?",
	"Does the upgrade affect plugins, extensions, or integrations?",
	"Is the new version a major, minor, or patch release, and what does that imply about risk?",
	"Overall, is this upgrade considered safe and recommended by the community?",
}

// researchPrompt builds the user turn for the research provider.
func researchPrompt(s types.AnalysisSubject) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research the following software upgrade.\n\n")
	fmt.Fprintf(&b, "Package: %s\nIdentifier: %s\nInstalled version: %s\nAvailable version: %s\n\n", s.Name, s.ID, s.CurrentVersion, s.AvailableVersion)
	b.WriteString("Answer each of the following points:\n")
	for i, q := range researchQuestions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	return b.String()
}

// formatPrompt asks the direct chat provider to turn raw research text into a
// structured report.
func formatPrompt(s types.AnalysisSubject, research string) string {
	return fmt.Sprintf(`Below is raw research about upgrading %s from %s to %s.

Rewrite it as a structured markdown report with these sections:
## Summary
## What's New
## Security
## Risks & Breaking Changes
## Recommendation

Keep it factual and concise; do not invent details that are not in the research.

--- RESEARCH ---
%s`, s.Name, s.CurrentVersion, s.AvailableVersion, research)
}

// researchFallbackNote prefixes raw research text when the formatting stage
// failed but the research itself looks usable.
const researchFallbackNote = "_Note: report formatting was unavailable; showing the raw research results._\n\n"

// researchLooksValid is the heuristic gate for returning unformatted research
// text. Deliberately approximate: a real answer to the questionnaire is always
// substantially longer than an inline error blurb.
func researchLooksValid(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 80 {
		return false
	}
	lower := strings.ToLower(trimmed)
	return !strings.HasPrefix(lower, "error") && !strings.HasPrefix(lower, "{\"error")
}
