// File: internal/agent/history.go
package agent

import "strings"

// History holds the two append-only streams fed back into every prompt:
// the actions the agent issued and the findings it recorded about them.
// Trimming happens at prompt assembly time, never here, so the full record
// stays available for the run report.
type History struct {
	actions  strings.Builder
	findings strings.Builder
}

func NewHistory() *History {
	h := &History{}
	h.actions.WriteString("\n")
	h.findings.WriteString("\n")
	return h
}

func (h *History) AddAction(line string) {
	h.actions.WriteString(line)
	h.actions.WriteString("\n")
}

func (h *History) AddFinding(line string) {
	h.findings.WriteString(line)
	h.findings.WriteString("\n")
}

func (h *History) Actions() string  { return h.actions.String() }
func (h *History) Findings() string { return h.findings.String() }
