package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Summary holds per-severity counts for a finding set.
type Summary struct {
	Total      int
	BySeverity map[Severity]int
	BySource   map[string]int
}

// Summarize counts findings by severity and source.
func Summarize(findings []Finding) Summary {
	s := Summary{
		Total:      len(findings),
		BySeverity: make(map[Severity]int, len(Severities)),
		BySource:   make(map[string]int),
	}
	for _, f := range findings {
		sev := f.Severity
		if !sev.Valid() {
			sev = SeverityUnknown
		}
		s.BySeverity[sev]++
		s.BySource[f.SourceType]++
	}
	return s
}

// Urgent returns the number of critical and high findings.
func (s Summary) Urgent() int {
	return s.BySeverity[SeverityCritical] + s.BySeverity[SeverityHigh]
}

// SortBySeverity returns a copy ordered most severe first. Findings of
// equal severity keep their source order.
func SortBySeverity(findings []Finding) []Finding {
	out := make([]Finding, len(findings))
	copy(out, findings)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() > out[j].Severity.Rank()
	})
	return out
}

// Report returns a text summary of the finding set
func Report(findings []Finding) string {
	s := Summarize(findings)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Findings (%d total, %d critical/high):\n", s.Total, s.Urgent()))
	sb.WriteString("--------------------------------------------------\n")

	for _, f := range findings {
		sb.WriteString(fmt.Sprintf("[%s] %s (%s)\n", strings.ToUpper(string(f.Severity)), f.Title, f.SourceType))
		if loc := f.Location(); loc != "" {
			sb.WriteString(fmt.Sprintf("  Location: %s\n", loc))
		}
		if f.Evidence != "" {
			sb.WriteString(fmt.Sprintf("  Evidence: %s\n", f.Evidence))
		}
		if f.Remediation != "" {
			sb.WriteString(fmt.Sprintf("  Fix: %s\n", f.Remediation))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
