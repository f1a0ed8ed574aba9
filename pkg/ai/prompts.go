package ai

import (
	"bytes"
	"embed"
	"strings"
	"text/template"

	"github.com/user/secreport/pkg/engine"
)

//go:embed prompts/system.md
var systemPrompt string

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

// GetSystemPrompt returns the system prompt sent with every completion.
func GetSystemPrompt() string {
	return systemPrompt
}

type promptFinding struct {
	engine.Finding
	Location string
}

func renderFindingPrompt(name string, f engine.Finding) (string, error) {
	var buf bytes.Buffer
	data := promptFinding{Finding: f, Location: f.Location()}
	data.Evidence = truncateText(f.Evidence, 2000)
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type severityCount struct {
	Severity engine.Severity
	Count    int
}

func renderExecutivePrompt(findings []engine.Finding) (string, error) {
	s := engine.Summarize(findings)
	var counts []severityCount
	for _, sev := range engine.Severities {
		if c := s.BySeverity[sev]; c > 0 {
			counts = append(counts, severityCount{Severity: sev, Count: c})
		}
	}
	top := engine.SortBySeverity(findings)
	if len(top) > 10 {
		top = top[:10]
	}

	var buf bytes.Buffer
	err := prompts.ExecuteTemplate(&buf, "executive.tmpl", struct {
		Total  int
		Counts []severityCount
		Top    []engine.Finding
	}{Total: s.Total, Counts: counts, Top: top})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + " ..."
}
