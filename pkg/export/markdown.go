package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/user/secreport/pkg/engine"
)

type markdownFormatter struct{}

func (markdownFormatter) Format(w io.Writer, findings []engine.Finding, meta Metadata) error {
	s := engine.Summarize(findings)

	fmt.Fprintf(w, "# %s\n\n", escapeInline(meta.Title))
	if meta.Organization != "" {
		fmt.Fprintf(w, "**Organization:** %s  \n", escapeInline(meta.Organization))
	}
	fmt.Fprintf(w, "**Generated:** %s  \n", meta.Generated.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "**Total findings:** %d (%d critical/high)\n\n", s.Total, s.Urgent())

	fmt.Fprintf(w, "## Summary\n\n")
	fmt.Fprintf(w, "| Severity | Count |\n|----------|-------|\n")
	for _, sev := range engine.Severities {
		if c := s.BySeverity[sev]; c > 0 {
			fmt.Fprintf(w, "| %s | %d |\n", capitalize(string(sev)), c)
		}
	}
	fmt.Fprintf(w, "\n")

	if len(findings) == 0 {
		fmt.Fprintf(w, "No findings.\n")
		return nil
	}

	fmt.Fprintf(w, "## Findings\n\n")
	for i, f := range engine.SortBySeverity(findings) {
		writeFinding(w, i+1, f)
	}
	return nil
}

func writeFinding(w io.Writer, n int, f engine.Finding) {
	fmt.Fprintf(w, "### %d. %s\n\n", n, escapeInline(f.Title))
	fmt.Fprintf(w, "**Severity:** %s  \n", strings.ToUpper(string(f.Severity)))
	fmt.Fprintf(w, "**Source:** %s  \n", escapeInline(f.SourceType))
	if loc := f.Location(); loc != "" {
		fmt.Fprintf(w, "**Location:** `%s`  \n", strings.ReplaceAll(loc, "`", "'"))
	}
	if f.Service != "" {
		fmt.Fprintf(w, "**Service:** %s  \n", escapeInline(f.Service))
	}
	fmt.Fprintf(w, "\n")

	if f.Description != "" {
		fmt.Fprintf(w, "%s\n\n", escapeBlock(f.Description))
	}
	if f.AISummary != "" {
		fmt.Fprintf(w, "**Summary:** %s\n\n", escapeBlock(f.AISummary))
	}
	if f.Evidence != "" {
		fence := codeFence(f.Evidence)
		fmt.Fprintf(w, "**Evidence:**\n\n%s\n%s\n%s\n\n", fence, strings.TrimRight(f.Evidence, "\n"), fence)
	}
	if f.Remediation != "" {
		fmt.Fprintf(w, "**Remediation:**\n\n%s\n\n", escapeBlock(f.Remediation))
	}
	if len(f.References) > 0 {
		fmt.Fprintf(w, "**References:**\n\n")
		for _, ref := range f.References {
			fmt.Fprintf(w, "- %s\n", escapeInline(ref))
		}
		fmt.Fprintf(w, "\n")
	}
	fmt.Fprintf(w, "---\n\n")
}

var inlineEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"|", `\|`,
	"#", `\#`,
	"<", "&lt;",
	"\r", "",
	"\n", " ",
)

// escapeInline makes scanner text safe inside a heading, table cell or
// list item.
func escapeInline(s string) string {
	return inlineEscaper.Replace(strings.TrimSpace(s))
}

// escapeBlock keeps line breaks but neutralizes markup at line starts.
func escapeBlock(s string) string {
	lines := strings.Split(strings.ReplaceAll(strings.TrimSpace(s), "\r\n", "\n"), "\n")
	for i, l := range lines {
		l = escapeInline(l)
		if strings.HasPrefix(l, "-") || strings.HasPrefix(l, "+") || strings.HasPrefix(l, ">") || strings.HasPrefix(l, "=") {
			l = `\` + l
		}
		lines[i] = l + "  "
	}
	return strings.TrimSuffix(strings.Join(lines, "\n"), "  ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// codeFence returns a fence longer than any backtick run in s.
func codeFence(s string) string {
	longest, run := 0, 0
	for _, r := range s {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	if longest < 3 {
		return "```"
	}
	return strings.Repeat("`", longest+1)
}
