package ai

import (
	"regexp"
	"strings"

	"github.com/user/secreport/pkg/engine"
)

// Keyword indicators, checked from most to least severe.
var severityIndicators = []struct {
	severity engine.Severity
	keywords []string
}{
	{engine.SeverityCritical, []string{
		"sql injection", "sqli", "remote code execution", "rce", "command injection",
		"path traversal", "directory traversal", "file upload", "arbitrary file",
		"authentication bypass", "privilege escalation", "buffer overflow",
	}},
	{engine.SeverityHigh, []string{
		"cross-site scripting", "xss", "csrf", "cross-site request forgery",
		"session fixation", "insecure direct object", "security misconfiguration",
		"sensitive data exposure", "xml external entity", "xxe",
		"broken access control", "injection", "hardcoded secret", "leaked credential",
	}},
	{engine.SeverityMedium, []string{
		"information disclosure", "information leakage", "directory listing",
		"version disclosure", "banner grabbing", "weak encryption", "weak cipher",
		"insecure transmission", "missing security headers", "clickjacking", "open redirect",
	}},
	{engine.SeverityLow, []string{
		"information", "disclosure", "fingerprinting", "enumeration", "default",
		"test page", "debug", "comment", "metadata",
	}},
}

var wordBoundary = map[string]*regexp.Regexp{}

func init() {
	for _, group := range severityIndicators {
		for _, kw := range group.keywords {
			// Short acronyms must match whole words; "rce" is inside "source".
			if len(kw) <= 4 && !strings.Contains(kw, " ") {
				wordBoundary[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
			}
		}
	}
}

// ClassifyByRules keeps a rated severity and otherwise infers one from
// keywords in the title and description. Findings with no indicator are
// rated medium.
func ClassifyByRules(f engine.Finding) engine.Severity {
	if f.Severity.Valid() && f.Severity != engine.SeverityUnknown {
		return f.Severity
	}
	text := strings.ToLower(f.Title + " " + f.Description)
	for _, group := range severityIndicators {
		for _, kw := range group.keywords {
			if matchKeyword(text, kw) {
				return group.severity
			}
		}
	}
	return engine.SeverityMedium
}

func matchKeyword(text, kw string) bool {
	if re, ok := wordBoundary[kw]; ok {
		return re.MatchString(text)
	}
	return strings.Contains(text, kw)
}

// parseSeverityAnswer extracts a severity from a free-text model reply.
func parseSeverityAnswer(answer string) (engine.Severity, bool) {
	cleaned := strings.ToLower(strings.NewReplacer(":", " ", ".", " ", "*", " ").Replace(answer))
	for _, word := range strings.Fields(cleaned) {
		sev, err := engine.ParseSeverity(word)
		if err == nil && sev != engine.SeverityUnknown && word != "none" {
			return sev, true
		}
	}
	return engine.SeverityUnknown, false
}
