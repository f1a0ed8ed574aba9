package parsers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/user/secreport/pkg/engine"
)

// GenericParser turns output of arbitrary registered tools into findings.
// Structured JSON is mapped by common key names; text output is scanned
// for the marker lines common scanners print. Output without either
// becomes a single summary finding.
type GenericParser struct {
	Tool string
}

func NewGenericParser(tool string) *GenericParser {
	return &GenericParser{Tool: firstNonEmpty(tool, "custom_tool")}
}

func (p *GenericParser) Type() ScanType { return ScanType(p.Tool) }

func (p *GenericParser) Parse(path string) ([]engine.Finding, error) {
	res, err := parsePath(p, path)
	if err != nil {
		return nil, err
	}
	return res.Findings, nil
}

func (p *GenericParser) ParseReader(r io.Reader, name string) (*Result, error) {
	data, err := readAll(r, name, p.Type())
	if err != nil {
		return nil, err
	}
	return p.ParseBytes(data), nil
}

// ParseBytes never fails; unrecognized content yields a summary finding.
func (p *GenericParser) ParseBytes(data []byte) *Result {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return &Result{Findings: []engine.Finding{}}
	}
	if trimmed[0] == '[' || trimmed[0] == '{' {
		if findings, ok := p.parseJSON(trimmed); ok {
			return &Result{Findings: findings}
		}
	}
	if findings := p.parseText(trimmed); len(findings) > 0 {
		return &Result{Findings: findings}
	}
	return &Result{Findings: []engine.Finding{p.summary(trimmed)}}
}

var (
	titleKeys    = []string{"title", "name", "msg", "message", "ruleid", "rule_id", "check", "description", "id"}
	descKeys     = []string{"description", "detail", "details", "msg", "message", "info"}
	severityKeys = []string{"severity", "level", "risk", "risk_level", "priority"}
	hostKeys     = []string{"host", "ip", "target", "hostname", "file", "asset"}
	portKeys     = []string{"port"}
	urlKeys      = []string{"url", "matched-at", "uri", "endpoint", "location"}
	evidenceKeys = []string{"evidence", "match", "output", "banner", "payload", "line"}

	// containers hold the record list in wrapper objects such as nikto's
	// {"host": ..., "vulnerabilities": [...]}.
	containers = []string{"vulnerabilities", "findings", "results", "issues", "items"}
)

func (p *GenericParser) parseJSON(data []byte) ([]engine.Finding, bool) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false
	}

	var records []interface{}
	parent := map[string]interface{}{}
	switch v := doc.(type) {
	case []interface{}:
		records = v
	case map[string]interface{}:
		records = []interface{}{v}
		for _, key := range containers {
			if list, ok := lookup(v, key).([]interface{}); ok {
				records = list
				parent = v
				break
			}
		}
	default:
		return nil, false
	}

	findings := make([]engine.Finding, 0, len(records))
	for idx, rec := range records {
		findings = append(findings, p.recordFinding(idx, rec, parent))
	}
	return findings, true
}

func (p *GenericParser) recordFinding(idx int, rec interface{}, parent map[string]interface{}) engine.Finding {
	f := engine.Finding{
		Severity:   engine.SeverityUnknown,
		SourceType: p.Tool,
		Raw:        engine.NewRaw(rec),
	}

	obj, ok := rec.(map[string]interface{})
	if !ok {
		f.Title = truncate(fmt.Sprint(rec), 200)
		if strings.TrimSpace(f.Title) == "" {
			f.Title = fmt.Sprintf("%s finding %d", p.Tool, idx+1)
		}
		return f
	}

	f.Title = pick(obj, titleKeys...)
	if f.Title == "" {
		f.Title = fmt.Sprintf("%s finding %d", p.Tool, idx+1)
	}
	if desc := pick(obj, descKeys...); desc != f.Title {
		f.Description = desc
	}
	if sev, err := engine.ParseSeverity(pick(obj, severityKeys...)); err == nil {
		f.Severity = sev
	}
	f.URL = pick(obj, urlKeys...)
	f.Evidence = truncate(pick(obj, evidenceKeys...), maxEvidence)

	host := firstNonEmpty(pick(obj, hostKeys...), pick(parent, hostKeys...))
	h, port := splitLocation(host)
	if strings.Contains(host, "://") || port > 0 {
		host = h
	}
	f.Host = host
	if n := atoiOrZero(firstNonEmpty(pick(obj, portKeys...), pick(parent, portKeys...))); n > 0 {
		port = n
	}
	if port == 0 && f.URL != "" {
		_, port = splitLocation(f.URL)
	}
	f.Port = port
	return f
}

// lookup finds key case-insensitively.
func lookup(obj map[string]interface{}, key string) interface{} {
	if v, ok := obj[key]; ok {
		return v
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(k, key) {
			return obj[k]
		}
	}
	return nil
}

func pick(obj map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		switch v := lookup(obj, key).(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return fmt.Sprintf("%g", v)
		}
	}
	return ""
}

var nucleiTextLine = regexp.MustCompile(`^\[([^\]]+)\]\s+\[([^\]]+)\]\s+\[([^\]]+)\]\s+(\S+)(.*)$`)

var niktoSkip = []string{"Target IP", "Target Hostname", "Target Port", "Start Time", "End Time", "Server:", "SSL Info"}

func (p *GenericParser) parseText(data []byte) []engine.Finding {
	var findings []engine.Finding
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if f, ok := p.lineFinding(line); ok {
			findings = append(findings, f)
		}
	}
	return findings
}

func (p *GenericParser) lineFinding(line string) (engine.Finding, bool) {
	f := engine.Finding{
		Severity:   engine.SeverityUnknown,
		SourceType: p.Tool,
		Evidence:   line,
		Raw:        engine.NewRaw(line),
	}

	switch {
	case nucleiTextLine.MatchString(line):
		m := nucleiTextLine.FindStringSubmatch(line)
		sev, err := engine.ParseSeverity(m[3])
		if err != nil {
			return f, false
		}
		f.Title = m[1]
		f.Protocol = m[2]
		f.Severity = sev
		f.Host, f.Port = splitLocation(m[4])
		if strings.Contains(m[4], "://") {
			f.URL = m[4]
		}
		f.Description = strings.TrimSpace(m[5])
	case strings.HasPrefix(line, "+ "):
		msg := strings.TrimSpace(strings.TrimPrefix(line, "+ "))
		for _, prefix := range niktoSkip {
			if strings.HasPrefix(msg, prefix) {
				return f, false
			}
		}
		if strings.Contains(msg, "host(s) tested") || msg == "" {
			return f, false
		}
		f.Title = truncate(msg, 200)
		f.Description = msg
	case strings.HasPrefix(line, "[+]"), strings.HasPrefix(line, "[!]"):
		msg := strings.TrimSpace(line[3:])
		if msg == "" {
			return f, false
		}
		f.Title = truncate(msg, 200)
		f.Description = msg
	case strings.HasPrefix(line, "warning[]="), strings.HasPrefix(line, "suggestion[]="):
		kind, rest, _ := strings.Cut(line, "[]=")
		parts := strings.Split(rest, "|")
		text := firstNonEmpty(get(parts, 1), get(parts, 0))
		if text == "" {
			return f, false
		}
		f.Title = text
		f.Description = fmt.Sprintf("%s %s", kind, get(parts, 0))
		if solution := get(parts, 3); solution != "" && solution != "-" {
			f.Description += ": " + solution
		}
		f.Tags = []string{kind}
	default:
		return f, false
	}
	return f, true
}

func get(parts []string, i int) string {
	if i < len(parts) {
		return strings.TrimSpace(parts[i])
	}
	return ""
}

func (p *GenericParser) summary(data []byte) engine.Finding {
	lines := bytes.Count(data, []byte("\n")) + 1
	excerpt := truncate(string(data), maxEvidence)
	return engine.Finding{
		Title:       fmt.Sprintf("%s output", p.Tool),
		Description: fmt.Sprintf("Unstructured output from %s (%d lines); manual review required.", p.Tool, lines),
		Severity:    engine.SeverityUnknown,
		Evidence:    excerpt,
		SourceType:  p.Tool,
		Raw:         engine.NewRaw(excerpt),
	}
}
