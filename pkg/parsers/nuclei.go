package parsers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/user/secreport/pkg/engine"
)

// NucleiParser reads nuclei JSON lines output (-jsonl) and JSON array
// exports (-json-export). Malformed lines are skipped with a warning.
type NucleiParser struct {
	logger hclog.Logger
}

func (p *NucleiParser) Type() ScanType { return TypeNuclei }

func (p *NucleiParser) Parse(path string) ([]engine.Finding, error) {
	res, err := parsePath(p, path)
	if err != nil {
		return nil, err
	}
	return res.Findings, nil
}

type nucleiRecord struct {
	TemplateID       string     `json:"template-id"`
	TemplateIDLegacy string     `json:"templateID"`
	Info             nucleiInfo `json:"info"`
	Type             string     `json:"type"`
	Host             string     `json:"host"`
	IP               string     `json:"ip"`
	Port             flexString `json:"port"`
	MatchedAt        string     `json:"matched-at"`
	Matched          string     `json:"matched"`
	MatcherName      string     `json:"matcher-name"`
	ExtractedResults stringList `json:"extracted-results"`
}

type nucleiInfo struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Severity    string     `json:"severity"`
	Tags        stringList `json:"tags"`
	Reference   stringList `json:"reference"`
}

func (p *NucleiParser) log() hclog.Logger {
	if p.logger == nil {
		return hclog.NewNullLogger()
	}
	return p.logger
}

func (p *NucleiParser) ParseReader(r io.Reader, name string) (*Result, error) {
	data, err := readAll(r, name, TypeNuclei)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return &Result{Findings: []engine.Finding{}}, nil
	}

	if trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err == nil {
			return p.parseArray(list, name)
		}
	}
	return p.parseLines(data, name)
}

func (p *NucleiParser) parseArray(list []json.RawMessage, name string) (*Result, error) {
	res := &Result{Findings: make([]engine.Finding, 0, len(list))}
	for idx, raw := range list {
		var rec nucleiRecord
		err := json.Unmarshal(raw, &rec)
		if err == nil && rec.empty() {
			err = ErrEmptyRecord
		}
		if err != nil {
			w := PartialRecordWarning{Path: name, Line: idx + 1, Err: err}
			p.log().Warn("skipping malformed nuclei record", "path", name, "index", idx, "error", err)
			res.Warnings = append(res.Warnings, w)
			continue
		}
		res.Findings = append(res.Findings, rec.finding(compactJSON(raw)))
	}
	if len(list) > 0 && len(res.Findings) == 0 {
		return nil, &ParseError{Path: name, Type: TypeNuclei, Err: fmt.Errorf("%w: no valid record in %d", ErrMalformedRoot, len(list))}
	}
	return res, nil
}

func (p *NucleiParser) parseLines(data []byte, name string) (*Result, error) {
	res := &Result{Findings: []engine.Finding{}}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line, records := 0, 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		records++

		var rec nucleiRecord
		err := json.Unmarshal(text, &rec)
		if err == nil && rec.empty() {
			err = ErrEmptyRecord
		}
		if err != nil {
			p.log().Warn("skipping malformed nuclei line", "path", name, "line", line, "error", err)
			res.Warnings = append(res.Warnings, PartialRecordWarning{Path: name, Line: line, Err: err})
			continue
		}
		res.Findings = append(res.Findings, rec.finding(compactJSON(text)))
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Path: name, Type: TypeNuclei, Err: err}
	}
	if records > 0 && len(res.Findings) == 0 {
		return nil, &ParseError{Path: name, Type: TypeNuclei, Err: fmt.Errorf("%w: all %d lines malformed, first: %v", ErrMalformedRoot, records, res.Warnings[0].Err)}
	}
	return res, nil
}

func (rec nucleiRecord) empty() bool {
	return firstNonEmpty(rec.TemplateID, rec.TemplateIDLegacy, rec.Info.Name, rec.Host, rec.IP, rec.MatchedAt, rec.Matched) == ""
}

func (rec nucleiRecord) finding(raw json.RawMessage) engine.Finding {
	id := firstNonEmpty(rec.TemplateID, rec.TemplateIDLegacy)
	matched := firstNonEmpty(rec.MatchedAt, rec.Matched)

	host, port := splitLocation(rec.Host)
	if host == "" {
		host = rec.IP
	}
	if p := atoiOrZero(rec.Port.String()); p > 0 {
		port = p
	}
	if port == 0 {
		_, port = splitLocation(matched)
	}

	sev := engine.SeverityUnknown
	if parsed, err := engine.ParseSeverity(rec.Info.Severity); err == nil {
		sev = parsed
	}

	var ev []string
	if id != "" {
		ev = append(ev, "template-id: "+id)
	}
	if rec.MatcherName != "" {
		ev = append(ev, "matcher-name: "+rec.MatcherName)
	}
	if len(rec.ExtractedResults) > 0 {
		ev = append(ev, "extracted-results: "+strings.Join(rec.ExtractedResults, ", "))
	}

	link := ""
	if strings.Contains(matched, "://") {
		link = matched
	}

	return engine.Finding{
		Title:       firstNonEmpty(rec.Info.Name, id, "Nuclei match"),
		Description: strings.TrimSpace(rec.Info.Description),
		Severity:    sev,
		Host:        host,
		Port:        port,
		Protocol:    rec.Type,
		URL:         link,
		Evidence:    truncate(strings.Join(ev, "\n"), maxEvidence),
		Tags:        []string(rec.Info.Tags),
		References:  []string(rec.Info.Reference),
		SourceType:  string(TypeNuclei),
		Raw:         raw,
	}
}
