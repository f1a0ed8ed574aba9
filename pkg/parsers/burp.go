package parsers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/user/secreport/pkg/engine"
)

// BurpParser reads Burp Suite issue exports in JSON or XML. Both encodings
// decode into burpIssue and share one normalization step.
type BurpParser struct{}

func (p *BurpParser) Type() ScanType { return TypeBurp }

func (p *BurpParser) Parse(path string) ([]engine.Finding, error) {
	res, err := parsePath(p, path)
	if err != nil {
		return nil, err
	}
	return res.Findings, nil
}

// burpIssue is the encoding-independent form of one issue.
type burpIssue struct {
	Name       string
	Detail     string
	Background string
	Severity   string
	Host       string
	IP         string
	Path       string
	URL        string
	Request    string
	Response   string
	Evidence   string
}

func (p *BurpParser) ParseReader(r io.Reader, name string) (*Result, error) {
	data, err := readAll(r, name, TypeBurp)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &ParseError{Path: name, Type: TypeBurp, Err: fmt.Errorf("%w: empty document", ErrMalformedRoot)}
	}

	var decode func([]byte) ([]engine.Finding, error)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		decode = decodeBurpJSON
	case ".xml":
		decode = decodeBurpXML
	default:
		switch trimmed[0] {
		case '<':
			decode = decodeBurpXML
		case '{', '[':
			decode = decodeBurpJSON
		default:
			return nil, &ParseError{Path: name, Type: TypeBurp, Err: fmt.Errorf("%w: neither JSON nor XML", ErrMalformedRoot)}
		}
	}

	findings, err := decode(trimmed)
	if err != nil {
		return nil, &ParseError{Path: name, Type: TypeBurp, Err: err}
	}
	return &Result{Findings: findings}, nil
}

type burpJSONIssue struct {
	IssueName        flexString `json:"issueName"`
	IssueNameSnake   flexString `json:"issue_name"`
	Name             flexString `json:"name"`
	IssueDetail      flexString `json:"issueDetail"`
	IssueDetailSnake flexString `json:"issue_detail"`
	Description      flexString `json:"description"`
	IssueBackground  flexString `json:"issueBackground"`
	Severity         flexString `json:"severity"`
	Host             flexString `json:"host"`
	IP               flexString `json:"ip"`
	Path             flexString `json:"path"`
	URL              flexString `json:"url"`
	Origin           flexString `json:"origin"`
	Request          flexString `json:"request"`
	Response         flexString `json:"response"`
	Evidence         flexString `json:"evidence"`
}

func (j burpJSONIssue) issue() burpIssue {
	return burpIssue{
		Name:       strings.TrimSpace(firstNonEmpty(j.IssueName.String(), j.IssueNameSnake.String(), j.Name.String())),
		Detail:     strings.TrimSpace(firstNonEmpty(j.IssueDetail.String(), j.IssueDetailSnake.String(), j.Description.String())),
		Background: strings.TrimSpace(j.IssueBackground.String()),
		Severity:   strings.TrimSpace(j.Severity.String()),
		Host:       strings.TrimSpace(firstNonEmpty(j.Host.String(), j.Origin.String())),
		IP:         strings.TrimSpace(j.IP.String()),
		Path:       strings.TrimSpace(j.Path.String()),
		URL:        strings.TrimSpace(j.URL.String()),
		Request:    j.Request.String(),
		Response:   j.Response.String(),
		Evidence:   j.Evidence.String(),
	}
}

func (i burpIssue) empty() bool {
	return i.Name == "" && i.Detail == "" && i.Severity == "" && i.URL == ""
}

func decodeBurpJSON(data []byte) ([]engine.Finding, error) {
	records, single, err := burpJSONRecords(data)
	if err != nil {
		return nil, err
	}

	findings := make([]engine.Finding, 0, len(records))
	for idx, raw := range records {
		var j burpJSONIssue
		if err := json.Unmarshal(raw, &j); err != nil {
			return nil, fmt.Errorf("issue %d: %w", idx, err)
		}
		issue := j.issue()
		if single && issue.empty() {
			return nil, fmt.Errorf("%w: object has no issue fields", ErrMalformedRoot)
		}
		findings = append(findings, issue.finding(compactJSON(raw)))
	}
	return findings, nil
}

// burpJSONRecords accepts a list, {"issues": [...]}, {"vulnerabilities":
// [...]} or a single issue object.
func burpJSONRecords(data []byte) ([]json.RawMessage, bool, error) {
	if data[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrMalformedRoot, err)
		}
		return list, false, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformedRoot, err)
	}
	for _, key := range []string{"issues", "vulnerabilities"} {
		if v, ok := obj[key]; ok {
			var list []json.RawMessage
			if err := json.Unmarshal(v, &list); err != nil {
				return nil, false, fmt.Errorf("%w: %q is not a list: %v", ErrMalformedRoot, key, err)
			}
			return list, false, nil
		}
	}
	return []json.RawMessage{data}, true, nil
}

type burpXMLIssues struct {
	XMLName xml.Name       `xml:"issues"`
	Issues  []burpXMLIssue `xml:"issue"`
}

type burpXMLIssue struct {
	SerialNumber          string                   `xml:"serialNumber" json:"serialNumber,omitempty"`
	Type                  string                   `xml:"type" json:"type,omitempty"`
	Name                  string                   `xml:"name" json:"name"`
	Host                  burpXMLHost              `xml:"host" json:"host"`
	Path                  string                   `xml:"path" json:"path,omitempty"`
	Location              string                   `xml:"location" json:"location,omitempty"`
	Severity              string                   `xml:"severity" json:"severity,omitempty"`
	Confidence            string                   `xml:"confidence" json:"confidence,omitempty"`
	IssueBackground       string                   `xml:"issueBackground" json:"issueBackground,omitempty"`
	RemediationBackground string                   `xml:"remediationBackground" json:"remediationBackground,omitempty"`
	IssueDetail           string                   `xml:"issueDetail" json:"issueDetail,omitempty"`
	RemediationDetail     string                   `xml:"remediationDetail" json:"remediationDetail,omitempty"`
	URL                   string                   `xml:"url" json:"url,omitempty"`
	RequestResponse       []burpXMLRequestResponse `xml:"requestresponse" json:"requestresponse,omitempty"`
}

type burpXMLHost struct {
	IP   string `xml:"ip,attr" json:"ip,omitempty"`
	Name string `xml:",chardata" json:"name"`
}

type burpXMLRequestResponse struct {
	Request  burpXMLData `xml:"request" json:"request"`
	Response burpXMLData `xml:"response" json:"response"`
}

type burpXMLData struct {
	Base64 bool   `xml:"base64,attr" json:"base64,omitempty"`
	Data   string `xml:",chardata" json:"data"`
}

func (d burpXMLData) text() string {
	if !d.Base64 {
		return d.Data
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(d.Data))
	if err != nil {
		return d.Data
	}
	return string(decoded)
}

func (x burpXMLIssue) issue() burpIssue {
	issue := burpIssue{
		Name:       strings.TrimSpace(x.Name),
		Detail:     strings.TrimSpace(x.IssueDetail),
		Background: strings.TrimSpace(x.IssueBackground),
		Severity:   strings.TrimSpace(x.Severity),
		Host:       strings.TrimSpace(x.Host.Name),
		IP:         strings.TrimSpace(x.Host.IP),
		Path:       strings.TrimSpace(x.Path),
		URL:        strings.TrimSpace(x.URL),
	}
	if len(x.RequestResponse) > 0 {
		issue.Request = x.RequestResponse[0].Request.text()
		issue.Response = x.RequestResponse[0].Response.text()
	}
	return issue
}

func decodeBurpXML(data []byte) ([]engine.Finding, error) {
	var doc burpXMLIssues
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRoot, err)
	}
	findings := make([]engine.Finding, 0, len(doc.Issues))
	for _, x := range doc.Issues {
		findings = append(findings, x.issue().finding(engine.NewRaw(x)))
	}
	return findings, nil
}

// finding is the single normalization step for both encodings.
func (i burpIssue) finding(raw json.RawMessage) engine.Finding {
	link := i.URL
	if link == "" && strings.Contains(i.Host, "://") {
		link = strings.TrimRight(i.Host, "/") + i.Path
	}

	var host, hostname string
	var port int
	if link != "" {
		if u, err := url.Parse(link); err == nil {
			hostname = u.Hostname()
			port = atoiOrZero(u.Port())
		}
	}
	if hostname == "" && i.Host != "" {
		hostname, port = splitLocation(i.Host)
	}
	host = firstNonEmpty(i.IP, hostname)
	if hostname == host {
		hostname = ""
	}

	evidence := ""
	switch {
	case i.Request != "" || i.Response != "":
		evidence = truncate(strings.TrimSpace(strings.Join([]string{i.Request, i.Response}, "\n\n")), maxEvidence)
	case i.Evidence != "":
		evidence = truncate(i.Evidence, maxEvidence)
	default:
		evidence = i.Background
	}

	return engine.Finding{
		Title:       firstNonEmpty(i.Name, "Unnamed Burp issue"),
		Description: firstNonEmpty(i.Detail, i.Background),
		Severity:    burpSeverity(i.Severity),
		Host:        host,
		Hostname:    hostname,
		Port:        port,
		URL:         link,
		Evidence:    evidence,
		SourceType:  string(TypeBurp),
		Raw:         raw,
	}
}

func burpSeverity(s string) engine.Severity {
	if strings.TrimSpace(s) == "" {
		return engine.SeverityUnknown
	}
	sev, err := engine.ParseSeverity(s)
	if err != nil {
		return engine.SeverityUnknown
	}
	return sev
}
