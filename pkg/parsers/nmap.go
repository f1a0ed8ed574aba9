package parsers

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/user/secreport/pkg/engine"
)

// NmapParser reads nmap XML output (-oX).
type NmapParser struct{}

func (p *NmapParser) Type() ScanType { return TypeNmap }

func (p *NmapParser) Parse(path string) ([]engine.Finding, error) {
	res, err := parsePath(p, path)
	if err != nil {
		return nil, err
	}
	return res.Findings, nil
}

// XML structures for parsing. The json tags shape Finding.Raw.
type nmapRun struct {
	XMLName xml.Name   `xml:"nmaprun" json:"-"`
	Hosts   []nmapHost `xml:"host" json:"-"`
}

type nmapHost struct {
	Status      nmapState      `xml:"status"`
	Addresses   []nmapAddress  `xml:"address"`
	Hostnames   []nmapHostname `xml:"hostnames>hostname"`
	Ports       []nmapPort     `xml:"ports>port"`
	HostScripts []nmapScript   `xml:"hostscript>script"`
}

type nmapAddress struct {
	Addr     string `xml:"addr,attr" json:"addr"`
	AddrType string `xml:"addrtype,attr" json:"addrtype"`
}

type nmapHostname struct {
	Name string `xml:"name,attr" json:"name"`
	Type string `xml:"type,attr" json:"type,omitempty"`
}

type nmapPort struct {
	Protocol string       `xml:"protocol,attr" json:"protocol"`
	PortID   string       `xml:"portid,attr" json:"portid"`
	State    nmapState    `xml:"state" json:"state"`
	Service  *nmapService `xml:"service" json:"service,omitempty"`
	Scripts  []nmapScript `xml:"script" json:"scripts,omitempty"`
}

type nmapState struct {
	State  string `xml:"state,attr" json:"state"`
	Reason string `xml:"reason,attr" json:"reason,omitempty"`
}

type nmapService struct {
	Name      string `xml:"name,attr" json:"name"`
	Product   string `xml:"product,attr" json:"product,omitempty"`
	Version   string `xml:"version,attr" json:"version,omitempty"`
	ExtraInfo string `xml:"extrainfo,attr" json:"extrainfo,omitempty"`
	Tunnel    string `xml:"tunnel,attr" json:"tunnel,omitempty"`
}

type nmapScript struct {
	ID     string      `xml:"id,attr" json:"id"`
	Output string      `xml:"output,attr" json:"output"`
	Elems  []nmapElem  `xml:"elem" json:"elems,omitempty"`
	Tables []nmapTable `xml:"table" json:"tables,omitempty"`
}

type nmapTable struct {
	Key    string      `xml:"key,attr" json:"key,omitempty"`
	Elems  []nmapElem  `xml:"elem" json:"elems,omitempty"`
	Tables []nmapTable `xml:"table" json:"tables,omitempty"`
}

type nmapElem struct {
	Key   string `xml:"key,attr" json:"key,omitempty"`
	Value string `xml:",chardata" json:"value"`
}

type nmapRawRecord struct {
	Host   string      `json:"host"`
	Port   *nmapPort   `json:"port,omitempty"`
	Script *nmapScript `json:"script,omitempty"`
}

func (p *NmapParser) ParseReader(r io.Reader, name string) (*Result, error) {
	data, err := readAll(r, name, TypeNmap)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Path: name, Type: TypeNmap, Err: fmt.Errorf("%w: empty document", ErrMalformedRoot)}
	}

	var run nmapRun
	if err := xml.Unmarshal(data, &run); err != nil {
		return nil, &ParseError{Path: name, Type: TypeNmap, Err: fmt.Errorf("%w: %v", ErrMalformedRoot, err)}
	}

	findings := []engine.Finding{}
	for _, host := range run.Hosts {
		addr := host.address()
		hostname := ""
		if len(host.Hostnames) > 0 {
			hostname = host.Hostnames[0].Name
		}

		for i := range host.Ports {
			port := host.Ports[i]
			portNum := atoiOrZero(port.PortID)
			if port.State.State == "open" && port.Service != nil {
				findings = append(findings, openPortFinding(addr, hostname, port, portNum))
			}
			for j := range port.Scripts {
				script := port.Scripts[j]
				if f, ok := scriptFinding(addr, hostname, &port, portNum, script); ok {
					findings = append(findings, f)
				}
			}
		}
		for _, script := range host.HostScripts {
			if f, ok := scriptFinding(addr, hostname, nil, 0, script); ok {
				findings = append(findings, f)
			}
		}
	}
	return &Result{Findings: findings}, nil
}

// address prefers ipv4, then ipv6, then whatever comes first.
func (h nmapHost) address() string {
	for _, want := range []string{"ipv4", "ipv6"} {
		for _, a := range h.Addresses {
			if a.AddrType == want {
				return a.Addr
			}
		}
	}
	if len(h.Addresses) > 0 {
		return h.Addresses[0].Addr
	}
	return ""
}

func openPortFinding(addr, hostname string, port nmapPort, portNum int) engine.Finding {
	svc := port.Service
	name := firstNonEmpty(svc.Name, "unknown")
	target := firstNonEmpty(hostname, addr)

	desc := fmt.Sprintf("Port %s/%s is open on %s", port.PortID, port.Protocol, target)
	if hostname != "" && addr != "" && hostname != addr {
		desc += fmt.Sprintf(" (%s)", addr)
	}
	banner := strings.TrimSpace(strings.Join([]string{svc.Product, svc.Version}, " "))
	if banner != "" {
		desc += " running " + banner
	}

	evidence := fmt.Sprintf("%s/%s %s %s", port.PortID, port.Protocol, port.State.State, name)
	if extra := strings.TrimSpace(banner + " " + svc.ExtraInfo); extra != "" {
		evidence += " " + extra
	}

	stripped := port
	stripped.Scripts = nil
	return engine.Finding{
		Title:       fmt.Sprintf("Open Port: %s/%s (%s)", port.PortID, port.Protocol, name),
		Description: desc,
		Severity:    engine.SeverityUnknown,
		Host:        addr,
		Hostname:    hostname,
		Port:        portNum,
		Protocol:    port.Protocol,
		Service:     svc.Name,
		Evidence:    evidence,
		SourceType:  string(TypeNmap),
		Raw:         engine.NewRaw(nmapRawRecord{Host: addr, Port: &stripped}),
	}
}

// scriptFinding emits a finding for scripts that report a vulnerable state
// or carry an explicit rating. port is nil for host-level scripts.
func scriptFinding(addr, hostname string, port *nmapPort, portNum int, script nmapScript) (engine.Finding, bool) {
	flagged, sev := rateScript(script)
	if !flagged {
		return engine.Finding{}, false
	}

	loc := firstNonEmpty(addr, hostname)
	if port != nil {
		loc = fmt.Sprintf("%s:%s", loc, port.PortID)
	}
	output := strings.TrimSpace(script.Output)

	f := engine.Finding{
		Title:       fmt.Sprintf("%s on %s", script.ID, loc),
		Description: scriptSummary(output),
		Severity:    sev,
		Host:        addr,
		Hostname:    hostname,
		Evidence:    truncate(output, maxEvidence),
		SourceType:  string(TypeNmap),
	}
	if f.Description == "" {
		f.Description = fmt.Sprintf("nmap script %s reported a finding", script.ID)
	}
	raw := nmapRawRecord{Host: addr, Script: &script}
	if port != nil {
		f.Port = portNum
		f.Protocol = port.Protocol
		if port.Service != nil {
			f.Service = port.Service.Name
		}
		p := *port
		p.Scripts = nil
		raw.Port = &p
	}
	f.Raw = engine.NewRaw(raw)
	return f, true
}

// rateScript reports whether a script result is flagged and the highest
// severity it states. Severity stays unknown without an explicit rating.
func rateScript(s nmapScript) (bool, engine.Severity) {
	flagged := reportsVulnerable(s.Output)
	sev := engine.SeverityUnknown

	consider := func(e nmapElem) {
		key := strings.ToLower(e.Key)
		val := strings.TrimSpace(e.Value)
		switch {
		case key == "state" && reportsVulnerable(val):
			flagged = true
		case key == "risk_factor" || key == "severity":
			if parsed, err := engine.ParseSeverity(val); err == nil && parsed.Rank() >= engine.SeverityLow.Rank() {
				flagged = true
				sev = maxSeverity(sev, parsed)
			}
		case strings.HasPrefix(key, "cvss"):
			if score, err := strconv.ParseFloat(val, 64); err == nil {
				flagged = true
				sev = maxSeverity(sev, cvssBand(score))
			}
		}
	}

	var walk func(elems []nmapElem, tables []nmapTable)
	walk = func(elems []nmapElem, tables []nmapTable) {
		for _, e := range elems {
			consider(e)
		}
		for _, t := range tables {
			walk(t.Elems, t.Tables)
		}
	}
	walk(s.Elems, s.Tables)
	return flagged, sev
}

func reportsVulnerable(s string) bool {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "NOT VULNERABLE", "")
	return strings.Contains(s, "VULNERABLE")
}

func cvssBand(score float64) engine.Severity {
	switch {
	case score >= 9:
		return engine.SeverityCritical
	case score >= 7:
		return engine.SeverityHigh
	case score >= 4:
		return engine.SeverityMedium
	case score > 0:
		return engine.SeverityLow
	default:
		return engine.SeverityInfo
	}
}

func maxSeverity(a, b engine.Severity) engine.Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// scriptSummary returns the first output line that is not a bare state
// marker such as "VULNERABLE:".
func scriptSummary(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSuffix(strings.TrimSpace(line), ":")
		switch strings.ToUpper(line) {
		case "", "VULNERABLE", "LIKELY VULNERABLE":
			continue
		}
		return line
	}
	return ""
}
