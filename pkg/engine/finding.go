package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Severity is the normalized rating of a finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
	SeverityUnknown  Severity = "unknown"
)

// Severities lists every valid severity from most to least severe.
var Severities = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInfo,
	SeverityUnknown,
}

// ParseSeverity maps a scanner or user supplied label onto a Severity.
// Unrecognized labels map to SeverityUnknown with an error.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "crit":
		return SeverityCritical, nil
	case "high":
		return SeverityHigh, nil
	case "medium", "moderate", "med":
		return SeverityMedium, nil
	case "low":
		return SeverityLow, nil
	case "info", "information", "informational", "none":
		return SeverityInfo, nil
	case "unknown", "":
		return SeverityUnknown, nil
	default:
		return SeverityUnknown, fmt.Errorf("unknown severity: %q", s)
	}
}

// Valid reports whether s is one of the enumerated severities.
func (s Severity) Valid() bool {
	for _, v := range Severities {
		if s == v {
			return true
		}
	}
	return false
}

// Rank orders severities; higher is more severe. Unknown ranks lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

func (s Severity) String() string {
	return string(s)
}

// UnmarshalJSON tolerates mixed-case labels written by older tooling.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Finding represents a normalized security finding from any scanner or tool
type Finding struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`

	Host     string `json:"host,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	Port     int    `json:"port,omitempty"`
	Protocol string `json:"protocol,omitempty"`
	Service  string `json:"service,omitempty"`
	URL      string `json:"url,omitempty"`

	Evidence   string   `json:"evidence,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	References []string `json:"references,omitempty"`
	SourceType string   `json:"source_type"`

	// Set by the enrichment step only.
	AISummary   string `json:"ai_summary,omitempty"`
	Remediation string `json:"remediation,omitempty"`

	Raw json.RawMessage `json:"raw,omitempty"`
}

var (
	ErrMissingTitle      = errors.New("finding has no title")
	ErrMissingSourceType = errors.New("finding has no source_type")
)

// Validate checks the invariants every emitted finding must hold.
func (f Finding) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return ErrMissingTitle
	}
	if strings.TrimSpace(f.SourceType) == "" {
		return ErrMissingSourceType
	}
	if !f.Severity.Valid() {
		return fmt.Errorf("finding %q: invalid severity %q", f.Title, f.Severity)
	}
	return nil
}

// RawRecord returns a copy of the original source record.
func (f Finding) RawRecord() json.RawMessage {
	if f.Raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(f.Raw))
	copy(out, f.Raw)
	return out
}

// Clone returns a deep copy so callers can enrich findings without
// touching the parser output.
func (f Finding) Clone() Finding {
	c := f
	c.Raw = f.RawRecord()
	if f.Tags != nil {
		c.Tags = append([]string(nil), f.Tags...)
	}
	if f.References != nil {
		c.References = append([]string(nil), f.References...)
	}
	return c
}

// Location renders host[:port] or the URL, whichever the finding has.
func (f Finding) Location() string {
	switch {
	case f.Host != "" && f.Port > 0:
		return fmt.Sprintf("%s:%d", f.Host, f.Port)
	case f.Host != "":
		return f.Host
	default:
		return f.URL
	}
}

// NewRaw marshals a source record for Finding.Raw. Records that cannot be
// marshalled are stored as a JSON string of their %v form.
func NewRaw(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(fmt.Sprintf("%v", v))
	}
	return data
}
