package parsers

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/user/secreport/pkg/engine"
)

// ScanType names one of the supported scanner families.
type ScanType string

const (
	TypeNmap   ScanType = "nmap"
	TypeBurp   ScanType = "burp"
	TypeNuclei ScanType = "nuclei"
)

// ScanTypes is the closed set of types with a dedicated parser, in
// detection priority order.
var ScanTypes = []ScanType{TypeNmap, TypeBurp, TypeNuclei}

func ParseScanType(s string) (ScanType, error) {
	t := ScanType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ScanTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q (supported: nmap, burp, nuclei)", ErrUnsupportedType, s)
}

// Result carries the findings of a parse together with the records that
// were skipped.
type Result struct {
	Findings []engine.Finding
	Warnings []PartialRecordWarning
}

// Parser turns one scanner output file into findings in source order.
type Parser interface {
	Type() ScanType
	Parse(path string) ([]engine.Finding, error)
	// ParseReader decodes r; name is used for error messages and format
	// selection by extension.
	ParseReader(r io.Reader, name string) (*Result, error)
}

// For returns the parser for t. A nil logger discards warnings.
func For(t ScanType, logger hclog.Logger) (Parser, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	switch t {
	case TypeNmap:
		return &NmapParser{}, nil
	case TypeBurp:
		return &BurpParser{}, nil
	case TypeNuclei:
		return &NucleiParser{logger: logger.Named("nuclei")}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, t)
	}
}

// ParseFile parses path with the parser for t.
func ParseFile(t ScanType, path string) ([]engine.Finding, error) {
	res, err := ParseWithWarnings(t, path, nil)
	if err != nil {
		return nil, err
	}
	return res.Findings, nil
}

// ParseWithWarnings is ParseFile that also returns skipped records.
func ParseWithWarnings(t ScanType, path string, logger hclog.Logger) (*Result, error) {
	p, err := For(t, logger)
	if err != nil {
		return nil, err
	}
	return parsePath(p, path)
}

func parsePath(p Parser, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Type: p.Type(), Err: err}
	}
	defer f.Close()
	return p.ParseReader(f, path)
}

func readAll(r io.Reader, name string, t ScanType) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Path: name, Type: t, Err: err}
	}
	return data, nil
}
