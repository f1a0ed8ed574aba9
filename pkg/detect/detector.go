package detect

import (
	"bufio"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/user/secreport/pkg/parsers"
)

// DefaultProbeSize bounds how much of a file detection reads.
const DefaultProbeSize = 8 * 1024

// ErrTypeRequired is returned when a file's scan type cannot be inferred
// and the caller must name it explicitly.
var ErrTypeRequired = errors.New("scan type could not be detected; specify it explicitly")

type Confidence string

const (
	ConfidenceNone   Confidence = "none"
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Result describes what Detect inferred for one file. Type is empty when
// no probe matched.
type Result struct {
	FilePath   string
	Type       parsers.ScanType
	Confidence Confidence
	Valid      bool
}

// Require returns the detected type or ErrTypeRequired.
func Require(r Result) (parsers.ScanType, error) {
	if r.Type == "" {
		return "", fmt.Errorf("%s: %w", r.FilePath, ErrTypeRequired)
	}
	return r.Type, nil
}

type Detector struct {
	ProbeSize int
	logger    hclog.Logger
}

func NewDetector(probeSize int, logger hclog.Logger) *Detector {
	if probeSize <= 0 {
		probeSize = DefaultProbeSize
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Detector{ProbeSize: probeSize, logger: logger.Named("detect")}
}

// extensionHints maps a lower-cased extension to the types it suggests.
var extensionHints = map[string][]parsers.ScanType{
	".xml":    {parsers.TypeNmap, parsers.TypeBurp},
	".json":   {parsers.TypeBurp, parsers.TypeNuclei},
	".jsonl":  {parsers.TypeNuclei},
	".ndjson": {parsers.TypeNuclei},
}

type match struct {
	typ    parsers.ScanType
	strong bool
}

type probe func(head []byte) (bool, bool)

// probes run in priority order. Each reports (matched, strong); a weak
// match is a substring hit without structural confirmation.
var probes = []struct {
	typ parsers.ScanType
	fn  probe
}{
	{parsers.TypeNmap, probeNmap},
	{parsers.TypeBurp, probeBurpXML},
	{parsers.TypeNuclei, probeNuclei},
	{parsers.TypeBurp, probeBurpJSON},
}

// Detect classifies path by extension and a bounded content probe. It
// never reads more than ProbeSize bytes.
func (d *Detector) Detect(path string) Result {
	res := Result{FilePath: path, Confidence: ConfidenceNone}

	head, err := d.readProbe(path)
	if err != nil {
		d.logger.Debug("cannot probe file", "path", path, "error", err)
		return res
	}

	var matches []match
	seen := map[parsers.ScanType]bool{}
	for _, p := range probes {
		if seen[p.typ] {
			continue
		}
		if ok, strong := p.fn(head); ok {
			matches = append(matches, match{typ: p.typ, strong: strong})
			seen[p.typ] = true
		}
	}
	if len(matches) == 0 {
		return res
	}

	// Structural matches outrank substring hits.
	var strong []match
	for _, m := range matches {
		if m.strong {
			strong = append(strong, m)
		}
	}
	if len(strong) > 0 {
		matches = strong
	}

	hints := extensionHints[strings.ToLower(filepath.Ext(path))]
	chosen := matches[0]
	if len(matches) > 1 {
		for _, m := range matches {
			if containsType(hints, m.typ) {
				chosen = m
				break
			}
		}
	}

	res.Type = chosen.typ
	res.Valid = true
	switch {
	case !chosen.strong:
		res.Confidence = ConfidenceLow
	case containsType(hints, chosen.typ):
		res.Confidence = ConfidenceHigh
	default:
		res.Confidence = ConfidenceMedium
	}
	d.logger.Trace("detected", "path", path, "type", res.Type, "confidence", res.Confidence)
	return res
}

func (d *Detector) readProbe(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	size := d.ProbeSize
	if size <= 0 {
		size = DefaultProbeSize
	}
	buf := make([]byte, size)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return bytes.TrimSpace(bytes.TrimPrefix(buf[:n], []byte("\xef\xbb\xbf"))), nil
}

func containsType(list []parsers.ScanType, t parsers.ScanType) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

// rootElement returns the name of the first element in an XML prefix.
func rootElement(head []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(head))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local
		}
	}
}

func probeNmap(head []byte) (bool, bool) {
	if len(head) == 0 || head[0] != '<' {
		return false, false
	}
	if rootElement(head) == "nmaprun" {
		return true, true
	}
	return bytes.Contains(head, []byte("<nmaprun")), false
}

func probeBurpXML(head []byte) (bool, bool) {
	if len(head) == 0 || head[0] != '<' {
		return false, false
	}
	return rootElement(head) == "issues", true
}

var nucleiKeys = []string{"template-id", "templateID", "matched-at"}

func probeNuclei(head []byte) (bool, bool) {
	if len(head) == 0 {
		return false, false
	}
	switch head[0] {
	case '{':
		first := head
		sc := bufio.NewScanner(bytes.NewReader(head))
		sc.Buffer(make([]byte, 0, len(head)+1), len(head)+1)
		if sc.Scan() {
			first = sc.Bytes()
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(first, &obj); err == nil {
			for _, k := range nucleiKeys {
				if _, ok := obj[k]; ok {
					return true, true
				}
			}
			return false, false
		}
		// First line did not fit in the probe.
		return containsAnyKey(head, nucleiKeys), false
	case '[':
		return containsAnyKey(head, nucleiKeys), true
	}
	return false, false
}

var burpKeys = []string{"issueName", "issue_name", "issueDetail", "issues"}

func probeBurpJSON(head []byte) (bool, bool) {
	if len(head) == 0 || (head[0] != '{' && head[0] != '[') {
		return false, false
	}
	return containsAnyKey(head, burpKeys), true
}

func containsAnyKey(head []byte, keys []string) bool {
	for _, k := range keys {
		if bytes.Contains(head, []byte(`"`+k+`"`)) {
			return true
		}
	}
	return false
}
