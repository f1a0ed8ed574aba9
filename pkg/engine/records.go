package engine

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Envelope is the metadata-wrapped record file layout.
type Envelope struct {
	Timestamp     string            `json:"timestamp"`
	TotalFindings int               `json:"total_findings"`
	Findings      []Finding         `json:"findings"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// WriteFindings stores findings as an indented JSON array. The file is
// written to a temp sibling and renamed into place.
func WriteFindings(path string, findings []Finding) error {
	if findings == nil {
		findings = []Finding{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(findings); err != nil {
		return fmt.Errorf("encode findings: %w", err)
	}
	return WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// WriteEnvelope stores findings with a timestamp and metadata block.
func WriteEnvelope(path string, findings []Finding, meta map[string]string) error {
	if findings == nil {
		findings = []Finding{}
	}
	env := Envelope{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		TotalFindings: len(findings),
		Findings:      findings,
		Metadata:      meta,
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// WriteFindingsJSONL writes one compact finding per line.
func WriteFindingsJSONL(w io.Writer, findings []Finding) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i, f := range findings {
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("encode finding %d: %w", i, err)
		}
	}
	return nil
}

// ReadFindings loads a record file written by WriteFindings, WriteEnvelope
// or WriteFindingsJSONL.
func ReadFindings(path string) ([]Finding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	findings, err := DecodeFindings(f)
	if err != nil {
		return nil, fmt.Errorf("read findings from %s: %w", path, err)
	}
	return findings, nil
}

// DecodeFindings accepts a JSON array, an Envelope object or JSON lines.
func DecodeFindings(r io.Reader) ([]Finding, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []Finding{}, nil
	}

	var findings []Finding
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &findings); err != nil {
			return nil, err
		}
	case '{':
		var env Envelope
		if err := json.Unmarshal(trimmed, &env); err == nil && env.Findings != nil {
			findings = env.Findings
			break
		}
		findings, err = decodeLines(trimmed)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unrecognized record layout (starts with %q)", trimmed[0])
	}

	for i := range findings {
		findings[i].Raw = compactRaw(findings[i].Raw)
	}
	if findings == nil {
		findings = []Finding{}
	}
	return findings, nil
}

func decodeLines(data []byte) ([]Finding, error) {
	var findings []Finding
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var f Finding
		if err := json.Unmarshal(text, &f); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		findings = append(findings, f)
	}
	return findings, sc.Err()
}

func compactRaw(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers never see a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() { os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
