package engine

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFindings() []Finding {
	return []Finding{
		{
			Title:       "Open Port: 22/tcp (ssh)",
			Description: "Port 22/tcp is open on 10.0.0.5",
			Severity:    SeverityUnknown,
			Host:        "10.0.0.5",
			Port:        22,
			Protocol:    "tcp",
			Service:     "ssh",
			SourceType:  "nmap",
			Raw:         NewRaw(map[string]string{"portid": "22"}),
		},
		{
			Title:      "Reflected XSS",
			Severity:   SeverityHigh,
			URL:        "https://app.test/search?q=<script>",
			Evidence:   "GET /search?q=<script>alert(1)</script> HTTP/1.1",
			Tags:       []string{"xss", "web"},
			SourceType: "burp",
			Raw:        json.RawMessage(`{"name":"Reflected XSS","url":"https://app.test/search?q=<script>"}`),
		},
		{
			Title:      "No raw record",
			Severity:   SeverityInfo,
			SourceType: "custom",
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "parsed.json")
	in := sampleFindings()

	require.NoError(t, WriteFindings(path, in))
	out, err := ReadFindings(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "findings.json")
	in := sampleFindings()

	require.NoError(t, WriteEnvelope(path, in, map[string]string{"tool": "secreport"}))
	out, err := ReadFindings(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestJSONLRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := sampleFindings()
	require.NoError(t, WriteFindingsJSONL(&buf, in))
	assert.Equal(t, len(in), strings.Count(buf.String(), "\n"))

	out, err := DecodeFindings(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeEmpty(t *testing.T) {
	out, err := DecodeFindings(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = DecodeFindings(strings.NewReader("[]"))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeFindings(strings.NewReader("<xml/>"))
	assert.Error(t, err)
}

func TestWriteFileAtomicLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")
	require.NoError(t, WriteFileAtomic(path, []byte("{}"), 0o600))
	require.NoError(t, WriteFileAtomic(path, []byte(`{"a":1}`), 0o600))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
}
