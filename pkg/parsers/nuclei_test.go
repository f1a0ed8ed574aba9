package parsers

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/secreport/pkg/engine"
)

func TestNucleiSkipsMalformedLine(t *testing.T) {
	res, err := ParseWithWarnings(TypeNuclei, filepath.Join("testdata", "nuclei.jsonl"), nil)
	require.NoError(t, err)
	require.Len(t, res.Findings, 3)
	requireValid(t, res.Findings)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 3, res.Warnings[0].Line)
	assert.Contains(t, res.Warnings[0].Path, "nuclei.jsonl")

	detect := res.Findings[0]
	assert.Equal(t, "Apache Detection", detect.Title)
	assert.Equal(t, engine.SeverityInfo, detect.Severity)
	assert.Equal(t, "blog.example.com", detect.Host)
	assert.Zero(t, detect.Port)
	assert.Equal(t, "https://blog.example.com/", detect.URL)
	assert.Equal(t, []string{"tech", "apache"}, detect.Tags)
	assert.Nil(t, detect.References)
	assert.Equal(t, "template-id: apache-detect\nmatcher-name: apache\nextracted-results: Apache/2.4.49", detect.Evidence)

	cve := res.Findings[1]
	assert.Equal(t, engine.SeverityCritical, cve.Severity)
	assert.Equal(t, 8080, cve.Port)
	assert.Equal(t, []string{"cve", "cve2021", "apache", "lfi"}, cve.Tags)
	assert.Equal(t, []string{"https://nvd.nist.gov/vuln/detail/CVE-2021-41773"}, cve.References)
	assert.NotEmpty(t, cve.Description)

	legacy := res.Findings[2]
	assert.Equal(t, "SSL DNS Names", legacy.Title)
	assert.Equal(t, 443, legacy.Port)
	assert.Empty(t, legacy.URL)
	assert.Equal(t, "ssl", legacy.Protocol)
}

func TestNucleiArrayExport(t *testing.T) {
	findings, err := ParseFile(TypeNuclei, filepath.Join("testdata", "nuclei_export.json"))
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, "Git Config Disclosure", findings[0].Title)
	assert.Equal(t, engine.SeverityMedium, findings[0].Severity)
	assert.Equal(t, "app.example.com", findings[0].Host)
}

func TestNucleiAllLinesMalformed(t *testing.T) {
	_, err := ParseFile(TypeNuclei, filepath.Join("testdata", "nuclei_garbage.jsonl"))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.True(t, errors.Is(err, ErrMalformedRoot))
}

func TestNucleiEmptyInput(t *testing.T) {
	p := &NucleiParser{}
	res, err := p.ParseReader(strings.NewReader("\n\n"), "empty.jsonl")
	require.NoError(t, err)
	assert.Empty(t, res.Findings)
	assert.Empty(t, res.Warnings)
}

func TestNucleiMissingSeverityIsUnknown(t *testing.T) {
	p := &NucleiParser{}
	res, err := p.ParseReader(strings.NewReader(`{"template-id":"x-detect","host":"10.0.0.9"}`), "n.jsonl")
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "x-detect", res.Findings[0].Title)
	assert.Equal(t, engine.SeverityUnknown, res.Findings[0].Severity)
	assert.Equal(t, "10.0.0.9", res.Findings[0].Host)
}

func TestNucleiRawIsSourceLine(t *testing.T) {
	line := `{"template-id":"a","info":{"name":"A","severity":"low"}}`
	p := &NucleiParser{}
	res, err := p.ParseReader(strings.NewReader(line+"\n"), "n.jsonl")
	require.NoError(t, err)
	assert.JSONEq(t, line, string(res.Findings[0].Raw))
}

func TestNucleiSkipsRecordsWithoutIdentity(t *testing.T) {
	input := `{"template-id":"a","info":{"name":"A","severity":"low"},"host":"h.test"}
null
{}
42
`
	p := &NucleiParser{}
	res, err := p.ParseReader(strings.NewReader(input), "n.jsonl")
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "A", res.Findings[0].Title)

	require.Len(t, res.Warnings, 3)
	assert.Equal(t, 2, res.Warnings[0].Line)
	assert.ErrorIs(t, res.Warnings[0], ErrEmptyRecord)
	assert.ErrorIs(t, res.Warnings[1], ErrEmptyRecord)
	assert.Equal(t, 4, res.Warnings[2].Line)
}

func TestNucleiArraySkipsEmptyRecords(t *testing.T) {
	p := &NucleiParser{}
	res, err := p.ParseReader(strings.NewReader(`[{"template-id":"a","host":"h.test"},null,{}]`), "export.json")
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	assert.Len(t, res.Warnings, 2)

	_, err = p.ParseReader(strings.NewReader(`[null,{}]`), "export.json")
	assert.ErrorIs(t, err, ErrMalformedRoot)
}

func TestNucleiEmptyListsAreNil(t *testing.T) {
	p := &NucleiParser{}
	res, err := p.ParseReader(strings.NewReader(`{"template-id":"a","info":{"tags":[],"reference":[""]},"host":"h.test"}`), "n.jsonl")
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	assert.Nil(t, res.Findings[0].Tags)
	assert.Nil(t, res.Findings[0].References)
}
