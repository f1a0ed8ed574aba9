package parsers

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/secreport/pkg/engine"
)

func withoutRaw(findings []engine.Finding) []engine.Finding {
	out := make([]engine.Finding, len(findings))
	for i, f := range findings {
		f.Raw = nil
		out[i] = f
	}
	return out
}

func TestBurpJSONAndXMLAreEquivalent(t *testing.T) {
	fromJSON, err := ParseFile(TypeBurp, filepath.Join("testdata", "burp_issues.json"))
	require.NoError(t, err)
	fromXML, err := ParseFile(TypeBurp, filepath.Join("testdata", "burp_issues.xml"))
	require.NoError(t, err)

	require.Len(t, fromJSON, 3)
	requireValid(t, fromJSON)
	assert.Equal(t, withoutRaw(fromJSON), withoutRaw(fromXML))
	assert.NotEqual(t, string(fromJSON[0].Raw), string(fromXML[0].Raw))

	t.Run("surrounding whitespace", func(t *testing.T) {
		jsonInput := `[{"issueName":" Open redirect ","severity":"Medium ","host":" https://h.test ","ip":" 198.51.100.7 ","path":"/p ","issueBackground":"bg\n"}]`
		xmlInput := `<issues><issue><name>Open redirect</name><host ip="198.51.100.7">https://h.test</host><path>/p</path><severity>Medium</severity><issueBackground>bg</issueBackground></issue></issues>`

		p := &BurpParser{}
		jres, err := p.ParseReader(strings.NewReader(jsonInput), "issues.json")
		require.NoError(t, err)
		xres, err := p.ParseReader(strings.NewReader(xmlInput), "issues.xml")
		require.NoError(t, err)

		require.Len(t, jres.Findings, 1)
		assert.Equal(t, withoutRaw(xres.Findings), withoutRaw(jres.Findings))
		assert.Equal(t, "https://h.test/p", jres.Findings[0].URL)
		assert.Equal(t, "bg", jres.Findings[0].Evidence)
	})
}

func TestBurpMapping(t *testing.T) {
	findings, err := ParseFile(TypeBurp, filepath.Join("testdata", "burp_issues.xml"))
	require.NoError(t, err)
	require.Len(t, findings, 3)

	xss := findings[0]
	assert.Equal(t, "Cross-site scripting (reflected)", xss.Title)
	assert.Equal(t, engine.SeverityHigh, xss.Severity)
	assert.Equal(t, "203.0.113.10", xss.Host)
	assert.Equal(t, "shop.example.com", xss.Hostname)
	assert.Equal(t, 8443, xss.Port)
	assert.Equal(t, "https://shop.example.com:8443/search", xss.URL)
	assert.Contains(t, xss.Evidence, "GET /search?q=%3cscript%3e")
	assert.Contains(t, xss.Evidence, "HTTP/1.1 200 OK")
	assert.Equal(t, "burp", xss.SourceType)

	hsts := findings[1]
	assert.Equal(t, engine.SeverityLow, hsts.Severity)
	assert.Equal(t, hsts.Description, hsts.Evidence, "background used for both when detail is absent")

	assert.Equal(t, engine.SeverityInfo, findings[2].Severity)
}

func TestBurpJSONLayouts(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  int
	}{
		{name: "list", input: `[{"issueName":"A","severity":"Medium"},{"name":"B"}]`, want: 2},
		{name: "vulnerabilities", input: `{"vulnerabilities":[{"issue_name":"A"}]}`, want: 1},
		{name: "single issue", input: `{"issueName":"A","url":"http://example.com/x"}`, want: 1},
		{name: "empty list", input: `[]`, want: 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := &BurpParser{}
			res, err := p.ParseReader(strings.NewReader(tc.input), "export")
			require.NoError(t, err)
			assert.Len(t, res.Findings, tc.want)
			requireValid(t, res.Findings)
		})
	}
}

func TestBurpSeverityWithoutRating(t *testing.T) {
	p := &BurpParser{}
	res, err := p.ParseReader(strings.NewReader(`[{"issueName":"A"},{"issueName":"B","severity":"False positive"}]`), "a.json")
	require.NoError(t, err)
	assert.Equal(t, engine.SeverityUnknown, res.Findings[0].Severity)
	assert.Equal(t, engine.SeverityUnknown, res.Findings[1].Severity)
}

func TestBurpMalformed(t *testing.T) {
	for _, input := range []string{"", "plain text", `{"unrelated":true}`, `<nmaprun></nmaprun>`, `{"issues": 3}`} {
		p := &BurpParser{}
		_, err := p.ParseReader(strings.NewReader(input), "export")
		var perr *ParseError
		assert.ErrorAs(t, err, &perr, "input %q", input)
	}
}
