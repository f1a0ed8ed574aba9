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

func requireValid(t *testing.T, findings []engine.Finding) {
	t.Helper()
	for i, f := range findings {
		require.NoError(t, f.Validate(), "finding %d", i)
	}
}

func TestNmapThreeHosts(t *testing.T) {
	findings, err := ParseFile(TypeNmap, filepath.Join("testdata", "nmap_three_hosts.xml"))
	require.NoError(t, err)
	require.Len(t, findings, 3)
	requireValid(t, findings)

	ssh := findings[0]
	assert.Equal(t, "Open Port: 22/tcp (ssh)", ssh.Title)
	assert.Equal(t, "10.0.0.1", ssh.Host)
	assert.Equal(t, "web01.lab", ssh.Hostname)
	assert.Equal(t, 22, ssh.Port)
	assert.Equal(t, "tcp", ssh.Protocol)
	assert.Equal(t, "ssh", ssh.Service)
	assert.Equal(t, engine.SeverityUnknown, ssh.Severity)
	assert.Contains(t, ssh.Description, "running OpenSSH 8.9p1")
	assert.Equal(t, "nmap", ssh.SourceType)
	assert.Contains(t, string(ssh.Raw), `"portid":"22"`)

	assert.Equal(t, "Open Port: 80/tcp (http)", findings[1].Title)

	vuln := findings[2]
	assert.Equal(t, "smb-vuln-ms17-010 on 10.0.0.2", vuln.Title)
	assert.Equal(t, "10.0.0.2", vuln.Host)
	assert.Zero(t, vuln.Port)
	assert.Equal(t, engine.SeverityHigh, vuln.Severity)
	assert.Equal(t, "Remote Code Execution vulnerability in Microsoft SMBv1 servers (ms17-010)", vuln.Description)
	assert.Contains(t, vuln.Evidence, "State: VULNERABLE")
}

func TestNmapPortScripts(t *testing.T) {
	findings, err := ParseFile(TypeNmap, filepath.Join("testdata", "nmap_port_scripts.xml"))
	require.NoError(t, err)
	require.Len(t, findings, 2)
	requireValid(t, findings)

	assert.Equal(t, "192.168.56.10", findings[0].Host, "ipv4 preferred over ipv6")
	assert.Equal(t, "Open Port: 443/tcp (https)", findings[0].Title)

	vulners := findings[1]
	assert.Equal(t, "vulners on 192.168.56.10:443", vulners.Title)
	assert.Equal(t, engine.SeverityCritical, vulners.Severity)
	assert.Equal(t, 443, vulners.Port)
	assert.Equal(t, "https", vulners.Service)
}

func TestNmapNoFindingsIsNotAnError(t *testing.T) {
	findings, err := ParseFile(TypeNmap, filepath.Join("testdata", "nmap_empty.xml"))
	require.NoError(t, err)
	assert.NotNil(t, findings)
	assert.Empty(t, findings)
}

func TestNmapMalformed(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "wrong root", input: `<issues><issue><name>x</name></issue></issues>`},
		{name: "not xml", input: `{"template-id":"x"}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := &NmapParser{}
			_, err := p.ParseReader(strings.NewReader(tc.input), "scan.xml")
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, TypeNmap, perr.Type)
			assert.True(t, errors.Is(err, ErrMalformedRoot))
		})
	}

	_, err := ParseFile(TypeNmap, filepath.Join("testdata", "nmap_truncated.xml"))
	assert.Error(t, err)
}

func TestNmapMissingFile(t *testing.T) {
	_, err := ParseFile(TypeNmap, filepath.Join(t.TempDir(), "missing.xml"))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Path, "missing.xml")
}

func TestRateScript(t *testing.T) {
	testCases := []struct {
		name    string
		script  nmapScript
		flagged bool
		sev     engine.Severity
	}{
		{name: "plain output", script: nmapScript{ID: "http-title", Output: "Welcome"}},
		{name: "not vulnerable", script: nmapScript{Output: "State: NOT VULNERABLE"}},
		{name: "likely vulnerable", script: nmapScript{Output: "State: LIKELY VULNERABLE"}, flagged: true, sev: engine.SeverityUnknown},
		{name: "risk factor", script: nmapScript{Tables: []nmapTable{{Elems: []nmapElem{{Key: "risk_factor", Value: "Medium"}}}}}, flagged: true, sev: engine.SeverityMedium},
		{name: "risk factor none", script: nmapScript{Elems: []nmapElem{{Key: "risk_factor", Value: "None"}}}},
		{name: "cvss low", script: nmapScript{Elems: []nmapElem{{Key: "cvss", Value: "2.1"}}}, flagged: true, sev: engine.SeverityLow},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			flagged, sev := rateScript(tc.script)
			assert.Equal(t, tc.flagged, flagged)
			if tc.flagged {
				assert.Equal(t, tc.sev, sev)
			}
		})
	}
}
