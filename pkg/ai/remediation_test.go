package ai

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/secreport/pkg/engine"
)

func TestBuiltinTemplatesLoad(t *testing.T) {
	e, err := NewRemediationEngine(nil)
	require.NoError(t, err)
	assert.Contains(t, e.Templates, "generic")
	assert.Contains(t, e.Templates, "sql-injection")
	assert.Equal(t, "sql-injection: SQL injection", e.ListTemplates()[0])
}

func TestMatch(t *testing.T) {
	e, err := NewRemediationEngine(nil)
	require.NoError(t, err)

	testCases := []struct {
		f    engine.Finding
		want string
	}{
		{engine.Finding{Title: "SQL Injection in id parameter"}, "sql-injection"},
		{engine.Finding{Title: "Open Port: 22/tcp (ssh)", Service: "ssh"}, "ssh"},
		{engine.Finding{Title: "smb-vuln-ms17-010 on 10.0.0.2"}, "smb"},
		{engine.Finding{Title: "generic-api-key", SourceType: "gitleaks"}, "exposed-secret"},
		{engine.Finding{Title: "Something odd"}, "generic"},
	}
	for _, tc := range testCases {
		t.Run(tc.f.Title, func(t *testing.T) {
			got, ok := e.Match(tc.f)
			require.True(t, ok)
			assert.Equal(t, tc.want, got.ID)
		})
	}
}

func TestSuggestRendersFindingFields(t *testing.T) {
	e, err := NewRemediationEngine(nil)
	require.NoError(t, err)

	plan, err := e.Suggest(engine.Finding{Title: "smb-vuln-ms17-010", Host: "10.0.0.2", Port: 445})
	require.NoError(t, err)
	assert.Contains(t, plan, "Risk: Critical")
	assert.Contains(t, plan, "on 10.0.0.2 and disable SMBv1")
	assert.Contains(t, plan, "nmap -p445 --script smb-vuln-ms17-010 10.0.0.2")
	assert.Contains(t, plan, "Rollback:")

	// The smb template needs a host; without one the generic plan is used.
	plan, err = e.Suggest(engine.Finding{Title: "smb signing disabled"})
	require.NoError(t, err)
	assert.Contains(t, plan, "Risk: Review")
	assert.Contains(t, plan, "the affected system")
}

func TestGeneratePlanErrors(t *testing.T) {
	e, err := NewRemediationEngine(nil)
	require.NoError(t, err)

	_, err = e.GeneratePlan("nope", nil)
	assert.EqualError(t, err, "template not found: nope")

	_, err = e.GeneratePlan("smb", map[string]string{})
	assert.EqualError(t, err, "missing required variable: Host")
}

func TestLoadTemplatesOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "xss.yml"), []byte(`
id: xss
name: Site specific XSS playbook
priority: 80
match: ["xss"]
issue: custom
risk: High
standard: internal
steps: Ticket the web team for {{.URL}}.
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0o644))

	e, err := NewRemediationEngine(nil)
	require.NoError(t, err)
	require.NoError(t, e.LoadTemplates(dir))

	plan, err := e.Suggest(engine.Finding{Title: "Reflected XSS", URL: "https://app/x"})
	require.NoError(t, err)
	assert.Contains(t, plan, "Ticket the web team for https://app/x.")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: [oops"), 0o644))
	assert.Error(t, e.LoadTemplates(dir))
}
