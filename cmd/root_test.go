package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/secreport/pkg/config"
	"github.com/user/secreport/pkg/detect"
	"github.com/user/secreport/pkg/engine"
)

const nmapScan = `<?xml version="1.0"?>
<nmaprun scanner="nmap">
<host>
<address addr="192.168.56.10" addrtype="ipv4"/>
<ports>
<port protocol="tcp" portid="22"><state state="open"/><service name="ssh" product="OpenSSH"/></port>
<port protocol="tcp" portid="443"><state state="open"/><service name="https"/></port>
</ports>
</host>
</nmaprun>
`

// runCLI executes the root command with a throwaway config file and
// returns what the command printed.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvConfigPath, filepath.Join(t.TempDir(), "config.yaml"))
	t.Setenv("SECREPORT_LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeScan(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParseCommandWritesEnvelope(t *testing.T) {
	scan := writeScan(t, "scan.xml", nmapScan)
	out := filepath.Join(t.TempDir(), "findings.json")

	stdout, err := runCLI(t, "parse", "-i", scan, "-t", "auto", "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Parsed 2 findings")

	findings, err := engine.ReadFindings(out)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, "nmap", findings[0].SourceType)
	assert.Equal(t, "192.168.56.10", findings[0].Host)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total_findings": 2`)
}

func TestParseCommandWritesJSONLines(t *testing.T) {
	scan := writeScan(t, "scan.xml", nmapScan)
	out := filepath.Join(t.TempDir(), "findings.jsonl")

	_, err := runCLI(t, "parse", "-i", scan, "-t", "nmap", "-o", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 2)
}

func TestParseCommandErrors(t *testing.T) {
	testCases := []struct {
		name string
		args func(t *testing.T) []string
		is   error
	}{
		{
			name: "undetectable input",
			args: func(t *testing.T) []string {
				return []string{"parse", "-i", writeScan(t, "notes.txt", "just some notes\n"), "-t", "auto", "-o", ""}
			},
			is: detect.ErrTypeRequired,
		},
		{
			name: "missing input file",
			args: func(t *testing.T) []string {
				return []string{"parse", "-i", filepath.Join(t.TempDir(), "absent.xml"), "-t", "nmap", "-o", ""}
			},
		},
		{
			name: "unsupported type",
			args: func(t *testing.T) []string {
				return []string{"parse", "-i", writeScan(t, "scan.xml", nmapScan), "-t", "zap", "-o", ""}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runCLI(t, tc.args(t)...)
			require.Error(t, err)
			if tc.is != nil {
				assert.ErrorIs(t, err, tc.is)
			}
		})
	}
}

func TestDetectCommand(t *testing.T) {
	scan := writeScan(t, "scan.xml", nmapScan)

	stdout, err := runCLI(t, "detect", scan)
	require.NoError(t, err)
	assert.Contains(t, stdout, "FILE")
	assert.Contains(t, stdout, "nmap")
	assert.Contains(t, stdout, "high")
	assert.Contains(t, stdout, "true")
}

func TestDefaultOutputAndWriteRecords(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })
	cfg = config.Default()
	cfg.Export.OutputDir = t.TempDir()

	path := defaultOutput(filepath.Join("scans", "web.xml"), "_enhanced.json")
	assert.Equal(t, filepath.Join(cfg.Export.OutputDir, "web_enhanced.json"), path)

	findings := []engine.Finding{{Title: "Open port", Severity: engine.SeverityInfo, SourceType: "nmap"}}
	require.NoError(t, writeRecords(path, findings, map[string]string{"source_file": "web.xml"}))
	loaded, err := engine.ReadFindings(path)
	require.NoError(t, err)
	assert.Equal(t, findings, loaded)
}
