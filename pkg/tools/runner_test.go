package tools

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
}

func newTestRunner(t *testing.T, regs []Registration, opts ...RunnerOption) (*Runner, string) {
	t.Helper()
	registry, _ := newTestRegistry(t)
	for _, r := range regs {
		require.NoError(t, registry.Register(r))
	}
	outDir := filepath.Join(t.TempDir(), "outputs")
	opts = append([]RunnerOption{WithOutputDir(outDir), WithResolver(NewResolver(PathLookup{}))}, opts...)
	return NewRunner(registry, opts...), outDir
}

func shellTool(name, script string) Registration {
	return Registration{
		Name:            name,
		CommandTemplate: `/bin/sh -c "` + script + `"`,
		InputMode:       InputNone,
		OutputMode:      OutputText,
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	rn, _ := newTestRunner(t, nil)
	_, err := rn.Execute(context.Background(), "ghost", "x", "")
	var unknown *UnknownToolError
	require.ErrorAs(t, err, &unknown)
}

func TestExecuteMissingExecutableNeverSpawns(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "spawned")
	reg := Registration{Name: "toucher", CommandTemplate: "touch {input}", InputMode: InputFile, OutputMode: OutputText}
	rn, _ := newTestRunner(t, []Registration{reg}, WithResolver(fakeResolver(nil)))

	_, err := rn.Execute(context.Background(), "toucher", marker, "")
	var na *ToolNotAvailableError
	require.ErrorAs(t, err, &na)
	assert.Equal(t, "touch", na.Executable)
	assert.Contains(t, na.Guidance, "'touch' is not installed")
	require.Len(t, na.Attempts, 1)
	assert.Equal(t, "fake", na.Attempts[0].Strategy)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoFileExists(t, marker)
}

func TestExecuteWritesArtifact(t *testing.T) {
	requireShell(t)
	rn, outDir := newTestRunner(t, []Registration{
		shellTool("probe", "echo '[+] admin panel exposed' > {output}; echo done"),
	})

	res, err := rn.Execute(context.Background(), "probe", "", "")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "done\n", res.Stdout)
	assert.Equal(t, outDir, filepath.Dir(res.OutputPath))
	assert.Regexp(t, regexp.MustCompile(`^probe_\d{8}_\d{6}\.\d{6}_[0-9a-f]{8}\.txt$`), filepath.Base(res.OutputPath))
	assert.Equal(t, "/bin/sh", res.Command[0])

	findings, err := rn.Findings(res)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "admin panel exposed", findings[0].Title)
	assert.Equal(t, "probe", findings[0].SourceType)
}

func TestExecuteExplicitOutputPath(t *testing.T) {
	requireShell(t)
	rn, _ := newTestRunner(t, []Registration{shellTool("probe", "echo hi > {output}")})
	out := filepath.Join(t.TempDir(), "deep", "result.txt")

	res, err := rn.Execute(context.Background(), "probe", "", out)
	require.NoError(t, err)
	assert.Equal(t, out, res.OutputPath)
}

func TestExecuteNonZeroExitIsNotFatal(t *testing.T) {
	requireShell(t)
	rn, _ := newTestRunner(t, []Registration{
		shellTool("partial", "echo '[!] weak cipher suite' > {output}; exit 3"),
		shellTool("stdoutonly", "echo only-stdout; exit 2"),
	})

	res, err := rn.Execute(context.Background(), "partial", "", "")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.NotEmpty(t, res.OutputPath)

	res, err = rn.Execute(context.Background(), "stdoutonly", "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.ExitCode)
	assert.Empty(t, res.OutputPath)
	assert.Equal(t, "only-stdout\n", res.Stdout)

	findings, err := rn.Findings(res)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "stdoutonly output", findings[0].Title)
}

func TestExecuteFatalExitCode(t *testing.T) {
	requireShell(t)
	rn, _ := newTestRunner(t, []Registration{shellTool("denied", "echo permission denied >&2; exit 126")}, WithFatalExitCodes(126))

	_, err := rn.Execute(context.Background(), "denied", "", "")
	var exitErr *ToolExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 126, exitErr.ExitCode)
	assert.Contains(t, exitErr.Stderr, "permission denied")
}

func TestExecuteTimeout(t *testing.T) {
	requireShell(t)
	rn, _ := newTestRunner(t, []Registration{shellTool("slow", "echo partial > {output}; exec sleep 5")}, WithTimeout(500*time.Millisecond))
	out := filepath.Join(t.TempDir(), "slow.txt")

	start := time.Now()
	res, err := rn.Execute(context.Background(), "slow", "", out)
	assert.Less(t, time.Since(start), 4*time.Second)

	var timeout *ToolTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Nil(t, res, "partial output is not returned as an artifact")
	assert.Equal(t, out, timeout.PartialOutput)
	assert.Equal(t, 500*time.Millisecond, timeout.Timeout)
	assert.FileExists(t, out, "partial file is left in place")
}

func TestExecuteInputIsNotInterpretedByShell(t *testing.T) {
	echo, err := exec.LookPath("echo")
	if err != nil {
		t.Skip("echo not available")
	}
	marker := filepath.Join(t.TempDir(), "pwned")
	reg := Registration{Name: "say", CommandTemplate: echo + " {input}", InputMode: InputTarget, OutputMode: OutputText}
	rn, _ := newTestRunner(t, []Registration{reg})

	input := "hello; touch " + marker
	res, err := rn.Execute(context.Background(), "say", input, "")
	require.NoError(t, err)
	assert.Equal(t, input+"\n", res.Stdout)
	assert.NoFileExists(t, marker)
}

func TestFindingsUsesDetectedParser(t *testing.T) {
	cp, err := exec.LookPath("cp")
	if err != nil {
		t.Skip("cp not available")
	}
	src := filepath.Join(t.TempDir(), "scan.xml")
	require.NoError(t, os.WriteFile(src, []byte(`<?xml version="1.0"?>
<nmaprun><host><address addr="10.1.1.1" addrtype="ipv4"/><ports>
<port protocol="tcp" portid="443"><state state="open"/><service name="https"/></port>
</ports></host></nmaprun>`), 0o644))

	reg := Registration{Name: "fetch", CommandTemplate: cp + " {input} {output}", InputMode: InputFile, OutputMode: OutputXML}
	rn, _ := newTestRunner(t, []Registration{reg})

	res, err := rn.Execute(context.Background(), "fetch", src, "")
	require.NoError(t, err)
	findings, err := rn.Findings(res)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "nmap", findings[0].SourceType)
	assert.Equal(t, 443, findings[0].Port)
}

func TestFindingsFromOutputDirectory(t *testing.T) {
	requireShell(t)
	reg := shellTool("dirtool", "mkdir -p {output} && echo '[+] injectable parameter id' > {output}/log")
	reg.OutputMode = OutputDirectory
	rn, _ := newTestRunner(t, []Registration{reg})

	res, err := rn.Execute(context.Background(), "dirtool", "", "")
	require.NoError(t, err)
	require.NotEmpty(t, res.OutputPath)

	findings, err := rn.Findings(res)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "injectable parameter id", findings[0].Title)
}

func TestExecuteHonorsCallerContext(t *testing.T) {
	requireShell(t)
	rn, _ := newTestRunner(t, []Registration{shellTool("slow", "exec sleep 5")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rn.Execute(ctx, "slow", "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
