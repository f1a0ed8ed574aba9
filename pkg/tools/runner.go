package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/user/secreport/pkg/detect"
	"github.com/user/secreport/pkg/engine"
	"github.com/user/secreport/pkg/parsers"
)

const (
	DefaultTimeout   = 5 * time.Minute
	DefaultOutputDir = "outputs"

	// waitDelay bounds how long Wait keeps draining pipes after the
	// process is killed, in case a grandchild still holds them open.
	waitDelay = 5 * time.Second
)

// Result of one tool execution. OutputPath is empty when the tool produced
// no artifact.
type Result struct {
	Tool       string
	OutputPath string
	Stdout     string
	Stderr     string
	ExitCode   int
	Duration   time.Duration
	Command    []string
}

type Runner struct {
	registry  *Registry
	resolver  *Resolver
	detector  *detect.Detector
	outputDir string
	timeout   time.Duration
	fatal     map[int]bool
	logger    hclog.Logger
	now       func() time.Time
}

type RunnerOption func(*Runner)

func WithResolver(r *Resolver) RunnerOption {
	return func(rn *Runner) { rn.resolver = r }
}

func WithDetector(d *detect.Detector) RunnerOption {
	return func(rn *Runner) { rn.detector = d }
}

func WithOutputDir(dir string) RunnerOption {
	return func(rn *Runner) { rn.outputDir = dir }
}

func WithTimeout(d time.Duration) RunnerOption {
	return func(rn *Runner) {
		if d > 0 {
			rn.timeout = d
		}
	}
}

// WithFatalExitCodes lists exit codes that fail the run instead of only
// being logged.
func WithFatalExitCodes(codes ...int) RunnerOption {
	return func(rn *Runner) {
		for _, c := range codes {
			rn.fatal[c] = true
		}
	}
}

func WithLogger(l hclog.Logger) RunnerOption {
	return func(rn *Runner) {
		if l != nil {
			rn.logger = l
		}
	}
}

func NewRunner(registry *Registry, opts ...RunnerOption) *Runner {
	rn := &Runner{
		registry:  registry,
		outputDir: DefaultOutputDir,
		timeout:   DefaultTimeout,
		fatal:     make(map[int]bool),
		logger:    hclog.NewNullLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(rn)
	}
	if rn.resolver == nil {
		rn.resolver = DefaultResolver()
	}
	if rn.detector == nil {
		rn.detector = detect.NewDetector(0, rn.logger)
	}
	rn.logger = rn.logger.Named("runner")
	return rn
}

// Execute runs the registered tool against input. When outputPath is
// empty a unique path under the output directory is used.
func (rn *Runner) Execute(ctx context.Context, name, input, outputPath string) (*Result, error) {
	reg, err := rn.registry.Get(name)
	if err != nil {
		return nil, err
	}
	argv, err := reg.Argv()
	if err != nil {
		return nil, &InvalidRegistrationError{Name: name, Reason: err.Error()}
	}

	exe, attempts, err := rn.resolver.Resolve(argv[0])
	if err != nil {
		rn.logger.Warn("tool executable not available", "tool", name, "executable", argv[0])
		return nil, &ToolNotAvailableError{
			Tool:       name,
			Executable: argv[0],
			Guidance:   InstallGuidance(argv[0]),
			Attempts:   attempts,
		}
	}

	if outputPath == "" {
		outputPath = rn.outputPathFor(reg)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	args, err := reg.Expand(input, outputPath)
	if err != nil {
		return nil, &InvalidRegistrationError{Name: name, Reason: err.Error()}
	}
	res := &Result{Tool: name, Command: append([]string{exe}, args[1:]...)}

	runCtx, cancel := context.WithTimeout(ctx, rn.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, exe, args[1:]...)
	cmd.Stdout = rn.capture(&stdout)
	cmd.Stderr = rn.capture(&stderr)
	cmd.WaitDelay = waitDelay

	rn.logger.Info("running tool", "tool", name, "command", strings.Join(res.Command, " "), "timeout", rn.timeout)
	start := rn.now()
	runErr := cmd.Run()
	res.Duration = time.Since(start)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	if runErr != nil {
		switch {
		case ctx.Err() != nil:
			return nil, fmt.Errorf("tool %q: %w", name, ctx.Err())
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			terr := &ToolTimeoutError{Tool: name, Timeout: rn.timeout}
			if exists(outputPath) {
				terr.PartialOutput = outputPath
			}
			rn.logger.Error("tool timed out", "tool", name, "timeout", rn.timeout, "partial_output", terr.PartialOutput)
			return nil, terr
		}

		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("start tool %q: %w", name, runErr)
		}
		res.ExitCode = exitErr.ExitCode()
		if rn.fatal[res.ExitCode] {
			return nil, &ToolExitError{Tool: name, ExitCode: res.ExitCode, Stderr: tail(res.Stderr, 2048)}
		}
		rn.logger.Warn("tool exited with non-zero status", "tool", name, "exit_code", res.ExitCode)
	}

	if exists(outputPath) {
		res.OutputPath = outputPath
	} else {
		rn.logger.Debug("tool produced no output artifact", "tool", name, "expected", outputPath)
	}
	rn.logger.Info("tool finished", "tool", name, "exit_code", res.ExitCode, "duration", res.Duration, "output", res.OutputPath)
	return res, nil
}

// capture mirrors process output into the debug log.
func (rn *Runner) capture(buf *bytes.Buffer) io.Writer {
	if !rn.logger.IsDebug() {
		return buf
	}
	return io.MultiWriter(buf, rn.logger.StandardWriter(&hclog.StandardLoggerOptions{InferLevels: true}))
}

func (rn *Runner) outputPathFor(reg Registration) string {
	stamp := rn.now().Format("20060102_150405.000000")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return filepath.Join(rn.outputDir, fmt.Sprintf("%s_%s_%s%s", reg.Name, stamp, suffix, reg.OutputMode.Extension()))
}

// Findings turns a run's artifact into findings. Files the detector
// recognizes go through their parser; anything else, including stdout when
// there is no artifact, goes through the generic parser under the tool's
// name.
func (rn *Runner) Findings(res *Result) ([]engine.Finding, error) {
	generic := parsers.NewGenericParser(res.Tool)
	if res.OutputPath == "" {
		return generic.ParseBytes([]byte(res.Stdout)).Findings, nil
	}

	info, err := os.Stat(res.OutputPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return rn.fileFindings(res.OutputPath, generic)
	}

	var all []engine.Finding
	err = filepath.WalkDir(res.OutputPath, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return err
		}
		found, ferr := rn.fileFindings(path, generic)
		if ferr != nil {
			rn.logger.Warn("skipping unreadable artifact", "path", path, "error", ferr)
			return nil
		}
		all = append(all, found...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if all == nil {
		all = []engine.Finding{}
	}
	return all, nil
}

func (rn *Runner) fileFindings(path string, generic *parsers.GenericParser) ([]engine.Finding, error) {
	if det := rn.detector.Detect(path); det.Type != "" {
		parsed, err := parsers.ParseWithWarnings(det.Type, path, rn.logger)
		if err == nil {
			return parsed.Findings, nil
		}
		rn.logger.Warn("detected parser failed, using generic parser", "path", path, "type", det.Type, "error", err)
	}
	return generic.Parse(path)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
