package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/user/secreport/pkg/tools"
)

const backendTimeout = 2 * time.Minute

// Backend converts one HTML file to PDF.
type Backend interface {
	Name() string
	Convert(ctx context.Context, src, dst string) error
}

// Attempt records the outcome of one backend.
type Attempt struct {
	Backend string
	Err     error
}

// NoBackendError is returned when every backend failed or was missing.
type NoBackendError struct {
	Attempts []Attempt
}

func (e *NoBackendError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Backend, a.Err))
	}
	return "no PDF backend succeeded (install wkhtmltopdf, weasyprint or chromium): " + strings.Join(parts, "; ")
}

// CommandBackend runs an external converter. The first executable the
// resolver finds is used.
type CommandBackend struct {
	name        string
	executables []string
	args        func(src, dst string) []string
	resolver    *tools.Resolver
}

func NewCommandBackend(name string, executables []string, args func(src, dst string) []string, resolver *tools.Resolver) *CommandBackend {
	if resolver == nil {
		resolver = tools.DefaultResolver()
	}
	return &CommandBackend{name: name, executables: executables, args: args, resolver: resolver}
}

func (b *CommandBackend) Name() string { return b.name }

func (b *CommandBackend) Convert(ctx context.Context, src, dst string) error {
	exe, err := b.lookup()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, exe, b.args(src, dst)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, lastLine(msg))
		}
		return err
	}
	info, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("no output written: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("empty output written")
	}
	return nil
}

func (b *CommandBackend) lookup() (string, error) {
	var errs []error
	for _, name := range b.executables {
		path, _, err := b.resolver.Resolve(name)
		if err == nil {
			return path, nil
		}
		errs = append(errs, err)
	}
	return "", errors.Join(errs...)
}

// DefaultBackends returns wkhtmltopdf, weasyprint and headless Chromium in
// that order.
func DefaultBackends(resolver *tools.Resolver) []Backend {
	return []Backend{
		NewCommandBackend("wkhtmltopdf", []string{"wkhtmltopdf"}, func(src, dst string) []string {
			return []string{
				"--quiet", "--encoding", "UTF-8", "--page-size", "A4",
				"--print-media-type", "--enable-local-file-access",
				"--footer-center", "Page [page] of [toPage]", "--footer-font-size", "9",
				src, dst,
			}
		}, resolver),
		NewCommandBackend("weasyprint", []string{"weasyprint"}, func(src, dst string) []string {
			return []string{src, dst}
		}, resolver),
		NewCommandBackend("chromium", []string{"chromium", "chromium-browser", "google-chrome", "google-chrome-stable"}, func(src, dst string) []string {
			return []string{
				"--headless", "--disable-gpu", "--no-sandbox", "--no-pdf-header-footer",
				"--print-to-pdf=" + dst, fileURL(src),
			}
		}, resolver),
	}
}

// Converter tries its backends in order and stops at the first success.
type Converter struct {
	backends []Backend
	logger   hclog.Logger
}

func NewConverter(logger hclog.Logger, backends ...Backend) *Converter {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if len(backends) == 0 {
		backends = DefaultBackends(nil)
	}
	return &Converter{backends: backends, logger: logger.Named("pdf")}
}

func (c *Converter) Convert(ctx context.Context, src, dst string) error {
	var attempts []Attempt
	for _, b := range c.backends {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.logger.Debug("trying pdf backend", "backend", b.Name(), "src", src)
		err := b.Convert(ctx, src, dst)
		if err == nil {
			c.logger.Info("pdf generated", "backend", b.Name(), "path", dst)
			return nil
		}
		c.logger.Warn("pdf backend failed", "backend", b.Name(), "error", err)
		attempts = append(attempts, Attempt{Backend: b.Name(), Err: err})
	}
	return &NoBackendError{Attempts: attempts}
}

func fileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
