package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/user/secreport/pkg/config"
)

// EnvLogLevel takes precedence over the configured level.
const EnvLogLevel = "SECREPORT_LOG_LEVEL"

// New builds the application logger from the logger section of cfg.
// Output goes to stderr so command output on stdout stays machine readable.
func New(cfg *config.Config, name string, debug bool) hclog.Logger {
	return NewWithOutput(cfg, name, debug, os.Stderr)
}

func NewWithOutput(cfg *config.Config, name string, debug bool, out io.Writer) hclog.Logger {
	if cfg == nil {
		cfg = config.Default()
	}
	level := determineLogLevel(cfg)
	if debug && level > hclog.Debug {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:        name,
		DisableTime: cfg.Logger.DisableTime,
		JSONFormat:  cfg.Logger.JSONFormat,
		Output:      out,
		Level:       level,
	})
}

// OrNull returns l, or a logger that discards everything when l is nil.
func OrNull(l hclog.Logger) hclog.Logger {
	if l == nil {
		return hclog.NewNullLogger()
	}
	return l
}

func determineLogLevel(cfg *config.Config) hclog.Level {
	if env := os.Getenv(EnvLogLevel); env != "" {
		return parseLogLevel(env)
	}
	return parseLogLevel(cfg.Logger.Level)
}

func parseLogLevel(s string) hclog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return hclog.Trace
	case "DEBUG":
		return hclog.Debug
	case "", "INFO":
		return hclog.Info
	case "WARN":
		return hclog.Warn
	case "ERROR":
		return hclog.Error
	default:
		hclog.New(&hclog.LoggerOptions{
			Level:       hclog.Warn,
			DisableTime: true,
			Output:      os.Stderr,
		}).Warn("unrecognized log level, defaulting to INFO", "provided", s)
		return hclog.Info
	}
}
