package tools

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by a Resolver when no strategy locates an executable.
var ErrNotFound = errors.New("executable not found")

type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("tool %q is not registered", e.Name)
}

type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered (use overwrite to replace it)", e.Name)
}

type InvalidRegistrationError struct {
	Name   string
	Reason string
}

func (e *InvalidRegistrationError) Error() string {
	return fmt.Sprintf("invalid registration for %q: %s", e.Name, e.Reason)
}

// ToolNotAvailableError means the executable behind a registration could
// not be resolved on this host. No process was started.
type ToolNotAvailableError struct {
	Tool       string
	Executable string
	Guidance   string
	Attempts   []Resolution
}

func (e *ToolNotAvailableError) Error() string {
	var tried []string
	for _, a := range e.Attempts {
		tried = append(tried, a.Strategy)
	}
	return fmt.Sprintf("tool %q: executable %q not found (tried: %s)\n%s",
		e.Tool, e.Executable, strings.Join(tried, ", "), e.Guidance)
}

func (e *ToolNotAvailableError) Unwrap() error { return ErrNotFound }

// ToolTimeoutError means the process was killed at the deadline. Any file
// it wrote is left at PartialOutput but is not a usable artifact.
type ToolTimeoutError struct {
	Tool          string
	Timeout       time.Duration
	PartialOutput string
}

func (e *ToolTimeoutError) Error() string {
	msg := fmt.Sprintf("tool %q timed out after %s", e.Tool, e.Timeout)
	if e.PartialOutput != "" {
		msg += fmt.Sprintf(" (partial output left at %s)", e.PartialOutput)
	}
	return msg
}

// ToolExitError is returned only for exit codes configured as fatal.
type ToolExitError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ToolExitError) Error() string {
	msg := fmt.Sprintf("tool %q exited with fatal code %d", e.Tool, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}
