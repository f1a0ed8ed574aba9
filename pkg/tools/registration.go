package tools

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/shlex"
)

const (
	PlaceholderInput  = "{input}"
	PlaceholderOutput = "{output}"
)

type InputMode string

const (
	InputTarget InputMode = "target"
	InputFile   InputMode = "file"
	InputURL    InputMode = "url"
	InputNone   InputMode = "none"
)

type OutputMode string

const (
	OutputXML       OutputMode = "xml"
	OutputJSON      OutputMode = "json"
	OutputJSONL     OutputMode = "jsonl"
	OutputText      OutputMode = "text"
	OutputFile      OutputMode = "file"
	OutputDirectory OutputMode = "directory"
)

func (m InputMode) valid() bool {
	switch m {
	case InputTarget, InputFile, InputURL, InputNone:
		return true
	}
	return false
}

func (m OutputMode) valid() bool {
	switch m {
	case OutputXML, OutputJSON, OutputJSONL, OutputText, OutputFile, OutputDirectory:
		return true
	}
	return false
}

// Extension is used when synthesizing an output path.
func (m OutputMode) Extension() string {
	switch m {
	case OutputXML:
		return ".xml"
	case OutputJSON:
		return ".json"
	case OutputJSONL:
		return ".jsonl"
	case OutputDirectory:
		return ""
	default:
		return ".txt"
	}
}

// Registration describes how to invoke one external tool.
type Registration struct {
	Name            string     `json:"name"`
	CommandTemplate string     `json:"command_template"`
	Description     string     `json:"description"`
	InputMode       InputMode  `json:"input_mode"`
	OutputMode      OutputMode `json:"output_mode"`
	RegisteredAt    time.Time  `json:"registered_at"`
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Validate checks the record before it is stored. Empty modes default to
// file input and file output.
func (r *Registration) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return &InvalidRegistrationError{Name: r.Name, Reason: fmt.Sprintf(format, args...)}
	}

	if !namePattern.MatchString(r.Name) {
		return invalid("name must match %s", namePattern)
	}
	if r.InputMode == "" {
		r.InputMode = InputFile
	}
	if r.OutputMode == "" {
		r.OutputMode = OutputFile
	}
	if !r.InputMode.valid() {
		return invalid("unknown input mode %q", r.InputMode)
	}
	if !r.OutputMode.valid() {
		return invalid("unknown output mode %q", r.OutputMode)
	}
	if strings.TrimSpace(r.CommandTemplate) == "" {
		return invalid("command template is empty")
	}
	argv, err := r.Argv()
	if err != nil {
		return invalid("%v", err)
	}
	if strings.Contains(argv[0], "{") {
		return invalid("executable %q must not be a placeholder", argv[0])
	}
	if r.InputMode != InputNone && !strings.Contains(r.CommandTemplate, PlaceholderInput) {
		return invalid("command template must contain %s", PlaceholderInput)
	}
	return nil
}

// Argv splits the template into words using shell quoting rules. No shell
// is involved when the command runs.
func (r Registration) Argv() ([]string, error) {
	argv, err := shlex.Split(r.CommandTemplate)
	if err != nil {
		return nil, fmt.Errorf("split command template: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("command template has no words")
	}
	return argv, nil
}

// Expand substitutes placeholders in each word. A value containing spaces
// or shell metacharacters stays a single argument.
func (r Registration) Expand(input, output string) ([]string, error) {
	argv, err := r.Argv()
	if err != nil {
		return nil, err
	}
	repl := strings.NewReplacer(PlaceholderInput, input, PlaceholderOutput, output)
	out := make([]string, len(argv))
	for i, word := range argv {
		out[i] = repl.Replace(word)
	}
	return out, nil
}

func (r Registration) UsesOutput() bool {
	return strings.Contains(r.CommandTemplate, PlaceholderOutput)
}
