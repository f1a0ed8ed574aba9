// Package export renders finding sets as report files.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/user/secreport/pkg/engine"
)

type Format string

const (
	FormatJSON     Format = "json"
	FormatJSONL    Format = "jsonl"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
)

var Formats = []Format{FormatJSON, FormatJSONL, FormatCSV, FormatMarkdown, FormatHTML, FormatPDF}

var ErrUnknownFormat = errors.New("unknown export format")

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatFromPath infers the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

func (f Format) Extension() string {
	if f == FormatMarkdown {
		return ".md"
	}
	return "." + string(f)
}

// Metadata is printed in report headers.
type Metadata struct {
	Title        string
	Organization string
	Generated    time.Time
}

func (m Metadata) withDefaults() Metadata {
	if m.Title == "" {
		m.Title = "Security Assessment Report"
	}
	if m.Generated.IsZero() {
		m.Generated = time.Now()
	}
	return m
}

func (m Metadata) fields() map[string]string {
	out := map[string]string{
		"title":     m.Title,
		"generated": m.Generated.UTC().Format(time.RFC3339),
	}
	if m.Organization != "" {
		out["organization"] = m.Organization
	}
	return out
}

// Formatter writes a finding set in one text format.
type Formatter interface {
	Format(w io.Writer, findings []engine.Finding, meta Metadata) error
}

type Exporter struct {
	format    Format
	meta      Metadata
	converter *Converter
	logger    hclog.Logger
}

type Option func(*Exporter)

func WithMetadata(m Metadata) Option {
	return func(e *Exporter) { e.meta = m }
}

// WithConverter sets the HTML to PDF converter used for FormatPDF.
func WithConverter(c *Converter) Option {
	return func(e *Exporter) { e.converter = c }
}

func WithLogger(l hclog.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewExporter(format Format, opts ...Option) (*Exporter, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	e := &Exporter{format: format, logger: hclog.NewNullLogger()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("export")
	if e.format == FormatPDF && e.converter == nil {
		e.converter = NewConverter(e.logger)
	}
	return e, nil
}

func (e *Exporter) Format() Format { return e.format }

// Export writes findings to outputPath and returns the path written.
func (e *Exporter) Export(findings []engine.Finding, outputPath string) (string, error) {
	return e.ExportContext(context.Background(), findings, outputPath)
}

func (e *Exporter) ExportContext(ctx context.Context, findings []engine.Finding, outputPath string) (string, error) {
	if findings == nil {
		findings = []engine.Finding{}
	}
	meta := e.meta.withDefaults()

	switch e.format {
	case FormatJSON:
		if err := engine.WriteEnvelope(outputPath, findings, meta.fields()); err != nil {
			return "", err
		}
	case FormatPDF:
		if err := e.exportPDF(ctx, findings, meta, outputPath); err != nil {
			return "", err
		}
	default:
		var buf bytes.Buffer
		if err := e.formatter().Format(&buf, findings, meta); err != nil {
			return "", fmt.Errorf("format %s: %w", e.format, err)
		}
		if err := engine.WriteFileAtomic(outputPath, buf.Bytes(), 0o644); err != nil {
			return "", err
		}
	}

	e.logger.Info("report exported", "format", e.format, "path", outputPath, "findings", len(findings))
	return outputPath, nil
}

func (e *Exporter) formatter() Formatter {
	switch e.format {
	case FormatJSONL:
		return jsonlFormatter{}
	case FormatCSV:
		return csvFormatter{}
	case FormatMarkdown:
		return markdownFormatter{}
	default:
		return htmlFormatter{}
	}
}

func (e *Exporter) exportPDF(ctx context.Context, findings []engine.Finding, meta Metadata, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".report-*.html")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := (htmlFormatter{}).Format(tmp, findings, meta); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return e.converter.Convert(ctx, tmp.Name(), outputPath)
}

type jsonlFormatter struct{}

func (jsonlFormatter) Format(w io.Writer, findings []engine.Finding, _ Metadata) error {
	return engine.WriteFindingsJSONL(w, findings)
}
