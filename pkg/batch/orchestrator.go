// Package batch turns every recognized scan file in a directory into a
// report.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/user/secreport/pkg/detect"
	"github.com/user/secreport/pkg/engine"
	"github.com/user/secreport/pkg/export"
	"github.com/user/secreport/pkg/parsers"
)

// Enricher adds summaries, severities and remediation to findings.
type Enricher interface {
	Enrich(ctx context.Context, findings []engine.Finding) ([]engine.Finding, error)
}

// ExporterFactory builds an exporter for a format.
type ExporterFactory func(format export.Format) (*export.Exporter, error)

// Failure is a file that could not be turned into a report.
type Failure struct {
	Path string
	Err  error
}

type Report struct {
	Artifacts []string
	Failures  []Failure
}

type Orchestrator struct {
	detector  *detect.Detector
	exporters ExporterFactory
	enricher  Enricher
	outputDir string
	logger    hclog.Logger
}

type Option func(*Orchestrator)

func WithEnricher(e Enricher) Option {
	return func(o *Orchestrator) { o.enricher = e }
}

func WithExporterFactory(f ExporterFactory) Option {
	return func(o *Orchestrator) { o.exporters = f }
}

func WithLogger(l hclog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func NewOrchestrator(detector *detect.Detector, outputDir string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		detector:  detector,
		outputDir: outputDir,
		logger:    hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.Named("batch")
	if o.detector == nil {
		o.detector = detect.NewDetector(0, o.logger)
	}
	if o.exporters == nil {
		logger := o.logger
		o.exporters = func(f export.Format) (*export.Exporter, error) {
			return export.NewExporter(f, export.WithLogger(logger))
		}
	}
	return o
}

// ProcessDirectory returns the report paths written for dir. Files that
// fail are logged and skipped.
func (o *Orchestrator) ProcessDirectory(ctx context.Context, dir string, format export.Format, recursive bool) ([]string, error) {
	rep, err := o.Run(ctx, dir, format, recursive)
	if err != nil {
		return nil, err
	}
	return rep.Artifacts, nil
}

// Run is ProcessDirectory with per-file failures reported.
func (o *Orchestrator) Run(ctx context.Context, dir string, format export.Format, recursive bool) (*Report, error) {
	exporter, err := o.exporters(format)
	if err != nil {
		return nil, err
	}
	files, err := o.detector.FindScanFiles(dir, recursive)
	if err != nil {
		return nil, fmt.Errorf("scan directory %s: %w", dir, err)
	}
	if len(files) == 0 {
		o.logger.Info("no scan files found", "dir", dir)
		return &Report{Artifacts: []string{}}, nil
	}
	o.logger.Info("found scan files", "dir", dir, "count", len(files))
	return o.process(ctx, files, exporter)
}

// ProcessFiles detects each file's type and reports on it. Files whose
// type cannot be detected are skipped.
func (o *Orchestrator) ProcessFiles(ctx context.Context, paths []string, format export.Format) (*Report, error) {
	exporter, err := o.exporters(format)
	if err != nil {
		return nil, err
	}
	var (
		files    []detect.ScanFile
		failures []Failure
	)
	for _, p := range paths {
		res := o.detector.Detect(p)
		t, err := detect.Require(res)
		if err != nil {
			o.logger.Warn("type required, skipping file", "path", p)
			failures = append(failures, Failure{Path: p, Err: err})
			continue
		}
		files = append(files, detect.ScanFile{Path: p, Type: t, Confidence: res.Confidence})
	}
	rep, err := o.process(ctx, files, exporter)
	if err != nil {
		return nil, err
	}
	rep.Failures = append(failures, rep.Failures...)
	return rep, nil
}

func (o *Orchestrator) process(ctx context.Context, files []detect.ScanFile, exporter *export.Exporter) (*Report, error) {
	rep := &Report{Artifacts: []string{}}
	used := make(map[string]bool)
	for _, sf := range files {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		path, err := o.processFile(ctx, sf, exporter, used)
		if err != nil {
			o.logger.Error("failed to process scan file", "path", sf.Path, "type", sf.Type, "error", err)
			rep.Failures = append(rep.Failures, Failure{Path: sf.Path, Err: err})
			continue
		}
		rep.Artifacts = append(rep.Artifacts, path)
	}
	return rep, nil
}

func (o *Orchestrator) processFile(ctx context.Context, sf detect.ScanFile, exporter *export.Exporter, used map[string]bool) (string, error) {
	o.logger.Info("processing scan file", "path", sf.Path, "type", sf.Type, "confidence", sf.Confidence)
	parsed, err := parsers.ParseWithWarnings(sf.Type, sf.Path, o.logger)
	if err != nil {
		return "", err
	}
	findings := parsed.Findings

	if o.enricher != nil {
		enriched, err := o.enricher.Enrich(ctx, findings)
		if err != nil {
			o.logger.Warn("enrichment failed, exporting parsed findings", "path", sf.Path, "error", err)
		} else {
			findings = enriched
		}
	}

	out := o.reportPath(sf, exporter.Format(), used)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", err
	}
	return exporter.ExportContext(ctx, findings, out)
}

// reportPath names the report <stem>_<type>_report<ext>, adding a counter
// when two inputs share a stem.
func (o *Orchestrator) reportPath(sf detect.ScanFile, format export.Format, used map[string]bool) string {
	stem := strings.TrimSuffix(filepath.Base(sf.Path), filepath.Ext(sf.Path))
	base := fmt.Sprintf("%s_%s_report", stem, sf.Type)
	out := filepath.Join(o.outputDir, base+format.Extension())
	for i := 2; used[out]; i++ {
		out = filepath.Join(o.outputDir, fmt.Sprintf("%s_%d%s", base, i, format.Extension()))
	}
	used[out] = true
	return out
}
