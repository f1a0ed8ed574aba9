package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/user/secreport/pkg/ai"
	"github.com/user/secreport/pkg/config"
	"github.com/user/secreport/pkg/detect"
	"github.com/user/secreport/pkg/engine"
	"github.com/user/secreport/pkg/logging"
	"github.com/user/secreport/pkg/parsers"
	"github.com/user/secreport/pkg/tools"
)

var rootCmd = &cobra.Command{
	Use:   "secreport",
	Short: "Normalize security scanner output into reports",
	Long: `secreport ingests Nmap, Burp Suite and Nuclei output, runs registered
external tools, and turns the normalized findings into enriched reports.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	DebugMode  bool
	configPath string

	cfg    *config.Config
	logger hclog.Logger
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	cobra.CheckErr(err)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&DebugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.secreport/config.yaml)")
}

func setup(cmd *cobra.Command, _ []string) error {
	if configPath != "" {
		os.Setenv(config.EnvConfigPath, configPath)
	}
	loaded, err := config.LoadConfig()
	if err != nil {
		return err
	}
	cfg = loaded
	logger = logging.New(cfg, "secreport", DebugMode)
	logger.Debug("config loaded", "command", cmd.Name())
	return nil
}

func newDetector() *detect.Detector {
	return detect.NewDetector(cfg.Detection.ProbeBytes, logger)
}

func newRegistry() (*tools.Registry, error) {
	return tools.NewRegistry(tools.NewStore(cfg.Tools.RegistryPath), logger)
}

func newRunner(registry *tools.Registry) *tools.Runner {
	return tools.NewRunner(registry,
		tools.WithOutputDir(cfg.Tools.OutputDir),
		tools.WithTimeout(cfg.Tools.Timeout),
		tools.WithFatalExitCodes(cfg.Tools.FatalExitCodes...),
		tools.WithDetector(newDetector()),
		tools.WithLogger(logger),
	)
}

// newEnricher uses the configured provider unless noAI is set or no key is
// available; the rule-based fallback is used in those cases.
func newEnricher(ctx context.Context, noAI bool) (*ai.Enricher, error) {
	opts := []ai.EnricherOption{ai.WithLogger(logger)}

	if cfg.RemediationTemplates != "" {
		re, err := ai.NewRemediationEngine(logger)
		if err != nil {
			return nil, err
		}
		if err := re.LoadTemplates(cfg.RemediationTemplates); err != nil {
			return nil, fmt.Errorf("remediation templates: %w", err)
		}
		opts = append(opts, ai.WithRemediationEngine(re))
	}

	if !noAI && cfg.SelectedProvider != "" {
		p, err := ai.NewProvider(ctx, cfg.SelectedProvider, cfg.GetAPIKey(cfg.SelectedProvider), cfg.SelectedModel, logger)
		if err != nil {
			logger.Warn("ai provider unavailable, using rule-based enrichment", "provider", cfg.SelectedProvider, "error", err)
		} else {
			opts = append(opts, ai.WithProvider(p))
		}
	}
	return ai.NewEnricher(opts...)
}

// resolveType returns the parser type for path. "auto" or "" detects it.
func resolveType(path, typ string) (parsers.ScanType, error) {
	if typ == "" || strings.EqualFold(typ, "auto") {
		res := newDetector().Detect(path)
		t, err := detect.Require(res)
		if err != nil {
			return "", fmt.Errorf("%w (pass --type %s)", err, strings.Join(scanTypeNames(), "|"))
		}
		logger.Info("detected scan type", "path", path, "type", t, "confidence", res.Confidence)
		return t, nil
	}
	return parsers.ParseScanType(typ)
}

func scanTypeNames() []string {
	names := make([]string, 0, len(parsers.ScanTypes))
	for _, t := range parsers.ScanTypes {
		names = append(names, string(t))
	}
	return names
}

func parseInput(path, typ string) ([]engine.Finding, error) {
	t, err := resolveType(path, typ)
	if err != nil {
		return nil, err
	}
	res, err := parsers.ParseWithWarnings(t, path, logger)
	if err != nil {
		return nil, err
	}
	if len(res.Warnings) > 0 {
		logger.Warn("skipped malformed records", "path", path, "count", len(res.Warnings))
	}
	return res.Findings, nil
}

// writeRecords stores findings as JSON lines for .jsonl paths and as a
// metadata envelope otherwise.
func writeRecords(path string, findings []engine.Finding, meta map[string]string) error {
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		var sb strings.Builder
		if err := engine.WriteFindingsJSONL(&sb, findings); err != nil {
			return err
		}
		return engine.WriteFileAtomic(path, []byte(sb.String()), 0o644)
	}
	return engine.WriteEnvelope(path, findings, meta)
}

// defaultOutput derives <export dir>/<input stem><suffix>.
func defaultOutput(input, suffix string) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(cfg.Export.OutputDir, stem+suffix)
}
