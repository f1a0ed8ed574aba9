package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigPath overrides the config file location.
	EnvConfigPath = "SECREPORT_CONFIG"

	DefaultTimeout    = 5 * time.Minute
	DefaultProbeBytes = 8 * 1024
)

type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
}

type LoggerConfig struct {
	Level       string `yaml:"level"`
	JSONFormat  bool   `yaml:"json_format"`
	DisableTime bool   `yaml:"disable_time"`
}

type ToolsConfig struct {
	RegistryPath   string        `yaml:"registry_path"`
	OutputDir      string        `yaml:"output_dir"`
	Timeout        time.Duration `yaml:"timeout"`
	FatalExitCodes []int         `yaml:"fatal_exit_codes"`
}

type DetectionConfig struct {
	ProbeBytes int `yaml:"probe_bytes"`
}

type ExportConfig struct {
	OutputDir     string `yaml:"output_dir"`
	DefaultFormat string `yaml:"default_format"`
}

type Config struct {
	SelectedProvider     string                    `yaml:"selected_provider"`
	SelectedModel        string                    `yaml:"selected_model"`
	Providers            map[string]ProviderConfig `yaml:"providers"`
	Logger               LoggerConfig              `yaml:"logger"`
	Tools                ToolsConfig               `yaml:"tools"`
	Detection            DetectionConfig           `yaml:"detection"`
	Export               ExportConfig              `yaml:"export"`
	RemediationTemplates string                    `yaml:"remediation_templates"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	home := HomeDir()
	return &Config{
		Providers: make(map[string]ProviderConfig),
		Logger:    LoggerConfig{Level: "info", DisableTime: true},
		Tools: ToolsConfig{
			RegistryPath: filepath.Join(home, "registry.json"),
			OutputDir:    "outputs",
			Timeout:      DefaultTimeout,
		},
		Detection: DetectionConfig{ProbeBytes: DefaultProbeBytes},
		Export:    ExportConfig{OutputDir: "reports", DefaultFormat: "html"},
	}
}

// HomeDir returns ~/.secreport, or a relative fallback when the home
// directory cannot be determined.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".secreport"
	}
	return filepath.Join(home, ".secreport")
}

func GetConfigPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	configDir := HomeDir()
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

func LoadConfig() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path. A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	if c.Logger.Level == "" {
		c.Logger.Level = def.Logger.Level
	}
	if c.Tools.RegistryPath == "" {
		c.Tools.RegistryPath = def.Tools.RegistryPath
	}
	if c.Tools.OutputDir == "" {
		c.Tools.OutputDir = def.Tools.OutputDir
	}
	if c.Tools.Timeout == 0 {
		c.Tools.Timeout = def.Tools.Timeout
	}
	if c.Detection.ProbeBytes == 0 {
		c.Detection.ProbeBytes = def.Detection.ProbeBytes
	}
	if c.Export.OutputDir == "" {
		c.Export.OutputDir = def.Export.OutputDir
	}
	if c.Export.DefaultFormat == "" {
		c.Export.DefaultFormat = def.Export.DefaultFormat
	}
}

// Validate checks that configured values are usable.
func (c *Config) Validate() error {
	if c.Tools.Timeout < 0 {
		return fmt.Errorf("tools.timeout must be positive, got %s", c.Tools.Timeout)
	}
	if c.Detection.ProbeBytes < 0 {
		return fmt.Errorf("detection.probe_bytes must be positive, got %d", c.Detection.ProbeBytes)
	}
	for _, code := range c.Tools.FatalExitCodes {
		if code <= 0 || code > 255 {
			return fmt.Errorf("tools.fatal_exit_codes: %d is not a valid non-zero exit code", code)
		}
	}
	switch strings.ToUpper(c.Logger.Level) {
	case "", "TRACE", "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("logger.level: unsupported level %q", c.Logger.Level)
	}
	return nil
}

func SaveConfig(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

func SaveTo(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	// 0600 permissions for security (api keys)
	return os.WriteFile(path, data, 0600)
}

func (c *Config) SetAPIKey(provider, key string) {
	p := c.Providers[provider]
	p.APIKey = key
	c.Providers[provider] = p
}

// GetAPIKey returns the stored key, falling back to the provider's
// conventional environment variable.
func (c *Config) GetAPIKey(provider string) string {
	if key := c.Providers[provider].APIKey; key != "" {
		return key
	}
	switch provider {
	case "gemini":
		return os.Getenv("GOOGLE_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}
