package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const dirName = ".sentinel-adk"

type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
}

// ScanConfig holds the defaults applied to every scan.
type ScanConfig struct {
	ToolTimeout         time.Duration `yaml:"tool_timeout"`
	Analyzers           []string      `yaml:"analyzers,omitempty"`
	StorePath           string        `yaml:"store_path"`
	MetricsAddr         string        `yaml:"metrics_addr,omitempty"`
	OTLPEndpoint        string        `yaml:"otlp_endpoint,omitempty"`
	OTLPInsecure        bool          `yaml:"otlp_insecure,omitempty"`
	AllowPrivateTargets bool          `yaml:"allow_private_targets"`
	PortScan            bool          `yaml:"port_scan"`
	Nikto               bool          `yaml:"nikto"`
	RemediationDir      string        `yaml:"remediation_dir,omitempty"`
	CloneRoot           string        `yaml:"clone_root,omitempty"`
}

type Config struct {
	SelectedProvider string                    `yaml:"selected_provider"`
	SelectedModel    string                    `yaml:"selected_model"`
	Providers        map[string]ProviderConfig `yaml:"providers"`
	Scan             ScanConfig                `yaml:"scan"`
}

// Dir returns ~/.sentinel-adk, creating it if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

func GetConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Default returns the configuration used when no file exists. Paths are
// relative to dir.
func Default(dir string) *Config {
	return &Config{
		SelectedProvider: "gemini",
		SelectedModel:    "gemini-1.5-flash",
		Providers:        make(map[string]ProviderConfig),
		Scan: ScanConfig{
			ToolTimeout: 5 * time.Minute,
			StorePath:   filepath.Join(dir, "sentinel.db"),
			PortScan:    true,
			Nikto:       true,
		},
	}
}

// LoadConfigFrom reads path, filling unset scan fields from Default. A
// missing file yields the defaults.
func LoadConfigFrom(path string) (*Config, error) {
	def := Default(filepath.Dir(path))

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return def, nil
	}
	if err != nil {
		return nil, err
	}

	cfg := *def
	cfg.Providers = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	if cfg.Scan.ToolTimeout <= 0 {
		cfg.Scan.ToolTimeout = def.Scan.ToolTimeout
	}
	if cfg.Scan.StorePath == "" {
		cfg.Scan.StorePath = def.Scan.StorePath
	}
	return &cfg, nil
}

// SaveConfigTo writes cfg with 0600 permissions since it holds API keys.
func SaveConfigTo(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) SetAPIKey(provider, key string) {
	p := c.Providers[provider]
	p.APIKey = key
	c.Providers[provider] = p
}

// GetAPIKey returns the stored key for provider, falling back to
// SENTINEL_<PROVIDER>_API_KEY and, for gemini, GOOGLE_API_KEY.
func (c *Config) GetAPIKey(provider string) string {
	if k := c.Providers[provider].APIKey; k != "" {
		return k
	}
	if k := os.Getenv(envKey(provider)); k != "" {
		return k
	}
	if provider == "gemini" {
		return os.Getenv("GOOGLE_API_KEY")
	}
	return ""
}

var envReplacer = strings.NewReplacer("-", "_", ".", "_")

func envKey(provider string) string {
	return "SENTINEL_" + envReplacer.Replace(strings.ToUpper(provider)) + "_API_KEY"
}
