package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/user/sentinel-adk/pkg/adk"
	"github.com/user/sentinel-adk/pkg/config"
	"github.com/user/sentinel-adk/pkg/engine"
	"github.com/user/sentinel-adk/pkg/logging"
	"github.com/user/sentinel-adk/pkg/report"
	"github.com/user/sentinel-adk/pkg/store"
)

const memoryStore = ":memory:"

func configPath() (string, error) {
	if p := viper.GetString("config"); p != "" {
		return p, nil
	}
	return config.GetConfigPath()
}

// loadConfigFile reads the config file as stored, without overrides.
func loadConfigFile() (*config.Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfigFrom(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func saveConfigFile(cfg *config.Config) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	return config.SaveConfigTo(path, cfg)
}

// loadConfig reads the config file and applies flag and SENTINEL_*
// environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := loadConfigFile()
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("store"); v != "" {
		cfg.Scan.StorePath = v
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Scan.StorePath == memoryStore {
		return store.NewMemoryStore(), nil
	}
	return store.OpenSQLite(ctx, cfg.Scan.StorePath)
}

// newProvider builds the LLM provider for name, defaulting to the selected
// one. It returns nil without error when no key is configured, which leaves
// reasoning to the heuristics.
func newProvider(ctx context.Context, cfg *config.Config, name string) (adk.LLMProvider, string, error) {
	if name == "" {
		name = cfg.SelectedProvider
	}
	if name == "" || name == "none" {
		return nil, "", nil
	}
	key := cfg.GetAPIKey(name)
	if key == "" {
		logging.L().Infow("no API key configured, using heuristics only", "provider", name)
		return nil, "", nil
	}
	model := ""
	if name == cfg.SelectedProvider {
		model = cfg.SelectedModel
	}
	p, err := adk.NewProvider(ctx, name, key, model)
	if err != nil {
		return nil, "", err
	}
	return p, name, nil
}

func newReportBuilder(cfg *config.Config) (*report.Builder, error) {
	rem, err := engine.NewRemediationCatalog()
	if err != nil {
		return nil, err
	}
	if dir := cfg.Scan.RemediationDir; dir != "" {
		if err := rem.LoadTemplates(dir); err != nil {
			return nil, fmt.Errorf("load remediation templates: %w", err)
		}
	}
	comp, err := engine.NewComplianceCatalog()
	if err != nil {
		return nil, err
	}
	return report.NewBuilder(rem, comp), nil
}

// cloneRoot is where working copies are staged.
func cloneRoot(cfg *config.Config) string {
	if cfg.Scan.CloneRoot != "" {
		return cfg.Scan.CloneRoot
	}
	return filepath.Join(os.TempDir(), "sentinel-adk")
}
