package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir        string      `toml:"DataDir" yaml:"dataDir"`
	Environment    string      `toml:"Environment" yaml:"environment"`
	MetricsAddress string      `toml:"MetricsAddress" yaml:"metricsAddress"`
	Logging        Logging     `toml:"logging" yaml:"logging"`
	Telemetry      Telemetry   `toml:"telemetry" yaml:"telemetry"`
	Query          QueryLimits `toml:"query" yaml:"query"`
	Bootstrap      Bootstrap   `toml:"bootstrap" yaml:"bootstrap"`
}

// Load loads the configuration from the given path. TOML is the default
// format; files ending in .yaml or .yml are decoded as YAML. A missing TOML
// file is created with defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if isYAML(path) {
			return nil, fmt.Errorf("config file %s not found", path)
		}
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	if isYAML(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0])
		}
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Default returns the configuration written for a fresh install. Its
// bootstrap authorities are empty, so a daemon started from it does not
// initialise the ledger until they are filled in.
func Default() *Config {
	cfg := &Config{
		DataDir:        "./ledger-data",
		Environment:    "local",
		MetricsAddress: ":9102",
		Logging:        Logging{Level: "info"},
		Bootstrap: Bootstrap{
			MaxApy:         DefaultMaxApy,
			MaxLeverage:    DefaultMaxLeverage,
			TradingEnabled: true,
			LPEnabled:      true,
		},
	}
	cfg.normalize()
	return cfg
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
