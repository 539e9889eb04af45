package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the config file looked up in the working directory when
// --config is not given.
const ConfigFileName = "wasmstack.toml"

// Config is the wasmstack.toml configuration. Flags override file values.
type Config struct {
	Analysis AnalysisConfig `toml:"analysis"`
	Store    StoreConfig    `toml:"store"`
	Log      LogConfig      `toml:"log"`

	// Path is the file the config was loaded from, empty for defaults.
	Path string `toml:"-"`
}

// AnalysisConfig configures the analysis pass.
type AnalysisConfig struct {
	Workers int  `toml:"workers"`
	Strict  bool `toml:"strict"`
}

// StoreConfig configures the run database.
type StoreConfig struct {
	Path string `toml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "warn"},
	}
}

// LoadConfig parses a config file. An empty path looks for wasmstack.toml in
// the working directory and falls back to defaults if there is none; an
// explicit path must exist.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = ConfigFileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q in %s", undecoded[0].String(), path)
	}

	if cfg.Analysis.Workers < 0 {
		return nil, fmt.Errorf("%s: analysis.workers must be non-negative", path)
	}
	if _, err := parseLogLevel(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	// Store paths are relative to the config file.
	if cfg.Store.Path != "" && !filepath.IsAbs(cfg.Store.Path) {
		cfg.Store.Path = filepath.Join(filepath.Dir(path), cfg.Store.Path)
	}

	cfg.Path = path
	return cfg, nil
}
