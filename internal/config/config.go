// Package config loads esfilter's tool configuration.
//
// Settings come from, in increasing priority: built-in defaults, a YAML
// config file, and ESFILTER_* environment variables (ESFILTER_BACKEND_URL
// sets backend.url).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "ESFILTER"

// Config holds all tool configuration.
type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Layers  LayersConfig  `mapstructure:"layers"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Search  SearchConfig  `mapstructure:"search"`
}

type BackendConfig struct {
	URL     string        `mapstructure:"url"`
	Gzip    bool          `mapstructure:"gzip"`
	Timeout time.Duration `mapstructure:"timeout"`
	APIKey  string        `mapstructure:"api_key"`
}

type LayersConfig struct {
	// Path is a YAML or CUE layer file.
	Path string `mapstructure:"path"`
}

type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type SearchConfig struct {
	// MaxFeatures is the window used when a command sets no limit. Zero
	// leaves the window unbounded.
	MaxFeatures int `mapstructure:"max_features"`
}

// GetDefaults returns a Config with all default values.
func GetDefaults() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:     "http://localhost:9200",
			Timeout: 30 * time.Second,
		},
		Layers: LayersConfig{
			Path: "layers.yaml",
		},
		Audit: AuditConfig{
			Enabled: true,
			Path:    "esfilter.db",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := GetDefaults()
	v.SetDefault("backend.url", d.Backend.URL)
	v.SetDefault("backend.gzip", d.Backend.Gzip)
	v.SetDefault("backend.timeout", d.Backend.Timeout)
	v.SetDefault("backend.api_key", d.Backend.APIKey)
	v.SetDefault("layers.path", d.Layers.Path)
	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.path", d.Audit.Path)
	v.SetDefault("search.max_features", d.Search.MaxFeatures)
}

// Load reads configuration. A non-empty path names the config file, which
// must exist. Otherwise config.yaml is looked up in the user config
// directory, then the working directory, and defaults apply when neither
// has one.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := GetConfigPath(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must not be negative, got %s", c.Backend.Timeout)
	}
	if c.Search.MaxFeatures < 0 {
		return fmt.Errorf("search.max_features must not be negative, got %d", c.Search.MaxFeatures)
	}
	if c.Audit.Enabled && c.Audit.Path == "" {
		return fmt.Errorf("audit.path is required when audit is enabled")
	}
	return nil
}

// GetConfigPath returns the user config directory for esfilter.
func GetConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "esfilter"), nil
}
