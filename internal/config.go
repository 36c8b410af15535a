package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds optional CLI defaults loaded from a YAML file. Flags given
// on the command line always win over config values.
type Config struct {
	CSVFormat   string   `yaml:"csv_format"`
	Compression string   `yaml:"compression"`
	Columns     []string `yaml:"columns"`
	OutputDir   string   `yaml:"output_dir"`
}

// DefaultConfigPath returns the conventional config location,
// $HILT_CONFIG when set, otherwise ~/.config/hilt/config.yaml.
func DefaultConfigPath() string {
	if env := os.Getenv("HILT_CONFIG"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "hilt", "config.yaml")
}

// LoadConfig reads and validates a config file. An explicit path must
// exist; a missing file at the default location yields an empty config.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = DefaultConfigPath()
	}
	if path == "" {
		return &Config{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, &ConfigError{Setting: "config file", Reason: fmt.Sprintf("cannot read %s: %v", path, err)}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Setting: "config file", Reason: fmt.Sprintf("cannot parse %s: %v", path, err)}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if explicit {
		LogInfo("using config %s", path)
	} else {
		LogDebug("using config %s", path)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.CSVFormat {
	case "", "readable", "detailed", "flat":
	default:
		return &ConfigError{Setting: "csv_format", Invalid: []string{c.CSVFormat}}
	}
	switch c.Compression {
	case "", "snappy", "gzip", "none":
	default:
		return &ConfigError{Setting: "compression", Invalid: []string{c.Compression}}
	}
	if len(c.Columns) > 0 {
		if err := ValidateColumns(c.Columns); err != nil {
			return err
		}
	}
	return nil
}
