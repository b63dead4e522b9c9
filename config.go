package xmlidx

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file form of the index settings, used by the command line
// tool and embedders that keep their settings in YAML.
type Config struct {
	Index   IndexConfig   `yaml:"index"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

type IndexConfig struct {
	Path          string        `yaml:"path"`
	CaseSensitive bool          `yaml:"caseSensitive"`
	ReadOnly      bool          `yaml:"readOnly"`
	LockTimeout   time.Duration `yaml:"lockTimeout"`
	MmapSize      int           `yaml:"mmapSize"`
}

// StorageConfig describes the paged node file.
type StorageConfig struct {
	PageFile    string        `yaml:"pageFile"`
	NodeIndex   string        `yaml:"nodeIndex"`
	PageSize    int           `yaml:"pageSize"`
	LockTimeout time.Duration `yaml:"lockTimeout"`
}

type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Verbose bool   `yaml:"verbose"`
}

// LoadConfig reads a YAML config file, if path is not empty, and applies
// XMLIDX_* environment overrides on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Path:          "values.db",
			CaseSensitive: true,
			LockTimeout:   5 * time.Second,
		},
		Storage: StorageConfig{
			PageFile:    "nodes.dom",
			NodeIndex:   "nodes.db",
			PageSize:    4096,
			LockTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("XMLIDX_INDEX_PATH"); v != "" {
		cfg.Index.Path = v
	}
	if v := os.Getenv("XMLIDX_CASE_SENSITIVE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("XMLIDX_CASE_SENSITIVE: %w", err)
		}
		cfg.Index.CaseSensitive = b
	}
	if v := os.Getenv("XMLIDX_PAGE_FILE"); v != "" {
		cfg.Storage.PageFile = v
	}
	if v := os.Getenv("XMLIDX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("XMLIDX_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	return nil
}

// Options returns the value index options described by the config.
func (c *Config) Options() Options {
	return Options{
		Verbose:         c.Logging.Verbose,
		MmapSize:        c.Index.MmapSize,
		CaseInsensitive: !c.Index.CaseSensitive,
		ReadOnly:        c.Index.ReadOnly,
		LockTimeout:     c.Index.LockTimeout,
	}
}
