package mapview

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config configures the map service.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Poll    PollConfig    `yaml:"poll"`
	History HistoryConfig `yaml:"history"`
}

// SourceConfig selects where rows come from. Exactly one of URL and File
// must be set.
type SourceConfig struct {
	HTTPConfig `yaml:",inline"`
	// File reads rows from a local JSON file instead of HTTP.
	File string `yaml:"file"`
	// Watch triggers a refresh when File changes. Default: true.
	Watch *bool `yaml:"watch"`
	// Retries for transport failures within one poll. Default: 0.
	Retries int `yaml:"retries"`
	// RetryBackoff is the first retry delay, doubled per attempt. Default: 500ms.
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// PollConfig tunes the refresh loop.
type PollConfig struct {
	// Interval between fetches and between retries. Default: 5s.
	Interval time.Duration `yaml:"interval"`
	// Placeholder shows built-in sample plots when the first fetches fail.
	Placeholder bool `yaml:"placeholder"`
}

// HistoryConfig enables the SQLite history store.
type HistoryConfig struct {
	// Path of the database. Empty disables history.
	Path string `yaml:"path"`
	// Retention for fetch log rows. Default: 7 days.
	Retention time.Duration `yaml:"retention"`
}

func (c *Config) defaults() {
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = 5 * time.Second
	}
	if c.History.Retention <= 0 {
		c.History.Retention = 7 * 24 * time.Hour
	}
	if c.Source.RetryBackoff <= 0 {
		c.Source.RetryBackoff = 500 * time.Millisecond
	}
	if c.Source.Watch == nil {
		on := true
		c.Source.Watch = &on
	}
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	switch {
	case c.Source.URL == "" && c.Source.File == "":
		return fmt.Errorf("%w: source.url or source.file is required", ErrInvalidConfig)
	case c.Source.URL != "" && c.Source.File != "":
		return fmt.Errorf("%w: source.url and source.file are exclusive", ErrInvalidConfig)
	}
	return nil
}

// LoadConfigFile reads a YAML config file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.defaults()
	return &cfg, nil
}
