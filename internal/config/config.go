package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

const (
	OnErrorAbort    = "abort"
	OnErrorContinue = "continue"
)

type Config struct {
	OnError string                 `yaml:"on_error"`
	Atomic  *bool                  `yaml:"atomic"`
	Journal string                 `yaml:"journal"`
	Plugins []string               `yaml:"plugins"`
	Modes   map[string]*ModeConfig `yaml:"modes"`
}

type ModeConfig struct {
	Rules []RuleConfig `yaml:"rules"`
}

// RuleConfig describes one line transformer in a configured mode.
type RuleConfig struct {
	Type    string `yaml:"type"`
	Pattern string `yaml:"pattern"`
	Replace string `yaml:"replace"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.OnError) {
	case "", OnErrorAbort, OnErrorContinue:
	default:
		return fmt.Errorf("invalid config: on_error must be %q or %q, got %q", OnErrorAbort, OnErrorContinue, c.OnError)
	}
	for name, mode := range c.Modes {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("invalid config: mode with empty name")
		}
		if mode == nil || len(mode.Rules) == 0 {
			return fmt.Errorf("invalid config: mode %s has no rules", name)
		}
		for i, rule := range mode.Rules {
			if rule.Type == "" {
				return fmt.Errorf("invalid config: mode %s rule %d has no type", name, i)
			}
		}
	}
	return nil
}

// ContinueOnError reports whether the configured policy keeps going past a
// failing file.
func (c *Config) ContinueOnError() bool {
	return strings.ToLower(c.OnError) == OnErrorContinue
}

// AtomicWrites defaults to true when the key is absent.
func (c *Config) AtomicWrites() bool {
	if c.Atomic == nil {
		return true
	}
	return *c.Atomic
}
