package cli

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/semweave/semweave/internal/resolve"
)

// Config is the optional YAML configuration for a pipeline run.
type Config struct {
	Resolver ResolverConfig `yaml:"resolver"`
}

// ResolverConfig selects and tunes the resolution strategy.
type ResolverConfig struct {
	Kind               string `yaml:"kind"` // "synthetic" (default) | "openai"
	Model              string `yaml:"model"`
	MaxAttempts        int    `yaml:"max_attempts"`
	CallTimeoutSeconds int    `yaml:"call_timeout_seconds"`
	MaxInFlight        int    `yaml:"max_in_flight"`
	CellMode           bool   `yaml:"cell_mode"`
}

// LoadConfig reads a YAML config file. A missing path returns defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{Resolver: ResolverConfig{Kind: "synthetic"}}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Resolver.Kind == "" {
		cfg.Resolver.Kind = "synthetic"
	}
	return cfg, nil
}

// BuildResolver constructs the configured resolution strategy. The OpenAI
// key comes from OPENAI_API_KEY; it is never stored in the config file.
func (c *Config) BuildResolver() (resolve.Resolver, error) {
	switch c.Resolver.Kind {
	case "synthetic":
		return resolve.NewSynthetic(), nil
	case "openai":
		return resolve.NewOpenAI(resolve.OpenAIConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			Model:       c.Resolver.Model,
			MaxAttempts: c.Resolver.MaxAttempts,
			CallTimeout: time.Duration(c.Resolver.CallTimeoutSeconds) * time.Second,
			MaxInFlight: c.Resolver.MaxInFlight,
			CellMode:    c.Resolver.CellMode,
		})
	}
	return nil, fmt.Errorf("unknown resolver kind %q (want synthetic or openai)", c.Resolver.Kind)
}
