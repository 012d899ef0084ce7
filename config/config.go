// Package config loads and validates the application configuration from a
// YAML or JSON file, with environment overrides under the HP_ prefix.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/harvestplan/harvestplan/core/evaluate"
	"github.com/harvestplan/harvestplan/core/operator"
	"github.com/harvestplan/harvestplan/core/rolling"
	"github.com/harvestplan/harvestplan/core/search"
)

type Config struct {
	Search    SearchConfig        `json:"search"`
	Weights   evaluate.Weights    `json:"weights"`
	Operators operator.Config     `json:"operators"`
	Anneal    search.AnnealConfig `json:"anneal"`
	ILS       search.ILSConfig    `json:"ils"`
	Tabu      search.TabuConfig   `json:"tabu"`
	Rolling   rolling.Config      `json:"rolling"`
	Logging   LoggingConfig       `json:"logging"`
	Metrics   MetricsConfig       `json:"metrics"`
	MQTT      MQTTConfig          `json:"mqtt"`
	Runlog    RunlogConfig        `json:"runlog"`
}

// Load reads the file, applies HP_ environment overrides (HP_SEARCH__SEED=7
// sets search.seed), fills defaults and validates every section.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("HP_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "hp_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every section at its defaults, for
// runs without a config file.
func Default() *Config {
	cfg := &Config{}
	// Finalize cannot fail on the zero value.
	_ = cfg.Finalize()
	return cfg
}

// Finalize applies defaults and validates all sections.
func (c *Config) Finalize() error {
	if c.Weights == (evaluate.Weights{}) {
		c.Weights = evaluate.DefaultWeights()
	}
	c.Search.SetDefaults()
	c.Operators.SetDefaults()
	c.Anneal.SetDefaults()
	c.ILS.SetDefaults()
	c.Tabu.SetDefaults()
	c.Rolling.SetDefaults()
	c.Logging.SetDefaults()
	c.Metrics.SetDefaults()
	c.MQTT.SetDefaults()
	c.Runlog.SetDefaults()

	for _, v := range []struct {
		name string
		err  error
	}{
		{"search", c.Search.Validate()},
		{"weights", c.Weights.Validate()},
		{"operators", c.Operators.Validate()},
		{"anneal", c.Anneal.Validate()},
		{"ils", c.ILS.Validate()},
		{"tabu", c.Tabu.Validate()},
		{"rolling", c.Rolling.Validate()},
		{"logging", c.Logging.Validate()},
		{"metrics", c.Metrics.Validate()},
		{"mqtt", c.MQTT.Validate()},
		{"runlog", c.Runlog.Validate()},
	} {
		if v.err != nil {
			return fmt.Errorf("config %s: %w", v.name, v.err)
		}
	}
	return nil
}
