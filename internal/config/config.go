package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSimulator   = "gradient_descent"
	DefaultSeed        = 1
	DefaultAddr        = "127.0.0.1:8080"
	DefaultLogLevel    = "info"
	DefaultDataDir     = "runs"
	DefaultCatalogPath = "catalog.db"
)

type Config struct {
	Simulator string `yaml:"simulator"`
	Seed      int64  `yaml:"seed"`
	// Zero IntervalMS or MaxTicks keep the simulator's own defaults.
	IntervalMS  int                `yaml:"interval_ms"`
	MaxTicks    int                `yaml:"max_ticks"`
	Params      map[string]float64 `yaml:"params,omitempty"`
	Overlays    []string           `yaml:"overlays,omitempty"`
	Server      ServerConfig       `yaml:"server"`
	Logging     LoggingConfig      `yaml:"logging"`
	DataDir     string             `yaml:"data_dir"`
	CatalogPath string             `yaml:"catalog_path"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// MaxSessions caps concurrently mounted sessions; zero means no cap.
	MaxSessions int `yaml:"max_sessions"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func DefaultConfig() *Config {
	return &Config{
		Simulator:   DefaultSimulator,
		Seed:        DefaultSeed,
		Server:      ServerConfig{Addr: DefaultAddr, MaxSessions: 64},
		Logging:     LoggingConfig{Level: DefaultLogLevel},
		DataDir:     DefaultDataDir,
		CatalogPath: DefaultCatalogPath,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// OverlaySet turns the overlay list into a lookup.
func (c *Config) OverlaySet() map[string]bool {
	out := make(map[string]bool, len(c.Overlays))
	for _, o := range c.Overlays {
		out[o] = true
	}
	return out
}

// Merge lays params over the config's own, returning a new map.
func (c *Config) Merge(params map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(c.Params)+len(params))
	for k, v := range c.Params {
		out[k] = v
	}
	for k, v := range params {
		out[k] = v
	}
	return out
}
