package config

import (
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
)

// Config groups configuration of all store backends.
// Each section can be omitted (nil), in which case that backend is not configured.
type Config struct {
	// LRU configures the plain recency-ordered map.
	LRU *LRU `yaml:"lru"`

	// TTL configures the expiring variant of the LRU map.
	TTL *TTL `yaml:"ttl"`

	// Bounded configures the count/byte bounded in-memory store.
	Bounded *Bounded `yaml:"bounded"`

	// Persistent configures the SQLite-backed durable store.
	Persistent *Persistent `yaml:"persistent"`

	// Distributed configures the Redis-backed store and its local tracking cache.
	Distributed *Distributed `yaml:"distributed"`

	// Telemetry configures periodic stat logs.
	// If nil, no stat logs are written.
	Telemetry *Telemetry `yaml:"telemetry"`
}

// AdjustConfig fills defaults of every configured section.
func (cfg *Config) AdjustConfig() {
	if cfg.TTL.Enabled() {
		cfg.TTL.WithDefaults()
	}
	if cfg.Bounded.Enabled() {
		cfg.Bounded.WithDefaults()
	}
	if cfg.Persistent.Enabled() {
		cfg.Persistent.WithDefaults()
	}
	if cfg.Distributed.Enabled() {
		cfg.Distributed.WithDefaults()
	}
	if cfg.Telemetry.Enabled() {
		cfg.Telemetry.WithDefaults()
	}
}

// Validate checks every configured section.
func (cfg *Config) Validate() error {
	if cfg.LRU.Enabled() {
		if err := cfg.LRU.Validate(); err != nil {
			return err
		}
	}
	if cfg.TTL.Enabled() {
		if err := cfg.TTL.Validate(); err != nil {
			return err
		}
	}
	if cfg.Bounded.Enabled() {
		if err := cfg.Bounded.Validate(); err != nil {
			return err
		}
	}
	if cfg.Persistent.Enabled() {
		if err := cfg.Persistent.Validate(); err != nil {
			return err
		}
	}
	if cfg.Distributed.Enabled() {
		if err := cfg.Distributed.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	var cfg *Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.AdjustConfig()

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}
