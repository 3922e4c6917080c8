package config

import (
	"github.com/Borislavv/go-ash-store/model"
	"time"
)

const (
	// MinCleanupInterval bounds the overhead of the active sweep.
	MinCleanupInterval     = time.Second
	DefaultCleanupInterval = time.Minute
)

type TTL struct {
	// MaxSize bounds the number of entries. Zero means unbounded.
	MaxSize int `yaml:"max_size"`

	// TTL is the default lifetime applied by Set when no per-call TTL is given.
	// Zero means entries never expire unless a per-call TTL is passed.
	TTL time.Duration `yaml:"ttl"`

	// StayAlive enables the background sweep that removes expired entries
	// regardless of access. Owners must call CancelCleanupTimer (or Close).
	StayAlive bool `yaml:"stay_alive"`

	// CleanupInterval is the period of the background sweep.
	// Must be at least MinCleanupInterval when set.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

func (cfg *TTL) Enabled() bool {
	return cfg != nil
}

func (cfg *TTL) WithDefaults() *TTL {
	if cfg.StayAlive && cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	return cfg
}

func (cfg *TTL) Validate() error {
	switch {
	case cfg.MaxSize < 0:
		return model.InvalidConfigf("ttl: max_size must be a non-negative integer, got %d", cfg.MaxSize)
	case cfg.TTL < 0:
		return model.InvalidConfigf("ttl: ttl must be non-negative, got %s", cfg.TTL)
	case cfg.CleanupInterval < 0:
		return model.InvalidConfigf("ttl: cleanup_interval must be non-negative, got %s", cfg.CleanupInterval)
	case cfg.CleanupInterval != 0 && cfg.CleanupInterval < MinCleanupInterval:
		return model.InvalidConfigf("ttl: cleanup_interval must be at least %s, got %s", MinCleanupInterval, cfg.CleanupInterval)
	}
	return nil
}
