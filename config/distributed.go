package config

import "github.com/Borislavv/go-ash-store/model"

const (
	DefaultNamespace   = "ashstore:"
	DefaultCleanupRate = 1000
)

type Distributed struct {
	// Redis connection settings, passed through to the transport.
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// MaxEntrySize bounds a single value, in bytes. Also limits the tracking cache.
	MaxEntrySize int64 `yaml:"max_entry_size"`

	// MaxSize and MaxCount bound the local tracking cache.
	MaxSize  int64 `yaml:"max_size"`
	MaxCount int   `yaml:"max_count"`

	// Tracking enables the local read-through cache kept coherent by
	// server-pushed invalidation. Defaults to true.
	Tracking *bool `yaml:"tracking"`

	// Namespace prefixes every remote key.
	Namespace string `yaml:"namespace"`

	// KeepSuperseded leaves the previous value record of an overwritten key to
	// its own TTL instead of deleting it in the write batch.
	KeepSuperseded bool `yaml:"keep_superseded"`

	// CleanupRate limits best-effort stale key deletions per second.
	CleanupRate int `yaml:"cleanup_rate"`
}

func (cfg *Distributed) Enabled() bool {
	return cfg != nil
}

func (cfg *Distributed) IsTracking() bool {
	return cfg.Tracking == nil || *cfg.Tracking
}

// TrackingCache is the bounded store configuration of the local tracking cache.
func (cfg *Distributed) TrackingCache() *Bounded {
	return (&Bounded{
		MaxCount:     cfg.MaxCount,
		MaxEntrySize: cfg.MaxEntrySize,
		MaxSize:      cfg.MaxSize,
	}).WithDefaults()
}

func (cfg *Distributed) WithDefaults() *Distributed {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.MaxEntrySize == 0 {
		cfg.MaxEntrySize = DefaultMaxEntrySize
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.MaxCount == 0 {
		cfg.MaxCount = DefaultMaxCount
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.CleanupRate == 0 {
		cfg.CleanupRate = DefaultCleanupRate
	}
	return cfg
}

func (cfg *Distributed) Validate() error {
	switch {
	case cfg.MaxEntrySize < 0:
		return model.InvalidConfigf("distributed: max_entry_size must be a non-negative integer, got %d", cfg.MaxEntrySize)
	case cfg.MaxSize < 0:
		return model.InvalidConfigf("distributed: max_size must be a non-negative integer, got %d", cfg.MaxSize)
	case cfg.MaxCount < 0:
		return model.InvalidConfigf("distributed: max_count must be a non-negative integer, got %d", cfg.MaxCount)
	case cfg.CleanupRate < 0:
		return model.InvalidConfigf("distributed: cleanup_rate must be a non-negative integer, got %d", cfg.CleanupRate)
	case cfg.DB < 0:
		return model.InvalidConfigf("distributed: db must be a non-negative integer, got %d", cfg.DB)
	}
	return nil
}
