package config

import "github.com/Borislavv/go-ash-store/model"

const (
	DefaultMaxCount     = 1024
	DefaultMaxEntrySize = 5 << 20   // 5MiB
	DefaultMaxSize      = 100 << 20 // 100MiB
)

// Bounded limits the in-memory byte store on three dimensions at once.
type Bounded struct {
	// MaxCount bounds the number of entries.
	MaxCount int `yaml:"max_count"`

	// MaxEntrySize bounds a single value, in bytes. Larger values are rejected.
	MaxEntrySize int64 `yaml:"max_entry_size"`

	// MaxSize bounds the sum of all value sizes, in bytes.
	MaxSize int64 `yaml:"max_size"`
}

func (cfg *Bounded) Enabled() bool {
	return cfg != nil
}

func (cfg *Bounded) WithDefaults() *Bounded {
	if cfg.MaxCount == 0 {
		cfg.MaxCount = DefaultMaxCount
	}
	if cfg.MaxEntrySize == 0 {
		cfg.MaxEntrySize = DefaultMaxEntrySize
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	return cfg
}

func (cfg *Bounded) Validate() error {
	switch {
	case cfg.MaxCount < 0:
		return model.InvalidConfigf("bounded: max_count must be a non-negative integer, got %d", cfg.MaxCount)
	case cfg.MaxEntrySize < 0:
		return model.InvalidConfigf("bounded: max_entry_size must be a non-negative integer, got %d", cfg.MaxEntrySize)
	case cfg.MaxSize < 0:
		return model.InvalidConfigf("bounded: max_size must be a non-negative integer, got %d", cfg.MaxSize)
	}
	return nil
}
