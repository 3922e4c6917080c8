package config

import (
	"github.com/Borislavv/go-ash-store/model"
	"time"
)

const (
	// MemoryFilename opens a private in-memory database.
	MemoryFilename = ":memory:"

	// MaxPersistentEntrySize is the hard ceiling of a single stored value.
	MaxPersistentEntrySize int64 = 2<<30 - 1

	DefaultPersistentTimeout = 5 * time.Second
)

// PruneOrder selects which rows the fallback pruning step removes.
type PruneOrder string

const (
	// PruneOldest removes the least recently cached rows.
	PruneOldest PruneOrder = "oldest"

	// PruneNewest removes the most recently cached rows.
	PruneNewest PruneOrder = "newest"
)

type Persistent struct {
	// Filename is the database path or MemoryFilename.
	Filename string `yaml:"filename"`

	// MaxEntrySize bounds a single value, in bytes. Must stay below 2GiB.
	MaxEntrySize int64 `yaml:"max_entry_size"`

	// MaxCount triggers pruning on insert once exceeded. Zero means unbounded.
	MaxCount int `yaml:"max_count"`

	// Timeout is how long the engine waits on a locked database.
	Timeout time.Duration `yaml:"timeout"`

	// PruneOrder selects the fallback pruning victims. Defaults to PruneOldest.
	PruneOrder PruneOrder `yaml:"prune_order"`

	// SweepInterval enables a background removal of expired rows when positive.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

func (cfg *Persistent) Enabled() bool {
	return cfg != nil
}

func (cfg *Persistent) IsMemory() bool {
	return cfg.Filename == "" || cfg.Filename == MemoryFilename
}

func (cfg *Persistent) WithDefaults() *Persistent {
	if cfg.Filename == "" {
		cfg.Filename = MemoryFilename
	}
	if cfg.MaxEntrySize == 0 {
		cfg.MaxEntrySize = MaxPersistentEntrySize
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultPersistentTimeout
	}
	if cfg.PruneOrder == "" {
		cfg.PruneOrder = PruneOldest
	}
	return cfg
}

func (cfg *Persistent) Validate() error {
	switch {
	case cfg.MaxEntrySize < 0 || cfg.MaxEntrySize > MaxPersistentEntrySize:
		return model.InvalidConfigf("persistent: max_entry_size must be within [0, %d], got %d", MaxPersistentEntrySize, cfg.MaxEntrySize)
	case cfg.MaxCount < 0:
		return model.InvalidConfigf("persistent: max_count must be a non-negative integer, got %d", cfg.MaxCount)
	case cfg.Timeout < 0:
		return model.InvalidConfigf("persistent: timeout must be non-negative, got %s", cfg.Timeout)
	case cfg.SweepInterval < 0:
		return model.InvalidConfigf("persistent: sweep_interval must be non-negative, got %s", cfg.SweepInterval)
	}
	switch cfg.PruneOrder {
	case "", PruneOldest, PruneNewest:
	default:
		return model.InvalidConfigf("persistent: unknown prune_order %q", cfg.PruneOrder)
	}
	return nil
}
