package config

import "github.com/Borislavv/go-ash-store/model"

type LRU struct {
	// MaxSize bounds the number of entries. Zero means unbounded.
	MaxSize int `yaml:"max_size"`
}

func (cfg *LRU) Enabled() bool {
	return cfg != nil
}

func (cfg *LRU) Validate() error {
	if cfg.MaxSize < 0 {
		return model.InvalidConfigf("lru: max_size must be a non-negative integer, got %d", cfg.MaxSize)
	}
	return nil
}
