// Package ttl decorates the LRU map with per-entry expiry.
//
// Expiry is checked lazily on every read. When StayAlive is configured, a background
// sweeper additionally removes expired entries that are never read again; its owner
// must stop it with CancelCleanupTimer (or Close).
package ttl

import (
	"context"
	"github.com/Borislavv/go-ash-store/config"
	"github.com/Borislavv/go-ash-store/internal/lifetimer"
	"github.com/Borislavv/go-ash-store/internal/lru"
	"github.com/Borislavv/go-ash-store/model"
	"github.com/benbjohnson/clock"
	"log/slog"
	"sync"
	"time"
)

type item[V any] struct {
	value    V
	expireAt time.Time // zero means never
}

func (it item[V]) expired(now time.Time) bool {
	return !it.expireAt.IsZero() && !now.Before(it.expireAt)
}

type Cache[K comparable, V any] struct {
	mu         sync.Mutex
	defaultTTL time.Duration
	clock      clock.Clock
	items      *lru.Map[K, item[V]]
	sweeper    lifetimer.Lifetimer
}

// New validates cfg and starts the sweeper if cfg.StayAlive is set.
// A nil clk uses the wall clock (its readings carry the monotonic component).
func New[K comparable, V any](ctx context.Context, cfg *config.TTL, clk clock.Clock, logger *slog.Logger) (*Cache[K, V], error) {
	var conf config.TTL
	if cfg != nil {
		conf = *cfg
	}
	cfg = &conf
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.WithDefaults()
	if clk == nil {
		clk = clock.New()
	}

	items, err := lru.New[K, item[V]](&config.LRU{MaxSize: cfg.MaxSize})
	if err != nil {
		return nil, err
	}

	c := &Cache[K, V]{
		defaultTTL: cfg.TTL,
		clock:      clk,
		items:      items,
		sweeper:    &lifetimer.NoOpLifetimer{},
	}
	if cfg.StayAlive {
		c.sweeper = lifetimer.New(ctx, "ttl", cfg.CleanupInterval, clk, logger, c.sweep)
	}
	return c, nil
}

// Set stores value with the default TTL.
func (c *Cache[K, V]) Set(key K, value V) {
	c.set(key, value, c.defaultTTL)
}

// SetTTL stores value expiring after ttl. A zero ttl falls back to the default;
// with no default configured the entry never expires.
func (c *Cache[K, V]) SetTTL(key K, value V, ttl time.Duration) error {
	if ttl < 0 {
		return model.Invalidf("ttl must be non-negative, got %s", ttl)
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	c.set(key, value, ttl)
	return nil
}

func (c *Cache[K, V]) set(key K, value V, ttl time.Duration) {
	it := item[V]{value: value}
	if ttl > 0 {
		it.expireAt = c.clock.Now().Add(ttl)
	}
	c.mu.Lock()
	c.items.Set(key, it)
	c.mu.Unlock()
}

// Get promotes a live entry; an expired one is removed and reported as a miss.
func (c *Cache[K, V]) Get(key K) (value V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, hit := c.items.Get(key)
	if !hit {
		return value, false
	}
	if it.expired(c.clock.Now()) {
		c.items.Delete(key)
		return value, false
	}
	return it.value, true
}

// Has does not promote the key but still removes it when expired.
func (c *Cache[K, V]) Has(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, hit := c.items.Peek(key)
	if !hit {
		return false
	}
	if it.expired(c.clock.Now()) {
		c.items.Delete(key)
		return false
	}
	return true
}

// Shift removes the LRU entry. Like eviction, it does not look at expiry.
func (c *Cache[K, V]) Shift() (key K, value V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, it, ok := c.items.Shift()
	return key, it.value, ok
}

func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Delete(key)
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	c.items.Clear()
	c.mu.Unlock()
}

// Len counts expired entries that were not yet detected.
func (c *Cache[K, V]) Len() int { return c.items.Len() }

func (c *Cache[K, V]) Evictions() int64 { return c.items.Evictions() }

func (c *Cache[K, V]) SweeperMetrics() (scans, removed, errors int64) {
	return c.sweeper.LifetimerMetrics()
}

// Stats implements telemetry.Source. Values are not byte-sized, so bytes is always zero.
func (c *Cache[K, V]) Stats(context.Context) (entries, bytes int64, err error) {
	return int64(c.items.Len()), 0, nil
}

// Counters implements telemetry.Counting.
func (c *Cache[K, V]) Counters() map[string]int64 {
	scans, removed, _ := c.sweeper.LifetimerMetrics()
	return map[string]int64{"evictions": c.items.Evictions(), "sweep_scans": scans, "sweep_removed": removed}
}

// CancelCleanupTimer stops the background sweep. Safe to call more than once.
func (c *Cache[K, V]) CancelCleanupTimer() {
	_ = c.sweeper.Close()
}

func (c *Cache[K, V]) Close() error {
	c.CancelCleanupTimer()
	return nil
}

// sweep scans a snapshot and takes the lock per removal only.
func (c *Cache[K, V]) sweep(ctx context.Context) (removed int64, err error) {
	for key, it := range c.items.Entries() {
		if ctx.Err() != nil {
			return removed, nil
		}
		now := c.clock.Now()
		if !it.expired(now) {
			continue
		}
		c.mu.Lock()
		// the key may have been overwritten since the snapshot
		if cur, hit := c.items.Peek(key); hit && cur.expired(now) {
			c.items.Delete(key)
			removed++
		}
		c.mu.Unlock()
	}
	return removed, nil
}
