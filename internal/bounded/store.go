// Package bounded implements an in-memory byte store limited by entry count, by the
// size of a single entry and by the aggregate size of all entries.
package bounded

import (
	"context"
	"github.com/Borislavv/go-ash-store/config"
	"github.com/Borislavv/go-ash-store/internal/lru"
	"github.com/Borislavv/go-ash-store/internal/shared/bytes"
	"github.com/Borislavv/go-ash-store/model"
	"slices"
	"sync"
)

type record struct {
	value  []byte
	meta   model.Metadata
	size   int64
	digest bytes.Digest
}

// Store keeps the aggregate byte counter equal to the sum of live record sizes
// after every call returns.
type Store struct {
	mu       sync.Mutex
	cfg      config.Bounded
	items    *lru.Map[string, record]
	bytes    int64
	counters *counters
}

// New uses the package defaults for nil cfg or zero fields.
func New(cfg *config.Bounded) (*Store, error) {
	var c config.Bounded
	if cfg != nil {
		c = *cfg
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.WithDefaults()

	// count is enforced by clean() together with bytes, so the map itself is unbounded
	items, err := lru.New[string, record](nil)
	if err != nil {
		return nil, err
	}
	return &Store{cfg: c, items: items, counters: newCounters()}, nil
}

// Set rejects a value larger than MaxEntrySize before mutating anything.
// The value is copied; meta is stored as given (nil becomes an empty document).
func (s *Store) Set(key string, value []byte, meta model.Metadata) error {
	size := int64(len(value))
	if size > s.cfg.MaxEntrySize {
		return model.TooLarge(size, s.cfg.MaxEntrySize)
	}
	rec := record{meta: meta.Normalize(), size: size, digest: bytes.DigestOf(value)}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, found := s.items.Peek(key); found {
		s.bytes -= old.size
		if old.digest.IsTheSame(rec.digest) {
			// same payload: keep the stored copy, refresh metadata and recency
			rec.value = old.value
			s.counters.samePayload.Add(1)
		}
	}
	if rec.value == nil {
		rec.value = slices.Clone(value)
		if rec.value == nil {
			rec.value = []byte{}
		}
	}

	s.items.Set(key, rec)
	s.bytes += size
	s.clean()
	return nil
}

// clean - is unsafe without s.mu held.
func (s *Store) clean() {
	for s.items.Len() > s.cfg.MaxCount || s.bytes > s.cfg.MaxSize {
		_, victim, ok := s.items.Shift()
		if !ok {
			return
		}
		s.bytes -= victim.size
		s.counters.evictedItems.Add(1)
		s.counters.evictedBytes.Add(victim.size)
	}
}

// Get promotes the key. The returned value must not be modified.
func (s *Store) Get(key string) (model.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, found := s.items.Get(key)
	if !found {
		return model.Entry{}, false
	}
	return model.NewEntry(rec.value, rec.meta), true
}

// Delete reports whether the key was present; a missing key changes nothing.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, found := s.items.Peek(key)
	if !found {
		return false
	}
	s.bytes -= rec.size
	return s.items.Delete(key)
}

func (s *Store) Has(key string) bool { return s.items.Has(key) }

func (s *Store) Clear() {
	s.mu.Lock()
	s.items.Clear()
	s.bytes = 0
	s.mu.Unlock()
}

func (s *Store) Len() int { return s.items.Len() }

// ByteSize is the sum of the sizes of all live entries.
func (s *Store) ByteSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}

func (s *Store) Config() config.Bounded { return s.cfg }

func (s *Store) Metrics() (evictedItems, evictedBytes, samePayload int64) {
	return s.counters.snapshot()
}

// Stats implements telemetry.Source.
func (s *Store) Stats(context.Context) (entries, bytes int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(s.items.Len()), s.bytes, nil
}

// Counters implements telemetry.Counting.
func (s *Store) Counters() map[string]int64 {
	items, bytes, same := s.counters.snapshot()
	return map[string]int64{"evicted_items": items, "evicted_bytes": bytes, "same_payload": same}
}
