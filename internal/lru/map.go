// Package lru implements the recency-ordered eviction map every in-memory store is built on.
//
// Recency lives in a doubly linked list (front = MRU, back = LRU) indexed by a map,
// so promote, insert, evict and delete are all O(1).
package lru

import (
	"container/list"
	"github.com/Borislavv/go-ash-store/config"
	"iter"
	"sync"
	"sync/atomic"
)

type node[K comparable, V any] struct {
	key   K
	value V
}

// Map is an order-preserving key/value container with LRU eviction.
// It is safe for concurrent use.
type Map[K comparable, V any] struct {
	mu      sync.Mutex
	maxSize int
	list    *list.List
	idx     map[K]*list.Element

	evictions atomic.Int64
}

// New builds an unbounded map when cfg is nil or cfg.MaxSize is zero.
func New[K comparable, V any](cfg *config.LRU) (*Map[K, V], error) {
	var maxSize int
	if cfg.Enabled() {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		maxSize = cfg.MaxSize
	}
	return &Map[K, V]{
		maxSize: maxSize,
		list:    list.New(),
		idx:     make(map[K]*list.Element),
	}, nil
}

// Get returns the value and promotes the key to MRU.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, hit := m.idx[key]; hit {
		m.list.MoveToFront(el)
		return el.Value.(*node[K, V]).value, true
	}
	return value, false
}

// Peek returns the value without touching recency.
func (m *Map[K, V]) Peek(key K) (value V, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, hit := m.idx[key]; hit {
		return el.Value.(*node[K, V]).value, true
	}
	return value, false
}

// Set overwrites and promotes an existing key, or inserts it as MRU
// evicting the current LRU first when the map is at capacity.
func (m *Map[K, V]) Set(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, hit := m.idx[key]; hit {
		el.Value.(*node[K, V]).value = value
		m.list.MoveToFront(el)
		return
	}

	if m.maxSize > 0 && m.list.Len() >= m.maxSize {
		m.shiftUnlocked()
		m.evictions.Add(1)
	}
	m.idx[key] = m.list.PushFront(&node[K, V]{key: key, value: value})
}

// Shift removes and returns the LRU entry.
func (m *Map[K, V]) Shift() (key K, value V, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shiftUnlocked()
}

// shiftUnlocked - is unsafe without m.mu held.
func (m *Map[K, V]) shiftUnlocked() (key K, value V, ok bool) {
	el := m.list.Back()
	if el == nil {
		return key, value, false
	}
	n := m.list.Remove(el).(*node[K, V])
	delete(m.idx, n.key)
	return n.key, n.value, true
}

// Delete reports whether the key was present.
func (m *Map[K, V]) Delete(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, hit := m.idx[key]
	if !hit {
		return false
	}
	m.list.Remove(el)
	delete(m.idx, key)
	return true
}

// Has does not promote the key.
func (m *Map[K, V]) Has(key K) bool {
	m.mu.Lock()
	_, hit := m.idx[key]
	m.mu.Unlock()
	return hit
}

func (m *Map[K, V]) Clear() {
	m.mu.Lock()
	m.list.Init()
	clear(m.idx)
	m.mu.Unlock()
}

func (m *Map[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list.Len()
}

func (m *Map[K, V]) MaxSize() int    { return m.maxSize }
func (m *Map[K, V]) Evictions() int64 { return m.evictions.Load() }

// Entries yields entries from LRU to MRU as they were when Entries was called.
// Mutations made while ranging are not reflected.
func (m *Map[K, V]) Entries() iter.Seq2[K, V] {
	m.mu.Lock()
	snapshot := make([]node[K, V], 0, m.list.Len())
	for el := m.list.Back(); el != nil; el = el.Prev() {
		snapshot = append(snapshot, *el.Value.(*node[K, V]))
	}
	m.mu.Unlock()

	return func(yield func(K, V) bool) {
		for _, n := range snapshot {
			if !yield(n.key, n.value) {
				return
			}
		}
	}
}
