package distributed

import (
	"context"
	"errors"
	"github.com/Borislavv/go-ash-store/internal/shared/queue"
	"github.com/benbjohnson/clock"
	"maps"
	"sync"
	"time"
)

var errFakeDown = errors.New("fake transport is down")

// fakeBackend is an in-process stand-in for the remote server shared by several clients.
// Reads register the key for tracking; writes, deletes and expirations notify trackers.
type fakeBackend struct {
	mu       sync.Mutex
	clock    *clock.Mock
	hashes   map[string]map[string]string
	strings  map[string][]byte
	expireAt map[string]time.Time
	clients  []*fakeClient
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		clock:    clock.NewMock(),
		hashes:   make(map[string]map[string]string),
		strings:  make(map[string][]byte),
		expireAt: make(map[string]time.Time),
	}
}

type delivery struct {
	fn   func([]string)
	keys []string
}

func (b *fakeBackend) client() *fakeClient {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := &fakeClient{b: b, tracked: make(map[string]struct{})}
	b.clients = append(b.clients, c)
	return c
}

func (b *fakeBackend) exists(key string) bool {
	_, h := b.hashes[key]
	_, s := b.strings[key]
	return h || s
}

// touched - is unsafe without b.mu held.
func (b *fakeBackend) touched(key string, out []delivery) []delivery {
	for _, c := range b.clients {
		if _, ok := c.tracked[key]; ok {
			delete(c.tracked, key)
			if fn := c.trackFn(); fn != nil {
				out = append(out, delivery{fn: fn, keys: []string{key}})
			}
		}
	}
	return out
}

// remove - is unsafe without b.mu held.
func (b *fakeBackend) remove(key string, out []delivery) (bool, []delivery) {
	if !b.exists(key) {
		return false, out
	}
	delete(b.hashes, key)
	delete(b.strings, key)
	delete(b.expireAt, key)
	return true, b.touched(key, out)
}

// expireLazily - is unsafe without b.mu held.
func (b *fakeBackend) expireLazily(key string, out []delivery) []delivery {
	if at, ok := b.expireAt[key]; ok && !b.clock.Now().Before(at) {
		_, out = b.remove(key, out)
	}
	return out
}

func deliver(out []delivery) {
	for _, d := range out {
		d.fn(d.keys)
	}
}

// expire removes every expired key, as the server's active expiry cycle does.
func (b *fakeBackend) expire() {
	b.mu.Lock()
	var out []delivery
	for key := range maps.Clone(b.expireAt) {
		out = b.expireLazily(key, out)
	}
	b.mu.Unlock()
	deliver(out)
}

// flush drops every key and sends a flush notification to every tracking client.
func (b *fakeBackend) flush() {
	b.mu.Lock()
	clear(b.hashes)
	clear(b.strings)
	clear(b.expireAt)
	var out []delivery
	for _, c := range b.clients {
		clear(c.tracked)
		if fn := c.trackFn(); fn != nil {
			out = append(out, delivery{fn: fn})
		}
	}
	b.mu.Unlock()
	deliver(out)
}

func (b *fakeBackend) ttl(key string) (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	at, ok := b.expireAt[key]
	if !ok {
		return 0, false
	}
	return at.Sub(b.clock.Now()), true
}

func (b *fakeBackend) hash(key string) (map[string]string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.hashes[key]
	return maps.Clone(h), ok
}

func (b *fakeBackend) setHash(key string, fields map[string]string) {
	b.mu.Lock()
	b.hashes[key] = fields
	b.mu.Unlock()
}

func (b *fakeBackend) value(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.strings[key]
	return v, ok
}

func (b *fakeBackend) values() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.strings)
}

func (b *fakeBackend) deleteValue(key string) {
	b.mu.Lock()
	delete(b.strings, key)
	delete(b.expireAt, key)
	b.mu.Unlock()
}

// fakeClient implements both Transport and Tracker.
type fakeClient struct {
	b       *fakeBackend
	tracked map[string]struct{} // guarded by b.mu

	mu       sync.Mutex
	fn       func([]string)
	err      error
	closeErr error
	closed   int
}

func (c *fakeClient) trackFn() func([]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fn
}

func (c *fakeClient) fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *fakeClient) failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeClient) closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeClient) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if err := c.failure(); err != nil {
		return nil, err
	}
	c.b.mu.Lock()
	out := c.b.expireLazily(key, nil)
	fields := maps.Clone(c.b.hashes[key])
	if fields == nil {
		fields = map[string]string{}
	}
	c.tracked[key] = struct{}{}
	c.b.mu.Unlock()
	deliver(out)
	return fields, nil
}

func (c *fakeClient) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := c.failure(); err != nil {
		return nil, false, err
	}
	c.b.mu.Lock()
	out := c.b.expireLazily(key, nil)
	v, ok := c.b.strings[key]
	c.tracked[key] = struct{}{}
	c.b.mu.Unlock()
	deliver(out)
	return v, ok, nil
}

func (c *fakeClient) Del(_ context.Context, keys ...string) (int64, error) {
	if err := c.failure(); err != nil {
		return 0, err
	}
	c.b.mu.Lock()
	var (
		n   int64
		out []delivery
	)
	for _, key := range keys {
		var removed bool
		out = c.b.expireLazily(key, out)
		if removed, out = c.b.remove(key, out); removed {
			n++
		}
	}
	c.b.mu.Unlock()
	deliver(out)
	return n, nil
}

func (c *fakeClient) Batch(_ context.Context, ops ...Op) error {
	if err := c.failure(); err != nil {
		return err
	}
	c.b.mu.Lock()
	var out []delivery
	for _, op := range ops {
		out = c.b.expireLazily(op.Key, out)
		switch op.Kind {
		case OpHSet:
			h, ok := c.b.hashes[op.Key]
			if !ok {
				h = make(map[string]string)
				c.b.hashes[op.Key] = h
			}
			maps.Copy(h, op.Fields)
		case OpSet:
			c.b.strings[op.Key] = op.Value
			delete(c.b.expireAt, op.Key)
		case OpPExpire:
			if c.b.exists(op.Key) {
				c.b.expireAt[op.Key] = c.b.clock.Now().Add(op.TTL)
			}
		case OpPersist:
			delete(c.b.expireAt, op.Key)
		case OpDel:
			_, out = c.b.remove(op.Key, out)
			continue
		}
		out = c.b.touched(op.Key, out)
	}
	c.b.mu.Unlock()
	deliver(out)
	return nil
}

func (c *fakeClient) Track(fn func(keys []string)) {
	c.mu.Lock()
	c.fn = fn
	c.mu.Unlock()
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return c.closeErr
}

func newTestQueue(size int) *queue.Queue[staleRef] {
	q := &queue.Queue[staleRef]{}
	q.Init(size)
	return q
}
