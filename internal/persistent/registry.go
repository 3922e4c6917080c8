package persistent

import (
	"context"
	"database/sql"
	"github.com/Borislavv/go-ash-store/config"
	"path/filepath"
	"sync"
)

type handle struct {
	db   *sql.DB
	refs int
}

// Registry shares one engine handle between stores opened on the same file.
// The handle is closed when the last store using it is closed.
// In-memory databases are never shared.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*handle
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*handle)}
}

// acquire returns the handle for cfg.Filename and the func that gives it back.
// A nil registry opens a private handle.
func (r *Registry) acquire(ctx context.Context, cfg *config.Persistent) (*sql.DB, func() error, error) {
	if r == nil || cfg.IsMemory() {
		db, err := open(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	}

	path, err := filepath.Abs(cfg.Filename)
	if err != nil {
		path = filepath.Clean(cfg.Filename)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[path]; ok {
		h.refs++
		return h.db, func() error { return r.release(path) }, nil
	}

	db, err := open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	r.handles[path] = &handle{db: db, refs: 1}
	return db, func() error { return r.release(path) }, nil
}

func (r *Registry) release(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[path]
	if !ok {
		return nil
	}
	if h.refs--; h.refs > 0 {
		return nil
	}
	delete(r.handles, path)
	return h.db.Close()
}

// Len is the number of open shared handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
