// Package persistent implements the durable key/value store on top of an embedded SQLite database.
//
// Expiry is lazy: an expired row reads as a miss but stays on disk until it is
// pruned on insert pressure, removed by SweepExpired or overwritten.
package persistent

import (
	"context"
	"database/sql"
	"errors"
	"github.com/Borislavv/go-ash-store/config"
	"github.com/Borislavv/go-ash-store/internal/lifetimer"
	"github.com/Borislavv/go-ash-store/model"
	"github.com/benbjohnson/clock"
	"log/slog"
	"math"
	"sync"
	"time"
)

// never is the delete_at of a row stored without TTL.
const never int64 = math.MaxInt64

type statements struct {
	get, has, update, insert, delete, clear, sweep, count, stat, prune *sql.Stmt
}

func (s *statements) close() error {
	var errs []error
	for _, stmt := range []*sql.Stmt{s.get, s.has, s.update, s.insert, s.delete, s.clear, s.sweep, s.count, s.stat, s.prune} {
		if stmt != nil {
			errs = append(errs, stmt.Close())
		}
	}
	return errors.Join(errs...)
}

type Store struct {
	mu       sync.RWMutex
	closed   bool
	cfg      config.Persistent
	db       *sql.DB
	release  func() error
	stmts    statements
	clock    clock.Clock
	logger   *slog.Logger
	sweeper  lifetimer.Lifetimer
	counters *counters
}

// New opens (or reuses through reg) the database named by cfg.Filename.
// A nil reg gives the store a private handle; a nil clk uses the wall clock.
func New(ctx context.Context, cfg *config.Persistent, reg *Registry, clk clock.Clock, logger *slog.Logger) (*Store, error) {
	var c config.Persistent
	if cfg != nil {
		c = *cfg
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.WithDefaults()
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, release, err := reg.acquire(ctx, &c)
	if err != nil {
		return nil, err
	}

	s := &Store{
		cfg:      c,
		db:       db,
		release:  release,
		clock:    clk,
		logger:   logger,
		sweeper:  &lifetimer.NoOpLifetimer{},
		counters: newCounters(),
	}
	if err = s.prepare(ctx); err != nil {
		_ = s.stmts.close()
		_ = release()
		return nil, err
	}

	s.sweeper = lifetimer.New(ctx, "persistent", c.SweepInterval, clk, logger, s.SweepExpired)
	logger.Info("persistent store is opened", "filename", c.Filename, "max_count", c.MaxCount, "prune_order", string(c.PruneOrder))
	return s, nil
}

func (s *Store) prepare(ctx context.Context) (err error) {
	prune := pruneOldest
	if s.cfg.PruneOrder == config.PruneNewest {
		prune = pruneNewest
	}
	for _, p := range []struct {
		dst   **sql.Stmt
		query string
	}{
		{&s.stmts.get, selectLive},
		{&s.stmts.has, selectHasLive},
		{&s.stmts.update, updateByKey},
		{&s.stmts.insert, insertRow},
		{&s.stmts.delete, deleteByKey},
		{&s.stmts.clear, deleteAll},
		{&s.stmts.sweep, deleteExpired},
		{&s.stmts.count, countRows},
		{&s.stmts.stat, statRows},
		{&s.stmts.prune, prune},
	} {
		if *p.dst, err = s.db.PrepareContext(ctx, p.query); err != nil {
			return model.Database(err, "persistent: prepare")
		}
	}
	return nil
}

func (s *Store) now() int64 { return s.clock.Now().UnixMilli() }

// Get misses on absent and on expired rows. An expired row is left in place.
func (s *Store) Get(ctx context.Context, key string) (model.Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Entry{}, false, model.Closed("persistent")
	}

	var value, meta []byte
	err := s.stmts.get.QueryRowContext(ctx, key, s.now()).Scan(&value, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Entry{}, false, nil
	} else if err != nil {
		return model.Entry{}, false, model.Database(err, "persistent: get")
	}

	metadata, err := model.DecodeMetadata(meta)
	if err != nil {
		return model.Entry{}, false, model.Database(err, "persistent: decode metadata")
	}
	if value == nil {
		value = []byte{}
	}
	return model.NewEntry(value, metadata), true, nil
}

// Has reports a live row without reading its payload.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, model.Closed("persistent")
	}

	var one int
	err := s.stmts.has.QueryRowContext(ctx, key, s.now()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	} else if err != nil {
		return false, model.Database(err, "persistent: has")
	}
	return true, nil
}

// Set updates an existing row in place, keeping its id, or prunes and inserts a new one.
// A zero ttl stores the row without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, meta model.Metadata, ttl time.Duration) error {
	if ttl < 0 {
		return model.Invalidf("ttl must be non-negative, got %s", ttl)
	}
	if size := int64(len(value)); size > s.cfg.MaxEntrySize {
		return model.TooLarge(size, s.cfg.MaxEntrySize)
	}
	if value == nil {
		value = []byte{}
	}
	encoded, err := meta.Encode()
	if err != nil {
		return model.Invalidf("metadata is not serializable: %v", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Closed("persistent")
	}

	now := s.now()
	deleteAt := never
	if ttl > 0 {
		deleteAt = now + max(ttl.Milliseconds(), 1)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Database(err, "persistent: begin")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.StmtContext(ctx, s.stmts.update).ExecContext(ctx, value, encoded, deleteAt, now, key)
	if err != nil {
		return model.Database(err, "persistent: update")
	}
	if updated, err := res.RowsAffected(); err != nil {
		return model.Database(err, "persistent: update")
	} else if updated == 0 {
		if err = s.prune(ctx, tx, now); err != nil {
			return err
		}
		if _, err = tx.StmtContext(ctx, s.stmts.insert).ExecContext(ctx, key, value, encoded, deleteAt, now); err != nil {
			return model.Database(err, "persistent: insert")
		}
	}

	if err = tx.Commit(); err != nil {
		return model.Database(err, "persistent: commit")
	}
	return nil
}

// prune runs before an insert. Over MaxCount it first drops expired rows and,
// only when there were none, a tenth of MaxCount (at least one) by PruneOrder.
func (s *Store) prune(ctx context.Context, tx *sql.Tx, now int64) error {
	if s.cfg.MaxCount == 0 {
		return nil
	}

	var count int64
	if err := tx.StmtContext(ctx, s.stmts.count).QueryRowContext(ctx).Scan(&count); err != nil {
		return model.Database(err, "persistent: count")
	}
	if count <= int64(s.cfg.MaxCount) {
		return nil
	}

	res, err := tx.StmtContext(ctx, s.stmts.sweep).ExecContext(ctx, now)
	if err != nil {
		return model.Database(err, "persistent: prune expired")
	}
	if removed, _ := res.RowsAffected(); removed > 0 {
		s.counters.expired.Add(removed)
		return nil
	}

	res, err = tx.StmtContext(ctx, s.stmts.prune).ExecContext(ctx, max(s.cfg.MaxCount/10, 1))
	if err != nil {
		return model.Database(err, "persistent: prune")
	}
	removed, _ := res.RowsAffected()
	s.counters.pruned.Add(removed)
	s.logger.Debug("persistent store is pruned", "removed", removed, "order", string(s.cfg.PruneOrder))
	return nil
}

// Delete reports whether a row (live or expired) was removed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, model.Closed("persistent")
	}

	res, err := s.stmts.delete.ExecContext(ctx, key)
	if err != nil {
		return false, model.Database(err, "persistent: delete")
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Closed("persistent")
	}
	if _, err := s.stmts.clear.ExecContext(ctx); err != nil {
		return model.Database(err, "persistent: clear")
	}
	return nil
}

// Len counts every persisted row, including expired rows not yet removed.
func (s *Store) Len(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, model.Closed("persistent")
	}

	var n int64
	if err := s.stmts.count.QueryRowContext(ctx).Scan(&n); err != nil {
		return 0, model.Database(err, "persistent: count")
	}
	return n, nil
}

// SweepExpired deletes every expired row and reports how many were removed.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, model.Closed("persistent")
	}

	res, err := s.stmts.sweep.ExecContext(ctx, s.now())
	if err != nil {
		return 0, model.Database(err, "persistent: sweep")
	}
	n, _ := res.RowsAffected()
	s.counters.expired.Add(n)
	return n, nil
}

// Stats implements telemetry.Source.
func (s *Store) Stats(ctx context.Context) (entries, bytes int64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, 0, model.Closed("persistent")
	}
	if err = s.stmts.stat.QueryRowContext(ctx).Scan(&entries, &bytes); err != nil {
		return 0, 0, model.Database(err, "persistent: stat")
	}
	return entries, bytes, nil
}

// Metrics reports rows removed as expired and rows removed by the fallback prune step.
func (s *Store) Metrics() (expired, pruned int64) {
	return s.counters.snapshot()
}

// Counters implements telemetry.Counting.
func (s *Store) Counters() map[string]int64 {
	expired, pruned := s.counters.snapshot()
	scans, _, errs := s.sweeper.LifetimerMetrics()
	return map[string]int64{"expired": expired, "pruned": pruned, "sweep_scans": scans, "sweep_errors": errs}
}

func (s *Store) Config() config.Persistent { return s.cfg }

// Close releases the engine handle. Every later call, Close included, fails with model.ErrClosed.
func (s *Store) Close() error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return model.Closed("persistent")
	}

	// the sweeper takes the read lock, so it is stopped first
	_ = s.sweeper.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Closed("persistent")
	}
	s.closed = true

	err := errors.Join(s.stmts.close(), s.release())
	s.logger.Info("persistent store is closed", "filename", s.cfg.Filename)
	if err != nil {
		return model.Database(err, "persistent: close")
	}
	return nil
}
