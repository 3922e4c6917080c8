// Package distributed implements the remote store: every entry is a metadata hash
// pointing at a separately stored value, and reads are served from a local tracking
// cache kept coherent by server-pushed invalidations.
//
// Reads are fail-open (transport errors go to the error callback and read as a miss),
// writes and deletes are fail-loud.
package distributed

import (
	"context"
	"errors"
	"github.com/Borislavv/go-ash-store/config"
	"github.com/Borislavv/go-ash-store/internal/bounded"
	"github.com/Borislavv/go-ash-store/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Options are the collaborators of a Store that do not come from the yaml config.
type Options struct {
	// ErrorCallback receives every swallowed error. Defaults to a zerolog error line.
	ErrorCallback func(error)
	Logger        *slog.Logger
}

func defaultErrorCallback(err error) {
	log.Error().Err(err).Msg("[distributed] swallowed transport error")
}

type Store struct {
	cfg       config.Distributed
	keys      keyspace
	transport Transport
	tracker   Tracker
	tracking  *bounded.Store // nil when tracking is disabled
	cleaner   *cleaner
	onError   func(error)
	logger    *slog.Logger
	counters  *counters

	// epoch changes on every local eviction caused by a write or an invalidation
	epoch  atomic.Uint64
	closed atomic.Bool
	once   sync.Once
}

// New takes ownership of transport and tracker; both are closed by Store.Close.
// A tracker is required unless cfg disables tracking.
func New(ctx context.Context, cfg *config.Distributed, transport Transport, tracker Tracker, opts Options) (*Store, error) {
	var c config.Distributed
	if cfg != nil {
		c = *cfg
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.WithDefaults()
	if transport == nil {
		return nil, model.InvalidConfigf("distributed: transport is required")
	}
	if c.IsTracking() && tracker == nil {
		return nil, model.InvalidConfigf("distributed: tracking is enabled but no tracker was given")
	}
	if opts.ErrorCallback == nil {
		opts.ErrorCallback = defaultErrorCallback
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Store{
		cfg:       c,
		keys:      newKeyspace(c.Namespace),
		transport: transport,
		onError:   opts.ErrorCallback,
		logger:    opts.Logger,
		counters:  newCounters(),
	}
	if c.IsTracking() {
		tracking, err := bounded.New(c.TrackingCache())
		if err != nil {
			return nil, err
		}
		s.tracking = tracking
		s.tracker = tracker
		s.tracker.Track(s.invalidate)
		s.logger.Info("tracking is running", "namespace", c.Namespace, "max_count", c.MaxCount, "max_size", c.MaxSize)
	}
	s.cleaner = newCleaner(ctx, transport, c.CleanupRate, s.onError, s.logger)
	return s, nil
}

// Set writes the metadata hash and a freshly identified value record in one atomic batch.
// A zero ttl stores both without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, meta model.Metadata, ttl time.Duration) error {
	if ttl < 0 {
		return model.Invalidf("ttl must be non-negative, got %s", ttl)
	}
	if size := int64(len(value)); size > s.cfg.MaxEntrySize {
		return model.TooLarge(size, s.cfg.MaxEntrySize)
	}
	encoded, err := meta.Encode()
	if err != nil {
		return model.Invalidf("metadata is not serializable: %v", err)
	}
	if s.closed.Load() {
		return model.Closed("distributed")
	}
	if value == nil {
		value = []byte{}
	}

	metadataKey := s.keys.metadataKey(key)

	var superseded string
	if !s.cfg.KeepSuperseded {
		fields, err := s.transport.HGetAll(ctx, metadataKey)
		if err != nil {
			return model.Network(err, "distributed: set")
		}
		superseded = fields[fieldID]
	}

	id := uuid.NewString()
	valueKey := s.keys.valueKey(id)

	ops := make([]Op, 0, 5)
	ops = append(ops,
		HSet(metadataKey, map[string]string{fieldMetadata: string(encoded), fieldID: id}),
		Set(valueKey, value),
	)
	if ttl > 0 {
		ops = append(ops, PExpire(metadataKey, ttl), PExpire(valueKey, ttl))
	} else {
		ops = append(ops, Persist(metadataKey))
	}
	if superseded != "" {
		ops = append(ops, Del(s.keys.valueKey(superseded)))
	}

	if err = s.transport.Batch(ctx, ops...); err != nil {
		return model.Network(err, "distributed: set")
	}
	if s.tracking != nil {
		s.epoch.Add(1)
		s.tracking.Delete(key)
	}
	return nil
}

// FindByKey reads straight from the transport, never from the tracking cache.
func (s *Store) FindByKey(ctx context.Context, key string) (model.Entry, bool) {
	if s.closed.Load() {
		return model.Entry{}, false
	}

	metadataKey := s.keys.metadataKey(key)
	fields, err := s.transport.HGetAll(ctx, metadataKey)
	if err != nil {
		s.onError(model.Network(err, "distributed: find metadata"))
		return model.Entry{}, false
	}
	id := fields[fieldID]
	if id == "" {
		return model.Entry{}, false
	}
	valueKey := s.keys.valueKey(id)

	meta, err := model.DecodeMetadata([]byte(fields[fieldMetadata]))
	if err != nil {
		s.onError(errors.Join(model.Invalidf("distributed: corrupt metadata under %q", metadataKey), err))
		if _, err = s.transport.Del(ctx, metadataKey, valueKey); err != nil {
			s.onError(model.Network(err, "distributed: corrupt metadata delete"))
		}
		s.counters.corrupt.Add(1)
		return model.Entry{}, false
	}

	value, found, err := s.transport.Get(ctx, valueKey)
	if err != nil {
		s.onError(model.Network(err, "distributed: find value"))
		return model.Entry{}, false
	}
	if !found {
		s.cleaner.enqueue(staleRef{metadataKey: metadataKey, id: id})
		s.counters.stale.Add(1)
		return model.Entry{}, false
	}
	if value == nil {
		value = []byte{}
	}
	return model.NewEntry(value, meta), true
}

// Get serves from the tracking cache and falls back to FindByKey, populating the cache on a hit.
func (s *Store) Get(ctx context.Context, key string) (model.Entry, bool) {
	if s.tracking == nil {
		return s.find(ctx, key)
	}
	if e, ok := s.tracking.Get(key); ok {
		s.counters.localHits.Add(1)
		return e, true
	}

	// an invalidation arriving during the remote read makes the result unsafe to cache
	epoch := s.epoch.Load()
	e, ok := s.find(ctx, key)
	if ok && epoch == s.epoch.Load() {
		if err := s.tracking.Set(key, e.Value, e.Metadata); err != nil {
			s.logger.Debug("entry is not tracked", "key", key, "err", err)
		}
	}
	return e, ok
}

func (s *Store) find(ctx context.Context, key string) (model.Entry, bool) {
	e, ok := s.FindByKey(ctx, key)
	if ok {
		s.counters.remoteHits.Add(1)
	} else {
		s.counters.misses.Add(1)
	}
	return e, ok
}

func (s *Store) Has(ctx context.Context, key string) bool {
	_, ok := s.Get(ctx, key)
	return ok
}

// Delete removes both keys of the entry. It reports false when no metadata was found.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if s.closed.Load() {
		return false, model.Closed("distributed")
	}

	metadataKey := s.keys.metadataKey(key)
	fields, err := s.transport.HGetAll(ctx, metadataKey)
	if err != nil {
		return false, model.Network(err, "distributed: delete")
	}
	if s.tracking != nil {
		s.epoch.Add(1)
		s.tracking.Delete(key)
	}

	id, found := fields[fieldID]
	if !found {
		return false, nil
	}
	if _, err = s.transport.Del(ctx, metadataKey, s.keys.valueKey(id)); err != nil {
		return false, model.Network(err, "distributed: delete")
	}
	return true, nil
}

// invalidate is the Tracker callback.
func (s *Store) invalidate(keys []string) {
	s.epoch.Add(1)
	s.counters.invalidations.Add(1)
	if len(keys) == 0 {
		s.tracking.Clear()
		return
	}
	for _, remote := range keys {
		if key, ok := s.keys.cacheKey(remote); ok {
			s.tracking.Delete(key)
		}
	}
}

// Tracking exposes the local tracking cache; nil when tracking is disabled.
func (s *Store) Tracking() *bounded.Store { return s.tracking }

func (s *Store) Config() config.Distributed { return s.cfg }

// Metrics reports tracking cache hits, remote hits, misses and received invalidation batches.
func (s *Store) Metrics() (localHits, remoteHits, misses, invalidations int64) {
	return s.counters.snapshot()
}

// Counters implements telemetry.Counting.
func (s *Store) Counters() map[string]int64 {
	local, remote, misses, invalidations := s.counters.snapshot()
	return map[string]int64{
		"local_hits":       local,
		"remote_hits":      remote,
		"misses":           misses,
		"invalidations":    invalidations,
		"stale":            s.counters.stale.Load(),
		"corrupt":          s.counters.corrupt.Load(),
		"cleanups":         s.cleaner.cleaned.Load(),
		"dropped_cleanups": s.cleaner.dropped.Load(),
	}
}

// Stats implements telemetry.Source over the tracking cache.
func (s *Store) Stats(ctx context.Context) (entries, bytes int64, err error) {
	if s.tracking == nil {
		return 0, 0, nil
	}
	return s.tracking.Stats(ctx)
}

// Close is idempotent. Failures of releasing the connections go to the error callback.
func (s *Store) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		s.cleaner.close()
		if s.tracker != nil {
			if err := s.tracker.Close(); err != nil {
				s.onError(model.Network(err, "distributed: close tracker"))
			}
		}
		if err := s.transport.Close(); err != nil {
			s.onError(model.Network(err, "distributed: close transport"))
		}
		if s.tracking != nil {
			s.tracking.Clear()
		}
		s.logger.Info("distributed store is closed", "namespace", s.cfg.Namespace)
	})
	return nil
}
