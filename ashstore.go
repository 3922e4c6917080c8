// Package ashstore is a set of key/value stores sharing one contract over different substrates:
// an LRU map, its expiring variant, a size bounded byte store, a SQLite-backed durable store and
// a Redis-backed distributed store with a local tracking cache.
package ashstore

import (
	"context"
	"github.com/Borislavv/go-ash-store/config"
	"github.com/Borislavv/go-ash-store/internal/bounded"
	"github.com/Borislavv/go-ash-store/internal/distributed"
	"github.com/Borislavv/go-ash-store/internal/distributed/redistransport"
	"github.com/Borislavv/go-ash-store/internal/lru"
	"github.com/Borislavv/go-ash-store/internal/persistent"
	"github.com/Borislavv/go-ash-store/internal/telemetry"
	"github.com/Borislavv/go-ash-store/internal/ttl"
	"github.com/Borislavv/go-ash-store/model"
	"log/slog"
)

type (
	LRU[K comparable, V any] = lru.Map[K, V]
	TTL[K comparable, V any] = ttl.Cache[K, V]

	Bounded     = bounded.Store
	Persistent  = persistent.Store
	Registry    = persistent.Registry
	Distributed = distributed.Store

	DistributedOptions = distributed.Options
	Transport          = distributed.Transport
	Tracker            = distributed.Tracker

	TelemetrySource = telemetry.Source
	TelemetryLogger = telemetry.Logger

	Entry    = model.Entry
	Metadata = model.Metadata
)

var (
	ErrInvalidArgument = model.ErrInvalidArgument
	ErrInvalidConfig   = model.ErrInvalidConfig
	ErrEntryTooLarge   = model.ErrEntryTooLarge
	ErrClosed          = model.ErrClosed
)

func NewLRU[K comparable, V any](cfg *config.LRU) (*LRU[K, V], error) {
	return lru.New[K, V](cfg)
}

// NewTTL must be paired with CancelCleanupTimer (or Close) when cfg.StayAlive is set.
func NewTTL[K comparable, V any](ctx context.Context, cfg *config.TTL, logger *slog.Logger) (*TTL[K, V], error) {
	return ttl.New[K, V](ctx, cfg, nil, logger)
}

func NewBounded(cfg *config.Bounded) (*Bounded, error) {
	return bounded.New(cfg)
}

// NewRegistry shares engine handles between durable stores opened on the same file.
func NewRegistry() *Registry {
	return persistent.NewRegistry()
}

// NewPersistent opens a durable store. A nil reg gives the store a private handle.
func NewPersistent(ctx context.Context, cfg *config.Persistent, reg *Registry, logger *slog.Logger) (*Persistent, error) {
	return persistent.New(ctx, cfg, reg, nil, logger)
}

// NewDistributed dials Redis as described by cfg.
func NewDistributed(ctx context.Context, cfg *config.Distributed, opts DistributedOptions) (*Distributed, error) {
	if cfg == nil {
		cfg = &config.Distributed{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.WithDefaults()

	conn, tracker, err := redistransport.Dial(ctx, redistransport.Options(cfg), cfg.IsTracking(), opts.Logger)
	if err != nil {
		return nil, model.Network(err, "distributed: dial "+cfg.Addr)
	}

	var t distributed.Tracker
	if tracker != nil {
		t = tracker
	}
	s, err := distributed.New(ctx, cfg, conn, t, opts)
	if err != nil {
		_ = conn.Close()
		if tracker != nil {
			_ = tracker.Close()
		}
		return nil, err
	}
	return s, nil
}

// NewDistributedWithTransport runs the distributed store over a caller-provided transport.
// tracker may be nil only when cfg disables tracking.
func NewDistributedWithTransport(ctx context.Context, cfg *config.Distributed, transport Transport, tracker Tracker, opts DistributedOptions) (*Distributed, error) {
	return distributed.New(ctx, cfg, transport, tracker, opts)
}

// NewTelemetry logs the stats of sources every cfg.Interval. A nil cfg disables it.
func NewTelemetry(ctx context.Context, cfg *config.Telemetry, logger *slog.Logger, sources map[string]TelemetrySource) TelemetryLogger {
	return telemetry.New(ctx, cfg, nil, logger, sources)
}
