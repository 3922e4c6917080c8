package ashstore

import (
	"context"
	"errors"
	"github.com/Borislavv/go-ash-store/config"
	"github.com/Borislavv/go-ash-store/internal/telemetry"
	"log/slog"
)

// Stores holds one instance of every backend enabled in a config.Config.
// Sections left nil in the config leave the matching field nil.
type Stores struct {
	LRU         *LRU[string, []byte]
	TTL         *TTL[string, []byte]
	Bounded     *Bounded
	Persistent  *Persistent
	Distributed *Distributed
	Telemetry   TelemetryLogger

	cls context.CancelFunc
}

// New opens every configured backend. On error the backends opened so far are closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts DistributedOptions) (s *Stores, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.AdjustConfig()

	ctx, cancel := context.WithCancel(ctx)
	s = &Stores{cls: cancel, Telemetry: &telemetry.NoOpLogger{}}
	defer func() {
		if err != nil {
			_ = s.Close()
			s = nil
		}
	}()

	sources := make(map[string]TelemetrySource)
	if cfg.LRU.Enabled() {
		if s.LRU, err = NewLRU[string, []byte](cfg.LRU); err != nil {
			return s, err
		}
	}
	if cfg.TTL.Enabled() {
		if s.TTL, err = NewTTL[string, []byte](ctx, cfg.TTL, logger); err != nil {
			return s, err
		}
		sources["ttl"] = s.TTL
	}
	if cfg.Bounded.Enabled() {
		if s.Bounded, err = NewBounded(cfg.Bounded); err != nil {
			return s, err
		}
		sources["bounded"] = s.Bounded
	}
	if cfg.Persistent.Enabled() {
		if s.Persistent, err = NewPersistent(ctx, cfg.Persistent, nil, logger); err != nil {
			return s, err
		}
		sources["persistent"] = s.Persistent
	}
	if cfg.Distributed.Enabled() {
		if opts.Logger == nil {
			opts.Logger = logger
		}
		if s.Distributed, err = NewDistributed(ctx, cfg.Distributed, opts); err != nil {
			return s, err
		}
		sources["distributed"] = s.Distributed
	}
	s.Telemetry = NewTelemetry(ctx, cfg.Telemetry, logger, sources)
	return s, nil
}

// Close releases every opened backend. Safe to call more than once.
func (s *Stores) Close() error {
	s.cls()

	var errs []error
	if s.Telemetry != nil {
		errs = append(errs, s.Telemetry.Close())
	}
	if s.TTL != nil {
		errs = append(errs, s.TTL.Close())
	}
	if s.Persistent != nil {
		if err := s.Persistent.Close(); err != nil && !errors.Is(err, ErrClosed) {
			errs = append(errs, err)
		}
	}
	if s.Distributed != nil {
		errs = append(errs, s.Distributed.Close())
	}
	return errors.Join(errs...)
}
