// Package telemetry periodically logs the size and counters of registered stores.
package telemetry

import (
	"context"
	"github.com/Borislavv/go-ash-store/config"
	"github.com/Borislavv/go-ash-store/internal/shared/bytes"
	"github.com/benbjohnson/clock"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Source is a store whose size is reported on every tick.
type Source interface {
	Stats(ctx context.Context) (entries, bytes int64, err error)
}

// Counting sources additionally report cumulative counters; their per-interval deltas are logged.
type Counting interface {
	Counters() map[string]int64
}

type Logger interface {
	Interval() time.Duration
	Close() error
}

type target struct {
	name    string
	source  Source
	sampler sampler
	prev    snapshot
}

type Logs struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
	interval time.Duration
	ticker   *clock.Ticker
	targets  []*target
	done     chan struct{}
	once     sync.Once
}

// New starts logging sources by name. A nil cfg yields a NoOpLogger.
func New(ctx context.Context, cfg *config.Telemetry, clk clock.Clock, logger *slog.Logger, sources map[string]Source) Logger {
	if !cfg.Enabled() || len(sources) == 0 {
		return &NoOpLogger{}
	}
	interval := (&config.Telemetry{Interval: cfg.Interval}).WithDefaults().Interval
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}

	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	slices.Sort(names)

	targets := make([]*target, 0, len(names))
	for _, name := range names {
		t := &target{name: name, source: sources[name], sampler: newSampler(sources[name])}
		t.prev = t.sampler.snapshot()
		targets = append(targets, t)
	}

	ctx, cancel := context.WithCancel(ctx)
	return (&Logs{
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		interval: interval,
		ticker:   clk.Ticker(interval),
		targets:  targets,
		done:     make(chan struct{}),
	}).run()
}

func (l *Logs) Interval() time.Duration {
	return l.interval
}

// Close stops the loop and waits for it. Safe to call more than once.
func (l *Logs) Close() error {
	l.once.Do(func() {
		l.cancel()
		l.ticker.Stop()
	})
	<-l.done
	return nil
}

func (l *Logs) run() *Logs {
	go l.loop()
	return l
}

func (l *Logs) loop() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-l.ticker.C:
			l.report(l.ctx)
		}
	}
}

func (l *Logs) report(ctx context.Context) {
	for _, t := range l.targets {
		attrs := []any{"source", t.name, "interval", l.interval.String()}

		entries, size, err := t.source.Stats(ctx)
		if err != nil {
			l.logger.Warn("storage stats are unavailable", append(attrs, "err", err)...)
			continue
		}
		attrs = append(attrs, "entries", entries, "size", bytes.FmtMem(uint64(max(size, 0))))

		cur := t.sampler.snapshot()
		for _, c := range deltaSnapshot(t.prev, cur) {
			attrs = append(attrs, c.name, c.value)
		}
		t.prev = cur

		l.logger.Info("storage", attrs...)
	}
}
