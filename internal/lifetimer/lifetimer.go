// Package lifetimer runs the active expiry sweep shared by the TTL map and the durable store.
package lifetimer

import (
	"context"
	"github.com/benbjohnson/clock"
	"log/slog"
	"sync"
	"time"
)

// SweepFunc removes every expired entry it finds in one pass and reports how many it removed.
type SweepFunc func(ctx context.Context) (removed int64, err error)

type Lifetimer interface {
	LifetimerMetrics() (scans, removed, errors int64)
	Close() error
}

// LifetimeWorker calls its SweepFunc once per interval. A tick is only rescheduled after
// the previous scan returned, so scans never overlap.
type LifetimeWorker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	name     string
	interval time.Duration
	logger   *slog.Logger
	timer    *clock.Timer
	sweep    SweepFunc
	counters *lifetimerCounters
	done     chan struct{}
	once     sync.Once
}

// New starts a worker. A non-positive interval yields a NoOpLifetimer.
func New(
	ctx context.Context,
	name string,
	interval time.Duration,
	clk clock.Clock,
	logger *slog.Logger,
	sweep SweepFunc,
) Lifetimer {
	if interval <= 0 {
		return &NoOpLifetimer{}
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	return (&LifetimeWorker{
		ctx:      ctx,
		cancel:   cancel,
		name:     name,
		interval: interval,
		logger:   logger,
		timer:    clk.Timer(interval),
		sweep:    sweep,
		counters: newLifetimerCounters(),
		done:     make(chan struct{}),
	}).run()
}

func (w *LifetimeWorker) LifetimerMetrics() (scans, removed, errors int64) {
	return w.counters.snapshot()
}

// Close stops the worker and waits until the loop exits. Safe to call more than once.
func (w *LifetimeWorker) Close() error {
	w.once.Do(func() {
		w.cancel()
		w.timer.Stop()
	})
	<-w.done
	return nil
}

func (w *LifetimeWorker) run() *LifetimeWorker {
	w.logger.Info("sweeper is running", "target", w.name, "interval", w.interval.String())
	go w.loop()
	return w
}

func (w *LifetimeWorker) loop() {
	defer close(w.done)
	defer func() {
		scans, removed, errs := w.counters.snapshot()
		w.logger.Info("sweeper is stopped", "target", w.name, "scans", scans, "removed", removed, "errors", errs)
	}()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.timer.C:
			removed, err := w.sweep(w.ctx)
			if removed > 0 {
				w.counters.removed.Add(removed)
			}
			if err != nil {
				w.counters.errors.Add(1)
				w.logger.Warn("sweep failed", "target", w.name, "err", err)
			}
			w.timer.Reset(w.interval)
			// counted last: a scan is complete once the next tick is scheduled
			w.counters.scans.Add(1)
		}
	}
}
