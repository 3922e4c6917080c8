package distributed

import (
	"context"
	"github.com/Borislavv/go-ash-store/internal/shared/queue"
	"github.com/Borislavv/go-ash-store/internal/shared/rate"
	"github.com/Borislavv/go-ash-store/model"
	"log/slog"
	"sync"
	"sync/atomic"
)

const cleanerQueueSize = 1024

// staleRef is a metadata key whose value record was found missing.
type staleRef struct {
	metadataKey string
	id          string
}

// cleaner deletes stale metadata keys off the read path. Requests beyond the
// queue capacity are dropped; the next read of the key queues it again.
type cleaner struct {
	ctx       context.Context
	cancel    context.CancelFunc
	transport Transport
	queue     *queue.Queue[staleRef]
	notify    chan struct{}
	pacer     *rate.Pacer
	onError   func(error)
	logger    *slog.Logger
	done      chan struct{}
	once      sync.Once

	cleaned atomic.Int64
	dropped atomic.Int64
}

func newCleaner(ctx context.Context, transport Transport, limit int, onError func(error), logger *slog.Logger) *cleaner {
	ctx, cancel := context.WithCancel(ctx)
	c := &cleaner{
		ctx:       ctx,
		cancel:    cancel,
		transport: transport,
		queue:     &queue.Queue[staleRef]{},
		notify:    make(chan struct{}, 1),
		pacer:     rate.NewPacer(ctx, limit),
		onError:   onError,
		logger:    logger,
		done:      make(chan struct{}),
	}
	c.queue.Init(cleanerQueueSize)
	return c.run()
}

func (c *cleaner) run() *cleaner {
	c.logger.Info("cleaner is running", "rate", c.pacer.Limit())
	go c.loop()
	return c
}

func (c *cleaner) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			c.logger.Info("cleaner is stopped", "cleaned", c.cleaned.Load(), "dropped", c.dropped.Load())
			return
		case <-c.notify:
			for {
				ref, ok := c.queue.TryPop()
				if !ok {
					break
				}
				if err := c.pacer.Wait(c.ctx); err != nil {
					break
				}
				c.clean(ref)
			}
		}
	}
}

func (c *cleaner) enqueue(ref staleRef) bool {
	if !c.queue.TryPush(ref) {
		c.dropped.Add(1)
		return false
	}
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return true
}

// clean deletes the metadata key only while it still references the missing value.
func (c *cleaner) clean(ref staleRef) {
	fields, err := c.transport.HGetAll(c.ctx, ref.metadataKey)
	if err != nil {
		c.onError(model.Network(err, "distributed: stale metadata lookup"))
		return
	}
	if fields[fieldID] != ref.id {
		return
	}
	if _, err = c.transport.Del(c.ctx, ref.metadataKey); err != nil {
		c.onError(model.Network(err, "distributed: stale metadata delete"))
		return
	}
	c.cleaned.Add(1)
}

func (c *cleaner) close() {
	c.once.Do(c.cancel)
	<-c.done
}
