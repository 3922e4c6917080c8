package rate

import (
	"context"
	"go.uber.org/ratelimit"
)

// Pacer hands out at most limit permits per second until its context is done.
// A non-positive limit disables pacing.
type Pacer struct {
	ch    chan struct{}
	limit int
}

func NewPacer(ctx context.Context, limit int) *Pacer {
	p := &Pacer{limit: limit}
	if limit <= 0 {
		return p
	}
	p.ch = make(chan struct{})
	go p.provider(ctx, ratelimit.New(limit, ratelimit.WithoutSlack))
	return p
}

func (p *Pacer) provider(ctx context.Context, l ratelimit.Limiter) {
	for {
		l.Take()
		select {
		case <-ctx.Done():
			return
		case p.ch <- struct{}{}:
		}
	}
}

// Wait blocks until a permit is available or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.ch == nil {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ch:
		return nil
	}
}

func (p *Pacer) Limit() int { return p.limit }
