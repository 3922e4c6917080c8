package redistransport

import (
	"context"
	"github.com/redis/go-redis/v9"
	"log/slog"
	"sync"
	"sync/atomic"
)

// InvalidationChannel is where the server pushes invalidated keys of tracking clients.
const InvalidationChannel = "__redis__:invalidate"

// Tracker owns the subscriber client.
type Tracker struct {
	client *redis.Client
	pubsub *redis.PubSub
	logger *slog.Logger
	id     atomic.Int64 // CLIENT ID of the subscriber connection
	once   sync.Once
}

// subscribe returns once the subscription is confirmed by the server.
func (t *Tracker) subscribe(ctx context.Context, client *redis.Client) error {
	if t.logger == nil {
		t.logger = slog.Default()
	}
	pubsub := client.Subscribe(ctx, InvalidationChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		_ = client.Close()
		return err
	}
	t.client, t.pubsub = client, pubsub
	return nil
}

// Track delivers every invalidation message to fn until Close. Only the first call has effect.
//
// Invalidations sent while the subscriber is reconnecting are lost, so every
// resubscription is delivered to fn as a flush (nil keys).
func (t *Tracker) Track(fn func(keys []string)) {
	t.once.Do(func() {
		ch := t.pubsub.ChannelWithSubscriptions()
		t.logger.Info("tracking subscriber is running", "channel", InvalidationChannel)
		go func() {
			for msg := range ch {
				switch msg := msg.(type) {
				case *redis.Message:
					fn(invalidatedKeys(msg))
				case *redis.Subscription:
					if msg.Kind == "subscribe" && msg.Channel == InvalidationChannel {
						t.logger.Warn("tracking subscriber resubscribed, flushing tracked keys")
						fn(nil)
					}
				}
			}
			t.logger.Info("tracking subscriber is stopped")
		}()
	})
}

// invalidatedKeys returns nil for a flush notification.
func invalidatedKeys(msg *redis.Message) []string {
	if len(msg.PayloadSlice) > 0 {
		return msg.PayloadSlice
	}
	if msg.Payload != "" {
		return []string{msg.Payload}
	}
	return nil
}

func (t *Tracker) Close() error {
	err := t.pubsub.Close()
	if cerr := t.client.Close(); err == nil {
		err = cerr
	}
	return err
}
