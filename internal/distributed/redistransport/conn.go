// Package redistransport connects the distributed store to Redis.
//
// With tracking enabled two clients are opened: a RESP2 subscriber listening on the
// invalidation channel, and the primary client whose every connection turns on
// server-side client tracking redirected to the subscriber.
package redistransport

import (
	"context"
	"errors"
	"github.com/Borislavv/go-ash-store/config"
	"github.com/Borislavv/go-ash-store/internal/distributed"
	"github.com/redis/go-redis/v9"
	"log/slog"
	"sync"
	"sync/atomic"
)

var (
	_ distributed.Transport = (*Conn)(nil)
	_ distributed.Tracker   = (*Tracker)(nil)
)

// Options maps the yaml config onto go-redis options.
func Options(cfg *config.Distributed) *redis.Options {
	return &redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// Conn is the primary client. With tracking the client is replaced whenever the
// subscriber reconnects, so new connections redirect to the live subscriber.
type Conn struct {
	mu     sync.Mutex
	closed bool
	client atomic.Pointer[redis.Client]
}

// Dial returns a nil Tracker when tracking is off. opts is not modified.
func Dial(ctx context.Context, opts *redis.Options, tracking bool, logger *slog.Logger) (*Conn, *Tracker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		tracker       *Tracker
		conn          = &Conn{}
		primaryOpts   = *opts
		userOnConnect = opts.OnConnect
	)

	if tracking {
		tracker = &Tracker{logger: logger}

		subOpts := *opts
		subOpts.Protocol = 2
		subOpts.OnConnect = func(ctx context.Context, cn *redis.Conn) error {
			if userOnConnect != nil {
				if err := userOnConnect(ctx, cn); err != nil {
					return err
				}
			}
			id, err := cn.ClientID(ctx).Result()
			if err != nil {
				return err
			}
			if prev := tracker.id.Swap(id); prev != 0 && prev != id {
				logger.Warn("tracking subscriber reconnected", "prev_id", prev, "id", id)
				conn.renew()
			}
			return nil
		}

		if err := tracker.subscribe(ctx, redis.NewClient(&subOpts)); err != nil {
			return nil, nil, err
		}

		primaryOpts.OnConnect = func(ctx context.Context, cn *redis.Conn) error {
			if userOnConnect != nil {
				if err := userOnConnect(ctx, cn); err != nil {
					return err
				}
			}
			return cn.Do(ctx, "CLIENT", "TRACKING", "ON", "REDIRECT", tracker.id.Load()).Err()
		}
	}

	client := redis.NewClient(&primaryOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if tracker != nil {
			_ = tracker.Close()
		}
		return nil, nil, err
	}
	conn.client.Store(client)

	logger.Info("redis transport is connected", "addr", opts.Addr, "db", opts.DB, "tracking", tracking)
	return conn, tracker, nil
}

// NewConn wraps an existing client without tracking. The Conn owns client.
func NewConn(client *redis.Client) *Conn {
	c := &Conn{}
	c.client.Store(client)
	return c
}

// renew swaps in a fresh client with the same options and closes the previous one.
// Commands in flight on the previous client fail.
func (c *Conn) renew() {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.client.Load()
	if c.closed || prev == nil {
		return
	}
	opts := *prev.Options()
	c.client.Store(redis.NewClient(&opts))
	_ = prev.Close()
}

func (c *Conn) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.client.Load().HGetAll(ctx, key).Result()
}

func (c *Conn) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Load().Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (c *Conn) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return c.client.Load().Del(ctx, keys...).Result()
}

// Batch wraps ops into MULTI/EXEC.
func (c *Conn) Batch(ctx context.Context, ops ...distributed.Op) error {
	_, err := c.client.Load().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range ops {
			switch op.Kind {
			case distributed.OpHSet:
				pairs := make([]any, 0, len(op.Fields)*2)
				for field, value := range op.Fields {
					pairs = append(pairs, field, value)
				}
				pipe.HSet(ctx, op.Key, pairs...)
			case distributed.OpSet:
				pipe.Set(ctx, op.Key, op.Value, 0)
			case distributed.OpPExpire:
				pipe.PExpire(ctx, op.Key, op.TTL)
			case distributed.OpPersist:
				pipe.Persist(ctx, op.Key)
			case distributed.OpDel:
				pipe.Del(ctx, op.Key)
			default:
				return errors.New("redistransport: unsupported op " + op.Kind.String())
			}
		}
		return nil
	})
	return err
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Load().Close()
}
