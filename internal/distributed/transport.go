package distributed

import (
	"context"
	"time"
)

type OpKind uint8

const (
	OpHSet OpKind = iota + 1
	OpSet
	OpPExpire
	OpPersist
	OpDel
)

func (k OpKind) String() string {
	switch k {
	case OpHSet:
		return "hset"
	case OpSet:
		return "set"
	case OpPExpire:
		return "pexpire"
	case OpPersist:
		return "persist"
	case OpDel:
		return "del"
	default:
		return "unknown"
	}
}

// Op is one command of an atomic write batch.
type Op struct {
	Kind   OpKind
	Key    string
	Fields map[string]string // OpHSet
	Value  []byte            // OpSet
	TTL    time.Duration     // OpPExpire
}

func HSet(key string, fields map[string]string) Op {
	return Op{Kind: OpHSet, Key: key, Fields: fields}
}

func Set(key string, value []byte) Op {
	return Op{Kind: OpSet, Key: key, Value: value}
}

func PExpire(key string, ttl time.Duration) Op {
	return Op{Kind: OpPExpire, Key: key, TTL: ttl}
}

func Persist(key string) Op {
	return Op{Kind: OpPersist, Key: key}
}

func Del(key string) Op {
	return Op{Kind: OpDel, Key: key}
}

// Transport is the remote key/value connection the store drives.
type Transport interface {
	// HGetAll returns an empty map for an absent key.
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Del(ctx context.Context, keys ...string) (removed int64, err error)
	// Batch applies ops in order as one atomic unit.
	Batch(ctx context.Context, ops ...Op) error
	Close() error
}

// Tracker delivers server-pushed invalidations for keys read through the paired Transport.
type Tracker interface {
	// Track starts delivering batches to fn and returns immediately.
	// A nil batch means the server dropped every tracked key.
	Track(fn func(keys []string))
	Close() error
}
