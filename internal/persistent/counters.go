package persistent

import "sync/atomic"

type counters struct {
	expired atomic.Int64
	pruned  atomic.Int64
}

func newCounters() *counters {
	return &counters{
		expired: atomic.Int64{},
		pruned:  atomic.Int64{},
	}
}

func (c *counters) snapshot() (expired, pruned int64) {
	return c.expired.Load(), c.pruned.Load()
}
