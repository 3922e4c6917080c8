package bounded

import "sync/atomic"

type counters struct {
	evictedItems atomic.Int64
	evictedBytes atomic.Int64
	samePayload  atomic.Int64 // overwrites that kept the stored payload
}

func newCounters() *counters {
	return &counters{
		evictedItems: atomic.Int64{},
		evictedBytes: atomic.Int64{},
		samePayload:  atomic.Int64{},
	}
}

func (c *counters) snapshot() (evictedItems, evictedBytes, samePayload int64) {
	return c.evictedItems.Load(), c.evictedBytes.Load(), c.samePayload.Load()
}
