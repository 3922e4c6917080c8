package distributed

import "sync/atomic"

type counters struct {
	localHits     atomic.Int64
	remoteHits    atomic.Int64
	misses        atomic.Int64
	invalidations atomic.Int64
	stale         atomic.Int64
	corrupt       atomic.Int64
}

func newCounters() *counters {
	return &counters{}
}

func (c *counters) snapshot() (localHits, remoteHits, misses, invalidations int64) {
	return c.localHits.Load(), c.remoteHits.Load(), c.misses.Load(), c.invalidations.Load()
}
