package lifetimer

import "sync/atomic"

type lifetimerCounters struct {
	scans   atomic.Int64 // total sweeps performed
	removed atomic.Int64 // entries removed by sweeps
	errors  atomic.Int64 // failed sweeps
}

func newLifetimerCounters() *lifetimerCounters {
	return &lifetimerCounters{
		scans:   atomic.Int64{},
		removed: atomic.Int64{},
		errors:  atomic.Int64{},
	}
}

func (c *lifetimerCounters) snapshot() (scans, removed, errors int64) {
	return c.scans.Load(), c.removed.Load(), c.errors.Load()
}
