package telemetry

import (
	"cmp"
	"slices"
)

type sampler struct {
	source Counting // nil when the source has no counters
}

func newSampler(s Source) sampler {
	c, _ := s.(Counting)
	return sampler{source: c}
}

type counter struct {
	name  string
	value uint64
}

// snapshot holds cumulative counters (monotonic), sorted by name.
type snapshot []counter

func (s sampler) snapshot() snapshot {
	if s.source == nil {
		return nil
	}
	counters := s.source.Counters()
	out := make(snapshot, 0, len(counters))
	for name, value := range counters {
		out = append(out, counter{name: name, value: uint64(max(value, 0))})
	}
	slices.SortFunc(out, func(a, b counter) int { return cmp.Compare(a.name, b.name) })
	return out
}

// deltaSnapshot converts cumulative snapshots to per-interval deltas.
// If counters reset (cur < prev), it treats cur as the delta.
func deltaSnapshot(prev, cur snapshot) snapshot {
	previous := make(map[string]uint64, len(prev))
	for _, c := range prev {
		previous[c.name] = c.value
	}
	out := make(snapshot, 0, len(cur))
	for _, c := range cur {
		out = append(out, counter{name: c.name, value: delta(previous[c.name], c.value)})
	}
	return out
}

func delta(prev, cur uint64) uint64 {
	if cur >= prev {
		return cur - prev
	}
	return cur
}
