package lifetimer

// NoOpLifetimer is used when no sweep was requested.
// It performs no work and reports zero metrics.
type NoOpLifetimer struct{}

// LifetimerMetrics always returns zero values.
func (NoOpLifetimer) LifetimerMetrics() (scans, removed, errors int64) {
	return 0, 0, 0
}

// Close does nothing and returns nil.
func (NoOpLifetimer) Close() error {
	return nil
}
