package telemetry

import "time"

type NoOpLogger struct{}

func (n *NoOpLogger) Interval() time.Duration { return 0 }
func (n *NoOpLogger) Close() error            { return nil }
