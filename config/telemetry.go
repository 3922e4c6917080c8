package config

import "time"

const DefaultTelemetryInterval = 5 * time.Second

type Telemetry struct {
	// Interval is the period between two stat log lines.
	Interval time.Duration `yaml:"interval"`
}

func (cfg *Telemetry) Enabled() bool {
	return cfg != nil
}

func (cfg *Telemetry) WithDefaults() *Telemetry {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTelemetryInterval
	}
	return cfg
}
