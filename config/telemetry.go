package config

import "time"

type TelemetryCfg struct {
	// Interval between two stat log lines. Defaults to 5s.
	Interval time.Duration `yaml:"interval"`
}

func (cfg *TelemetryCfg) Enabled() bool {
	return cfg != nil
}
