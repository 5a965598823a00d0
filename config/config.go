package config

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultName              = "default"
	defaultTelemetryInterval = 5 * time.Second
	defaultPressureCalls     = 1
	defaultPressureSoftLimit = Bytes(1 << 30)
)

func (cfg *Cache) AdjustConfig() {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}

	if cfg.Pool.Workers <= 0 {
		cfg.Pool.Workers = int64(runtime.GOMAXPROCS(0))
	}

	if cfg.Pressure.Enabled() {
		if cfg.Pressure.CallsPerSec <= 0 {
			cfg.Pressure.CallsPerSec = defaultPressureCalls
		}
		if cfg.Pressure.SoftLimit == 0 {
			cfg.Pressure.SoftLimit = softLimitFromRuntime()
		}
	}

	if cfg.Telemetry.Enabled() && cfg.Telemetry.Interval <= 0 {
		cfg.Telemetry.Interval = defaultTelemetryInterval
	}
}

// softLimitFromRuntime follows GOMEMLIMIT when it is set.
func softLimitFromRuntime() Bytes {
	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit != math.MaxInt64 {
		return Bytes(limit)
	}
	return defaultPressureSoftLimit
}

func LoadConfig(path string) (*Cache, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	var cfg *Cache
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("empty config in %s", path)
	}
	cfg.AdjustConfig()

	return cfg, nil
}
