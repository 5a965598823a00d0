package config

type MemoryCfg struct {
	// MaxEntries bounds the memory tier with a per-shard LRU.
	// Zero leaves the tier unbounded; it is then emptied only on memory pressure.
	MaxEntries int64 `yaml:"max_entries"`
}

func (cfg MemoryCfg) Bounded() bool {
	return cfg.MaxEntries > 0
}

type PressureCfg struct {
	// SoftLimit is the heap size above which the memory tier is flushed.
	// Zero follows GOMEMLIMIT, or 1GiB when no limit is set.
	SoftLimit Bytes `yaml:"soft_limit"`

	// CallsPerSec defines how many heap checks the watcher performs per second.
	CallsPerSec int `yaml:"calls_per_sec"`
}

func (cfg *PressureCfg) Enabled() bool {
	return cfg != nil
}
