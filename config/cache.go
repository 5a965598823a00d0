package config

// Cache groups configuration of all cache subsystems.
// Optional components are disabled by leaving them nil.
type Cache struct {
	// Name identifies the cache instance. It is the subdirectory of Disk.Dir holding the cache's files.
	Name string `yaml:"name"`

	// Disk configures the persistent tier.
	// If nil, the cache keeps artifacts in memory only and formats' disk capacities are ignored.
	Disk *DiskCfg `yaml:"disk"`

	// Memory configures the in-process tier of decoded artifacts.
	Memory MemoryCfg `yaml:"memory"`

	// Pressure configures the heap watcher that flushes the memory tier.
	// If nil, the memory tier is flushed only by explicit Cache.HandleMemoryPressure calls.
	Pressure *PressureCfg `yaml:"pressure"`

	// Pool bounds the background work: disk reads, transforms and disk writes.
	Pool PoolCfg `yaml:"pool"`

	// Telemetry enables periodic stat logs.
	// If nil, no stat logs are written.
	Telemetry *TelemetryCfg `yaml:"telemetry"`

	// Formats are registered by the cache constructor in the given order.
	Formats []FormatCfg `yaml:"formats"`
}
