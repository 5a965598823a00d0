package config

import "time"

type DiskCfg struct {
	// Dir is the root directory of all caches. Each cache lives in Dir/<cache name>.
	Dir string `yaml:"dir"`

	// SyncInterval defines how often the per-format indexes are persisted.
	// Zero means the indexes are persisted only on Flush and Close.
	SyncInterval time.Duration `yaml:"sync_interval"`

	// Gzip compresses the index files.
	Gzip bool `yaml:"gzip"`

	// Crc32Control enables checksums of index records. Corrupted records are skipped on load.
	Crc32Control bool `yaml:"crc32_control"`
}

func (cfg *DiskCfg) Enabled() bool {
	return cfg != nil
}
