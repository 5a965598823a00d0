package config

type PoolCfg struct {
	// Workers is the number of concurrent background jobs (disk reads and productions).
	// Defaults to GOMAXPROCS.
	Workers int64 `yaml:"workers"`
}
