package help

import (
	"time"

	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/Borislavv/go-ash-imgcache/model"
)

// Cfg is a disk-backed cache rooted at dir with a "thumb" and an "avatar" format.
func Cfg(dir string) *config.Cache {
	c := &config.Cache{
		Name: "test",
		Disk: &config.DiskCfg{
			Dir:          dir,
			Gzip:         true,
			Crc32Control: true,
		},
		Pool: config.PoolCfg{Workers: 4},
		Formats: []config.FormatCfg{
			{Name: "thumb", Width: 32, Height: 32, ScaleMode: model.ScaleModeAspectFill, DiskCapacity: 1 << 20},
			{Name: "avatar", Width: 16, Height: 16, ScaleMode: model.ScaleModeFill, Encoding: model.EncodingPNG, DiskCapacity: 1 << 20},
		},
	}
	c.AdjustConfig()
	return c
}

// MemoryOnlyCfg has no disk tier and no predefined formats.
func MemoryOnlyCfg() *config.Cache {
	c := &config.Cache{Name: "memory-only", Pool: config.PoolCfg{Workers: 2}}
	c.AdjustConfig()
	return c
}

// PressureCfg flushes memory whenever the heap reader reports more than limit bytes.
func PressureCfg(limit config.Bytes) *config.Cache {
	c := MemoryOnlyCfg()
	c.Pressure = &config.PressureCfg{SoftLimit: limit, CallsPerSec: 100}
	c.Telemetry = &config.TelemetryCfg{Interval: time.Hour}
	c.AdjustConfig()
	return c
}
