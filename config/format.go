package config

import "github.com/Borislavv/go-ash-imgcache/model"

// FormatCfg is the YAML form of model.Format.
type FormatCfg struct {
	Name           string          `yaml:"name"`
	Width          int             `yaml:"width"`
	Height         int             `yaml:"height"`
	ScaleMode      model.ScaleMode `yaml:"scale_mode"`
	AllowUpscaling bool            `yaml:"allow_upscaling"`
	DiskCapacity   Bytes           `yaml:"disk_capacity"`
	Encoding       model.Encoding  `yaml:"encoding"`
	Quality        int             `yaml:"quality"`
	Preload        bool            `yaml:"preload"`
}

func (cfg FormatCfg) Format() model.Format {
	return model.Format{
		Name:           cfg.Name,
		Width:          cfg.Width,
		Height:         cfg.Height,
		ScaleMode:      cfg.ScaleMode,
		AllowUpscaling: cfg.AllowUpscaling,
		DiskCapacity:   uint64(cfg.DiskCapacity),
		Encoding:       cfg.Encoding,
		Quality:        cfg.Quality,
		Preload:        cfg.Preload,
	}
}
