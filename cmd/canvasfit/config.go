package main

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds the fitting parameters for one canvasfit run. Values come
// from defaults, an optional yaml config file and CANVASFIT_* environment
// variables, in increasing precedence.
type Config struct {
	MaxBytes    int     `mapstructure:"max_bytes"`
	MaxLongEdge int     `mapstructure:"max_long_edge"`
	Format      string  `mapstructure:"format"`
	TilePx      int     `mapstructure:"tile_px"`
	OverlapPx   int     `mapstructure:"overlap_px"`
	MinCropSize int     `mapstructure:"min_crop_size"`
	SVGScale    float64 `mapstructure:"svg_scale"`
}

// LoadConfig builds the viper instance with defaults, the optional config
// file at path and environment overrides.
func LoadConfig(path string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("max_bytes", 800_000)
	v.SetDefault("max_long_edge", 2048)
	v.SetDefault("format", "webp")
	v.SetDefault("tile_px", 1536)
	v.SetDefault("overlap_px", 96)
	v.SetDefault("min_crop_size", 512)
	v.SetDefault("svg_scale", 1.0)

	v.SetEnvPrefix("canvasfit")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// ParseConfig unmarshals the viper instance into a Config.
func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
