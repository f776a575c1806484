// Package config loads server configuration from an optional config file
// and environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the server's runtime configuration.
type Config struct {
	Addr               string `mapstructure:"addr"`
	DataDir            string `mapstructure:"data_dir"`
	StaticDir          string `mapstructure:"static_dir"`
	SyncIntervalMin    int    `mapstructure:"sync_interval_min"`
	DefaultPageSize    int    `mapstructure:"default_page_size"`
	MaxPageSize        int    `mapstructure:"max_page_size"`
	DefaultExpiryHours int    `mapstructure:"default_expiry_hours"`
}

// Load reads configuration from bookswap.yaml (searched in the working
// directory and /etc/bookswap) and BOOKSWAP_* environment variables.
// A missing config file is not an error; defaults apply.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("bookswap")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/bookswap")

	v.SetEnvPrefix("bookswap")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", ":8090")
	v.SetDefault("data_dir", "/data")
	v.SetDefault("static_dir", "./static")
	v.SetDefault("sync_interval_min", 5)
	v.SetDefault("default_page_size", 20)
	v.SetDefault("max_page_size", 100)
	v.SetDefault("default_expiry_hours", 168)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}
