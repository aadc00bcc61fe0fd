// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the demo daemon's tunables, loaded from a YAML file with
// environment-variable overrides. Shape follows the loader-then-env-
// override pattern used throughout the example corpus's config packages,
// cut down to SBMP's small option set.
type Config struct {
	Listen           string `mapstructure:"listen"`
	Peer             string `mapstructure:"peer"`
	BufferSize       uint16 `mapstructure:"buffer_size"`
	ListenerCapacity int    `mapstructure:"listener_capacity"`
	PrefCksum        string `mapstructure:"pref_cksum"`

	LogLevel   string `mapstructure:"log_level"`
	LogFile    string `mapstructure:"log_file"`
	LogMaxSize int    `mapstructure:"log_max_size_mb"`
	LogMaxAge  int    `mapstructure:"log_max_age_days"`
	LogBackups int    `mapstructure:"log_backups"`
}

func defaultConfig() Config {
	return Config{
		Listen:           "127.0.0.1:9055",
		Peer:             "127.0.0.1:9055",
		BufferSize:       1024,
		ListenerCapacity: 8,
		PrefCksum:        "crc32",
		LogLevel:         "info",
		LogMaxSize:       10,
		LogMaxAge:        7,
		LogBackups:       3,
	}
}

// loadConfig reads cfgFile (if non-empty) or searches ./configs and . for
// config.yaml, then applies SBMPD_-prefixed environment variable overrides
// on top, following sun977-NeoScan's ConfigLoader shape.
func loadConfig(cfgFile string) (Config, error) {
	cfg := defaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SBMPD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Unmarshal only sees keys viper knows about; bind each one so its
	// SBMPD_ environment variable applies even when no config file sets it.
	for _, key := range []string{"listen", "peer", "buffer_size", "listener_capacity", "pref_cksum",
		"log_level", "log_file", "log_max_size_mb", "log_max_age_days", "log_backups"} {
		_ = v.BindEnv(key)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || cfgFile != "" {
			return cfg, fmt.Errorf("sbmpd: reading config file: %w", err)
		}
		// No config file found: defaults plus environment overrides only.
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("sbmpd: unmarshaling config: %w", err)
	}
	return cfg, nil
}
