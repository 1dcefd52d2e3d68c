// Package config loads replayer settings from flags, environment, and an
// optional config file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Input          string
	Store          string
	PGDSN          string
	FactoryOwner   string
	ManagerAddress string
	Resume         bool
	LogLevel       string
}

// Load merges config file, environment variables, and flags into Config.
// Environment variables use the POOLMIRROR_ prefix with dashes replaced
// by underscores.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POOLMIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("store", "memory")
	v.SetDefault("factory-owner", "0x0000000000000000000000000000000000000001")
	v.SetDefault("manager-address", "0x0000000000000000000000000000000000000002")
	v.SetDefault("resume", true)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Input:          v.GetString("in"),
		Store:          v.GetString("store"),
		PGDSN:          v.GetString("pg-dsn"),
		FactoryOwner:   v.GetString("factory-owner"),
		ManagerAddress: v.GetString("manager-address"),
		Resume:         v.GetBool("resume"),
		LogLevel:       v.GetString("log-level"),
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Store {
	case "memory":
	case "postgres":
		if c.PGDSN == "" {
			return fmt.Errorf("pg-dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store)
	}
	return nil
}
