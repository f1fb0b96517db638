package main

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "SVCINFO"

// Config is the resolve configuration, merged from flags, SVCINFO_*
// environment variables and an optional config file, in that order of
// precedence.
type Config struct {
	Type       string        `mapstructure:"type" validate:"required"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Unicast    bool          `mapstructure:"unicast"`
	IPv6       bool          `mapstructure:"ipv6"`
	Address    string        `mapstructure:"address" validate:"omitempty,ip"`
	Port       uint16        `mapstructure:"port" validate:"gt=0"`
	Interfaces []string      `mapstructure:"interfaces" validate:"dive,required"`
	Verbose    bool          `mapstructure:"verbose"`
}

func loadConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
