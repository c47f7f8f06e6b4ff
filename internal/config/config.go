// Package config содержит логику чтения конфигурации сервиса аренды недвижимости.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса аренды недвижимости.
type Config struct {
	RunAddress         string `env:"RUN_ADDRESS"`
	DatabaseURI        string `env:"DATABASE_URI"`
	ChannelFeedAddress string `env:"CHANNEL_FEED_ADDRESS"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envChannelAddress := cfg.ChannelFeedAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.ChannelFeedAddress, "r", "", "channel manager calendar feed address")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envChannelAddress != "" {
		cfg.ChannelFeedAddress = envChannelAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
