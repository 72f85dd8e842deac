// Package config loads server configuration from a config file and the
// environment.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Federation FederationConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr string
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	DSN string
}

// RedisConfig holds the optional remote-document cache configuration.
type RedisConfig struct {
	URL     string
	Enabled bool
}

// FederationConfig holds the knobs for inbound request authentication and
// outbound fetches.
type FederationConfig struct {
	// ClockSkew is how far either side of now the Date header of a signed
	// request may fall.
	ClockSkew time.Duration
	// FetchTimeout bounds every outbound key, object and webfinger fetch.
	FetchTimeout time.Duration
}

// Load loads configuration from the environment and an optional config file.
func Load() (*Config, error) {
	viper.SetDefault("addr", ":9091")
	viper.SetDefault("dsn", "")
	viper.SetDefault("redis_url", "")
	viper.SetDefault("clock_skew", time.Hour)
	viper.SetDefault("fetch_timeout", 10*time.Second)

	viper.SetEnvPrefix("MASTODON")
	viper.AutomaticEnv()

	viper.SetConfigName("mastodon")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/mastodon")

	if err := viper.ReadInConfig(); err != nil {
		// a missing config file is fine, everything has a default or
		// an environment override
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Addr: viper.GetString("addr"),
		},
		Database: DatabaseConfig{
			DSN: viper.GetString("dsn"),
		},
		Redis: RedisConfig{
			URL:     viper.GetString("redis_url"),
			Enabled: viper.GetString("redis_url") != "",
		},
		Federation: FederationConfig{
			ClockSkew:    viper.GetDuration("clock_skew"),
			FetchTimeout: viper.GetDuration("fetch_timeout"),
		},
	}, nil
}
