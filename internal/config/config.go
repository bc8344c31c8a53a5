package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	DatabaseDriver string `mapstructure:"database_driver" yaml:"database_driver"`
	DatabaseDSN    string `mapstructure:"database_dsn" yaml:"database_dsn"`
	Migrate        bool   `mapstructure:"migrate" yaml:"migrate"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	AuthCookie  string        `mapstructure:"auth_cookie" yaml:"auth_cookie"`
	TokenTTL    time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`

	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	HeartbeatTimeout  time.Duration `mapstructure:"heartbeat_timeout" yaml:"heartbeat_timeout"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MessageFetchLimit int           `mapstructure:"message_fetch_limit" yaml:"message_fetch_limit"`
	MemberFetchLimit  int           `mapstructure:"member_fetch_limit" yaml:"member_fetch_limit"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",

		DatabaseDriver: "sqlite3",
		DatabaseDSN:    "guildchat.db",
		Migrate:        true,

		JWTSecret:   "change-me",
		JWTIssuer:   "guildchat",
		JWTAudience: "guildchat",
		AuthCookie:  "auth-cookie",
		TokenTTL:    7 * 24 * time.Hour,

		HeartbeatInterval: 5 * time.Second,
		HeartbeatTimeout:  10 * time.Second,
		MaxMessageBytes:   64 << 10,
		MessageFetchLimit: 1000,
		MemberFetchLimit:  1000,
	}
}

// Validate checks values that would make the server misbehave.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	switch c.DatabaseDriver {
	case "sqlite3", "sqlite", "pgx", "postgres", "postgresql":
	default:
		errs = append(errs, fmt.Errorf("unsupported database_driver %q", c.DatabaseDriver))
	}
	if c.HeartbeatInterval <= 0 || c.HeartbeatTimeout <= 0 {
		errs = append(errs, errors.New("heartbeat_interval and heartbeat_timeout must be positive"))
	} else if c.HeartbeatTimeout < c.HeartbeatInterval {
		errs = append(errs, errors.New("heartbeat_timeout must not be shorter than heartbeat_interval"))
	}
	if c.MessageFetchLimit <= 0 || c.MemberFetchLimit <= 0 {
		errs = append(errs, errors.New("fetch limits must be positive"))
	}
	return errors.Join(errs...)
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.DatabaseDriver != "" {
		c.DatabaseDriver = other.DatabaseDriver
	}
	if other.DatabaseDSN != "" {
		c.DatabaseDSN = other.DatabaseDSN
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.HeartbeatInterval != 0 {
		c.HeartbeatInterval = other.HeartbeatInterval
	}
	if other.HeartbeatTimeout != 0 {
		c.HeartbeatTimeout = other.HeartbeatTimeout
	}
}
