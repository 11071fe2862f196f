package config

import "time"

// DatabaseConfig holds the throttle and message store connection. SQLite
// carries single-instance deployments; postgres is for shared ones.
type DatabaseConfig struct {
	// Driver: "postgres" or "sqlite"
	Type string `mapstructure:"type" validate:"required,oneof=postgres sqlite"`

	// Full postgres URL; wins over the individual fields below. Also
	// settable through the DATABASE_URL environment variable.
	URL string `mapstructure:"url"`

	// Postgres connection fields, used when URL is empty
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode" validate:"omitempty,oneof=disable require verify-ca verify-full"`

	// SQLite database file; ":memory:" keeps it in-process
	Path string `mapstructure:"path"`

	// Pool applies to postgres connections only
	Pool PoolConfig `mapstructure:"pool"`
}

// PoolConfig holds connection pool limits
type PoolConfig struct {
	MaxOpen     int           `mapstructure:"max_open" validate:"min=1"`
	MaxIdle     int           `mapstructure:"max_idle" validate:"min=1"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}
