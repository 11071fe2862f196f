package config

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	// Listen port for the HTTP API
	Port int `mapstructure:"port"`

	// Allowed CORS origins; empty disables CORS handling
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// MetricsConfig holds metrics exposure configuration
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active
	Enabled bool `mapstructure:"enabled"`
}
