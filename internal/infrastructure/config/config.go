package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the main configuration struct combining all sub-configs
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Orion    OrionConfig    `mapstructure:"orion"`
	Fleet    FleetConfig    `mapstructure:"fleet"`
	Move     MoveConfig     `mapstructure:"move"`
	Throttle ThrottleConfig `mapstructure:"throttle"`
	Database DatabaseConfig `mapstructure:"database"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`

	// Timezone used for operator-facing timestamps
	Timezone string `mapstructure:"timezone"`
}

// legacyEnvs maps the flat environment variable names the deployment
// manifests use onto viper keys. They win over the config file.
var legacyEnvs = map[string]string{
	"orion.endpoint":           "ORION_ENDPOINT",
	"orion.token":              "ORION_TOKEN",
	"orion.service":            "FIWARE_SERVICE",
	"orion.robot_servicepath":  "DELIVERY_ROBOT_SERVICEPATH",
	"orion.ui_servicepath":     "ROBOT_UI_SERVICEPATH",
	"orion.token_servicepath":  "TOKEN_SERVICEPATH",
	"orion.robot_type":         "DELIVERY_ROBOT_TYPE",
	"orion.ui_type":            "ROBOT_UI_TYPE",
	"orion.token_type":         "TOKEN_TYPE",
	"orion.place_type":         "PLACE_TYPE",
	"orion.route_plan_type":    "ROUTE_PLAN_TYPE",
	"orion.list_limit":         "ORION_LIST_NUM_LIMIT",
	"server.port":              "LISTEN_PORT",
	"move.wait_msec":           "WAIT_MSEC",
	"move.wait_max_num":        "WAIT_MAX_NUM",
	"throttle.throttling_msec": "THROTTLING_MSEC",
	"logging.level":            "LOG_LEVEL",
	"timezone":                 "TIMEZONE",
}

// LoadConfig loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. Config file (config.yaml)
// 3. Defaults (lowest priority)
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/robocourier")
	}

	v.SetDefault("metrics.enabled", true)

	v.SetEnvPrefix("RC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnvs {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	// Read config file (optional - don't error if missing)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		v.Set("database.url", dbURL)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The fleet roster and UI table arrive as JSON-encoded environment
	// variables, mirroring how the deployment manifests define them.
	if err := loadFleetEnv(&cfg.Fleet); err != nil {
		return nil, err
	}
	loadCORSEnv(&cfg.Server)

	SetDefaults(&cfg)

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadFleetEnv decodes the JSON-valued fleet environment variables.
func loadFleetEnv(cfg *FleetConfig) error {
	if raw := os.Getenv("DELIVERY_ROBOT_LIST"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.Robots); err != nil {
			return fmt.Errorf("invalid DELIVERY_ROBOT_LIST: %w", err)
		}
	}
	if raw := os.Getenv("ID_TABLE"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.UITable); err != nil {
			return fmt.Errorf("invalid ID_TABLE: %w", err)
		}
	}
	if raw := os.Getenv("ORDERING_LIST"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.OrderingList); err != nil {
			return fmt.Errorf("invalid ORDERING_LIST: %w", err)
		}
	}
	return nil
}

// loadCORSEnv accepts CORS_ORIGINS as a JSON array or a comma-separated
// list.
func loadCORSEnv(cfg *ServerConfig) {
	raw := os.Getenv("CORS_ORIGINS")
	if raw == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw), &cfg.CORSOrigins); err != nil {
		cfg.CORSOrigins = strings.Split(raw, ",")
	}
}

// MustLoadConfig loads configuration and panics on error (for use in main.go)
func MustLoadConfig(configPath string) *Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
