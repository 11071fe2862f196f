package config

import "time"

// SetDefaults sets default values for all configuration fields
func SetDefaults(cfg *Config) {
	// Server defaults; an out-of-range port falls back rather than erroring
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		cfg.Server.Port = 3000
	}

	// Orion defaults
	if cfg.Orion.RobotType == "" {
		cfg.Orion.RobotType = "delivery_robot"
	}
	if cfg.Orion.UIType == "" {
		cfg.Orion.UIType = "robot_ui"
	}
	if cfg.Orion.TokenType == "" {
		cfg.Orion.TokenType = "token"
	}
	if cfg.Orion.PlaceType == "" {
		cfg.Orion.PlaceType = "place"
	}
	if cfg.Orion.RoutePlanType == "" {
		cfg.Orion.RoutePlanType = "route_plan"
	}
	if cfg.Orion.ListLimit == 0 {
		cfg.Orion.ListLimit = 1000
	}
	if cfg.Orion.Timeout == 0 {
		cfg.Orion.Timeout = 30 * time.Second
	}

	// Fleet defaults
	if len(cfg.Fleet.OrderingList) == 0 {
		cfg.Fleet.OrderingList = []string{"zaico-extensions"}
	}

	// Command handshake defaults
	if cfg.Move.WaitMsec == 0 {
		cfg.Move.WaitMsec = 500
	}
	if cfg.Move.WaitMaxNum == 0 {
		cfg.Move.WaitMaxNum = 10
	}

	// Throttle defaults
	if cfg.Throttle.ThrottlingMsec == 0 {
		cfg.Throttle.ThrottlingMsec = 500
	}

	// Database defaults
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "robocourier"
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "robocourier"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "robocourier.db"
	}
	if cfg.Database.Pool.MaxOpen == 0 {
		cfg.Database.Pool.MaxOpen = 25
	}
	if cfg.Database.Pool.MaxIdle == 0 {
		cfg.Database.Pool.MaxIdle = 5
	}
	if cfg.Database.Pool.MaxLifetime == 0 {
		cfg.Database.Pool.MaxLifetime = 5 * time.Minute
	}

	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}
