package config

import "time"

// OrionConfig holds context broker connection configuration
type OrionConfig struct {
	// Base URL of the context broker
	Endpoint string `mapstructure:"endpoint" validate:"required,url"`

	// Bearer token; empty disables the Authorization header
	Token string `mapstructure:"token"`

	// FIWARE service (tenant) name
	Service string `mapstructure:"service" validate:"required"`

	// Service paths per entity category
	RobotServicePath string `mapstructure:"robot_servicepath" validate:"required"`
	UIServicePath    string `mapstructure:"ui_servicepath"`
	TokenServicePath string `mapstructure:"token_servicepath" validate:"required"`

	// Entity type names
	RobotType     string `mapstructure:"robot_type" validate:"required"`
	UIType        string `mapstructure:"ui_type"`
	TokenType     string `mapstructure:"token_type" validate:"required"`
	PlaceType     string `mapstructure:"place_type" validate:"required"`
	RoutePlanType string `mapstructure:"route_plan_type" validate:"required"`

	// Page size for bulk entity listing
	ListLimit int `mapstructure:"list_limit" validate:"omitempty,min=1"`

	// Request timeout
	Timeout time.Duration `mapstructure:"timeout"`
}
