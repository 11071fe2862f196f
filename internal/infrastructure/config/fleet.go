package config

import "time"

// FleetConfig holds the robot roster and its UI pairing
type FleetConfig struct {
	// Robot entity ids in dispatch priority order
	Robots []string `mapstructure:"robots" validate:"required,min=1"`

	// Robot id to UI entity id; robots without an entry have no UI
	UITable map[string]string `mapstructure:"ui_table"`

	// Caller names treated as the ordering system
	OrderingList []string `mapstructure:"ordering_list"`
}

// MoveConfig holds the command handshake polling configuration
type MoveConfig struct {
	// Milliseconds between send_cmd_status polls
	WaitMsec int `mapstructure:"wait_msec" validate:"omitempty,min=1"`

	// Polls allowed before the handshake is reported stuck
	WaitMaxNum int `mapstructure:"wait_max_num" validate:"omitempty,min=1"`
}

// PollInterval returns the poll wait as a duration.
func (c MoveConfig) PollInterval() time.Duration {
	return time.Duration(c.WaitMsec) * time.Millisecond
}

// ThrottleConfig holds the notification throttle configuration
type ThrottleConfig struct {
	// Minimum milliseconds between processed notifications per robot
	ThrottlingMsec int `mapstructure:"throttling_msec" validate:"omitempty,min=0"`
}

// Interval returns the throttle window as a duration.
func (c ThrottleConfig) Interval() time.Duration {
	return time.Duration(c.ThrottlingMsec) * time.Millisecond
}
