package orion

import (
	"time"

	"github.com/robocourier/control-plane/internal/domain/robot"
	"github.com/robocourier/control-plane/internal/domain/shared"
)

// Attributes is the attribute map sent to the broker on a patch.
type Attributes map[string]any

// timeLayout is ISO-8601 with millisecond precision and a numeric offset.
const timeLayout = "2006-01-02T15:04:05.000-07:00"

// PayloadBuilder constructs the attribute payloads the world-model expects.
// Every attribute it writes carries a TimeInstant metadata stamp taken from
// the clock in the configured time zone.
type PayloadBuilder struct {
	clock shared.Clock
	loc   *time.Location
}

// NewPayloadBuilder creates a PayloadBuilder. A nil clock uses the real
// clock, a nil location uses UTC.
func NewPayloadBuilder(clock shared.Clock, loc *time.Location) *PayloadBuilder {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &PayloadBuilder{clock: clock, loc: loc}
}

func (b *PayloadBuilder) timestamp() string {
	return b.clock.Now().In(b.loc).Format(timeLayout)
}

func (b *PayloadBuilder) attr(attrType string, value any, t string) map[string]any {
	return map[string]any{
		"type":  attrType,
		"value": value,
		"metadata": map[string]any{
			"TimeInstant": map[string]any{
				"type":  "datetime",
				"value": t,
			},
		},
	}
}

// DeliveryRobotCommand builds the navi/refresh command payload. routes,
// order and caller are optional and omitted when absent; remaining always
// serializes as a list so the robot's queue is never left ambiguous.
func (b *PayloadBuilder) DeliveryRobotCommand(
	cmd string,
	cmdWaypoints []robot.Waypoint,
	leg robot.Leg,
	remaining []robot.Leg,
	routes []robot.Route,
	order *robot.Order,
	caller robot.Caller,
) Attributes {
	t := b.timestamp()
	if cmdWaypoints == nil {
		cmdWaypoints = []robot.Waypoint{}
	}
	if remaining == nil {
		remaining = []robot.Leg{}
	}

	payload := Attributes{
		"send_cmd": map[string]any{
			"value": map[string]any{
				"time":      t,
				"cmd":       cmd,
				"waypoints": cmdWaypoints,
			},
		},
		"navigating_waypoints":     b.attr("object", leg, t),
		"remaining_waypoints_list": b.attr("array", remaining, t),
	}
	if routes != nil {
		payload["current_routes"] = b.attr("array", routes, t)
	}
	if order != nil {
		payload["order"] = b.attr("object", order, t)
	}
	if caller != "" {
		payload["caller"] = b.attr("string", caller.String(), t)
	}
	return payload
}

// EmergencyCommand builds the emergency stop payload.
func (b *PayloadBuilder) EmergencyCommand(cmd string) Attributes {
	t := b.timestamp()
	return Attributes{
		"send_emg": map[string]any{
			"value": map[string]any{
				"time": t,
				"cmd":  cmd,
			},
		},
	}
}

// UpdateMode builds the current_mode commit payload.
func (b *PayloadBuilder) UpdateMode(next robot.Mode) Attributes {
	t := b.timestamp()
	return Attributes{
		"current_mode": b.attr("string", string(next), t),
	}
}

// UpdateState builds the current_state commit payload.
func (b *PayloadBuilder) UpdateState(next robot.State) Attributes {
	t := b.timestamp()
	return Attributes{
		"current_state": b.attr("string", string(next), t),
	}
}

// UpdateLastProcessedTime builds the last_processed_time advance payload.
func (b *PayloadBuilder) UpdateLastProcessedTime(processed time.Time) Attributes {
	t := b.timestamp()
	return Attributes{
		"last_processed_time": b.attr("datetime", processed.In(b.loc).Format(timeLayout), t),
	}
}

// RobotUISendState builds the UI state publication payload.
func (b *PayloadBuilder) RobotUISendState(next robot.State, destination string) Attributes {
	t := b.timestamp()
	return Attributes{
		"send_state": map[string]any{
			"value": map[string]any{
				"time":        t,
				"state":       string(next),
				"destination": destination,
			},
		},
	}
}

// RobotUISendTokenInfo builds the UI token event payload.
func (b *PayloadBuilder) RobotUISendTokenInfo(view robot.TokenView, mode robot.TokenUIMode) Attributes {
	t := b.timestamp()
	waitings := view.Waitings
	if waitings == nil {
		waitings = []string{}
	}
	return Attributes{
		"send_token_info": map[string]any{
			"value": map[string]any{
				"time":          t,
				"token":         view.ID,
				"mode":          string(mode),
				"lock_owner_id": view.LockOwnerID,
				"prev_owner_id": view.PrevOwnerID,
				"waitings":      waitings,
			},
		},
	}
}

// TokenInfo builds the full token state payload; token transitions are
// always written whole, never as partial updates.
func (b *PayloadBuilder) TokenInfo(info robot.TokenInfo) Attributes {
	t := b.timestamp()
	waitings := info.Waitings
	if waitings == nil {
		waitings = []string{}
	}
	return Attributes{
		"is_locked":     b.attr("boolean", info.IsLocked, t),
		"lock_owner_id": b.attr("string", info.LockOwnerID, t),
		"waitings":      b.attr("array", waitings, t),
	}
}
