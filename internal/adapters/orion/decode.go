package orion

import (
	"bytes"
	"encoding/json"

	"github.com/robocourier/control-plane/internal/domain/robot"
)

// rawEntity is an entity as the broker returns it: attribute name to
// {type, value, metadata} envelope, plus the id and type fields.
type rawEntity map[string]json.RawMessage

type attrEnvelope struct {
	Value json.RawMessage `json:"value"`
}

// value unwraps an attribute envelope into out. Returns false when the
// attribute is absent or its value does not have the requested shape;
// entity attributes written by robots are not trusted to be well formed.
func (e rawEntity) value(name string, out any) bool {
	raw, ok := e[name]
	if !ok {
		return false
	}
	var env attrEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false
	}
	if len(env.Value) == 0 {
		return false
	}
	return json.Unmarshal(env.Value, out) == nil
}

// rawValue unwraps an attribute envelope without decoding the value.
func (e rawEntity) rawValue(name string) (json.RawMessage, bool) {
	raw, ok := e[name]
	if !ok {
		return nil, false
	}
	var env attrEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}
	return env.Value, len(env.Value) > 0
}

func (e rawEntity) stringValue(name string) string {
	var s string
	e.value(name, &s)
	return s
}

func (e rawEntity) id() string {
	var s string
	if raw, ok := e["id"]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

func decodeRobot(robotID string, e rawEntity) *robot.Robot {
	r := &robot.Robot{
		ID:                robotID,
		Mode:              robot.Mode(e.stringValue("mode")),
		CurrentMode:       robot.Mode(e.stringValue("current_mode")),
		CurrentState:      robot.State(e.stringValue("current_state")),
		Caller:            e.stringValue("caller"),
		SendCmdStatus:     e.stringValue("send_cmd_status"),
		LastProcessedTime: e.stringValue("last_processed_time"),
	}

	// a leg without a "to" is still kept: the destination field alone is
	// enough to resolve the place shown to operators
	if raw, ok := e.rawValue("navigating_waypoints"); ok && isJSONObject(raw) {
		var leg robot.Leg
		if json.Unmarshal(raw, &leg) == nil {
			r.NavigatingWaypoints = &leg
		}
	}

	// availability needs a present, well-formed list; anything else means
	// the robot is not ready for a new shipment
	if raw, ok := e.rawValue("remaining_waypoints_list"); ok && isJSONArray(raw) {
		var remaining []robot.Leg
		if json.Unmarshal(raw, &remaining) == nil {
			if remaining == nil {
				remaining = []robot.Leg{}
			}
			r.Remaining = remaining
			r.HasRemainingList = true
		}
	}

	// an order is only usable when it carries all three fields and via is
	// a list; anything else leaves the derived state at standby
	if raw, ok := e.rawValue("order"); ok && isJSONObject(raw) {
		var fields map[string]json.RawMessage
		if json.Unmarshal(raw, &fields) == nil && hasOrderShape(fields) {
			var order robot.Order
			if json.Unmarshal(raw, &order) == nil {
				r.Order = &order
			}
		}
	}

	var info any
	if e.value("send_cmd_info", &info) {
		r.SendCmdInfo = info
	}

	return r
}

func decodePlace(e rawEntity) robot.Place {
	p := robot.Place{
		ID:   e.id(),
		Name: e.stringValue("name"),
	}
	e.value("pose", &p.Pose)
	return p
}

func decodeRoutePlan(e rawEntity) *robot.RoutePlan {
	plan := &robot.RoutePlan{
		Source: e.stringValue("source"),
	}
	e.value("routes", &plan.Routes)
	return plan
}

func decodeTokenInfo(e rawEntity) robot.TokenInfo {
	var info robot.TokenInfo
	e.value("is_locked", &info.IsLocked)
	info.LockOwnerID = e.stringValue("lock_owner_id")
	e.value("waitings", &info.Waitings)
	return info
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func hasOrderShape(fields map[string]json.RawMessage) bool {
	if _, ok := fields["source"]; !ok {
		return false
	}
	if _, ok := fields["destination"]; !ok {
		return false
	}
	via, ok := fields["via"]
	return ok && isJSONArray(via)
}
