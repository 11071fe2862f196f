package orion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robocourier/control-plane/internal/domain/robot"
	"github.com/robocourier/control-plane/internal/domain/shared"
)

func testBuilder(t *testing.T) *PayloadBuilder {
	t.Helper()
	clock := shared.NewMockClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	return NewPayloadBuilder(clock, loc)
}

func attrValue(t *testing.T, attrs Attributes, name string) any {
	t.Helper()
	envelope, ok := attrs[name].(map[string]any)
	require.True(t, ok, "attribute %s missing", name)
	return envelope["value"]
}

func timeInstant(t *testing.T, attrs Attributes, name string) string {
	t.Helper()
	envelope := attrs[name].(map[string]any)
	metadata := envelope["metadata"].(map[string]any)
	instant := metadata["TimeInstant"].(map[string]any)
	return instant["value"].(string)
}

func TestDeliveryRobotCommand_FullContext(t *testing.T) {
	b := testBuilder(t)
	leg := robot.Leg{To: "via_b", Destination: "dest_id"}
	remaining := []robot.Leg{{To: "dest_id", Destination: "dest_id"}}
	routes := []robot.Route{{From: "src_id", To: "via_b", Destination: "dest_id"}}
	order := &robot.Order{Source: "src_id", Via: []string{"via_a"}, Destination: "dest_id"}

	attrs := b.DeliveryRobotCommand("navi", leg.Waypoints, leg, remaining, routes, order, robot.CallerOrdering)

	cmd := attrs["send_cmd"].(map[string]any)["value"].(map[string]any)
	assert.Equal(t, "navi", cmd["cmd"])
	// the broker clock stamp lands in the configured zone
	assert.Equal(t, "2024-03-01T18:00:00.000+09:00", cmd["time"])
	assert.Equal(t, []robot.Waypoint{}, cmd["waypoints"])

	assert.Equal(t, leg, attrValue(t, attrs, "navigating_waypoints"))
	assert.Equal(t, remaining, attrValue(t, attrs, "remaining_waypoints_list"))
	assert.Equal(t, routes, attrValue(t, attrs, "current_routes"))
	assert.Equal(t, order, attrValue(t, attrs, "order"))
	assert.Equal(t, "ordering", attrValue(t, attrs, "caller"))
	assert.Equal(t, "2024-03-01T18:00:00.000+09:00", timeInstant(t, attrs, "navigating_waypoints"))
}

func TestDeliveryRobotCommand_OmitsAbsentContext(t *testing.T) {
	b := testBuilder(t)

	attrs := b.DeliveryRobotCommand("navi", nil, robot.Leg{To: "x"}, nil, nil, nil, "")

	_, hasRoutes := attrs["current_routes"]
	_, hasOrder := attrs["order"]
	_, hasCaller := attrs["caller"]
	assert.False(t, hasRoutes)
	assert.False(t, hasOrder)
	assert.False(t, hasCaller)

	// the remaining queue always serializes as a list
	assert.Equal(t, []robot.Leg{}, attrValue(t, attrs, "remaining_waypoints_list"))
}

func TestUpdatePayloads(t *testing.T) {
	b := testBuilder(t)

	assert.Equal(t, "standby", attrValue(t, b.UpdateMode(robot.ModeStandby), "current_mode"))
	assert.Equal(t, "picking", attrValue(t, b.UpdateState(robot.StatePicking), "current_state"))

	processed := time.Date(2024, 3, 1, 8, 59, 59, 0, time.UTC)
	assert.Equal(t, "2024-03-01T17:59:59.000+09:00",
		attrValue(t, b.UpdateLastProcessedTime(processed), "last_processed_time"))
}

func TestRobotUISendState(t *testing.T) {
	b := testBuilder(t)

	attrs := b.RobotUISendState(robot.StateDelivering, "lounge")

	value := attrs["send_state"].(map[string]any)["value"].(map[string]any)
	assert.Equal(t, "delivering", value["state"])
	assert.Equal(t, "lounge", value["destination"])
}

func TestRobotUISendTokenInfo(t *testing.T) {
	b := testBuilder(t)
	view := robot.TokenView{
		ID:          "corridor_01",
		IsLocked:    true,
		LockOwnerID: "robot_02",
		PrevOwnerID: "robot_01",
	}

	attrs := b.RobotUISendTokenInfo(view, robot.TokenUIResume)

	value := attrs["send_token_info"].(map[string]any)["value"].(map[string]any)
	assert.Equal(t, "corridor_01", value["token"])
	assert.Equal(t, "RESUME", value["mode"])
	assert.Equal(t, "robot_02", value["lock_owner_id"])
	assert.Equal(t, "robot_01", value["prev_owner_id"])
	assert.Equal(t, []string{}, value["waitings"])
}

func TestTokenInfoWritesWholeState(t *testing.T) {
	b := testBuilder(t)

	attrs := b.TokenInfo(robot.TokenInfo{IsLocked: true, LockOwnerID: "robot_01"})

	assert.Equal(t, true, attrValue(t, attrs, "is_locked"))
	assert.Equal(t, "robot_01", attrValue(t, attrs, "lock_owner_id"))
	assert.Equal(t, []string{}, attrValue(t, attrs, "waitings"))
}
