package fleet_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robocourier/control-plane/internal/application/fleet"
	"github.com/robocourier/control-plane/internal/domain/robot"
	"github.com/robocourier/control-plane/internal/domain/shared"
)

// queuedRobot is a robot with one leg waiting in its remaining queue.
func queuedRobot(id string) *robot.Robot {
	return &robot.Robot{
		ID:               id,
		Mode:             robot.ModeStandby,
		HasRemainingList: true,
		Remaining: []robot.Leg{
			{To: "via_b", Destination: "dest_id", Waypoints: []robot.Waypoint{{Point: "p-b", Angle: 2.0}}},
			{To: "dest_id", Destination: "dest_id", Waypoints: []robot.Waypoint{{Point: "p-dest", Angle: 3.0}}},
		},
	}
}

func sentCmd(t *testing.T, p patchCall) string {
	t.Helper()
	envelope, ok := p.attrs["send_cmd"].(map[string]any)
	require.True(t, ok)
	value, ok := envelope["value"].(map[string]any)
	require.True(t, ok)
	cmd, _ := value["cmd"].(string)
	return cmd
}

func TestMoveNext_AcksOnFirstTry(t *testing.T) {
	rig := newTestRig(t, fleet.Options{})
	rig.store.pushRobot(queuedRobot("robot_01"))
	rig.store.pushRobot(handshakeRobot("robot_01", robot.CmdResultAck))

	err := rig.orchestrator.MoveNext(context.Background(), "robot_01")

	require.NoError(t, err)
	patches := rig.store.patchesFor("robot:robot_01")
	require.Len(t, patches, 1)
	assert.Equal(t, "navi", sentCmd(t, patches[0]))
	assert.Empty(t, rig.clock.Slept)

	// move_next resends neither routes nor order nor caller
	assert.False(t, patches[0].has("current_routes"))
	assert.False(t, patches[0].has("order"))
	assert.False(t, patches[0].has("caller"))
}

func TestMoveNext_RetriesWithRefreshAfterIgnore(t *testing.T) {
	rig := newTestRig(t, fleet.Options{})
	rig.store.pushRobot(queuedRobot("robot_01"))
	rig.store.pushRobot(handshakeRobot("robot_01", robot.CmdResultIgnore))
	rig.store.pushRobot(handshakeRobot("robot_01", robot.CmdResultAck))

	err := rig.orchestrator.MoveNext(context.Background(), "robot_01")

	require.NoError(t, err)
	patches := rig.store.patchesFor("robot:robot_01")
	require.Len(t, patches, 2)
	assert.Equal(t, "navi", sentCmd(t, patches[0]))
	assert.Equal(t, "refresh", sentCmd(t, patches[1]))
}

func TestMoveNext_FailsWhenBothCommandsIgnored(t *testing.T) {
	rig := newTestRig(t, fleet.Options{})
	rig.store.pushRobot(queuedRobot("robot_01"))
	rig.store.pushRobot(handshakeRobot("robot_01", robot.CmdResultIgnore))
	rig.store.pushRobot(handshakeRobot("robot_01", robot.CmdResultIgnore))

	err := rig.orchestrator.MoveNext(context.Background(), "robot_01")

	require.Error(t, err)
	assert.Equal(t, shared.KindInternal, shared.KindOf(err))
	assert.EqualError(t, err, `cannot move robot(robot_01) to "via_b" using "navi" and "refresh", navi result=ignore refresh result=ignore`)
}

func TestMoveNext_ReportsRobotErrors(t *testing.T) {
	rig := newTestRig(t, fleet.Options{})
	rig.store.pushRobot(queuedRobot("robot_01"))
	rig.store.pushRobot(&robot.Robot{
		ID:            "robot_01",
		SendCmdStatus: robot.SendCmdStatusOK,
		SendCmdInfo:   map[string]any{"result": "error", "errors": "wheel jam"},
	})

	err := rig.orchestrator.MoveNext(context.Background(), "robot_01")

	require.Error(t, err)
	assert.EqualError(t, err, `move robot error, robot_id=robot_01, errors="wheel jam"`)
}

func TestMoveNext_RejectsMalformedHandshake(t *testing.T) {
	rig := newTestRig(t, fleet.Options{})
	rig.store.pushRobot(queuedRobot("robot_01"))
	rig.store.pushRobot(&robot.Robot{
		ID:            "robot_01",
		SendCmdStatus: robot.SendCmdStatusOK,
		SendCmdInfo:   map[string]any{"status": "done"},
	})

	err := rig.orchestrator.MoveNext(context.Background(), "robot_01")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid send_cmd_info")
}

func TestMoveNext_PollsUntilHandshakeLeavesPending(t *testing.T) {
	rig := newTestRig(t, fleet.Options{PollInterval: 500 * time.Millisecond, MaxPolls: 3})
	rig.store.pushRobot(queuedRobot("robot_01"))
	pending := &robot.Robot{ID: "robot_01", SendCmdStatus: robot.SendCmdStatusPending}
	rig.store.pushRobot(pending)
	rig.store.pushRobot(pending)
	rig.store.pushRobot(handshakeRobot("robot_01", robot.CmdResultAck))

	err := rig.orchestrator.MoveNext(context.Background(), "robot_01")

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, rig.clock.Slept)
}

func TestMoveNext_GivesUpAfterMaxPolls(t *testing.T) {
	rig := newTestRig(t, fleet.Options{PollInterval: 500 * time.Millisecond, MaxPolls: 3})
	rig.store.pushRobot(queuedRobot("robot_01"))
	rig.store.pushRobot(&robot.Robot{ID: "robot_01", SendCmdStatus: robot.SendCmdStatusPending})

	err := rig.orchestrator.MoveNext(context.Background(), "robot_01")

	require.Error(t, err)
	assert.EqualError(t, err, "send_cmd_status still pending, robot_id=robot_01, wait_msec=500, wait_count=3")
	assert.Len(t, rig.clock.Slept, 3)
	// one read for the queue pop plus maxPolls+1 handshake polls
	assert.Equal(t, 5, rig.store.robotGets["robot_01"])
}

func TestMoveNext_RefusesNavigatingRobot(t *testing.T) {
	rig := newTestRig(t, fleet.Options{})
	moving := queuedRobot("robot_01")
	moving.Mode = robot.ModeNavi
	rig.store.pushRobot(moving)

	err := rig.orchestrator.MoveNext(context.Background(), "robot_01")

	require.Error(t, err)
	assert.Equal(t, shared.KindConflict, shared.KindOf(err))
	assert.EqualError(t, err, "robot(robot_01) is navigating now")

	appErr, ok := shared.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "robot_01", appErr.Context["id"])
}

func TestMoveNext_RequiresRemainingLegs(t *testing.T) {
	rig := newTestRig(t, fleet.Options{})
	rig.store.pushRobot(idleRobot("robot_01"))

	err := rig.orchestrator.MoveNext(context.Background(), "robot_01")

	require.Error(t, err)
	assert.Equal(t, shared.KindPrecondition, shared.KindOf(err))
	assert.EqualError(t, err, "no remaining waypoints for robot(robot_01)")
}
