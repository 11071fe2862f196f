package fleet_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/robocourier/control-plane/internal/adapters/orion"
	"github.com/robocourier/control-plane/internal/application/fleet"
	"github.com/robocourier/control-plane/internal/domain/robot"
	"github.com/robocourier/control-plane/internal/domain/shared"
)

type testRig struct {
	store        *fakeStore
	throttle     *fakeThrottle
	messages     *fakeMessages
	clock        *shared.MockClock
	orchestrator *fleet.Orchestrator
}

func newTestRig(t *testing.T, opts fleet.Options) *testRig {
	t.Helper()
	store := newFakeStore()
	throttle := &fakeThrottle{}
	messages := &fakeMessages{}
	clock := shared.NewMockClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	payloads := orion.NewPayloadBuilder(clock, time.UTC)

	if opts.FleetRobots == nil {
		opts.FleetRobots = []string{"robot_01"}
	}
	orchestrator := fleet.NewOrchestrator(store, payloads, throttle, messages, nil, clock, zap.NewNop(), opts)
	return &testRig{
		store:        store,
		throttle:     throttle,
		messages:     messages,
		clock:        clock,
		orchestrator: orchestrator,
	}
}

func idleRobot(id string) *robot.Robot {
	return &robot.Robot{
		ID:               id,
		Mode:             robot.ModeStandby,
		HasRemainingList: true,
		Remaining:        []robot.Leg{},
	}
}

func handshakeRobot(id, result string) *robot.Robot {
	return &robot.Robot{
		ID:            id,
		SendCmdStatus: robot.SendCmdStatusOK,
		SendCmdInfo:   map[string]any{"result": result},
	}
}

// facilityPlaces is the standard floor plan used across tests.
func facilityPlaces() []robot.Place {
	return []robot.Place{
		{ID: "src_id", Name: "warehouse", Pose: robot.Pose{Point: "p-src", Angle: 0.0}},
		{ID: "via_a", Name: "shelf_a", Pose: robot.Pose{Point: "p-a", Angle: 1.0}},
		{ID: "via_b", Name: "shelf_b", Pose: robot.Pose{Point: "p-b", Angle: 2.0}},
		{ID: "dest_id", Name: "lounge", Pose: robot.Pose{Point: "p-dest", Angle: 3.0}},
		{ID: "refuge_id", Name: "refuge", Pose: robot.Pose{Point: "p-ref", Angle: 4.0}},
	}
}

func twoLegPlan() *robot.RoutePlan {
	return &robot.RoutePlan{
		Source: "src_id",
		Routes: []robot.Route{
			{From: "src_id", Via: []string{"via_a"}, To: "via_b", Destination: "dest_id"},
			{From: "via_b", Via: []string{}, To: "dest_id", Destination: "dest_id"},
		},
	}
}

func TestCreateShipment_DispatchesFirstLeg(t *testing.T) {
	rig := newTestRig(t, fleet.Options{OrderingList: []string{"zaico-extensions"}})
	rig.store.places = facilityPlaces()
	rig.store.plans["dest_id|via_a|via_b|robot_01"] = twoLegPlan()
	rig.store.pushRobot(idleRobot("robot_01"))
	rig.store.pushRobot(handshakeRobot("robot_01", robot.CmdResultAck))

	result, err := rig.orchestrator.CreateShipment(context.Background(), fleet.Shipment{
		Destination: fleet.ShipmentPlace{Name: "lounge"},
		Updated:     []fleet.ShipmentVia{{Place: "shelf_b"}, {Place: "shelf_a"}},
		Caller:      "zaico-extensions",
	})

	require.NoError(t, err)
	assert.Equal(t, "success", result.Result)
	require.NotNil(t, result.Robot)
	assert.Equal(t, "robot_01", result.Robot.ID)
	assert.Equal(t, "ordering", result.Caller)
	require.NotNil(t, result.Order)
	assert.Equal(t, "src_id", result.Order.Source)
	assert.Equal(t, "dest_id", result.Order.Destination)
	assert.ElementsMatch(t, []string{"via_a", "via_b"}, result.Order.Via)

	patches := rig.store.patchesFor("robot:robot_01")
	require.Len(t, patches, 1)
	cmd := patches[0]
	assert.True(t, cmd.has("send_cmd"))
	assert.True(t, cmd.has("navigating_waypoints"))
	assert.True(t, cmd.has("remaining_waypoints_list"))
	assert.True(t, cmd.has("current_routes"))
	assert.True(t, cmd.has("order"))
	assert.True(t, cmd.has("caller"))
}

func TestCreateShipment_SkipsBusyRobots(t *testing.T) {
	rig := newTestRig(t, fleet.Options{FleetRobots: []string{"robot_01", "robot_02"}})
	rig.store.places = facilityPlaces()
	rig.store.plans["dest_id||robot_02"] = &robot.RoutePlan{
		Source: "src_id",
		Routes: []robot.Route{
			{From: "src_id", Via: []string{}, To: "dest_id", Destination: "dest_id"},
		},
	}

	busy := idleRobot("robot_01")
	busy.Mode = robot.ModeNavi
	rig.store.pushRobot(busy)
	rig.store.pushRobot(idleRobot("robot_02"))
	rig.store.pushRobot(handshakeRobot("robot_02", robot.CmdResultAck))

	result, err := rig.orchestrator.CreateShipment(context.Background(), fleet.Shipment{
		Destination: fleet.ShipmentPlace{Name: "lounge"},
	})

	require.NoError(t, err)
	assert.Equal(t, "robot_02", result.Robot.ID)
	assert.Empty(t, rig.store.patchesFor("robot:robot_01"))
}

func TestCreateShipment_NoAvailableRobot(t *testing.T) {
	rig := newTestRig(t, fleet.Options{})
	busy := idleRobot("robot_01")
	busy.Remaining = []robot.Leg{{To: "somewhere"}}
	rig.store.pushRobot(busy)

	_, err := rig.orchestrator.CreateShipment(context.Background(), fleet.Shipment{
		Destination: fleet.ShipmentPlace{Name: "lounge"},
	})

	require.Error(t, err)
	assert.Equal(t, shared.KindUnavailable, shared.KindOf(err))
	assert.EqualError(t, err, "no available robot")
}

func TestCreateShipment_InvalidShipment(t *testing.T) {
	tests := []struct {
		name     string
		shipment fleet.Shipment
	}{
		{name: "empty destination", shipment: fleet.Shipment{}},
		{
			name: "empty via place",
			shipment: fleet.Shipment{
				Destination: fleet.ShipmentPlace{Name: "lounge"},
				Updated:     []fleet.ShipmentVia{{Place: ""}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t, fleet.Options{})
			rig.store.pushRobot(idleRobot("robot_01"))

			_, err := rig.orchestrator.CreateShipment(context.Background(), tt.shipment)

			require.Error(t, err)
			assert.Equal(t, shared.KindValidation, shared.KindOf(err))
			assert.EqualError(t, err, "invalid shipment_list")
		})
	}
}

func TestCreateShipment_EmptyPlanIsIgnored(t *testing.T) {
	rig := newTestRig(t, fleet.Options{})
	rig.store.places = facilityPlaces()
	rig.store.plans["dest_id||robot_01"] = &robot.RoutePlan{Source: "src_id", Routes: []robot.Route{}}
	rig.store.pushRobot(idleRobot("robot_01"))

	result, err := rig.orchestrator.CreateShipment(context.Background(), fleet.Shipment{
		Destination: fleet.ShipmentPlace{Name: "lounge"},
	})

	require.NoError(t, err)
	assert.Equal(t, "ignore", result.Result)
	assert.Equal(t, "no available waypoints_list", result.Message)
	assert.Nil(t, result.Robot)
	assert.Empty(t, rig.store.patchesFor("robot:robot_01"))
}

func TestRobotState_DerivesStateAndDestination(t *testing.T) {
	rig := newTestRig(t, fleet.Options{})
	rig.store.places = facilityPlaces()
	rig.store.pushRobot(&robot.Robot{
		ID:                  "robot_01",
		Mode:                robot.ModeStandby,
		Caller:              "warehouse",
		NavigatingWaypoints: &robot.Leg{To: "dest_id", Destination: "dest_id"},
		Order:               &robot.Order{Source: "src_id", Via: []string{"via_a"}, Destination: "dest_id"},
	})

	status, err := rig.orchestrator.RobotState(context.Background(), "robot_01")

	require.NoError(t, err)
	assert.Equal(t, "robot_01", status.ID)
	assert.Equal(t, string(robot.StatePicking), status.State)
	assert.Equal(t, "lounge", status.Destination)
}

func TestRobotState_UnknownDestinationIsTolerated(t *testing.T) {
	rig := newTestRig(t, fleet.Options{})
	rig.store.pushRobot(&robot.Robot{
		ID:                  "robot_01",
		Mode:                robot.ModeNavi,
		NavigatingWaypoints: &robot.Leg{To: "x", Destination: "nowhere"},
	})

	status, err := rig.orchestrator.RobotState(context.Background(), "robot_01")

	require.NoError(t, err)
	assert.Equal(t, string(robot.StateMoving), status.State)
	assert.Equal(t, "", status.Destination)
}

func TestEmergency_SendsStop(t *testing.T) {
	rig := newTestRig(t, fleet.Options{})

	err := rig.orchestrator.Emergency(context.Background(), "robot_01")

	require.NoError(t, err)
	patches := rig.store.patchesFor("robot:robot_01")
	require.Len(t, patches, 1)
	assert.True(t, patches[0].has("send_emg"))
}
