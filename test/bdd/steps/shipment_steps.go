package steps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"go.uber.org/zap"

	"github.com/robocourier/control-plane/internal/adapters/orion"
	"github.com/robocourier/control-plane/internal/application/fleet"
	"github.com/robocourier/control-plane/internal/domain/robot"
	"github.com/robocourier/control-plane/internal/domain/shared"
)

type shipmentContext struct {
	store       *worldStore
	fleetRobots []string
	result      *fleet.ShipmentResult
	err         error
}

func (sc *shipmentContext) reset() {
	sc.store = newWorldStore()
	sc.fleetRobots = nil
	sc.result = nil
	sc.err = nil
}

func (sc *shipmentContext) orchestrator() *fleet.Orchestrator {
	clock := shared.NewMockClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	payloads := orion.NewPayloadBuilder(clock, time.UTC)
	return fleet.NewOrchestrator(sc.store, payloads, nil, nil, nil, clock, zap.NewNop(), fleet.Options{
		FleetRobots: sc.fleetRobots,
	})
}

// Setup steps

func (sc *shipmentContext) theFacilityPlaces(table *godog.Table) error {
	for i, row := range table.Rows {
		if i == 0 {
			continue // Skip header
		}
		id := row.Cells[0].Value
		name := row.Cells[1].Value
		sc.store.places[id] = robot.Place{
			ID:   id,
			Name: name,
			Pose: robot.Pose{Point: "p-" + id, Angle: 1.0},
		}
	}
	return nil
}

func (sc *shipmentContext) robotIsIdle(robotID string) error {
	sc.fleetRobots = append(sc.fleetRobots, robotID)
	sc.store.pushRobot(&robot.Robot{
		ID:               robotID,
		Mode:             robot.ModeStandby,
		HasRemainingList: true,
		Remaining:        []robot.Leg{},
	})
	sc.store.pushRobot(&robot.Robot{
		ID:            robotID,
		SendCmdStatus: robot.SendCmdStatusOK,
		SendCmdInfo:   map[string]any{"result": robot.CmdResultAck},
	})
	return nil
}

func (sc *shipmentContext) robotIsNavigating(robotID string) error {
	sc.fleetRobots = append(sc.fleetRobots, robotID)
	sc.store.pushRobot(&robot.Robot{
		ID:               robotID,
		Mode:             robot.ModeNavi,
		HasRemainingList: true,
		Remaining:        []robot.Leg{},
	})
	return nil
}

func (sc *shipmentContext) routePlanVia(from, to, via, robotID string) error {
	key := to + "|" + via + "|" + robotID
	sc.store.plans[key] = &robot.RoutePlan{
		Source: from,
		Routes: []robot.Route{
			{From: from, Via: splitList(via), To: to, Destination: to},
		},
	}
	return nil
}

func (sc *shipmentContext) routePlan(from, to, robotID string) error {
	key := to + "||" + robotID
	sc.store.plans[key] = &robot.RoutePlan{
		Source: from,
		Routes: []robot.Route{
			{From: from, To: to, Destination: to},
		},
	}
	return nil
}

// Action steps

func (sc *shipmentContext) shipmentArrives(destination string) error {
	return sc.dispatch(fleet.Shipment{
		Destination: fleet.ShipmentPlace{Name: destination},
	})
}

func (sc *shipmentContext) shipmentArrivesVia(destination, via string) error {
	shipment := fleet.Shipment{
		Destination: fleet.ShipmentPlace{Name: destination},
	}
	for _, place := range splitList(via) {
		shipment.Updated = append(shipment.Updated, fleet.ShipmentVia{Place: place})
	}
	return sc.dispatch(shipment)
}

func (sc *shipmentContext) dispatch(shipment fleet.Shipment) error {
	sc.result, sc.err = sc.orchestrator().CreateShipment(context.Background(), shipment)
	return nil
}

// Assertion steps

func (sc *shipmentContext) shipmentShouldSucceedWith(robotID string) error {
	if sc.err != nil {
		return fmt.Errorf("unexpected dispatch error: %w", sc.err)
	}
	if sc.result.Result != "success" {
		return fmt.Errorf("dispatch result is %q, expected success", sc.result.Result)
	}
	if sc.result.Robot == nil || sc.result.Robot.ID != robotID {
		return fmt.Errorf("dispatched robot is %+v, expected %q", sc.result.Robot, robotID)
	}
	return nil
}

func (sc *shipmentContext) shipmentShouldBeIgnored() error {
	if sc.err != nil {
		return fmt.Errorf("unexpected dispatch error: %w", sc.err)
	}
	if sc.result.Result != "ignore" {
		return fmt.Errorf("dispatch result is %q, expected ignore", sc.result.Result)
	}
	return nil
}

func (sc *shipmentContext) shipmentShouldFailWith(message string) error {
	if sc.err == nil {
		return fmt.Errorf("expected the dispatch to fail, got result %+v", sc.result)
	}
	if !strings.Contains(sc.err.Error(), message) {
		return fmt.Errorf("dispatch failed with %q, expected %q", sc.err.Error(), message)
	}
	return nil
}

func (sc *shipmentContext) robotShouldHaveReceivedCommand(robotID, cmd string) error {
	for _, attrs := range sc.store.patches[robotID] {
		sendCmd, ok := attrs["send_cmd"].(map[string]any)
		if !ok {
			continue
		}
		value, ok := sendCmd["value"].(map[string]any)
		if !ok {
			continue
		}
		if value["cmd"] == cmd {
			return nil
		}
	}
	return fmt.Errorf("robot %s never received a %q command", robotID, cmd)
}

func InitializeShipmentScenario(scenario *godog.ScenarioContext) {
	sc := &shipmentContext{}

	scenario.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		sc.reset()
		return ctx, nil
	})

	scenario.Step(`^the facility places:$`, sc.theFacilityPlaces)
	scenario.Step(`^robot "([^"]*)" is idle$`, sc.robotIsIdle)
	scenario.Step(`^robot "([^"]*)" is navigating$`, sc.robotIsNavigating)
	scenario.Step(`^a route plan from "([^"]*)" to "([^"]*)" via "([^"]*)" for robot "([^"]*)"$`, sc.routePlanVia)
	scenario.Step(`^a route plan from "([^"]*)" to "([^"]*)" for robot "([^"]*)"$`, sc.routePlan)

	scenario.Step(`^a shipment to "([^"]*)" arrives$`, sc.shipmentArrives)
	scenario.Step(`^a shipment to "([^"]*)" via "([^"]*)" arrives$`, sc.shipmentArrivesVia)

	scenario.Step(`^the shipment should succeed with robot "([^"]*)"$`, sc.shipmentShouldSucceedWith)
	scenario.Step(`^the shipment should be ignored$`, sc.shipmentShouldBeIgnored)
	scenario.Step(`^the shipment should fail with "([^"]*)"$`, sc.shipmentShouldFailWith)
	scenario.Step(`^robot "([^"]*)" should have received a "([^"]*)" command$`, sc.robotShouldHaveReceivedCommand)
}
