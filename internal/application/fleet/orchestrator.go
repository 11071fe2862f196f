package fleet

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/robocourier/control-plane/internal/adapters/orion"
	"github.com/robocourier/control-plane/internal/domain/robot"
	"github.com/robocourier/control-plane/internal/domain/shared"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxPolls     = 10
)

// Shipment is a shipment request as submitted by the warehouse or ordering
// system. Place names are resolved to ids during route estimation.
type Shipment struct {
	Destination ShipmentPlace `json:"destination"`
	Updated     []ShipmentVia `json:"updated"`
	Caller      string        `json:"caller"`
}

// ShipmentPlace names the shipment destination.
type ShipmentPlace struct {
	Name string `json:"name"`
}

// ShipmentVia names one stop of the shipment.
type ShipmentVia struct {
	Place string `json:"place"`
}

// RobotRef identifies the robot selected for a shipment.
type RobotRef struct {
	ID string `json:"id"`
}

// ShipmentResult is the outcome of a shipment request. Result is "success"
// when a robot was dispatched and "ignore" when the plan yielded no legs.
type ShipmentResult struct {
	Result  string       `json:"result"`
	Robot   *RobotRef    `json:"delivery_robot,omitempty"`
	Order   *robot.Order `json:"order,omitempty"`
	Caller  string       `json:"caller,omitempty"`
	Message string       `json:"message,omitempty"`
}

// RobotStatus is the operator view of one robot.
type RobotStatus struct {
	ID          string `json:"id"`
	State       string `json:"state"`
	Destination string `json:"destination"`
}

// Options configures an Orchestrator.
type Options struct {
	FleetRobots  []string
	UITable      map[string]string
	OrderingList []string
	PollInterval time.Duration
	MaxPolls     int
}

// Orchestrator is the control logic behind the HTTP surface: robot
// selection, route realization, command dispatch, notification processing
// and token coordination. The HTTP handlers are thin adapters over it.
type Orchestrator struct {
	store    WorldStore
	payloads *orion.PayloadBuilder
	throttle ThrottleStore
	messages MessageStore
	waypoint *Waypoint
	tokens   *TokenCoordinator
	metrics  MetricsRecorder
	clock    shared.Clock
	logger   *zap.Logger

	fleetRobots  []string
	uiTable      map[string]string
	orderingList []string
	pollInterval time.Duration
	maxPolls     int

	locks *keyedLocks
}

// NewOrchestrator creates the orchestrator. A nil clock uses the real
// clock; a nil messages store disables the operator message log.
func NewOrchestrator(
	store WorldStore,
	payloads *orion.PayloadBuilder,
	throttle ThrottleStore,
	messages MessageStore,
	metrics MetricsRecorder,
	clock shared.Clock,
	logger *zap.Logger,
	opts Options,
) *Orchestrator {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = defaultMaxPolls
	}
	return &Orchestrator{
		store:        store,
		payloads:     payloads,
		throttle:     throttle,
		messages:     messages,
		waypoint:     NewWaypoint(store, logger),
		tokens:       NewTokenCoordinator(store, payloads, logger),
		metrics:      metrics,
		clock:        clock,
		logger:       logger,
		fleetRobots:  opts.FleetRobots,
		uiTable:      opts.UITable,
		orderingList: opts.OrderingList,
		pollInterval: opts.PollInterval,
		maxPolls:     opts.MaxPolls,
		locks:        newKeyedLocks(),
	}
}

// Tokens exposes the token coordinator, mainly for tests.
func (o *Orchestrator) Tokens() *TokenCoordinator {
	return o.tokens
}

// CreateShipment selects an available robot, realizes the route for the
// shipment and dispatches the first leg.
func (o *Orchestrator) CreateShipment(ctx context.Context, shipment Shipment) (*ShipmentResult, error) {
	caller := robot.CallerForShipment(shipment.Caller, o.orderingList)

	robotID, err := o.availableRobot(ctx)
	if err != nil {
		return nil, err
	}

	mu := o.locks.get(robotID)
	mu.Lock()
	defer mu.Unlock()

	routes, legs, order, err := o.waypoint.EstimateRoutes(ctx, shipment, robotID)
	if err != nil {
		return nil, err
	}
	if len(legs) == 0 {
		o.recordShipment("ignore")
		return &ShipmentResult{
			Result:  "ignore",
			Message: "no available waypoints_list",
		}, nil
	}

	head, tail := legs[0], legs[1:]
	if err := o.move(ctx, robotID, head.Waypoints, head, tail, routes, order, caller); err != nil {
		return nil, err
	}

	o.logger.Info("shipment dispatched",
		zap.String("robot_id", robotID),
		zap.String("caller", caller.String()),
		zap.String("destination", order.Destination))
	o.recordShipment("success")

	return &ShipmentResult{
		Result: "success",
		Robot:  &RobotRef{ID: robotID},
		Order:  order,
		Caller: caller.String(),
	}, nil
}

// RobotState reports the derived state and destination of one robot.
func (o *Orchestrator) RobotState(ctx context.Context, robotID string) (*RobotStatus, error) {
	r, err := o.store.GetRobot(ctx, robotID)
	if err != nil {
		return nil, err
	}
	state := robot.NextState(r.Mode, r.NavigatingWaypoints, r.Order, o.parseCaller(r))
	return &RobotStatus{
		ID:          robotID,
		State:       string(state),
		Destination: o.destinationName(ctx, r),
	}, nil
}

// MoveNext advances the robot to the next remaining leg. It refuses while
// the robot is navigating.
func (o *Orchestrator) MoveNext(ctx context.Context, robotID string) error {
	mu := o.locks.get(robotID)
	mu.Lock()
	defer mu.Unlock()
	return o.moveNext(ctx, robotID, true)
}

// Emergency dispatches an emergency stop to the robot.
func (o *Orchestrator) Emergency(ctx context.Context, robotID string) error {
	return o.store.PatchRobot(ctx, robotID, o.payloads.EmergencyCommand("stop"))
}

// availableRobot scans the configured fleet in declaration order and
// returns the first robot that can accept a shipment. Declaration order is
// the tie-break contract.
func (o *Orchestrator) availableRobot(ctx context.Context) (string, error) {
	for _, robotID := range o.fleetRobots {
		r, err := o.store.GetRobot(ctx, robotID)
		if err != nil {
			return "", err
		}
		if r.Available() {
			return robotID, nil
		}
	}
	return "", shared.NewUnavailableError("no available robot")
}

// parseCaller reads the robot's committed caller attribute, degrading to
// warehouse with a warning when it does not parse. An unset attribute is
// the normal case before the first shipment and stays quiet.
func (o *Orchestrator) parseCaller(r *robot.Robot) robot.Caller {
	if r.Caller == "" {
		return robot.CallerWarehouse
	}
	c, err := robot.ParseCaller(r.Caller)
	if err != nil {
		o.logger.Warn("unparseable caller, treating as warehouse",
			zap.String("robot_id", r.ID),
			zap.String("caller", r.Caller))
		return robot.CallerWarehouse
	}
	return c
}

// destinationName resolves the current leg's destination place name, or ""
// when there is none or the lookup fails.
func (o *Orchestrator) destinationName(ctx context.Context, r *robot.Robot) string {
	if r.NavigatingWaypoints == nil || r.NavigatingWaypoints.Destination == "" {
		return ""
	}
	place, err := o.store.GetPlace(ctx, r.NavigatingWaypoints.Destination)
	if err != nil {
		o.logger.Warn("can not resolve destination place",
			zap.String("robot_id", r.ID),
			zap.String("place_id", r.NavigatingWaypoints.Destination),
			zap.Error(err))
		return ""
	}
	return place.Name
}

// uiID resolves the UI entity paired with a robot, or "" when the robot has
// no UI configured.
func (o *Orchestrator) uiID(robotID string) string {
	return o.uiTable[robotID]
}

func (o *Orchestrator) recordShipment(result string) {
	if o.metrics != nil {
		o.metrics.RecordShipment(result)
	}
}

func (o *Orchestrator) recordNotification(outcome string) {
	if o.metrics != nil {
		o.metrics.RecordNotification(outcome)
	}
}

func (o *Orchestrator) recordMoveCommand(cmd, result string) {
	if o.metrics != nil {
		o.metrics.RecordMoveCommand(cmd, result)
	}
}

func (o *Orchestrator) recordTokenEvent(mode robot.TokenUIMode) {
	if o.metrics != nil {
		o.metrics.RecordTokenEvent(string(mode))
	}
}
