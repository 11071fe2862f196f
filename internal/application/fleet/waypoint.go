package fleet

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/robocourier/control-plane/internal/domain/robot"
	"github.com/robocourier/control-plane/internal/domain/shared"
)

// viaSeparator joins sorted via place ids into the route plan lookup key.
const viaSeparator = "|"

// Waypoint realizes shipment requests into executable legs using the
// places and route plans held by the world-model store.
type Waypoint struct {
	store  WorldStore
	logger *zap.Logger
}

func NewWaypoint(store WorldStore, logger *zap.Logger) *Waypoint {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Waypoint{store: store, logger: logger}
}

// EstimateRoutes resolves the shipment's place names, looks up the matching
// route plan for the robot and expands each planned route into a leg with
// concrete waypoints. It returns the plan's routes, the legs and the order
// the robot will carry.
func (w *Waypoint) EstimateRoutes(ctx context.Context, shipment Shipment, robotID string) ([]robot.Route, []robot.Leg, *robot.Order, error) {
	if err := validateShipment(shipment); err != nil {
		return nil, nil, nil, err
	}

	w.logger.Info("estimating routes",
		zap.String("robot_id", robotID),
		zap.String("destination", shipment.Destination.Name),
		zap.Int("updated", len(shipment.Updated)))

	destination, err := w.store.QueryPlaceByName(ctx, shipment.Destination.Name)
	if err != nil {
		return nil, nil, nil, err
	}

	viaIDs, err := w.resolveVias(ctx, shipment.Updated)
	if err != nil {
		return nil, nil, nil, err
	}
	viaKey := viaKeyOf(viaIDs)

	plan, err := w.store.QueryRoutePlan(ctx, destination.ID, viaKey, robotID)
	if err != nil {
		return nil, nil, nil, err
	}

	places, err := w.placesFor(ctx, plan.Routes)
	if err != nil {
		return nil, nil, nil, err
	}

	legs := make([]robot.Leg, 0, len(plan.Routes))
	for _, route := range plan.Routes {
		waypoints, err := legWaypoints(places, route)
		if err != nil {
			return nil, nil, nil, err
		}
		legs = append(legs, robot.Leg{
			To:          route.To,
			Destination: route.Destination,
			Action:      route.Action,
			Waypoints:   waypoints,
		})
	}

	order := &robot.Order{
		Source:      plan.Source,
		Via:         viaIDs,
		Destination: destination.ID,
	}
	return plan.Routes, legs, order, nil
}

// resolveVias dedupes the shipment's place names, resolves each to its id
// in sorted name order and returns the ids in that order.
func (w *Waypoint) resolveVias(ctx context.Context, updated []ShipmentVia) ([]string, error) {
	seen := map[string]struct{}{}
	names := make([]string, 0, len(updated))
	for _, v := range updated {
		if _, ok := seen[v.Place]; ok {
			continue
		}
		seen[v.Place] = struct{}{}
		names = append(names, v.Place)
	}
	sort.Strings(names)

	ids := make([]string, 0, len(names))
	for _, name := range names {
		place, err := w.store.QueryPlaceByName(ctx, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, place.ID)
	}
	return ids, nil
}

// placesFor loads every place once and indexes the ones the routes touch.
func (w *Waypoint) placesFor(ctx context.Context, routes []robot.Route) (map[string]robot.Place, error) {
	all, err := w.store.ListPlaces(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]robot.Place, len(all))
	for _, p := range all {
		byID[p.ID] = p
	}

	places := map[string]robot.Place{}
	for _, route := range routes {
		ids := append([]string{route.From, route.To, route.Destination}, route.Via...)
		for _, id := range ids {
			place, ok := byID[id]
			if !ok {
				return nil, shared.NewInternalError("unknown place, place_id=%s", id)
			}
			places[id] = place
		}
	}
	return places, nil
}

// legWaypoints expands a route into its waypoint list. Via points carry a
// null angle so the robot rolls through them, the terminal point keeps its
// pose angle.
func legWaypoints(places map[string]robot.Place, route robot.Route) ([]robot.Waypoint, error) {
	waypoints := make([]robot.Waypoint, 0, len(route.Via)+1)
	for _, id := range route.Via {
		place, ok := places[id]
		if !ok {
			return nil, shared.NewInternalError("unknown place, place_id=%s", id)
		}
		waypoints = append(waypoints, robot.Waypoint{Point: place.Pose.Point, Angle: nil})
	}
	to, ok := places[route.To]
	if !ok {
		return nil, shared.NewInternalError("unknown place, place_id=%s", route.To)
	}
	waypoints = append(waypoints, robot.Waypoint{Point: to.Pose.Point, Angle: to.Pose.Angle})
	return waypoints, nil
}

// viaKeyOf joins a copy of the via ids in sorted order. The shipment's
// resolution order is preserved for the order attribute; only the lookup
// key is sorted.
func viaKeyOf(viaIDs []string) string {
	sorted := append([]string(nil), viaIDs...)
	sort.Strings(sorted)
	return strings.Join(sorted, viaSeparator)
}

func validateShipment(shipment Shipment) error {
	if shipment.Destination.Name == "" {
		return shared.NewValidationError("invalid shipment_list")
	}
	for _, v := range shipment.Updated {
		if v.Place == "" {
			return shared.NewValidationError("invalid shipment_list")
		}
	}
	return nil
}
