package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/robocourier/control-plane/internal/domain/robot"
	"github.com/robocourier/control-plane/internal/domain/shared"
)

// NotifiedAttr is the envelope the world-model store wraps notified
// attribute values in.
type NotifiedAttr struct {
	Value string `json:"value"`
}

// RobotEvent is one element of a robot notification batch.
type RobotEvent struct {
	ID   string       `json:"id"`
	Mode NotifiedAttr `json:"mode"`
	Time NotifiedAttr `json:"time"`
}

// Notification is the batch posted by the world-model store when robot
// entities change.
type Notification struct {
	Data []RobotEvent `json:"data"`
}

// NotificationResult partitions the batch into processed and ignored
// elements. The batch as a whole always succeeds; per-element failures land
// in Ignored.
type NotificationResult struct {
	Result    string       `json:"result"`
	Processed []RobotEvent `json:"processed_data"`
	Ignored   []RobotEvent `json:"ignored_data"`
}

// emptyAction is the placeholder written on a refuge leg so the leg never
// re-triggers token handling.
var emptyAction = json.RawMessage(`{"func": "", "token": "", "waiting_route": {}}`)

// ProcessNotification runs the state machine for every element of a robot
// notification batch. Elements are independent; a failing element is logged
// and reported as ignored without stopping the rest.
func (o *Orchestrator) ProcessNotification(ctx context.Context, notification Notification) *NotificationResult {
	result := &NotificationResult{
		Result:    "success",
		Processed: []RobotEvent{},
		Ignored:   []RobotEvent{},
	}
	for _, event := range notification.Data {
		processed, err := o.processEvent(ctx, event)
		if err != nil {
			if errors.Is(err, shared.ErrNotificationThrottled) {
				o.logger.Info("notification throttled",
					zap.String("robot_id", event.ID),
					zap.String("time", event.Time.Value))
				o.recordNotification("throttled")
			} else {
				o.logger.Error("can not process notification",
					zap.String("robot_id", event.ID),
					zap.Error(err))
				o.recordNotification("error")
			}
			result.Ignored = append(result.Ignored, event)
			continue
		}
		if !processed {
			o.recordNotification("ignored")
			result.Ignored = append(result.Ignored, event)
			continue
		}
		o.recordNotification("processed")
		result.Processed = append(result.Processed, event)
	}
	return result
}

// processEvent handles one notified mode change. It reports false when the
// event carries no transition to commit.
func (o *Orchestrator) processEvent(ctx context.Context, event RobotEvent) (bool, error) {
	if event.ID == "" {
		return false, shared.NewValidationError("invalid notification data, %v", event)
	}
	notifiedAt, err := time.Parse(time.RFC3339, event.Time.Value)
	if err != nil {
		return false, shared.NewValidationError("invalid notification time, %s", event.Time.Value)
	}

	processed, promote, err := o.commitEvent(ctx, event, notifiedAt)
	if err != nil {
		return false, err
	}
	// The promoted robot advances only after the releaser's mutex is
	// dropped, so two releases whose new owners are each other's robots
	// never hold each other's locks.
	if promote != nil {
		if err := promote(ctx); err != nil {
			return false, err
		}
	}
	return processed, nil
}

// commitEvent runs the transition under the robot's mutex. When a release
// promoted a waiter it returns the follow-up that advances the new owner.
func (o *Orchestrator) commitEvent(ctx context.Context, event RobotEvent, notifiedAt time.Time) (bool, func(context.Context) error, error) {
	mu := o.locks.get(event.ID)
	mu.Lock()
	defer mu.Unlock()

	if err := o.throttle.AdvanceIfOlder(ctx, event.ID, notifiedAt); err != nil {
		return false, nil, err
	}

	r, err := o.store.GetRobot(ctx, event.ID)
	if err != nil {
		return false, nil, err
	}
	if err := o.store.PatchRobot(ctx, event.ID, o.payloads.UpdateLastProcessedTime(notifiedAt)); err != nil {
		return false, nil, err
	}

	nextMode := robot.Mode(event.Mode.Value)
	if nextMode == r.CurrentMode {
		return false, nil, nil
	}
	if err := o.store.PatchRobot(ctx, event.ID, o.payloads.UpdateMode(nextMode)); err != nil {
		return false, nil, err
	}

	nextState := robot.NextState(nextMode, r.NavigatingWaypoints, r.Order, o.parseCaller(r))

	var promote func(context.Context) error
	if nextMode == robot.ModeStandby {
		promote, err = o.dispatchAction(ctx, r)
		if err != nil {
			return false, nil, err
		}
	}

	if nextState != r.CurrentState {
		if err := o.commitState(ctx, r, nextState); err != nil {
			return false, nil, err
		}
	}
	return true, promote, nil
}

// commitState writes the robot's new state and publishes it to the robot's
// UI when one is configured.
func (o *Orchestrator) commitState(ctx context.Context, r *robot.Robot, next robot.State) error {
	if err := o.store.PatchRobot(ctx, r.ID, o.payloads.UpdateState(next)); err != nil {
		return err
	}

	destination := o.destinationName(ctx, r)
	if uiID := o.uiID(r.ID); uiID != "" {
		if err := o.store.PatchUI(ctx, uiID, o.payloads.RobotUISendState(next, destination)); err != nil {
			return err
		}
	}
	if o.messages != nil {
		if err := o.messages.WriteStateMessage(ctx, r.ID, next, destination); err != nil {
			o.logger.Warn("can not record state message",
				zap.String("robot_id", r.ID),
				zap.Error(err))
		}
	}
	return nil
}

// dispatchAction runs the token directive attached to the leg the robot
// just finished. Legs without a usable action are a no-op.
func (o *Orchestrator) dispatchAction(ctx context.Context, r *robot.Robot) (func(context.Context) error, error) {
	action, ok := r.NavigatingWaypoints.ParseAction()
	if !ok {
		return nil, nil
	}

	switch action.Func {
	case robot.ActionFuncLock:
		return nil, o.handleLock(ctx, r, action)
	case robot.ActionFuncRelease:
		return o.handleRelease(ctx, r, action)
	}
	o.logger.Warn("unknown action func, skipping",
		zap.String("robot_id", r.ID),
		zap.String("func", action.Func),
		zap.String("token", action.Token))
	return nil, nil
}

// handleLock tries to take the action's token. The owner moves on and its
// UI is locked; a loser diverts to the refuge route when one exists and its
// UI is suspended.
func (o *Orchestrator) handleLock(ctx context.Context, r *robot.Robot, action *robot.Action) error {
	acquired, info, err := o.tokens.Acquire(ctx, action.Token, r.ID)
	if err != nil {
		return err
	}

	if acquired {
		if err := o.moveNext(ctx, r.ID, false); err != nil {
			return err
		}
		return o.publishTokenInfo(ctx, r.ID, action.Token, info, robot.TokenUILock, "")
	}

	if !action.WaitingRoute.Empty() {
		if err := o.takeRefuge(ctx, r, action.WaitingRoute); err != nil {
			return err
		}
	}
	return o.publishTokenInfo(ctx, r.ID, action.Token, info, robot.TokenUISuspend, "")
}

// handleRelease gives the token up first, so a failure moving the releaser
// on can no longer wedge the queue, then advances the releaser. When a
// waiter was queued it becomes the new owner; the returned follow-up
// resumes its route and locks its UI once the releaser's mutex is free.
func (o *Orchestrator) handleRelease(ctx context.Context, r *robot.Robot, action *robot.Action) (func(context.Context) error, error) {
	newOwner, info, err := o.tokens.Release(ctx, action.Token, r.ID)
	if err != nil {
		return nil, err
	}
	if err := o.moveNext(ctx, r.ID, false); err != nil {
		return nil, err
	}
	if err := o.publishTokenInfo(ctx, r.ID, action.Token, info, robot.TokenUIRelease, r.ID); err != nil {
		return nil, err
	}
	if newOwner == "" {
		return nil, nil
	}

	prevOwner := r.ID
	return func(ctx context.Context) error {
		mu := o.locks.get(newOwner)
		mu.Lock()
		defer mu.Unlock()

		if err := o.moveNext(ctx, newOwner, false); err != nil {
			return err
		}
		if err := o.publishTokenInfo(ctx, newOwner, action.Token, info, robot.TokenUIResume, prevOwner); err != nil {
			return err
		}
		return o.publishTokenInfo(ctx, newOwner, action.Token, info, robot.TokenUILock, prevOwner)
	}, nil
}

// takeRefuge sends the robot down the waiting route. The synthetic leg
// keeps the original destination and carries no action; the remaining queue
// stays untouched so the robot resumes it once the token arrives.
func (o *Orchestrator) takeRefuge(ctx context.Context, r *robot.Robot, wr *robot.WaitingRoute) error {
	waypoints, err := o.refugeWaypoints(ctx, wr)
	if err != nil {
		return err
	}
	leg := robot.Leg{
		To:          wr.To,
		Destination: r.NavigatingWaypoints.Destination,
		Action:      emptyAction,
		Waypoints:   waypoints,
	}
	o.logger.Info("token busy, taking refuge",
		zap.String("robot_id", r.ID),
		zap.String("to", wr.To))
	return o.move(ctx, r.ID, waypoints, leg, nil, nil, nil, "")
}

// refugeWaypoints expands a waiting route into waypoints the same way a
// planned leg is expanded.
func (o *Orchestrator) refugeWaypoints(ctx context.Context, wr *robot.WaitingRoute) ([]robot.Waypoint, error) {
	all, err := o.store.ListPlaces(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]robot.Place, len(all))
	for _, p := range all {
		byID[p.ID] = p
	}

	waypoints := make([]robot.Waypoint, 0, len(wr.Via)+1)
	for _, id := range wr.Via {
		place, ok := byID[id]
		if !ok {
			return nil, shared.NewInternalError("unknown place, place_id=%s", id)
		}
		waypoints = append(waypoints, robot.Waypoint{Point: place.Pose.Point, Angle: nil})
	}
	to, ok := byID[wr.To]
	if !ok {
		return nil, shared.NewInternalError("unknown place, place_id=%s", wr.To)
	}
	waypoints = append(waypoints, robot.Waypoint{Point: to.Pose.Point, Angle: to.Pose.Angle})
	return waypoints, nil
}

// publishTokenInfo sends a token event to the robot's UI and records it in
// the message log. Robots without a UI skip the publication.
func (o *Orchestrator) publishTokenInfo(ctx context.Context, robotID, tokenID string, info robot.TokenInfo, mode robot.TokenUIMode, prevOwnerID string) error {
	o.recordTokenEvent(mode)
	view := tokenView(tokenID, info, prevOwnerID)
	if uiID := o.uiID(robotID); uiID != "" {
		if err := o.store.PatchUI(ctx, uiID, o.payloads.RobotUISendTokenInfo(view, mode)); err != nil {
			return err
		}
	}
	if o.messages != nil {
		message := fmt.Sprintf("token %s %s for robot %s", tokenID, mode, robotID)
		if err := o.messages.WriteTokenMessage(ctx, robotID, message); err != nil {
			o.logger.Warn("can not record token message",
				zap.String("robot_id", robotID),
				zap.Error(err))
		}
	}
	return nil
}
