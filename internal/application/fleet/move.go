package fleet

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/robocourier/control-plane/internal/domain/robot"
	"github.com/robocourier/control-plane/internal/domain/shared"
)

// move dispatches one leg to the robot. It tries "navi" first and falls
// back to "refresh" when the robot ignored the navi, resending the same
// context both times.
func (o *Orchestrator) move(
	ctx context.Context,
	robotID string,
	cmdWaypoints []robot.Waypoint,
	leg robot.Leg,
	remaining []robot.Leg,
	routes []robot.Route,
	order *robot.Order,
	caller robot.Caller,
) error {
	naviResult, err := o.sendAndWait(ctx, robotID, "navi", cmdWaypoints, leg, remaining, routes, order, caller)
	if err != nil {
		return err
	}
	if naviResult == robot.CmdResultAck {
		return nil
	}

	o.logger.Info("navi ignored, retrying with refresh",
		zap.String("robot_id", robotID),
		zap.String("to", leg.To))

	refreshResult, err := o.sendAndWait(ctx, robotID, "refresh", cmdWaypoints, leg, remaining, routes, order, caller)
	if err != nil {
		return err
	}
	if refreshResult == robot.CmdResultAck {
		return nil
	}
	return shared.NewInternalError(
		`cannot move robot(%s) to "%s" using "navi" and "refresh", navi result=%s refresh result=%s`,
		robotID, leg.To, naviResult, refreshResult)
}

// sendAndWait patches the robot with the command and polls until the
// send_cmd_status handshake leaves pending, then interprets the result. It
// returns ack or ignore; every other outcome is an error.
func (o *Orchestrator) sendAndWait(
	ctx context.Context,
	robotID string,
	cmd string,
	cmdWaypoints []robot.Waypoint,
	leg robot.Leg,
	remaining []robot.Leg,
	routes []robot.Route,
	order *robot.Order,
	caller robot.Caller,
) (string, error) {
	payload := o.payloads.DeliveryRobotCommand(cmd, cmdWaypoints, leg, remaining, routes, order, caller)
	if err := o.store.PatchRobot(ctx, robotID, payload); err != nil {
		return "", err
	}

	var r *robot.Robot
	for i := 0; ; i++ {
		var err error
		r, err = o.store.GetRobot(ctx, robotID)
		if err != nil {
			return "", err
		}
		if r.SendCmdStatus != robot.SendCmdStatusPending {
			break
		}
		if i >= o.maxPolls {
			o.recordMoveCommand(cmd, "pending")
			return "", shared.NewInternalError(
				"send_cmd_status still pending, robot_id=%s, wait_msec=%d, wait_count=%d",
				robotID, o.pollInterval/time.Millisecond, o.maxPolls)
		}
		o.clock.Sleep(o.pollInterval)
	}

	result, ok := r.CmdResult()
	if !ok {
		o.recordMoveCommand(cmd, "invalid")
		return "", shared.NewInternalError("invalid send_cmd_info, %v", r.SendCmdInfo)
	}
	switch result {
	case robot.CmdResultAck, robot.CmdResultIgnore:
		o.recordMoveCommand(cmd, result)
		return result, nil
	}
	o.recordMoveCommand(cmd, "error")
	return "", shared.NewInternalError(
		`move robot error, robot_id=%s, errors="%s"`, robotID, r.CmdErrors())
}

// moveNext pops the head of the robot's remaining queue and dispatches it.
// modeCheck refuses a navigating robot; the token pipeline skips the check
// because the notified standby can run ahead of the stored mode. An empty
// queue is always a precondition failure.
func (o *Orchestrator) moveNext(ctx context.Context, robotID string, modeCheck bool) error {
	r, err := o.store.GetRobot(ctx, robotID)
	if err != nil {
		return err
	}
	if modeCheck && r.Mode == robot.ModeNavi {
		return shared.NewConflictError("robot(%s) is navigating now", robotID).With("id", robotID)
	}
	if len(r.Remaining) == 0 {
		return shared.NewPreconditionError("no remaining waypoints for robot(%s)", robotID).With("id", robotID)
	}

	head, tail := r.Remaining[0], r.Remaining[1:]
	return o.move(ctx, robotID, head.Waypoints, head, tail, nil, nil, "")
}
