package robot

// NextState derives the robot state shown to operators from the robot's
// mode, its current leg and the order context.
//
//   - a navigating robot is moving
//   - without a usable leg or order nothing can be inferred: standby
//   - heading back to the order source: standby (empty source and
//     destination fields never match)
//   - heading to the order destination: delivering for ordering callers,
//     picking for warehouse callers
//   - heading to a via of the order: picking
//   - anything else is a plain transfer: moving
func NextState(mode Mode, leg *Leg, order *Order, caller Caller) State {
	if mode == ModeNavi {
		return StateMoving
	}
	if leg == nil || leg.To == "" || order == nil {
		return StateStandby
	}
	switch {
	case order.Source != "" && leg.To == order.Source:
		return StateStandby
	case order.Destination != "" && leg.To == order.Destination:
		if caller == CallerOrdering {
			return StateDelivering
		}
		return StatePicking
	case contains(order.Via, leg.To):
		return StatePicking
	}
	return StateMoving
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}
