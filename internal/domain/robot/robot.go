package robot

// Mode is the live value reported by a robot. The pre-provisioned init mode
// is a single space, matching what the fleet tooling writes at setup.
type Mode string

const (
	ModeInit    Mode = " "
	ModeNavi    Mode = "navi"
	ModeStandby Mode = "standby"
	ModeError   Mode = "error"
)

// State is the control plane's classification of a robot.
type State string

const (
	StateMoving     State = "moving"
	StateStandby    State = "standby"
	StatePicking    State = "picking"
	StateDelivering State = "delivering"
)

// Command send handshake values.
const (
	SendCmdStatusOK      = "OK"
	SendCmdStatusPending = "pending"

	CmdResultAck    = "ack"
	CmdResultIgnore = "ignore"
	CmdResultError  = "error"
)

// Robot is the typed view of a delivery_robot entity. Attribute values the
// store reports with unexpected shapes decode to their zero values;
// HasRemainingList distinguishes a present empty list from a missing or
// malformed one because availability depends on that difference.
type Robot struct {
	ID                  string
	Mode                Mode
	CurrentMode         Mode
	CurrentState        State
	NavigatingWaypoints *Leg
	Remaining           []Leg
	HasRemainingList    bool
	Order               *Order
	Caller              string
	SendCmdStatus       string
	SendCmdInfo         any
	LastProcessedTime   string
}

// Available reports whether the robot can accept a new shipment: it is not
// navigating and its remaining waypoint queue is a present, empty list.
func (r *Robot) Available() bool {
	return r.Mode != ModeNavi && r.HasRemainingList && len(r.Remaining) == 0
}

// CmdResult extracts send_cmd_info.result when send_cmd_info is a mapping
// carrying one. The second return is false when the attribute does not have
// the expected shape.
func (r *Robot) CmdResult() (string, bool) {
	info, ok := r.SendCmdInfo.(map[string]any)
	if !ok {
		return "", false
	}
	result, ok := info["result"]
	if !ok {
		return "", false
	}
	s, _ := result.(string)
	return s, true
}

// CmdErrors extracts send_cmd_info.errors, or "" when absent.
func (r *Robot) CmdErrors() string {
	info, ok := r.SendCmdInfo.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := info["errors"].(string)
	return s
}
