package robot

import "encoding/json"

// Waypoint is one point of a leg. Point and Angle are carried opaquely
// between the route plan and the robot; intermediate vias have a null angle.
type Waypoint struct {
	Point any `json:"point"`
	Angle any `json:"angle"`
}

// Leg is one step of a planned route: the terminal place, the overall
// destination, an optional action and the ordered waypoints leading there.
// Action stays raw JSON so whatever the route plan attached survives the
// round trip through the robot entity unchanged.
type Leg struct {
	To          string          `json:"to"`
	Destination string          `json:"destination"`
	Action      json.RawMessage `json:"action,omitempty"`
	Waypoints   []Waypoint      `json:"waypoints"`
}

// ParseAction decodes the leg's action directive. It returns false when the
// leg has no action or the action is not a mapping with a usable func.
func (l *Leg) ParseAction() (*Action, bool) {
	if l == nil || len(l.Action) == 0 {
		return nil, false
	}
	var a Action
	if err := json.Unmarshal(l.Action, &a); err != nil {
		return nil, false
	}
	if a.Func == "" || a.Token == "" {
		return nil, false
	}
	return &a, true
}

// Action directives attached to a leg.
const (
	ActionFuncLock    = "lock"
	ActionFuncRelease = "release"
)

// Action tells the notification pipeline what to do with a token when the
// robot reaches the end of the leg.
type Action struct {
	Func         string        `json:"func"`
	Token        string        `json:"token"`
	WaitingRoute *WaitingRoute `json:"waiting_route,omitempty"`
}

// WaitingRoute is the refuge subroute a robot takes when it cannot acquire
// the action's token.
type WaitingRoute struct {
	Via []string `json:"via"`
	To  string   `json:"to"`
}

// Empty reports whether there is no refuge to take.
func (w *WaitingRoute) Empty() bool {
	return w == nil || w.To == ""
}

// Route is one entry of a route_plan.
type Route struct {
	From        string          `json:"from"`
	Via         []string        `json:"via"`
	To          string          `json:"to"`
	Destination string          `json:"destination"`
	Action      json.RawMessage `json:"action,omitempty"`
}

// RoutePlan is the planned multi-leg route for one (destination, via key,
// robot) combination.
type RoutePlan struct {
	Source string
	Routes []Route
}

// Order describes the shipment a robot is working on.
type Order struct {
	Source      string   `json:"source"`
	Via         []string `json:"via"`
	Destination string   `json:"destination"`
}

// Pose is a place's physical pose.
type Pose struct {
	Point any `json:"point"`
	Angle any `json:"angle"`
}

// Place is a named location in the facility.
type Place struct {
	ID   string
	Name string
	Pose Pose
}

// TokenInfo is the persisted state of a named token.
type TokenInfo struct {
	IsLocked    bool
	LockOwnerID string
	Waitings    []string
}
