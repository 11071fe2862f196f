package robot

// TokenUIMode is the token event label published to a robot's UI entity.
type TokenUIMode string

const (
	TokenUILock    TokenUIMode = "LOCK"
	TokenUIRelease TokenUIMode = "RELEASE"
	TokenUISuspend TokenUIMode = "SUSPEND"
	TokenUIResume  TokenUIMode = "RESUME"
)

// TokenView is the snapshot of a token published alongside a TokenUIMode.
// PrevOwnerID is kept only in-process; it names the robot that held the
// token before the most recent transition.
type TokenView struct {
	ID          string
	IsLocked    bool
	LockOwnerID string
	PrevOwnerID string
	Waitings    []string
}
