package fleet

import (
	"context"
	"sync"
	"time"

	"github.com/robocourier/control-plane/internal/adapters/orion"
	"github.com/robocourier/control-plane/internal/domain/robot"
)

// WorldStore is the world-model surface the orchestrator depends on,
// implemented by the orion client.
type WorldStore interface {
	GetRobot(ctx context.Context, robotID string) (*robot.Robot, error)
	QueryPlaceByName(ctx context.Context, name string) (robot.Place, error)
	GetPlace(ctx context.Context, placeID string) (robot.Place, error)
	ListPlaces(ctx context.Context) ([]robot.Place, error)
	QueryRoutePlan(ctx context.Context, destinationID, viaKey, robotID string) (*robot.RoutePlan, error)
	GetTokenInfo(ctx context.Context, tokenID string) (robot.TokenInfo, error)
	UpdateToken(ctx context.Context, tokenID string, attrs orion.Attributes) error
	PatchRobot(ctx context.Context, robotID string, attrs orion.Attributes) error
	PatchUI(ctx context.Context, uiID string, attrs orion.Attributes) error
}

// ThrottleStore is the notification dedup gate. AdvanceIfOlder returns
// shared.ErrNotificationThrottled when the incoming time is too close to
// the stored one.
type ThrottleStore interface {
	AdvanceIfOlder(ctx context.Context, robotID string, incoming time.Time) error
}

// MessageStore records operator-facing messages. Optional; a nil store
// disables the message log.
type MessageStore interface {
	WriteStateMessage(ctx context.Context, robotID string, state robot.State, destination string) error
	WriteTokenMessage(ctx context.Context, robotID string, message string) error
}

// MetricsRecorder counts the orchestrator's domain events. Optional; a nil
// recorder disables metrics.
type MetricsRecorder interface {
	RecordShipment(result string)
	RecordNotification(outcome string)
	RecordMoveCommand(cmd, result string)
	RecordTokenEvent(mode string)
}

// keyedLocks serializes mutations per key. The orchestrator keys one
// instance by robot id and the token coordinator keys another by token id;
// operations on distinct keys proceed in parallel, operations on the same
// key never interleave.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: map[string]*sync.Mutex{}}
}

func (l *keyedLocks) get(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}
