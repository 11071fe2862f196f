package fleet

import (
	"context"

	"go.uber.org/zap"

	"github.com/robocourier/control-plane/internal/adapters/orion"
	"github.com/robocourier/control-plane/internal/domain/robot"
)

// TokenCoordinator implements the distributed mutex over token entities in
// the world-model store. Every decision re-reads the token so concurrent
// control plane instances sharing the store observe each other's
// transitions, and every transition writes the token whole. A per-token
// mutex covers each read-decide-write so two in-process acquirers can
// never both observe the token unlocked.
type TokenCoordinator struct {
	store    WorldStore
	payloads *orion.PayloadBuilder
	locks    *keyedLocks
	logger   *zap.Logger
}

func NewTokenCoordinator(store WorldStore, payloads *orion.PayloadBuilder, logger *zap.Logger) *TokenCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenCoordinator{
		store:    store,
		payloads: payloads,
		locks:    newKeyedLocks(),
		logger:   logger,
	}
}

// Acquire tries to take the token for robotID. When the token is free (or
// already held by the same robot) it becomes the owner and the waiting
// queue is cleared. Otherwise the robot is appended to the queue once and
// Acquire reports false.
func (t *TokenCoordinator) Acquire(ctx context.Context, tokenID, robotID string) (bool, robot.TokenInfo, error) {
	mu := t.locks.get(tokenID)
	mu.Lock()
	defer mu.Unlock()

	info, err := t.store.GetTokenInfo(ctx, tokenID)
	if err != nil {
		return false, robot.TokenInfo{}, err
	}

	if !info.IsLocked || info.LockOwnerID == robotID {
		next := robot.TokenInfo{
			IsLocked:    true,
			LockOwnerID: robotID,
			Waitings:    []string{},
		}
		if err := t.store.UpdateToken(ctx, tokenID, t.payloads.TokenInfo(next)); err != nil {
			return false, robot.TokenInfo{}, err
		}
		t.logger.Info("token acquired",
			zap.String("token", tokenID),
			zap.String("robot_id", robotID))
		return true, next, nil
	}

	next := robot.TokenInfo{
		IsLocked:    true,
		LockOwnerID: info.LockOwnerID,
		Waitings:    appendOnce(info.Waitings, robotID),
	}
	if err := t.store.UpdateToken(ctx, tokenID, t.payloads.TokenInfo(next)); err != nil {
		return false, robot.TokenInfo{}, err
	}
	t.logger.Info("token busy, queued",
		zap.String("token", tokenID),
		zap.String("robot_id", robotID),
		zap.String("lock_owner_id", info.LockOwnerID),
		zap.Strings("waitings", next.Waitings))
	return false, next, nil
}

// Release gives the token up. With waiters queued the head becomes the new
// owner and is returned; otherwise the token unlocks and the returned owner
// is empty.
func (t *TokenCoordinator) Release(ctx context.Context, tokenID, robotID string) (string, robot.TokenInfo, error) {
	mu := t.locks.get(tokenID)
	mu.Lock()
	defer mu.Unlock()

	info, err := t.store.GetTokenInfo(ctx, tokenID)
	if err != nil {
		return "", robot.TokenInfo{}, err
	}
	if info.IsLocked && info.LockOwnerID != robotID {
		t.logger.Warn("token released by a robot that does not own it",
			zap.String("token", tokenID),
			zap.String("robot_id", robotID),
			zap.String("lock_owner_id", info.LockOwnerID))
	}

	var next robot.TokenInfo
	var newOwner string
	if len(info.Waitings) == 0 {
		next = robot.TokenInfo{IsLocked: false, LockOwnerID: "", Waitings: []string{}}
	} else {
		newOwner = info.Waitings[0]
		next = robot.TokenInfo{
			IsLocked:    true,
			LockOwnerID: newOwner,
			Waitings:    append([]string(nil), info.Waitings[1:]...),
		}
	}
	if err := t.store.UpdateToken(ctx, tokenID, t.payloads.TokenInfo(next)); err != nil {
		return "", robot.TokenInfo{}, err
	}
	t.logger.Info("token released",
		zap.String("token", tokenID),
		zap.String("robot_id", robotID),
		zap.String("new_owner_id", newOwner))
	return newOwner, next, nil
}

// View reads the current token state for publication.
func (t *TokenCoordinator) View(ctx context.Context, tokenID, prevOwnerID string) (robot.TokenView, error) {
	info, err := t.store.GetTokenInfo(ctx, tokenID)
	if err != nil {
		return robot.TokenView{}, err
	}
	return tokenView(tokenID, info, prevOwnerID), nil
}

func tokenView(tokenID string, info robot.TokenInfo, prevOwnerID string) robot.TokenView {
	return robot.TokenView{
		ID:          tokenID,
		IsLocked:    info.IsLocked,
		LockOwnerID: info.LockOwnerID,
		PrevOwnerID: prevOwnerID,
		Waitings:    info.Waitings,
	}
}

func appendOnce(list []string, v string) []string {
	for _, e := range list {
		if e == v {
			return append([]string(nil), list...)
		}
	}
	out := append([]string(nil), list...)
	return append(out, v)
}
