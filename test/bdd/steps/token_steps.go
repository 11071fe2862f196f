package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"
	"go.uber.org/zap"

	"github.com/robocourier/control-plane/internal/adapters/orion"
	"github.com/robocourier/control-plane/internal/application/fleet"
	"github.com/robocourier/control-plane/internal/domain/robot"
	"github.com/robocourier/control-plane/internal/domain/shared"
)

type tokenContext struct {
	store    *worldStore
	tokens   *fleet.TokenCoordinator
	acquired bool
	newOwner string
}

func (tc *tokenContext) reset() {
	tc.store = newWorldStore()
	clock := shared.NewMockClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	payloads := orion.NewPayloadBuilder(clock, time.UTC)
	tc.tokens = fleet.NewTokenCoordinator(tc.store, payloads, zap.NewNop())
	tc.acquired = false
	tc.newOwner = ""
}

// Setup steps

func (tc *tokenContext) tokenIsFree(tokenID string) error {
	tc.store.tokens[tokenID] = robot.TokenInfo{Waitings: []string{}}
	return nil
}

func (tc *tokenContext) tokenIsOwnedBy(tokenID, robotID string) error {
	tc.store.tokens[tokenID] = robot.TokenInfo{
		IsLocked:    true,
		LockOwnerID: robotID,
		Waitings:    []string{},
	}
	return nil
}

func (tc *tokenContext) tokenIsOwnedByWithWaiters(tokenID, robotID, waiters string) error {
	tc.store.tokens[tokenID] = robot.TokenInfo{
		IsLocked:    true,
		LockOwnerID: robotID,
		Waitings:    splitList(waiters),
	}
	return nil
}

// Action steps

func (tc *tokenContext) robotAcquiresToken(robotID, tokenID string) error {
	acquired, _, err := tc.tokens.Acquire(context.Background(), tokenID, robotID)
	if err != nil {
		return err
	}
	tc.acquired = acquired
	return nil
}

func (tc *tokenContext) robotReleasesToken(robotID, tokenID string) error {
	newOwner, _, err := tc.tokens.Release(context.Background(), tokenID, robotID)
	if err != nil {
		return err
	}
	tc.newOwner = newOwner
	return nil
}

// Assertion steps

func (tc *tokenContext) theAcquisitionShouldSucceed() error {
	if !tc.acquired {
		return fmt.Errorf("expected the acquisition to succeed, but it was denied")
	}
	return nil
}

func (tc *tokenContext) theAcquisitionShouldBeDenied() error {
	if tc.acquired {
		return fmt.Errorf("expected the acquisition to be denied, but it succeeded")
	}
	return nil
}

func (tc *tokenContext) tokenShouldBeOwnedBy(tokenID, robotID string) error {
	info := tc.store.tokens[tokenID]
	if !info.IsLocked {
		return fmt.Errorf("token %s is not locked", tokenID)
	}
	if info.LockOwnerID != robotID {
		return fmt.Errorf("token %s owned by %q, expected %q", tokenID, info.LockOwnerID, robotID)
	}
	return nil
}

func (tc *tokenContext) tokenShouldBeUnlocked(tokenID string) error {
	info := tc.store.tokens[tokenID]
	if info.IsLocked {
		return fmt.Errorf("token %s is still locked by %q", tokenID, info.LockOwnerID)
	}
	if info.LockOwnerID != "" {
		return fmt.Errorf("token %s still carries owner %q", tokenID, info.LockOwnerID)
	}
	return nil
}

func (tc *tokenContext) tokenShouldHaveNoWaiters(tokenID string) error {
	info := tc.store.tokens[tokenID]
	if len(info.Waitings) != 0 {
		return fmt.Errorf("token %s has waiters %v, expected none", tokenID, info.Waitings)
	}
	return nil
}

func (tc *tokenContext) tokenShouldHaveWaiters(tokenID, waiters string) error {
	expected := splitList(waiters)
	info := tc.store.tokens[tokenID]
	if len(info.Waitings) != len(expected) {
		return fmt.Errorf("token %s has waiters %v, expected %v", tokenID, info.Waitings, expected)
	}
	for i, w := range expected {
		if info.Waitings[i] != w {
			return fmt.Errorf("token %s has waiters %v, expected %v", tokenID, info.Waitings, expected)
		}
	}
	return nil
}

func (tc *tokenContext) theNewOwnerShouldBe(robotID string) error {
	if tc.newOwner != robotID {
		return fmt.Errorf("new owner is %q, expected %q", tc.newOwner, robotID)
	}
	return nil
}

func (tc *tokenContext) thereShouldBeNoNewOwner() error {
	if tc.newOwner != "" {
		return fmt.Errorf("unexpected new owner %q", tc.newOwner)
	}
	return nil
}

func InitializeTokenScenario(sc *godog.ScenarioContext) {
	tc := &tokenContext{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	sc.Step(`^token "([^"]*)" is free$`, tc.tokenIsFree)
	sc.Step(`^token "([^"]*)" is owned by "([^"]*)"$`, tc.tokenIsOwnedBy)
	sc.Step(`^token "([^"]*)" is owned by "([^"]*)" with waiters "([^"]*)"$`, tc.tokenIsOwnedByWithWaiters)

	sc.Step(`^robot "([^"]*)" acquires token "([^"]*)"$`, tc.robotAcquiresToken)
	sc.Step(`^robot "([^"]*)" releases token "([^"]*)"$`, tc.robotReleasesToken)

	sc.Step(`^the acquisition should succeed$`, tc.theAcquisitionShouldSucceed)
	sc.Step(`^the acquisition should be denied$`, tc.theAcquisitionShouldBeDenied)
	sc.Step(`^token "([^"]*)" should be owned by "([^"]*)"$`, tc.tokenShouldBeOwnedBy)
	sc.Step(`^token "([^"]*)" should be unlocked$`, tc.tokenShouldBeUnlocked)
	sc.Step(`^token "([^"]*)" should have no waiters$`, tc.tokenShouldHaveNoWaiters)
	sc.Step(`^token "([^"]*)" should have waiters "([^"]*)"$`, tc.tokenShouldHaveWaiters)
	sc.Step(`^the new owner should be "([^"]*)"$`, tc.theNewOwnerShouldBe)
	sc.Step(`^there should be no new owner$`, tc.thereShouldBeNoNewOwner)
}
