package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robocourier/control-plane/internal/adapters/persistence"
	"github.com/robocourier/control-plane/internal/domain/robot"
)

func TestMessageRepository_WriteStateMessage(t *testing.T) {
	db := newTestDB(t)
	repo := persistence.NewMessageRepository(db, time.UTC)

	err := repo.WriteStateMessage(context.Background(), "robot_01", robot.StatePicking, "lounge")
	require.NoError(t, err)

	messages, err := repo.RecentByRobot(context.Background(), "robot_01", 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	// the state entry and the destination entry, each stamped and prefixed
	byID := map[string]string{}
	for _, m := range messages {
		byID[m.MessageID] = m.Message
	}
	assert.Contains(t, byID[persistence.MessageTypeState], "robot state changed to picking")
	assert.Contains(t, byID[persistence.MessageTypeDestination], "robot heading to lounge")
	assert.Regexp(t, `^\[\d{4}-\d{2}-\d{2}T`, byID[persistence.MessageTypeState])
}

func TestMessageRepository_StateWithoutDestination(t *testing.T) {
	db := newTestDB(t)
	repo := persistence.NewMessageRepository(db, time.UTC)

	err := repo.WriteStateMessage(context.Background(), "robot_01", robot.StateStandby, "")
	require.NoError(t, err)

	messages, err := repo.RecentByRobot(context.Background(), "robot_01", 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, persistence.MessageTypeState, messages[0].MessageID)
}

func TestMessageRepository_WriteTokenMessage(t *testing.T) {
	db := newTestDB(t)
	repo := persistence.NewMessageRepository(db, time.UTC)

	err := repo.WriteTokenMessage(context.Background(), "robot_01", "token corridor_01 LOCK for robot robot_01")
	require.NoError(t, err)

	messages, err := repo.RecentByRobot(context.Background(), "robot_01", 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, persistence.MessageTypeToken, messages[0].MessageID)
	assert.Contains(t, messages[0].Message, "token corridor_01 LOCK")
}

func TestMessageRepository_RecentByRobot_FiltersAndLimits(t *testing.T) {
	db := newTestDB(t)
	repo := persistence.NewMessageRepository(db, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.WriteTokenMessage(context.Background(), "robot_01", "event"))
	}
	require.NoError(t, repo.WriteTokenMessage(context.Background(), "robot_02", "other"))

	messages, err := repo.RecentByRobot(context.Background(), "robot_01", 3)
	require.NoError(t, err)
	assert.Len(t, messages, 3)
	for _, m := range messages {
		assert.Equal(t, "robot_01", m.RobotID)
	}
}
