package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/robocourier/control-plane/internal/domain/robot"
)

// Operator-facing message categories. The ids match what the UI frontend
// groups messages by.
const (
	MessageTypeState       = "01"
	MessageTypeDestination = "02"
	MessageTypeToken       = "03"
)

// MessageModel is one operator-facing message row.
type MessageModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Time      time.Time `gorm:"column:time;not null;index"`
	RobotID   string    `gorm:"column:robot_id;not null;index"`
	MessageID string    `gorm:"column:message_id;not null"`
	Message   string    `gorm:"column:message;not null"`
}

// TableName specifies the table name for GORM
func (MessageModel) TableName() string {
	return "messages"
}

// MessageRepositoryGORM persists the operator message log using GORM.
type MessageRepositoryGORM struct {
	db  *gorm.DB
	loc *time.Location
}

// NewMessageRepository creates a new GORM-based message repository.
// A nil location uses UTC.
func NewMessageRepository(db *gorm.DB, loc *time.Location) *MessageRepositoryGORM {
	if loc == nil {
		loc = time.UTC
	}
	return &MessageRepositoryGORM{db: db, loc: loc}
}

// Write appends one message for a robot, prefixed with its timestamp the
// way the UI displays it.
func (r *MessageRepositoryGORM) Write(ctx context.Context, robotID, messageID, message string) error {
	now := time.Now().In(r.loc)
	model := &MessageModel{
		Time:      now,
		RobotID:   robotID,
		MessageID: messageID,
		Message:   fmt.Sprintf("[%s] %s", now.Format("2006-01-02T15:04:05.000-07:00"), message),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to write message for %s: %w", robotID, err)
	}
	return nil
}

// WriteStateMessage records a robot state transition, and the new
// destination as a separate entry when one is set.
func (r *MessageRepositoryGORM) WriteStateMessage(ctx context.Context, robotID string, state robot.State, destination string) error {
	if err := r.Write(ctx, robotID, MessageTypeState, fmt.Sprintf("robot state changed to %s", state)); err != nil {
		return err
	}
	if destination == "" {
		return nil
	}
	return r.Write(ctx, robotID, MessageTypeDestination, fmt.Sprintf("robot heading to %s", destination))
}

// WriteTokenMessage records a token event for a robot.
func (r *MessageRepositoryGORM) WriteTokenMessage(ctx context.Context, robotID string, message string) error {
	return r.Write(ctx, robotID, MessageTypeToken, message)
}

// RecentByRobot returns the latest messages for a robot, newest first.
func (r *MessageRepositoryGORM) RecentByRobot(ctx context.Context, robotID string, limit int) ([]MessageModel, error) {
	var models []MessageModel
	err := r.db.WithContext(ctx).
		Where("robot_id = ?", robotID).
		Order("time DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for %s: %w", robotID, err)
	}
	return models, nil
}
