package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/robocourier/control-plane/internal/domain/shared"
)

// ThrottleRecordModel is the stored compare-and-set timestamp per robot.
type ThrottleRecordModel struct {
	RobotID string    `gorm:"column:robot_id;primaryKey"`
	Time    time.Time `gorm:"column:time;not null"`
}

// TableName specifies the table name for GORM
func (ThrottleRecordModel) TableName() string {
	return "throttle_records"
}

// ThrottleRepositoryGORM implements the notification throttle gate using GORM.
// The gate is a conditional update: a record advances only when the stored
// time is at least one throttle interval older than the incoming time, so
// two notifications inside the interval collapse to one processed entry.
type ThrottleRepositoryGORM struct {
	db       *gorm.DB
	interval time.Duration
}

// NewThrottleRepository creates a new GORM-based throttle repository
func NewThrottleRepository(db *gorm.DB, interval time.Duration) *ThrottleRepositoryGORM {
	return &ThrottleRepositoryGORM{db: db, interval: interval}
}

// Seed upserts one epoch-time record per robot id. Called once at startup
// for the configured fleet; notifications for robots without a record fail
// the gate and end up ignored.
func (r *ThrottleRepositoryGORM) Seed(ctx context.Context, robotIDs []string) error {
	epoch := time.Unix(0, 0).UTC()
	for _, robotID := range robotIDs {
		record := &ThrottleRecordModel{RobotID: robotID, Time: epoch}
		err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "robot_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"time"}),
		}).Create(record).Error
		if err != nil {
			return fmt.Errorf("failed to seed throttle record for %s: %w", robotID, err)
		}
	}
	return nil
}

// AdvanceIfOlder performs the throttle compare-and-set. It returns
// shared.ErrNotificationThrottled when the stored time is too recent
// (or the robot is unknown), and advances the record otherwise.
func (r *ThrottleRepositoryGORM) AdvanceIfOlder(ctx context.Context, robotID string, incoming time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&ThrottleRecordModel{}).
		Where("robot_id = ? AND time <= ?", robotID, incoming.UTC().Add(-r.interval)).
		Update("time", incoming.UTC())
	if result.Error != nil {
		return fmt.Errorf("failed to advance throttle record for %s: %w", robotID, result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotificationThrottled
	}
	return nil
}
