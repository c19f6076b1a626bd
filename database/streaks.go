package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sahilchouksey/syllabus-sync/model"
)

type StreakRepository struct {
	db *gorm.DB
}

func NewStreakRepository(db *gorm.DB) *StreakRepository {
	return &StreakRepository{db: db}
}

// Find returns nil, nil when the user has no stored streak yet
func (r *StreakRepository) Find(ctx context.Context, userID uint) (*model.UserStreak, error) {
	var streak model.UserStreak
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&streak).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load streak: %w", err)
	}
	return &streak, nil
}

// Save upserts the streak row
func (r *StreakRepository) Save(ctx context.Context, streak *model.UserStreak) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"current_streak", "best_streak", "last_streak_date", "updated_at"}),
		}).
		Create(streak).Error
	if err != nil {
		return fmt.Errorf("failed to save streak: %w", err)
	}
	return nil
}
