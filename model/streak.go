package model

import "time"

// UserStreak persists the derived completion streak so the best value survives across sessions
type UserStreak struct {
	UserID         uint       `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CurrentStreak  int        `gorm:"default:0" json:"current_streak"`
	BestStreak     int        `gorm:"default:0" json:"best_streak"`
	LastStreakDate *time.Time `json:"last_streak_date,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
