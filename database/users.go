package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sahilchouksey/syllabus-sync/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// EnsureUser inserts the owner row for a verified identity, leaving existing rows untouched
func (r *UserRepository) EnsureUser(ctx context.Context, id uint, email string) error {
	if email == "" {
		email = fmt.Sprintf("user-%d@users.invalid", id)
	}
	user := model.User{ID: id, Email: email}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&user).Error
	if err != nil {
		return fmt.Errorf("failed to ensure user %d: %w", id, err)
	}
	return nil
}
