package model

import (
	"time"

	"gorm.io/gorm"
)

// User is the owner of documents, courses and tasks.
// Credentials live with the external identity provider; only the id and profile are kept here.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Name      string         `json:"name"`

	// Relationships
	Documents []Document  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Courses   []Course    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Tasks     []Task      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Streak    *UserStreak `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
