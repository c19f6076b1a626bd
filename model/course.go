package model

import (
	"time"

	"gorm.io/gorm"
)

// Course is a user's course, usually created from an imported syllabus
type Course struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	UserID     uint           `gorm:"not null;index" json:"user_id"`
	Name       string         `gorm:"not null" json:"name"`
	Instructor *string        `json:"instructor"`
	StartDate  *time.Time     `json:"start_date"`
	EndDate    *time.Time     `json:"end_date"`
	DocumentID *string        `gorm:"type:varchar(36);index" json:"document_id,omitempty"`

	Tasks []Task `gorm:"foreignKey:CourseID;constraint:OnDelete:SET NULL" json:"tasks,omitempty"`
}
