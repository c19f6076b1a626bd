package model

import (
	"time"

	"gorm.io/gorm"
)

// TaskType mirrors the syllabus event type
type TaskType string

const (
	TaskTypeAssignment TaskType = "assignment"
	TaskTypeExam       TaskType = "exam"
)

// TaskStatus tracks completion of assignments. Exams carry no status tracking.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
)

// Task is an assignment or exam on a user's calendar
type Task struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	CourseID    *uint          `gorm:"index" json:"course_id,omitempty"`
	Type        TaskType       `gorm:"type:varchar(20);not null;default:'assignment'" json:"type"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	DueDate     time.Time      `gorm:"index" json:"due_date"`
	Status      TaskStatus     `gorm:"type:varchar(20);default:'pending'" json:"status"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`

	Course *Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

// IsCompleted reports whether the task has a recorded completion
func (t Task) IsCompleted() bool {
	return t.Status == TaskStatusCompleted
}
