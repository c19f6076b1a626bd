package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentStatus represents where an uploaded document is in the extraction pipeline
type DocumentStatus string

const (
	DocumentStatusUploading  DocumentStatus = "uploading"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// documentStatusRank orders statuses; a document may only move to a higher rank.
var documentStatusRank = map[DocumentStatus]int{
	DocumentStatusUploading:  0,
	DocumentStatusProcessing: 1,
	DocumentStatusCompleted:  2,
	DocumentStatusFailed:     2,
}

// IsTerminal reports whether no further transition is possible
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusFailed
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle monotonic
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	from, ok := documentStatusRank[s]
	if !ok {
		return false
	}
	to, ok := documentStatusRank[next]
	if !ok {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	return to > from
}

// Document represents one uploaded syllabus file and its extraction outcome
type Document struct {
	ID           string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	UserID       uint           `gorm:"index;not null" json:"user_id"`
	Filename     string         `gorm:"not null" json:"filename"`
	MimeType     string         `gorm:"type:varchar(100)" json:"mime_type"`
	FileSize     int64          `gorm:"default:0" json:"file_size"`
	PageCount    int            `gorm:"default:0" json:"page_count"`
	StorageKey   string         `gorm:"type:varchar(500)" json:"-"`
	ContentHash  string         `gorm:"type:varchar(64);index" json:"content_hash"`
	Status       DocumentStatus `gorm:"type:varchar(20);default:'uploading'" json:"status"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`
	Result       datatypes.JSON `json:"result,omitempty"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
