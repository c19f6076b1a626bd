package database

import "errors"

var (
	// ErrNotFound is returned when a row does not exist or belongs to another user
	ErrNotFound = errors.New("record not found")
	// ErrStatusConflict is returned when a document status change would not move forward
	ErrStatusConflict = errors.New("document status conflict")
)
