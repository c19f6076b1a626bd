// Package storage keeps the raw bytes of uploaded syllabus documents.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrObjectNotFound is returned by Get for keys that were never stored or were deleted
var ErrObjectNotFound = errors.New("object not found")

// Store persists document bytes under opaque keys
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// ObjectKey returns the storage key of an uploaded document
func ObjectKey(userID uint, documentID, fileName string) string {
	return fmt.Sprintf("syllabi/%d/%s%s", userID, documentID, strings.ToLower(filepath.Ext(fileName)))
}
