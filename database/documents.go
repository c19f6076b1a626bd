package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sahilchouksey/syllabus-sync/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// FindForUser loads a document owned by userID. Documents of other users are reported as not found.
func (r *DocumentRepository) FindForUser(ctx context.Context, id string, userID uint) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return &doc, nil
}

// Transition moves a document from one status to the next. The update only applies while the row
// still holds from, so two concurrent transitions cannot both succeed.
func (r *DocumentRepository) Transition(ctx context.Context, id string, from, to model.DocumentStatus, fields map[string]interface{}) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrStatusConflict, from, to)
	}

	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}

	res := r.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update document status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s is no longer %s", ErrStatusConflict, id, from)
	}
	return nil
}

// MarkCompleted stores the extraction payload and marks the document completed
func (r *DocumentRepository) MarkCompleted(ctx context.Context, id string, result datatypes.JSON) error {
	return r.Transition(ctx, id, model.DocumentStatusProcessing, model.DocumentStatusCompleted, map[string]interface{}{
		"result":        result,
		"error_message": "",
	})
}

// MarkFailed records a user-facing failure message
func (r *DocumentRepository) MarkFailed(ctx context.Context, id string, from model.DocumentStatus, message string) error {
	return r.Transition(ctx, id, from, model.DocumentStatusFailed, map[string]interface{}{
		"error_message": message,
	})
}

// FailStuck fails every document that has been processing since before cutoff
func (r *DocumentRepository) FailStuck(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("status = ? AND updated_at < ?", model.DocumentStatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":        model.DocumentStatusFailed,
			"error_message": message,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to fail stuck documents: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ListPurgeable returns terminal documents last touched before cutoff that still hold stored bytes
func (r *DocumentRepository) ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ? AND storage_key <> ''",
			[]model.DocumentStatus{model.DocumentStatusCompleted, model.DocumentStatusFailed}, cutoff).
		Order("updated_at").
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list purgeable documents: %w", err)
	}
	return docs, nil
}

// ClearStorageKey forgets the stored object of a document whose bytes were deleted
func (r *DocumentRepository) ClearStorageKey(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("id = ?", id).
		Update("storage_key", "").Error
	if err != nil {
		return fmt.Errorf("failed to clear storage key: %w", err)
	}
	return nil
}
