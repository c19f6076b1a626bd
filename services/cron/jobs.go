package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// StuckAfter is how long a document may stay processing before it is failed
	StuckAfter = 15 * time.Minute
	// PurgeAfter is how long the bytes of a finished document are kept
	PurgeAfter = 24 * time.Hour

	stuckMessage = "Processing did not finish. Please try again."
	purgeBatch   = 100
)

// FailStuckDocuments marks documents processing for longer than StuckAfter as failed
func (m *CronManager) FailStuckDocuments(ctx context.Context) (int64, error) {
	n, err := m.docs.FailStuck(ctx, m.now().Add(-StuckAfter), stuckMessage)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Warn("failed stuck documents", zap.Int64("count", n))
	}
	return n, nil
}

// PurgeStoredUploads deletes the stored bytes of completed and failed documents older than
// PurgeAfter. The document rows and their results are kept.
func (m *CronManager) PurgeStoredUploads(ctx context.Context) (int, error) {
	docs, err := m.docs.ListPurgeable(ctx, m.now().Add(-PurgeAfter), purgeBatch)
	if err != nil {
		return 0, err
	}

	purged := 0
	var errs []error
	for _, doc := range docs {
		if err := m.objects.Delete(ctx, doc.StorageKey); err != nil {
			errs = append(errs, fmt.Errorf("document %s: %w", doc.ID, err))
			continue
		}
		if err := m.docs.ClearStorageKey(ctx, doc.ID); err != nil {
			errs = append(errs, fmt.Errorf("document %s: %w", doc.ID, err))
			continue
		}
		purged++
	}
	return purged, errors.Join(errs...)
}
