package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/sahilchouksey/syllabus-sync/database"
	"github.com/sahilchouksey/syllabus-sync/model"
	"github.com/sahilchouksey/syllabus-sync/services/storage"
	"github.com/sahilchouksey/syllabus-sync/utils/pdfvalidation"
)

var (
	// ErrDocumentBusy is returned when a document is already being processed
	ErrDocumentBusy = errors.New("document is already being processed")
	// ErrDocumentNotReady is returned when a document has no extraction result to import
	ErrDocumentNotReady = errors.New("document has not been processed successfully")
)

// documentMissingMessage is stored when the uploaded bytes can no longer be found
const documentMissingMessage = "The uploaded file is no longer available. Please upload it again."

// DocumentStore is the persistence DocumentService needs
type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	FindForUser(ctx context.Context, id string, userID uint) (*model.Document, error)
	Transition(ctx context.Context, id string, from, to model.DocumentStatus, fields map[string]interface{}) error
	MarkCompleted(ctx context.Context, id string, result datatypes.JSON) error
	MarkFailed(ctx context.Context, id string, from model.DocumentStatus, message string) error
}

// DocumentService handles syllabus upload and processing
type DocumentService struct {
	docs     DocumentStore
	objects  storage.Store
	pipeline *SyllabusPipeline
	logger   *zap.Logger
}

// NewDocumentService creates a new document service
func NewDocumentService(docs DocumentStore, objects storage.Store, pipeline *SyllabusPipeline, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		docs:     docs,
		objects:  objects,
		pipeline: pipeline,
		logger:   logger,
	}
}

// Upload validates the file, records the document and stores its bytes. Validation failures
// wrap the pdfvalidation sentinel errors.
func (s *DocumentService) Upload(ctx context.Context, userID uint, fileName string, content []byte) (*model.Document, error) {
	validated, err := pdfvalidation.ValidateUpload(fileName, content)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	doc := &model.Document{
		ID:          id,
		UserID:      userID,
		Filename:    fileName,
		MimeType:    validated.MimeType,
		FileSize:    validated.FileSize,
		PageCount:   validated.PageCount,
		StorageKey:  storage.ObjectKey(userID, id, fileName),
		ContentHash: ContentHash(content),
		Status:      model.DocumentStatusUploading,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}

	log := s.logger.With(zap.String("document_id", doc.ID), zap.Uint("user_id", userID))
	if err := s.objects.Put(ctx, doc.StorageKey, content, doc.MimeType); err != nil {
		log.Error("failed to store upload", zap.Error(err))
		if ferr := s.docs.MarkFailed(context.WithoutCancel(ctx), doc.ID, model.DocumentStatusUploading, documentMissingMessage); ferr != nil {
			log.Error("failed to mark document failed", zap.Error(ferr))
		}
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	log.Info("document uploaded",
		zap.String("mime_type", doc.MimeType),
		zap.Int64("file_size", doc.FileSize),
		zap.Int("page_count", doc.PageCount),
	)
	return doc, nil
}

// Get returns a document owned by userID
func (s *DocumentService) Get(ctx context.Context, userID uint, id string) (*model.Document, error) {
	return s.docs.FindForUser(ctx, id, userID)
}

// Process runs the extraction pipeline for an uploaded document, narrating progress through emit.
// A document that already finished replays its outcome instead of running again.
func (s *DocumentService) Process(ctx context.Context, userID uint, id string, emit EmitFunc) (*model.SyllabusExtraction, error) {
	doc, err := s.docs.FindForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(zap.String("document_id", doc.ID), zap.Uint("user_id", userID))

	switch doc.Status {
	case model.DocumentStatusCompleted:
		return s.replayResult(doc, emit, log)
	case model.DocumentStatusFailed:
		stream := NewProgressStream(emit, log)
		if err := stream.Fail(doc.ErrorMessage); err != nil {
			log.Error("failed to close progress stream", zap.Error(err))
		}
		return nil, fmt.Errorf("document failed earlier: %s", doc.ErrorMessage)
	case model.DocumentStatusProcessing:
		return nil, ErrDocumentBusy
	}

	if err := s.docs.Transition(ctx, doc.ID, model.DocumentStatusUploading, model.DocumentStatusProcessing, nil); err != nil {
		if errors.Is(err, database.ErrStatusConflict) {
			return nil, ErrDocumentBusy
		}
		return nil, err
	}

	// outcomes are recorded even when the client goes away mid-run
	persistCtx := context.WithoutCancel(ctx)

	content, err := s.objects.Get(ctx, doc.StorageKey)
	if err != nil {
		log.Error("failed to load stored upload", zap.Error(err))
		s.markFailed(persistCtx, doc.ID, documentMissingMessage, log)
		stream := NewProgressStream(emit, log)
		if ferr := stream.Fail(documentMissingMessage); ferr != nil {
			log.Error("failed to close progress stream", zap.Error(ferr))
		}
		return nil, fmt.Errorf("failed to load document bytes: %w", err)
	}

	result, err := s.pipeline.ProcessDocument(ctx, content, doc.Filename, emit)
	if err != nil {
		s.markFailed(persistCtx, doc.ID, UserMessage(err), log)
		return nil, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extraction: %w", err)
	}
	if err := s.docs.MarkCompleted(persistCtx, doc.ID, payload); err != nil {
		log.Error("failed to record extraction", zap.Error(err))
		return nil, err
	}
	return result, nil
}

// Extraction decodes the stored result of a completed document
func (s *DocumentService) Extraction(ctx context.Context, userID uint, id string) (*model.Document, *model.SyllabusExtraction, error) {
	doc, err := s.docs.FindForUser(ctx, id, userID)
	if err != nil {
		return nil, nil, err
	}
	result, err := decodeExtraction(doc)
	if err != nil {
		return nil, nil, err
	}
	return doc, result, nil
}

func (s *DocumentService) replayResult(doc *model.Document, emit EmitFunc, log *zap.Logger) (*model.SyllabusExtraction, error) {
	result, err := decodeExtraction(doc)
	if err != nil {
		return nil, err
	}
	stream := NewProgressStream(emit, log)
	if err := stream.Advance(PhaseValidating); err != nil {
		log.Error("pipeline phase order violated", zap.Error(err))
	}
	if err := stream.Succeed(result); err != nil {
		log.Error("failed to close progress stream", zap.Error(err))
	}
	return result, nil
}

func (s *DocumentService) markFailed(ctx context.Context, id, message string, log *zap.Logger) {
	if err := s.docs.MarkFailed(ctx, id, model.DocumentStatusProcessing, message); err != nil {
		log.Error("failed to mark document failed", zap.Error(err))
	}
}

func decodeExtraction(doc *model.Document) (*model.SyllabusExtraction, error) {
	if doc.Status != model.DocumentStatusCompleted || len(doc.Result) == 0 {
		return nil, ErrDocumentNotReady
	}
	var result model.SyllabusExtraction
	if err := json.Unmarshal(doc.Result, &result); err != nil {
		return nil, fmt.Errorf("stored extraction is corrupt: %w", err)
	}
	if result.Data.Events == nil {
		result.Data.Events = []model.SyllabusEvent{}
	}
	return &result, nil
}

