package syllabus

import (
	"context"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sahilchouksey/syllabus-sync/database"
	"github.com/sahilchouksey/syllabus-sync/model"
	"github.com/sahilchouksey/syllabus-sync/services"
	"github.com/sahilchouksey/syllabus-sync/utils/middleware"
	"github.com/sahilchouksey/syllabus-sync/utils/pdfvalidation"
	"github.com/sahilchouksey/syllabus-sync/utils/response"
)

// Documents is the document workflow the handler drives
type Documents interface {
	Upload(ctx context.Context, userID uint, fileName string, content []byte) (*model.Document, error)
	Get(ctx context.Context, userID uint, id string) (*model.Document, error)
	Process(ctx context.Context, userID uint, id string, emit services.EmitFunc) (*model.SyllabusExtraction, error)
}

// Importer turns a processed document into a course and tasks
type Importer interface {
	ImportSyllabus(ctx context.Context, userID uint, documentID string) (*services.ImportResult, error)
}

// SyllabusHandler handles syllabus upload, processing and import
type SyllabusHandler struct {
	documents Documents
	importer  Importer
	logger    *zap.Logger
}

// NewSyllabusHandler creates a new syllabus handler
func NewSyllabusHandler(documents Documents, importer Importer, logger *zap.Logger) *SyllabusHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyllabusHandler{
		documents: documents,
		importer:  importer,
		logger:    logger,
	}
}

// Upload handles POST /api/v1/syllabus/upload
func (h *SyllabusHandler) Upload(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.BadRequest(c, "A file is required")
	}
	if fileHeader.Size > pdfvalidation.MaxUploadBytes {
		return response.PayloadTooLarge(c, "File exceeds the 10 MB limit")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.BadRequest(c, "Failed to read the uploaded file")
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, pdfvalidation.MaxUploadBytes+1))
	if err != nil {
		return response.BadRequest(c, "Failed to read the uploaded file")
	}

	doc, err := h.documents.Upload(c.UserContext(), userID, fileHeader.Filename, content)
	if err != nil {
		return h.uploadError(c, err)
	}
	return response.Created(c, doc)
}

func (h *SyllabusHandler) uploadError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, pdfvalidation.ErrFileTooLarge):
		return response.PayloadTooLarge(c, "File exceeds the 10 MB limit")
	case errors.Is(err, pdfvalidation.ErrUnsupportedType):
		return response.UnsupportedMediaType(c, "Only PDF, JPEG and PNG files are supported")
	case errors.Is(err, pdfvalidation.ErrEmptyFile):
		return response.BadRequest(c, "The uploaded file is empty")
	case errors.Is(err, pdfvalidation.ErrUnreadablePDF):
		return response.BadRequest(c, "The PDF could not be read")
	}
	h.logger.Error("upload failed", zap.Error(err))
	return response.InternalServerError(c, "Failed to upload document")
}

// Get handles GET /api/v1/syllabus/:id
func (h *SyllabusHandler) Get(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	doc, err := h.documents.Get(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return response.NotFound(c, "Document not found")
		}
		return response.InternalServerError(c, "Failed to fetch document")
	}
	return response.Success(c, doc)
}

// Import handles POST /api/v1/syllabus/:id/import
func (h *SyllabusHandler) Import(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	result, err := h.importer.ImportSyllabus(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			return response.NotFound(c, "Document not found")
		case errors.Is(err, services.ErrDocumentNotReady):
			return response.Conflict(c, "Document has not been processed successfully")
		}
		h.logger.Error("import failed", zap.String("document_id", c.Params("id")), zap.Error(err))
		return response.InternalServerError(c, "Failed to import syllabus")
	}
	return response.Created(c, result)
}
