package syllabus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilchouksey/syllabus-sync/database"
	"github.com/sahilchouksey/syllabus-sync/model"
	"github.com/sahilchouksey/syllabus-sync/services"
	"github.com/sahilchouksey/syllabus-sync/utils/pdfvalidation"
)

type fakeDocuments struct {
	uploadErr  error
	uploaded   []string
	docs       map[string]*model.Document
	events     []services.PipelineEvent
	processErr error
}

func (f *fakeDocuments) Upload(ctx context.Context, userID uint, fileName string, content []byte) (*model.Document, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploaded = append(f.uploaded, fileName)
	return &model.Document{ID: "doc-1", UserID: userID, Filename: fileName, FileSize: int64(len(content)), Status: model.DocumentStatusUploading}, nil
}

func (f *fakeDocuments) Get(ctx context.Context, userID uint, id string) (*model.Document, error) {
	doc, ok := f.docs[id]
	if !ok || doc.UserID != userID {
		return nil, database.ErrNotFound
	}
	return doc, nil
}

func (f *fakeDocuments) Process(ctx context.Context, userID uint, id string, emit services.EmitFunc) (*model.SyllabusExtraction, error) {
	for _, ev := range f.events {
		if err := emit(ev); err != nil {
			return nil, err
		}
	}
	return nil, f.processErr
}

type fakeImporter struct {
	err error
}

func (f *fakeImporter) ImportSyllabus(ctx context.Context, userID uint, documentID string) (*services.ImportResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.ImportResult{Course: &model.Course{Name: "CS 101"}}, nil
}

func newSyllabusApp(docs *fakeDocuments, importer *fakeImporter) *fiber.App {
	h := NewSyllabusHandler(docs, importer, nil)
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(1))
		return c.Next()
	})
	app.Post("/syllabus/upload", h.Upload)
	app.Get("/syllabus/:id", h.Get)
	app.Get("/syllabus/:id/process", h.Process)
	app.Post("/syllabus/:id/import", h.Import)
	return app
}

func uploadRequest(t *testing.T, field, name string, content []byte) *multipartRequest {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if field != "" {
		part, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &multipartRequest{body: body.Bytes(), contentType: w.FormDataContentType()}
}

type multipartRequest struct {
	body        []byte
	contentType string
}

func (m *multipartRequest) send(t *testing.T, app *fiber.App) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("POST", "/syllabus/upload", bytes.NewReader(m.body))
	req.Header.Set("Content-Type", m.contentType)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestUpload(t *testing.T) {
	docs := &fakeDocuments{}
	app := newSyllabusApp(docs, &fakeImporter{})

	status, body := uploadRequest(t, "file", "syllabus.pdf", []byte("%PDF-1.4")).send(t, app)
	assert.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []string{"syllabus.pdf"}, docs.uploaded)

	status, _ = uploadRequest(t, "", "", nil).send(t, app)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestUpload_ValidationErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("check: %w", pdfvalidation.ErrUnsupportedType), fiber.StatusUnsupportedMediaType},
		{pdfvalidation.ErrFileTooLarge, fiber.StatusRequestEntityTooLarge},
		{pdfvalidation.ErrEmptyFile, fiber.StatusBadRequest},
		{pdfvalidation.ErrUnreadablePDF, fiber.StatusBadRequest},
		{io.ErrUnexpectedEOF, fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			app := newSyllabusApp(&fakeDocuments{uploadErr: tt.err}, &fakeImporter{})
			status, body := uploadRequest(t, "file", "notes.txt", []byte("hello")).send(t, app)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestGet(t *testing.T) {
	docs := &fakeDocuments{docs: map[string]*model.Document{
		"mine":   {ID: "mine", UserID: 1},
		"theirs": {ID: "theirs", UserID: 2},
	}}
	app := newSyllabusApp(docs, &fakeImporter{})

	resp, err := app.Test(httptest.NewRequest("GET", "/syllabus/mine", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/syllabus/theirs", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestImport(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"ok", nil, fiber.StatusCreated},
		{"missing", database.ErrNotFound, fiber.StatusNotFound},
		{"not processed", services.ErrDocumentNotReady, fiber.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newSyllabusApp(&fakeDocuments{}, &fakeImporter{err: tt.err})
			resp, err := app.Test(httptest.NewRequest("POST", "/syllabus/doc-1/import", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func readStream(t *testing.T, app *fiber.App, path string) (int, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestProcess_StreamsEvents(t *testing.T) {
	docs := &fakeDocuments{
		docs: map[string]*model.Document{"doc-1": {ID: "doc-1", UserID: 1}},
		events: []services.PipelineEvent{
			{Type: services.EventProgress, Step: 1, Phase: services.PhaseOCRRunning, Message: "Extracting text from document..."},
			{Type: services.EventResult, Payload: &model.SyllabusExtraction{}},
		},
	}
	app := newSyllabusApp(docs, &fakeImporter{})

	status, body := readStream(t, app, "/syllabus/doc-1/process")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, "event: progress\n")
	assert.Contains(t, body, `"step":1`)
	assert.Contains(t, body, "event: result\n")
	assert.NotContains(t, body, "event: error")
}

func TestProcess_BusyDocumentGetsErrorEvent(t *testing.T) {
	docs := &fakeDocuments{
		docs:       map[string]*model.Document{"doc-1": {ID: "doc-1", UserID: 1}},
		processErr: services.ErrDocumentBusy,
	}
	app := newSyllabusApp(docs, &fakeImporter{})

	_, body := readStream(t, app, "/syllabus/doc-1/process")
	assert.Equal(t, 1, strings.Count(body, "event: error\n"))
	assert.Contains(t, body, "already being processed")
}

func TestProcess_TerminalEventIsNotDuplicated(t *testing.T) {
	docs := &fakeDocuments{
		docs:       map[string]*model.Document{"doc-1": {ID: "doc-1", UserID: 1}},
		events:     []services.PipelineEvent{{Type: services.EventError, Error: &services.EventErrorBody{Message: "nope"}}},
		processErr: services.ErrNoTextExtracted,
	}
	app := newSyllabusApp(docs, &fakeImporter{})

	_, body := readStream(t, app, "/syllabus/doc-1/process")
	assert.Equal(t, 1, strings.Count(body, "event: error\n"))
}

func TestProcess_UnknownDocument(t *testing.T) {
	app := newSyllabusApp(&fakeDocuments{}, &fakeImporter{})
	status, body := readStream(t, app, "/syllabus/missing/process")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Contains(t, body, `"success":false`)
}
