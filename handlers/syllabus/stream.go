package syllabus

import (
	"bufio"
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sahilchouksey/syllabus-sync/database"
	"github.com/sahilchouksey/syllabus-sync/services"
	"github.com/sahilchouksey/syllabus-sync/utils/middleware"
	"github.com/sahilchouksey/syllabus-sync/utils/response"
	"github.com/sahilchouksey/syllabus-sync/utils/sse"
)

const (
	// processTimeout bounds one streamed run including both upstream calls
	processTimeout = 3 * time.Minute
	// keepAliveInterval keeps proxies from closing the stream during long OCR calls
	keepAliveInterval = 15 * time.Second
)

// Process handles GET /api/v1/syllabus/:id/process and streams pipeline events over SSE
func (h *SyllabusHandler) Process(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	documentID := c.Params("id")

	// ownership and existence are answered as plain JSON before the stream opens
	if _, err := h.documents.Get(c.UserContext(), userID, documentID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return response.NotFound(c, "Document not found")
		}
		return response.InternalServerError(c, "Failed to fetch document")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")
	c.Set("X-Accel-Buffering", "no")

	log := h.logger.With(zap.String("document_id", documentID), zap.Uint("user_id", userID))

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		// the fiber context is not valid inside the stream writer
		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		stream := sse.NewStream(w)

		pinging := make(chan struct{})
		go func() {
			defer close(pinging)
			stream.KeepAlive(ctx, keepAliveInterval)
		}()
		// the writer must be idle before fasthttp takes it back
		defer func() {
			cancel()
			<-pinging
		}()

		terminal := false
		emit := func(event services.PipelineEvent) error {
			if event.IsTerminal() {
				terminal = true
			}
			return stream.JSON(string(event.Type), event)
		}

		_, err := h.documents.Process(ctx, userID, documentID, emit)
		if err == nil || terminal {
			return
		}

		message := "Something went wrong while processing your syllabus."
		if errors.Is(err, services.ErrDocumentBusy) {
			message = "This document is already being processed."
		} else {
			log.Error("processing stopped before a terminal event", zap.Error(err))
		}
		if err := stream.Error(message); err != nil {
			log.Debug("client went away before the error event", zap.Error(err))
		}
	})

	return nil
}
