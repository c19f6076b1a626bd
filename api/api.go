package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sahilchouksey/syllabus-sync/utils/pdfvalidation"
	"github.com/sahilchouksey/syllabus-sync/utils/response"
)

// bodyLimit leaves room for multipart framing around the largest accepted upload
const bodyLimit = pdfvalidation.MaxUploadBytes + 1<<20

type APIServer struct {
	app           *fiber.App
	listenAddress string
	logger        *zap.Logger
}

func NewAPIServer(listenAddress string, logger *zap.Logger) *APIServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := fiber.New(fiber.Config{
		AppName:      "syllabus-sync",
		BodyLimit:    bodyLimit,
		ReadTimeout:  30 * time.Second,
		IdleTimeout:  2 * time.Minute,
		ErrorHandler: errorHandler(logger),
	})
	return &APIServer{
		app:           app,
		listenAddress: listenAddress,
		logger:        logger,
	}
}

func (s *APIServer) GetEngine() *fiber.App {
	return s.app
}

func (s *APIServer) Run() error {
	s.logger.Info("starting API server", zap.String("address", s.listenAddress))
	return s.app.Listen(s.listenAddress)
}

// Shutdown stops accepting connections and waits for in-flight requests until ctx expires
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.app.ShutdownWithContext(ctx)
}

// errorHandler renders errors that escape handlers in the response envelope
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			switch fiberErr.Code {
			case fiber.StatusRequestEntityTooLarge:
				return response.PayloadTooLarge(c, "File exceeds the 10 MB limit")
			case fiber.StatusNotFound:
				return response.NotFound(c, "Route not found")
			}
			return response.Error(c, fiberErr.Code, fiberErr.Message, "HTTP_ERROR")
		}
		logger.Error("unhandled request error", zap.String("path", c.Path()), zap.Error(err))
		return response.InternalServerError(c, "Internal server error")
	}
}
