package chat

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sahilchouksey/syllabus-sync/services"
	"github.com/sahilchouksey/syllabus-sync/utils/middleware"
	"github.com/sahilchouksey/syllabus-sync/utils/response"
	"github.com/sahilchouksey/syllabus-sync/utils/validation"
)

// Responder answers one chat message
type Responder interface {
	Handle(ctx context.Context, userID uint, message string) (*services.ChatReply, error)
}

// SendMessageRequest is the body of POST /api/v1/chat
type SendMessageRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

// ChatHandler handles chat-related requests
type ChatHandler struct {
	validator *validation.Validator
	responder Responder
	logger    *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(responder Responder, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		validator: validation.NewValidator(),
		responder: responder,
		logger:    logger,
	}
}

// SendMessage handles POST /api/v1/chat
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	reply, err := h.responder.Handle(c.UserContext(), userID, req.Message)
	if err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return response.ValidationError(c, validation.FormatValidationErrors(err))
		}
		h.logger.Error("chat message failed", zap.Uint("user_id", userID), zap.Error(err))
		return response.InternalServerError(c, "Failed to process message")
	}
	return response.Success(c, reply)
}
