package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	domain "jan-server/services/chat-api/internal/domain/conversation"
	"jan-server/services/chat-api/internal/infrastructure/metrics"
	"jan-server/services/chat-api/internal/interfaces/httpserver/requests"
	"jan-server/services/chat-api/internal/interfaces/httpserver/responses"
	"jan-server/services/chat-api/internal/utils/platformerrors"
)

// ConversationHandler serves the conversation endpoints.
type ConversationHandler struct {
	service   domain.Service
	validator *requests.Validator
	log       zerolog.Logger
}

// NewConversationHandler wires dependencies for conversation routes.
func NewConversationHandler(service domain.Service, validator *requests.Validator, log zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{
		service:   service,
		validator: validator,
		log:       log.With().Str("handler", "conversation").Logger(),
	}
}

// Start godoc
// @Summary      Start a conversation
// @Description  Creates an empty conversation bound to one of the supported models.
// @Tags         conversations
// @Accept       json
// @Produce      json
// @Param        request  body      requests.StartConversationRequest  true  "Model selection"
// @Success      200      {object}  responses.ConversationEnvelope
// @Failure      400      {object}  responses.ErrorResponse
// @Failure      500      {object}  responses.ErrorResponse
// @Router       /start [post]
func (h *ConversationHandler) Start(c *gin.Context) {
	ctx := c.Request.Context()

	var req requests.StartConversationRequest
	if err := requests.DecodeStrict(ctx, c.Request.Body, &req); err != nil {
		responses.HandleError(c, h.log, err, "Error starting conversation")
		return
	}
	if err := h.validator.Validate(ctx, req); err != nil {
		responses.HandleError(c, h.log, err, "Error starting conversation")
		return
	}

	conv, err := h.service.Start(ctx, domain.ModelName(req.ModelName))
	if err != nil {
		responses.HandleError(c, h.log, err, "Error starting conversation")
		return
	}

	metrics.RecordConversationStarted(string(conv.ModelName))
	c.JSON(http.StatusOK, responses.NewConversationEnvelope(conv))
}

// Chat godoc
// @Summary      Send a chat turn
// @Description  Forwards the message to the inference backend and appends the user message and the reply.
// @Tags         conversations
// @Accept       json
// @Produce      json
// @Param        request  body      requests.ChatRequest  true  "Chat turn"
// @Success      201      {object}  responses.ConversationEnvelope
// @Failure      400      {object}  responses.ErrorResponse
// @Failure      404      {object}  responses.ErrorResponse
// @Failure      500      {object}  responses.ErrorResponse
// @Router       /chat [post]
func (h *ConversationHandler) Chat(c *gin.Context) {
	ctx := c.Request.Context()

	var req requests.ChatRequest
	if err := requests.DecodeStrict(ctx, c.Request.Body, &req); err != nil {
		responses.HandleError(c, h.log, err, "Error processing query")
		return
	}
	if err := h.validator.Validate(ctx, req); err != nil {
		responses.HandleError(c, h.log, err, "Error processing query")
		return
	}

	conv, err := h.service.Chat(ctx, req.ToInput())
	if err != nil {
		outcome := "error"
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
			outcome = "not_found"
		}
		metrics.RecordChatTurn(req.ModelName, outcome)
		responses.HandleError(c, h.log, err, "Error processing query")
		return
	}

	metrics.RecordChatTurn(req.ModelName, "success")
	c.JSON(http.StatusCreated, responses.NewConversationEnvelope(conv))
}

// List godoc
// @Summary      List conversations
// @Description  Returns every conversation, most recently active first.
// @Tags         conversations
// @Produce      json
// @Success      200  {object}  responses.ConversationListEnvelope
// @Failure      500  {object}  responses.ErrorResponse
// @Router       / [get]
func (h *ConversationHandler) List(c *gin.Context) {
	conversations, err := h.service.List(c.Request.Context())
	if err != nil {
		responses.HandleError(c, h.log, err, "Error fetching conversations")
		return
	}
	c.JSON(http.StatusOK, responses.NewConversationListEnvelope(conversations))
}

// Get godoc
// @Summary      Fetch a conversation
// @Tags         conversations
// @Produce      json
// @Param        id   path      string  true  "Conversation ID"
// @Success      200  {object}  responses.ConversationEnvelope
// @Failure      400  {object}  responses.ErrorResponse
// @Failure      404  {object}  responses.ErrorResponse
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /{id} [get]
func (h *ConversationHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		responses.HandleNewError(c, h.log, platformerrors.ErrorTypeValidation, "conversation id is required", "request-missing-id")
		return
	}

	conv, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		responses.HandleError(c, h.log, err, "Error fetching conversation")
		return
	}
	c.JSON(http.StatusOK, responses.NewConversationEnvelope(conv))
}
