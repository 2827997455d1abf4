package handlers

import (
	"github.com/rs/zerolog"

	domain "jan-server/services/chat-api/internal/domain/conversation"
	"jan-server/services/chat-api/internal/interfaces/httpserver/requests"
)

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Conversation *ConversationHandler
}

// NewProvider constructs the handler provider with domain services.
func NewProvider(conversationService domain.Service, validator *requests.Validator, log zerolog.Logger) *Provider {
	return &Provider{
		Conversation: NewConversationHandler(conversationService, validator, log),
	}
}
