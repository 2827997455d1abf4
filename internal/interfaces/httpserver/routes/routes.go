package routes

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/chat-api/internal/interfaces/httpserver/handlers"
)

// Provider aggregates route registrars.
type Provider struct {
	handlers *handlers.Provider
	prefix   string
}

// NewProvider builds the route registrar. prefix is "" or a path starting with "/".
func NewProvider(handlerProvider *handlers.Provider, prefix string) *Provider {
	return &Provider{
		handlers: handlerProvider,
		prefix:   prefix,
	}
}

// Register attaches the conversation routes under the configured prefix.
func (p *Provider) Register(engine *gin.Engine, middleware ...gin.HandlerFunc) {
	group := engine.Group(p.prefix, middleware...)
	registerConversationRoutes(group, p.handlers.Conversation)
}
