package routes

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/chat-api/internal/interfaces/httpserver/handlers"
)

func registerConversationRoutes(router gin.IRoutes, handler *handlers.ConversationHandler) {
	router.POST("/start", handler.Start)
	router.POST("/chat", handler.Chat)
	router.GET("/", handler.List)
	router.GET("/:id", handler.Get)
}
