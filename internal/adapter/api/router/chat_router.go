package router

import (
	"github.com/labstack/echo/v4"

	"bidchat/internal/adapter/api/handler"
	"bidchat/internal/adapter/api/middleware"
)

func setupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware) {
	chat := e.Group("/v1/chat")
	chat.Use(authMiddleware.Authenticate)

	chat.POST("/messages", chatHandler.SendMessage)
	chat.GET("/messages", chatHandler.GetTranscript)
	chat.POST("/typing", chatHandler.Typing)

	// Admin-only session management and canned responses
	chat.POST("/session", chatHandler.SelectSession, adminMiddleware.AdminOnly)
	chat.GET("/active-users", chatHandler.GetActiveUsers, adminMiddleware.AdminOnly)
	chat.GET("/canned", chatHandler.ListCannedResponses, adminMiddleware.AdminOnly)
	chat.POST("/canned", chatHandler.AddCannedResponse, adminMiddleware.AdminOnly)
}
