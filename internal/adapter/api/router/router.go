package router

import (
	"github.com/labstack/echo/v4"

	"bidchat/internal/adapter/api/handler"
	"bidchat/internal/adapter/api/middleware"
)

// Setup wires every route group onto the echo instance.
func Setup(
	e *echo.Echo,
	authHandler *handler.AuthHandler,
	chatHandler *handler.ChatHandler,
	auctionHandler *handler.AuctionHandler,
	wsHandler *handler.WebSocketHandler,
	authMiddleware *middleware.AuthMiddleware,
	adminMiddleware *middleware.AdminMiddleware,
) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	setupAuthRouter(e, authHandler, authMiddleware)
	setupChatRouter(e, chatHandler, authMiddleware, adminMiddleware)
	setupAuctionRouter(e, auctionHandler, authMiddleware, adminMiddleware)

	// The upgrade request authenticates via the token query parameter.
	e.GET("/ws", wsHandler.HandleWebSocket, authMiddleware.Authenticate)
}
