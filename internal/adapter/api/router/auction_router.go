package router

import (
	"github.com/labstack/echo/v4"

	"bidchat/internal/adapter/api/handler"
	"bidchat/internal/adapter/api/middleware"
)

func setupAuctionRouter(e *echo.Echo, auctionHandler *handler.AuctionHandler, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware) {
	auction := e.Group("/v1/auction")

	// Item listing is public; browsing needs no account.
	auction.GET("/items", auctionHandler.ListItems)

	auction.POST("/items/:id/bids", auctionHandler.PlaceBid, authMiddleware.Authenticate)

	adminGroup := auction.Group("", authMiddleware.Authenticate, adminMiddleware.AdminOnly)
	adminGroup.POST("/items", auctionHandler.AddItem)
	adminGroup.POST("/items/:id/bidding", auctionHandler.ToggleBidding)
	adminGroup.POST("/rss/token", auctionHandler.GenerateRSSFeed)
	adminGroup.POST("/rss/publish", auctionHandler.PublishToRSS)
}
