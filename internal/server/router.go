package server

import (
	"github.com/gin-gonic/gin"

	"live-auction/internal/arbitration"
	"live-auction/internal/broadcast"
	"live-auction/internal/realtime"
	handler "live-auction/services/auction/handler"
)

// SetupRouter configures all Gin routes for the application
func SetupRouter(engine *arbitration.Engine, hub *broadcast.Hub) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	auctionHandler := handler.NewAuctionHandler(engine)
	wsHandler := realtime.NewWSHandler(hub, engine)

	bids := router.Group("/bids")
	{
		bids.POST("", auctionHandler.PlaceBidHandler)
	}

	auctions := router.Group("/auctions")
	{
		auctions.POST("", auctionHandler.CreateAuctionHandler)
		auctions.GET("/:auction_id/leaderboard", auctionHandler.LeaderboardHandler)
		auctions.GET("/:auction_id/bids", auctionHandler.GetBidsByAuctionHandler)
		auctions.GET("/:auction_id/bidders/:bidder_id/bids", auctionHandler.GetBidderHistoryHandler)
		auctions.POST("/:auction_id/finalize", auctionHandler.FinalizeHandler)
	}

	router.GET("/ws", wsHandler.Serve)

	return router
}
