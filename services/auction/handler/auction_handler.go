package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"live-auction/internal/arbitration"
	"live-auction/internal/auctionerrors"
	model "live-auction/internal/models"
	"live-auction/services/auction/helpers"
	"live-auction/utils"
)

//go:generate mockgen -source=auction_handler.go -destination=mock_service.go -package=handler

type AuctionServiceInterface interface {
	RegisterAuction(a model.Auction) error
	PlaceBid(auctionID, bidderID string, amount decimal.Decimal) (arbitration.BidOutcome, error)
	Finalize(auctionID string) (model.AuctionResult, error)
	Snapshot(auctionID string) (model.LeaderboardSnapshot, error)
	BidsForAuction(auctionID string) ([]model.Bid, error)
	BidsForBidder(auctionID, bidderID string) ([]model.Bid, error)
}

type AuctionHandler struct {
	service AuctionServiceInterface
}

func NewAuctionHandler(service AuctionServiceInterface) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", fmt.Errorf("invalid ends_at: %w", err))
		return
	}
	startsAt := time.Now().UTC()
	if req.StartsAt != "" {
		startsAt, err = time.Parse(time.RFC3339, req.StartsAt)
		if err != nil {
			helpers.HandleBindError(c, "CreateAuctionHandler", fmt.Errorf("invalid starts_at: %w", err))
			return
		}
	}

	auction := model.Auction{
		AuctionID:     req.AuctionID,
		Title:         req.Title,
		Description:   req.Description,
		StartingPrice: decimal.NewFromFloat(req.StartingPrice),
		StartsAt:      startsAt.UTC(),
		EndsAt:        endsAt.UTC(),
	}
	if auction.AuctionID == "" {
		auction.AuctionID = utils.GenerateID()
	}

	if err := h.service.RegisterAuction(auction); err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("CreateAuctionHandler: failed to register auction", map[string]any{
			"auction_id": auction.AuctionID,
			"error":      err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, auction, "auction registered successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction registered successfully", map[string]any{
		"auction_id": auction.AuctionID,
		"ends_at":    auction.EndsAt.Format(time.RFC3339),
	})
}

// PlaceBidHandler handles POST /bids
func (h *AuctionHandler) PlaceBidHandler(c *gin.Context) {
	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	outcome, err := h.service.PlaceBid(req.AuctionID, req.BidderID, decimal.NewFromFloat(req.Amount))
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("PlaceBidHandler: bid rejected", map[string]any{
			"auction_id": req.AuctionID,
			"bidder_id":  req.BidderID,
			"amount":     req.Amount,
			"error":      err.Error(),
		})
		return
	}

	resp := helpers.PlaceBidResponse{
		Bid: helpers.ToBidResponse(outcome.Bid),
	}
	if outcome.PriorLeader != nil {
		prior := helpers.ToBidResponse(*outcome.PriorLeader)
		resp.PriorLeader = &prior
	}
	if outcome.Extension != nil {
		resp.NewEndsAt = outcome.Extension.NewEndsAt.UTC().Format(time.RFC3339)
	}

	utils.JSONResponse(c, http.StatusCreated, resp, "bid accepted")
	helpers.LogSuccess("PlaceBidHandler", "bid accepted", map[string]any{
		"bid_id":     outcome.Bid.BidID,
		"auction_id": req.AuctionID,
		"bidder_id":  req.BidderID,
		"amount":     req.Amount,
	})
}

// LeaderboardHandler handles GET /auctions/:auction_id/leaderboard
func (h *AuctionHandler) LeaderboardHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	snapshot, err := h.service.Snapshot(auctionID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("LeaderboardHandler: error projecting leaderboard", map[string]any{
			"auction_id": auctionID,
			"error":      err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, snapshot, "leaderboard retrieved successfully")
}

// GetBidsByAuctionHandler handles GET /auctions/:auction_id/bids
func (h *AuctionHandler) GetBidsByAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.service.BidsForAuction(auctionID)
	if err != nil && !errors.Is(err, auctionerrors.ErrNoBids) {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetBidsByAuctionHandler: error retrieving bids", map[string]any{
			"auction_id": auctionID,
			"error":      err.Error(),
		})
		return
	}

	resp := make([]helpers.BidResponse, 0, len(bids))
	for _, b := range bids {
		resp = append(resp, helpers.ToBidResponse(b))
	}

	utils.JSONResponse(c, http.StatusOK, resp, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByAuctionHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(resp),
	})
}

// GetBidderHistoryHandler handles GET /auctions/:auction_id/bidders/:bidder_id/bids
func (h *AuctionHandler) GetBidderHistoryHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bidderID := c.Param("bidder_id")
	bids, err := h.service.BidsForBidder(auctionID, bidderID)
	if err != nil && !errors.Is(err, auctionerrors.ErrNoBids) {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetBidderHistoryHandler: error retrieving bidder history", map[string]any{
			"auction_id": auctionID,
			"bidder_id":  bidderID,
			"error":      err.Error(),
		})
		return
	}

	resp := make([]helpers.BidResponse, 0, len(bids))
	for _, b := range bids {
		resp = append(resp, helpers.ToBidResponse(b))
	}

	utils.JSONResponse(c, http.StatusOK, resp, "bidder history retrieved successfully")
}

// FinalizeHandler handles POST /auctions/:auction_id/finalize
func (h *AuctionHandler) FinalizeHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	result, err := h.service.Finalize(auctionID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("FinalizeHandler: finalization failed", map[string]any{
			"auction_id": auctionID,
			"error":      err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, result, "auction finalized")
	helpers.LogSuccess("FinalizeHandler", "auction finalized", map[string]any{
		"auction_id": auctionID,
		"has_winner": result.Winner != nil,
	})
}
