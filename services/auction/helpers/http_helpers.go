package helpers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"live-auction/internal/auctionerrors"
	model "live-auction/internal/models"
	"live-auction/utils"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps arbitration and repository errors to an HTTP status
// code and message. Bid rejections are expected outcomes, not faults.
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, auctionerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, auctionerrors.ErrInvalidBid):
		return http.StatusBadRequest, "invalid request details"
	case errors.Is(err, auctionerrors.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, auctionerrors.ErrAuctionEnded):
		return http.StatusGone, "auction has ended"
	case errors.Is(err, auctionerrors.ErrAuctionNotOpen):
		return http.StatusUnprocessableEntity, "auction not open yet"
	case errors.Is(err, auctionerrors.ErrSelfOutbid):
		return http.StatusUnprocessableEntity, "bidder already leads this auction"
	case errors.Is(err, auctionerrors.ErrAuctionStillOpen):
		return http.StatusConflict, "auction has not ended yet"
	case errors.Is(err, auctionerrors.ErrNoBids):
		return http.StatusOK, "no bids found for auction"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// ToBidResponse converts a ledger entry to its wire shape.
func ToBidResponse(b model.Bid) BidResponse {
	return BidResponse{
		BidID:       b.BidID,
		AuctionID:   b.AuctionID,
		BidderID:    b.BidderID,
		Amount:      b.Amount.String(),
		Class:       string(b.Class),
		Active:      b.Active,
		SubmittedAt: b.SubmittedAt.UTC().Format(time.RFC3339),
	}
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
