package auctionerrors

import "errors"

// Repository-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrBidNotFound     = errors.New("bid not found")
	ErrNoBids          = errors.New("no bids found for auction")
	ErrPersistence     = errors.New("persistence failure")
)

// Arbitration errors. Bid rejection is an expected, user-facing outcome;
// callers match these with errors.Is and map them to responses.
var (
	ErrInvalidBid          = errors.New("invalid bid")
	ErrAuctionNotOpen      = errors.New("auction not open yet")
	ErrAuctionEnded        = errors.New("auction has ended")
	ErrBidTooLow           = errors.New("bid amount too low")
	ErrSelfOutbid          = errors.New("bidder already holds the leading bid")
	ErrAuctionStillOpen    = errors.New("auction has not reached its end time")
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
)
