package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind identifies the type of an auction event.
type EventKind string

const (
	EventNewBid       EventKind = "new_bid"
	EventLeaderboard  EventKind = "leaderboard_update"
	EventTimeExtended EventKind = "time_extended"
	EventAuctionEnded EventKind = "auction_ended"
	EventError        EventKind = "error"
)

// AuctionEvent is the envelope delivered to subscribers of an auction's
// channel. Events for one auction are delivered in publish order.
type AuctionEvent struct {
	Kind      EventKind `json:"kind"`
	AuctionID string    `json:"auction_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewBidPayload announces an accepted bid.
type NewBidPayload struct {
	BidID       string          `json:"bid_id"`
	BidderID    string          `json:"bidder_id"`
	BidderName  string          `json:"bidder_name"`
	Amount      decimal.Decimal `json:"amount"`
	Class       BidClass        `json:"class"`
	SubmittedAt time.Time       `json:"submitted_at"`
	NewLeader   bool            `json:"new_leader"`
}

// TimeExtendedPayload announces an anti-sniping extension.
type TimeExtendedPayload struct {
	NewEndsAt time.Time     `json:"new_ends_at"`
	Extension time.Duration `json:"extension"`
	Reason    string        `json:"reason"`
}

// AuctionEndedPayload announces finalization and the winner, if any.
type AuctionEndedPayload struct {
	Winner            *WinnerSummary `json:"winner,omitempty"`
	TotalBids         int            `json:"total_bids"`
	TotalParticipants int            `json:"total_participants"`
}

// ErrorPayload carries a transport-level error notice.
type ErrorPayload struct {
	Message string `json:"message"`
}
