package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a participant in the auction. Accounts are managed
// externally; the engine only needs these fields for event payloads.
type User struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// BidClass classifies a ledger entry.
type BidClass string

const (
	BidClassInitial BidClass = "initial" // first accepted bid of an auction
	BidClassWinning BidClass = "winning" // accepted bid that took the lead
	BidClassOutbid  BidClass = "outbid"  // superseded former leader
	BidClassAuto    BidClass = "auto"    // reserved for proxy bidding
)

// Auction represents one sellable lot. The end time is owned by the
// arbitration engine once the auction is live and only ever moves forward.
type Auction struct {
	AuctionID     string          `json:"auction_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	StartsAt      time.Time       `json:"starts_at"`
	EndsAt        time.Time       `json:"ends_at"`
	Ended         bool            `json:"ended"`
}

// Bid is an append-only ledger entry. Amount and SubmittedAt are immutable
// once written; only Active and Class change when a leader is superseded.
type Bid struct {
	BidID       string          `json:"bid_id"`
	AuctionID   string          `json:"auction_id"`
	BidderID    string          `json:"bidder_id"`
	Amount      decimal.Decimal `json:"amount"`
	Class       BidClass        `json:"class"`
	Active      bool            `json:"active"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// LeaderboardEntry is one bidder's ranked summary within a snapshot.
type LeaderboardEntry struct {
	Rank       int             `json:"rank"`
	BidderID   string          `json:"bidder_id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	TotalBids  int             `json:"total_bids"`
	HighestBid decimal.Decimal `json:"highest_bid"`
	LatestBid  time.Time       `json:"latest_bid"`
	IsLeader   bool            `json:"is_leader"`
}

// WinnerSummary identifies the current (or final) rank-1 bidder.
type WinnerSummary struct {
	BidderID string          `json:"bidder_id"`
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
}

// LeaderboardSnapshot is a derived view of an auction's participants,
// recomputed from the ledger after every accepted bid, never incrementally
// mutated.
type LeaderboardSnapshot struct {
	AuctionID         string             `json:"auction_id"`
	Entries           []LeaderboardEntry `json:"entries"`
	HighestBid        decimal.Decimal    `json:"highest_bid"`
	Winner            *WinnerSummary     `json:"winner,omitempty"`
	TotalParticipants int                `json:"total_participants"`
	TotalBids         int                `json:"total_bids"`
	GeneratedAt       time.Time          `json:"generated_at"`
}

// TimeExtension records an anti-sniping extension of an auction's end time.
type TimeExtension struct {
	AuctionID string        `json:"auction_id"`
	OldEndsAt time.Time     `json:"old_ends_at"`
	NewEndsAt time.Time     `json:"new_ends_at"`
	Extension time.Duration `json:"extension"`
	Reason    string        `json:"reason"`
}

// AuctionResult is the immutable outcome computed by finalization.
type AuctionResult struct {
	AuctionID         string         `json:"auction_id"`
	Winner            *WinnerSummary `json:"winner,omitempty"`
	TotalBids         int            `json:"total_bids"`
	TotalParticipants int            `json:"total_participants"`
	FinalizedAt       time.Time      `json:"finalized_at"`
}
