package helpers

// Request/Response DTOs
type PlaceBidRequest struct {
	AuctionID string  `json:"auction_id" binding:"required"`
	BidderID  string  `json:"bidder_id" binding:"required"`
	Amount    float64 `json:"amount" binding:"required,gt=0"`
}

type CreateAuctionRequest struct {
	AuctionID     string  `json:"auction_id"`
	Title         string  `json:"title" binding:"required"`
	Description   string  `json:"description"`
	StartingPrice float64 `json:"starting_price" binding:"required,gt=0"`
	StartsAt      string  `json:"starts_at"`
	EndsAt        string  `json:"ends_at" binding:"required"`
}

type BidResponse struct {
	BidID       string `json:"bid_id"`
	AuctionID   string `json:"auction_id"`
	BidderID    string `json:"bidder_id"`
	Amount      string `json:"amount"`
	Class       string `json:"class"`
	Active      bool   `json:"active"`
	SubmittedAt string `json:"submitted_at"`
}

type PlaceBidResponse struct {
	Bid         BidResponse  `json:"bid"`
	PriorLeader *BidResponse `json:"prior_leader,omitempty"`
	NewEndsAt   string       `json:"new_ends_at,omitempty"`
}
