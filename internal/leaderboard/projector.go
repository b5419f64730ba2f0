// Package leaderboard derives ranked participant views from the bid ledger.
// A snapshot is a pure function of ledger state; it is recomputed on every
// call so it can never drift from the ledger.
package leaderboard

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"live-auction/internal/clock"
	model "live-auction/internal/models"
	"live-auction/internal/repository"
)

// Projector builds leaderboard snapshots for auctions.
type Projector struct {
	ledger repository.BidLedger
	users  repository.UserDirectory
	clk    clock.Clock
}

// NewProjector creates a Projector reading from the given ledger and
// directory.
func NewProjector(ledger repository.BidLedger, users repository.UserDirectory, clk clock.Clock) *Projector {
	return &Projector{
		ledger: ledger,
		users:  users,
		clk:    clk,
	}
}

// Project recomputes the ranked snapshot for an auction from its full
// ledger. An auction without bids yields an empty snapshot, not an error.
func (p *Projector) Project(auctionID string) (model.LeaderboardSnapshot, error) {
	bids, err := p.ledger.AllForAuction(auctionID)
	if err != nil {
		return model.LeaderboardSnapshot{}, fmt.Errorf("projector: failed to read ledger for auction %s: %w", auctionID, err)
	}
	return p.build(auctionID, bids), nil
}

// bidderAgg accumulates one bidder's ledger entries.
type bidderAgg struct {
	bidderID  string
	totalBids int
	highest   decimal.Decimal
	// earliest submission time at which the bidder reached their highest
	// amount; the deterministic tie-break between equal highest amounts
	highestAt time.Time
	latest    time.Time
}

func (p *Projector) build(auctionID string, bids []model.Bid) model.LeaderboardSnapshot {
	aggs := make(map[string]*bidderAgg)
	order := make([]string, 0)

	for _, b := range bids {
		agg, ok := aggs[b.BidderID]
		if !ok {
			agg = &bidderAgg{bidderID: b.BidderID}
			aggs[b.BidderID] = agg
			order = append(order, b.BidderID)
		}
		agg.totalBids++
		if agg.totalBids == 1 || b.Amount.GreaterThan(agg.highest) {
			agg.highest = b.Amount
			agg.highestAt = b.SubmittedAt
		}
		if b.SubmittedAt.After(agg.latest) {
			agg.latest = b.SubmittedAt
		}
	}

	ranked := make([]*bidderAgg, 0, len(aggs))
	for _, id := range order {
		ranked = append(ranked, aggs[id])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if !ranked[i].highest.Equal(ranked[j].highest) {
			return ranked[i].highest.GreaterThan(ranked[j].highest)
		}
		// equal amounts: earliest wins
		return ranked[i].highestAt.Before(ranked[j].highestAt)
	})

	snapshot := model.LeaderboardSnapshot{
		AuctionID:   auctionID,
		Entries:     make([]model.LeaderboardEntry, 0, len(ranked)),
		TotalBids:   len(bids),
		GeneratedAt: p.clk.Now(),
	}

	for i, agg := range ranked {
		name, email := p.resolve(agg.bidderID)
		entry := model.LeaderboardEntry{
			Rank:       i + 1,
			BidderID:   agg.bidderID,
			Name:       name,
			Email:      email,
			TotalBids:  agg.totalBids,
			HighestBid: agg.highest,
			LatestBid:  agg.latest,
			IsLeader:   i == 0,
		}
		snapshot.Entries = append(snapshot.Entries, entry)
	}

	snapshot.TotalParticipants = len(snapshot.Entries)
	if len(snapshot.Entries) > 0 {
		top := snapshot.Entries[0]
		snapshot.HighestBid = top.HighestBid
		snapshot.Winner = &model.WinnerSummary{
			BidderID: top.BidderID,
			Name:     top.Name,
			Amount:   top.HighestBid,
		}
	}
	return snapshot
}

// resolve maps a bidder ID to display fields, falling back to the raw ID
// when the directory has no entry.
func (p *Projector) resolve(bidderID string) (name, email string) {
	if u, ok := p.users.GetUser(bidderID); ok {
		return u.Name, u.Email
	}
	return bidderID, ""
}
