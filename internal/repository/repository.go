package repository

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"live-auction/internal/auctionerrors"
	model "live-auction/internal/models"
)

//go:generate mockgen -destination=mock_repository.go -package=repository live-auction/internal/repository AuctionDB

// BidLedger is the append-only per-auction record of bid attempts. Mutating
// operations for one auction are only ever invoked under the arbitration
// engine's per-auction serialization; the ledger itself makes no
// cross-auction transaction guarantees.
type BidLedger interface {
	Append(bid model.Bid) (string, error)
	MarkInactive(bidID string) error
	HighestActive(auctionID string) (model.Bid, error)
	AllForAuction(auctionID string) ([]model.Bid, error)
	AllForBidder(auctionID, bidderID string) ([]model.Bid, error)
}

// AuctionStore holds auction records. Auctions are created by catalog
// management; once live, the end time is written exclusively by the
// arbitration engine.
type AuctionStore interface {
	CreateAuction(a model.Auction) error
	GetAuction(auctionID string) (model.Auction, error)
	SetEndTime(auctionID string, endsAt time.Time) error
	MarkEnded(auctionID string, result model.AuctionResult) error
	GetResult(auctionID string) (model.AuctionResult, bool, error)
	OpenAuctionsEndedBefore(t time.Time) ([]model.Auction, error)
}

// UserDirectory resolves bidder IDs to display fields for event payloads.
// Account management itself is external.
type UserDirectory interface {
	AddUser(u model.User) error
	GetUser(userID string) (model.User, bool)
}

// AuctionDB bundles the persistence surface the engine is wired against.
type AuctionDB interface {
	BidLedger
	AuctionStore
	UserDirectory
}

// bidRef locates a ledger entry for in-place flag updates.
type bidRef struct {
	auctionID string
	idx       int
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB.
type MemoryRepo struct {
	mu       sync.RWMutex
	auctions map[string]model.Auction
	results  map[string]model.AuctionResult
	bids     map[string][]model.Bid // key: auctionID -> bids in append order
	bidIndex map[string]bidRef      // key: bidID
	users    map[string]model.User
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions: make(map[string]model.Auction),
		results:  make(map[string]model.AuctionResult),
		bids:     make(map[string][]model.Bid),
		bidIndex: make(map[string]bidRef),
		users:    make(map[string]model.User),
	}
}

// CreateAuction registers an auction record.
func (r *MemoryRepo) CreateAuction(a model.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.auctions[a.AuctionID] = a
	return nil
}

// GetAuction returns the auction record for an ID.
func (r *MemoryRepo) GetAuction(auctionID string) (model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	return a, nil
}

// SetEndTime moves an auction's end time. The end time only ever moves
// forward; a backward move is rejected.
func (r *MemoryRepo) SetEndTime(auctionID string, endsAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.auctions[auctionID]
	if !ok {
		return fmt.Errorf("set end time for auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	if endsAt.Before(a.EndsAt) {
		return fmt.Errorf("set end time for auction %s: end time may not move backward", auctionID)
	}
	a.EndsAt = endsAt
	r.auctions[auctionID] = a
	return nil
}

// MarkEnded flags an auction as finalized and stores its result.
func (r *MemoryRepo) MarkEnded(auctionID string, result model.AuctionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.auctions[auctionID]
	if !ok {
		return fmt.Errorf("mark auction %s ended: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	a.Ended = true
	r.auctions[auctionID] = a
	r.results[auctionID] = result
	return nil
}

// GetResult returns the stored finalization result, if any.
func (r *MemoryRepo) GetResult(auctionID string) (model.AuctionResult, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.results[auctionID]
	return res, ok, nil
}

// OpenAuctionsEndedBefore returns non-finalized auctions whose end time has
// lapsed; used by the finalize sweep.
func (r *MemoryRepo) OpenAuctionsEndedBefore(t time.Time) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var lapsed []model.Auction
	for _, a := range r.auctions {
		if !a.Ended && !a.EndsAt.After(t) {
			lapsed = append(lapsed, a)
		}
	}
	sort.Slice(lapsed, func(i, j int) bool { return lapsed[i].EndsAt.Before(lapsed[j].EndsAt) })
	return lapsed, nil
}

// Append inserts an immutable ledger entry and returns its ID.
func (r *MemoryRepo) Append(bid model.Bid) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[bid.AuctionID]; !ok {
		return "", fmt.Errorf("append bid for auction %s: %w", bid.AuctionID, auctionerrors.ErrAuctionNotFound)
	}

	r.bids[bid.AuctionID] = append(r.bids[bid.AuctionID], bid)
	r.bidIndex[bid.BidID] = bidRef{auctionID: bid.AuctionID, idx: len(r.bids[bid.AuctionID]) - 1}
	return bid.BidID, nil
}

// MarkInactive flips a prior entry's active flag and reclassifies it as
// outbid. Amount and time are never altered.
func (r *MemoryRepo) MarkInactive(bidID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref, ok := r.bidIndex[bidID]
	if !ok {
		return fmt.Errorf("mark bid %s inactive: %w", bidID, auctionerrors.ErrBidNotFound)
	}
	entry := &r.bids[ref.auctionID][ref.idx]
	entry.Active = false
	entry.Class = model.BidClassOutbid
	return nil
}

// HighestActive returns the currently active maximum-amount bid for an
// auction. Ties resolve to the earliest submission for determinism.
func (r *MemoryRepo) HighestActive(auctionID string) (model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best model.Bid
	found := false
	for _, b := range r.bids[auctionID] {
		if !b.Active {
			continue
		}
		if !found || b.Amount.GreaterThan(best.Amount) ||
			(b.Amount.Equal(best.Amount) && b.SubmittedAt.Before(best.SubmittedAt)) {
			best = b
			found = true
		}
	}
	if !found {
		return model.Bid{}, fmt.Errorf("highest active bid for auction %s: %w", auctionID, auctionerrors.ErrNoBids)
	}
	return best, nil
}

// AllForAuction returns every ledger entry for an auction, ascending by
// submission time.
func (r *MemoryRepo) AllForAuction(auctionID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids := append([]model.Bid(nil), r.bids[auctionID]...)
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].SubmittedAt.Before(bids[j].SubmittedAt) })
	return bids, nil
}

// AllForBidder returns one participant's entries for an auction, ascending
// by submission time.
func (r *MemoryRepo) AllForBidder(auctionID, bidderID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var bids []model.Bid
	for _, b := range r.bids[auctionID] {
		if b.BidderID == bidderID {
			bids = append(bids, b)
		}
	}
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].SubmittedAt.Before(bids[j].SubmittedAt) })
	return bids, nil
}

// AddUser registers a bidder's display fields.
func (r *MemoryRepo) AddUser(u model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.UserID] = u
	return nil
}

// GetUser returns a bidder's display fields, if known.
func (r *MemoryRepo) GetUser(userID string) (model.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	return u, ok
}
