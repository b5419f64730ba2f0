// Package arbitration is the serialized decision unit for live auctions.
// Bid submissions for one auction are processed strictly one at a time;
// auctions never contend with each other.
package arbitration

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"live-auction/internal/auctionerrors"
	"live-auction/internal/broadcast"
	"live-auction/internal/clock"
	"live-auction/internal/leaderboard"
	model "live-auction/internal/models"
	"live-auction/internal/repository"
	"live-auction/utils"
)

const extensionReason = "late bid inside anti-sniping window"

// Config holds the engine's arbitration policy.
type Config struct {
	// AntiSnipeWindow is the trailing interval before close during which an
	// accepted bid extends the auction. Zero disables extensions.
	AntiSnipeWindow time.Duration
	// ExtensionStep is how far past the bid's time the new end is placed.
	ExtensionStep time.Duration
	// AllowSelfOutbid permits the current leader to raise against themselves.
	AllowSelfOutbid bool
	// RetryAttempts bounds automatic retries of transient storage failures.
	RetryAttempts int
}

// BidOutcome is returned for an accepted bid.
type BidOutcome struct {
	Bid         model.Bid
	PriorLeader *model.Bid
	Extension   *model.TimeExtension
	Snapshot    model.LeaderboardSnapshot
}

// Engine arbitrates bids, owns auction end times, and drives the projector
// and broadcaster after every state change.
type Engine struct {
	db        repository.AuctionDB
	projector *leaderboard.Projector
	hub       *broadcast.Hub
	clk       clock.Clock
	cfg       Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-auction serialization
}

// NewEngine creates an Engine over the given persistence and fan-out.
func NewEngine(db repository.AuctionDB, projector *leaderboard.Projector, hub *broadcast.Hub, clk clock.Clock, cfg Config) *Engine {
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	return &Engine{
		db:        db,
		projector: projector,
		hub:       hub,
		clk:       clk,
		cfg:       cfg,
		locks:     make(map[string]*sync.Mutex),
	}
}

// lockFor returns the serialization lock for one auction, creating it on
// first use. Contention is scoped to a single auction.
func (e *Engine) lockFor(auctionID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[auctionID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[auctionID] = l
	}
	return l
}

// RegisterAuction accepts an auction record from the catalog boundary. From
// this point the engine owns the end time.
func (e *Engine) RegisterAuction(a model.Auction) error {
	if a.AuctionID == "" {
		return fmt.Errorf("engine: %w - missing auction ID", auctionerrors.ErrInvalidBid)
	}
	if !a.EndsAt.After(a.StartsAt) {
		return fmt.Errorf("engine: %w - auction ends before it starts", auctionerrors.ErrInvalidBid)
	}
	if err := e.db.CreateAuction(a); err != nil {
		return fmt.Errorf("engine: failed to register auction %s: %w", a.AuctionID, err)
	}
	return nil
}

// PlaceBid submits a bid timestamped by the engine's clock.
func (e *Engine) PlaceBid(auctionID, bidderID string, amount decimal.Decimal) (BidOutcome, error) {
	return e.PlaceBidAt(auctionID, bidderID, amount, e.clk.Now())
}

// PlaceBidAt submits a bid with an explicit submission time, used for replay
// and testing. Validation, acceptance, projection and publishing all happen
// under the auction's serialization lock, so a concurrent reader observes
// either the pre-bid or the fully committed post-bid state.
func (e *Engine) PlaceBidAt(auctionID, bidderID string, amount decimal.Decimal, submittedAt time.Time) (BidOutcome, error) {
	if auctionID == "" || bidderID == "" {
		return BidOutcome{}, fmt.Errorf("engine: %w - missing auctionID or bidderID", auctionerrors.ErrInvalidBid)
	}

	l := e.lockFor(auctionID)
	l.Lock()
	defer l.Unlock()

	auction, err := e.db.GetAuction(auctionID)
	if err != nil {
		return BidOutcome{}, fmt.Errorf("engine: %w", err)
	}
	if auction.Ended {
		return BidOutcome{}, fmt.Errorf("engine: auction %s: %w", auctionID, auctionerrors.ErrAuctionEnded)
	}

	now := submittedAt.UTC()
	if now.Before(auction.StartsAt) {
		return BidOutcome{}, fmt.Errorf("engine: auction %s opens at %s: %w", auctionID, auction.StartsAt.Format(time.RFC3339), auctionerrors.ErrAuctionNotOpen)
	}
	if !now.Before(auction.EndsAt) {
		// The auction lapsed without a sweep; finalize lazily, then reject.
		if _, err := e.finalizeLocked(auction, now); err != nil {
			utils.Error("engine: lazy finalization failed", map[string]any{
				"auction_id": auctionID,
				"error":      err.Error(),
			})
		}
		return BidOutcome{}, fmt.Errorf("engine: auction %s: %w", auctionID, auctionerrors.ErrAuctionEnded)
	}

	if amount.Sign() <= 0 {
		return BidOutcome{}, fmt.Errorf("engine: non-positive amount: %w", auctionerrors.ErrBidTooLow)
	}

	var priorLeader *model.Bid
	highest, err := e.db.HighestActive(auctionID)
	switch {
	case err == nil:
		if !amount.GreaterThan(highest.Amount) {
			// equal to the current highest is rejected; no ties may lead
			return BidOutcome{}, fmt.Errorf("engine: current highest bid is %s: %w", highest.Amount.String(), auctionerrors.ErrBidTooLow)
		}
		if highest.BidderID == bidderID && !e.cfg.AllowSelfOutbid {
			return BidOutcome{}, fmt.Errorf("engine: bidder %s: %w", bidderID, auctionerrors.ErrSelfOutbid)
		}
		priorLeader = &highest
	case errors.Is(err, auctionerrors.ErrNoBids):
		// the starting price acts as a standing floor that must be exceeded
		if !amount.GreaterThan(auction.StartingPrice) {
			return BidOutcome{}, fmt.Errorf("engine: starting price is %s: %w", auction.StartingPrice.String(), auctionerrors.ErrBidTooLow)
		}
	default:
		return BidOutcome{}, fmt.Errorf("engine: failed to read current leader: %w", err)
	}

	return e.accept(auction, bidderID, amount, now, priorLeader)
}

// accept commits the validated bid: supersede the prior leader, append the
// entry, extend the end time when inside the anti-sniping window, reproject,
// and publish events in the fixed order new-bid, time-extended,
// leaderboard-update.
func (e *Engine) accept(auction model.Auction, bidderID string, amount decimal.Decimal, now time.Time, priorLeader *model.Bid) (BidOutcome, error) {
	if priorLeader != nil {
		if err := e.withRetry(func() error { return e.db.MarkInactive(priorLeader.BidID) }); err != nil {
			return BidOutcome{}, fmt.Errorf("engine: failed to supersede prior leader: %w", err)
		}
	}

	class := model.BidClassWinning
	if priorLeader == nil {
		class = model.BidClassInitial
	}
	bid := model.Bid{
		BidID:       utils.GenerateID(),
		AuctionID:   auction.AuctionID,
		BidderID:    bidderID,
		Amount:      amount,
		Class:       class,
		Active:      true,
		SubmittedAt: now,
	}
	if err := e.withRetry(func() error { _, appendErr := e.db.Append(bid); return appendErr }); err != nil {
		return BidOutcome{}, fmt.Errorf("engine: failed to append bid: %w", err)
	}

	extension := e.maybeExtend(auction, now)

	snapshot, err := e.projector.Project(auction.AuctionID)
	if err != nil {
		// The bid is already committed; projection failure must not turn an
		// accepted bid into a rejection. Subscribers recover via the next
		// snapshot fetch.
		utils.Error("engine: projection failed after accepted bid", map[string]any{
			"auction_id": auction.AuctionID,
			"bid_id":     bid.BidID,
			"error":      err.Error(),
		})
	}

	bidderName, _ := e.resolveBidder(bidderID)
	e.publish(auction.AuctionID, model.EventNewBid, now, model.NewBidPayload{
		BidID:       bid.BidID,
		BidderID:    bidderID,
		BidderName:  bidderName,
		Amount:      amount,
		Class:       class,
		SubmittedAt: now,
		NewLeader:   true,
	})
	if extension != nil {
		e.publish(auction.AuctionID, model.EventTimeExtended, now, model.TimeExtendedPayload{
			NewEndsAt: extension.NewEndsAt,
			Extension: extension.Extension,
			Reason:    extension.Reason,
		})
	}
	e.publish(auction.AuctionID, model.EventLeaderboard, now, snapshot)

	utils.Info("engine: bid accepted", map[string]any{
		"auction_id": auction.AuctionID,
		"bid_id":     bid.BidID,
		"bidder_id":  bidderID,
		"amount":     amount.String(),
		"class":      string(class),
		"extended":   extension != nil,
	})

	return BidOutcome{
		Bid:         bid,
		PriorLeader: priorLeader,
		Extension:   extension,
		Snapshot:    snapshot,
	}, nil
}

// maybeExtend pushes the end time to bid time + extension step when the bid
// lands inside the anti-sniping window. Repeated late bids re-extend with no
// cap; the end time only ever moves forward.
func (e *Engine) maybeExtend(auction model.Auction, now time.Time) *model.TimeExtension {
	if e.cfg.AntiSnipeWindow <= 0 || e.cfg.ExtensionStep <= 0 {
		return nil
	}
	if auction.EndsAt.Sub(now) > e.cfg.AntiSnipeWindow {
		return nil
	}
	newEnd := now.Add(e.cfg.ExtensionStep)
	if !newEnd.After(auction.EndsAt) {
		return nil
	}
	if err := e.withRetry(func() error { return e.db.SetEndTime(auction.AuctionID, newEnd) }); err != nil {
		utils.Error("engine: failed to extend auction end time", map[string]any{
			"auction_id": auction.AuctionID,
			"error":      err.Error(),
		})
		return nil
	}
	return &model.TimeExtension{
		AuctionID: auction.AuctionID,
		OldEndsAt: auction.EndsAt,
		NewEndsAt: newEnd,
		Extension: newEnd.Sub(auction.EndsAt),
		Reason:    extensionReason,
	}
}

// Finalize marks a lapsed auction ended, computes the final result, and
// emits the auction-ended event exactly once. Calling it again returns the
// stored result without emitting anything, so simultaneous sweep and lazy
// triggers cannot double-announce a winner.
func (e *Engine) Finalize(auctionID string) (model.AuctionResult, error) {
	l := e.lockFor(auctionID)
	l.Lock()
	defer l.Unlock()

	auction, err := e.db.GetAuction(auctionID)
	if err != nil {
		return model.AuctionResult{}, fmt.Errorf("engine: %w", err)
	}
	return e.finalizeLocked(auction, e.clk.Now())
}

// finalizeLocked performs finalization under the caller-held auction lock.
func (e *Engine) finalizeLocked(auction model.Auction, now time.Time) (model.AuctionResult, error) {
	if result, done, err := e.db.GetResult(auction.AuctionID); err != nil {
		return model.AuctionResult{}, fmt.Errorf("engine: failed to read finalization state: %w", err)
	} else if done {
		return result, nil
	}

	if now.Before(auction.EndsAt) {
		return model.AuctionResult{}, fmt.Errorf("engine: auction %s ends at %s: %w", auction.AuctionID, auction.EndsAt.Format(time.RFC3339), auctionerrors.ErrAuctionStillOpen)
	}

	snapshot, err := e.projector.Project(auction.AuctionID)
	if err != nil {
		return model.AuctionResult{}, fmt.Errorf("engine: failed to project final leaderboard: %w", err)
	}

	result := model.AuctionResult{
		AuctionID:         auction.AuctionID,
		Winner:            snapshot.Winner,
		TotalBids:         snapshot.TotalBids,
		TotalParticipants: snapshot.TotalParticipants,
		FinalizedAt:       now,
	}
	if err := e.withRetry(func() error { return e.db.MarkEnded(auction.AuctionID, result) }); err != nil {
		return model.AuctionResult{}, fmt.Errorf("engine: failed to mark auction ended: %w", err)
	}

	e.publish(auction.AuctionID, model.EventAuctionEnded, now, model.AuctionEndedPayload{
		Winner:            result.Winner,
		TotalBids:         result.TotalBids,
		TotalParticipants: result.TotalParticipants,
	})

	utils.Info("engine: auction finalized", map[string]any{
		"auction_id": auction.AuctionID,
		"total_bids": result.TotalBids,
		"has_winner": result.Winner != nil,
	})
	return result, nil
}

// Snapshot projects the current leaderboard under the auction's
// serialization lock, so it observes either the pre-write or fully
// post-write state of an in-flight bid, never a partial update.
func (e *Engine) Snapshot(auctionID string) (model.LeaderboardSnapshot, error) {
	l := e.lockFor(auctionID)
	l.Lock()
	defer l.Unlock()

	if _, err := e.db.GetAuction(auctionID); err != nil {
		return model.LeaderboardSnapshot{}, fmt.Errorf("engine: %w", err)
	}
	return e.projector.Project(auctionID)
}

// BidsForAuction returns the full ledger for an auction, ascending by time.
func (e *Engine) BidsForAuction(auctionID string) ([]model.Bid, error) {
	if _, err := e.db.GetAuction(auctionID); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return e.db.AllForAuction(auctionID)
}

// BidsForBidder returns one participant's ledger entries for an auction.
func (e *Engine) BidsForBidder(auctionID, bidderID string) ([]model.Bid, error) {
	if _, err := e.db.GetAuction(auctionID); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return e.db.AllForBidder(auctionID, bidderID)
}

// withRetry runs op, retrying transient storage failures up to the
// configured attempt bound. All other errors are terminal immediately.
func (e *Engine) withRetry(op func() error) error {
	var err error
	for attempt := 0; attempt < e.cfg.RetryAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, auctionerrors.ErrPersistence) && !errors.Is(err, auctionerrors.ErrConcurrencyConflict) {
			return err
		}
	}
	return err
}

// publish emits an event to the auction's channel. Publish failures can
// never fail a committed bid; the hub is non-blocking by contract.
func (e *Engine) publish(auctionID string, kind model.EventKind, ts time.Time, payload any) {
	e.hub.Publish(auctionID, model.AuctionEvent{
		Kind:      kind,
		AuctionID: auctionID,
		Timestamp: ts,
		Payload:   payload,
	})
}

func (e *Engine) resolveBidder(bidderID string) (string, string) {
	if u, ok := e.db.GetUser(bidderID); ok {
		return u.Name, u.Email
	}
	return bidderID, ""
}
