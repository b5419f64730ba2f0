// Package scheduler closes lapsed auctions on a fixed cadence. The sweep and
// the engine's lazy close path share Finalize's idempotency, so overlapping
// triggers cannot double-announce a winner.
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"live-auction/internal/clock"
	model "live-auction/internal/models"
	"live-auction/utils"
)

// Finalizer is the engine-side contract the sweep drives.
type Finalizer interface {
	Finalize(auctionID string) (model.AuctionResult, error)
}

// LapsedLister reports non-finalized auctions whose end time has passed.
type LapsedLister interface {
	OpenAuctionsEndedBefore(t time.Time) ([]model.Auction, error)
}

// Sweeper periodically finalizes lapsed auctions.
type Sweeper struct {
	finalizer Finalizer
	store     LapsedLister
	clk       clock.Clock
	cron      *cron.Cron
}

// NewSweeper creates a Sweeper over the given finalizer and store.
func NewSweeper(finalizer Finalizer, store LapsedLister, clk clock.Clock) *Sweeper {
	return &Sweeper{
		finalizer: finalizer,
		store:     store,
		clk:       clk,
		cron:      cron.New(),
	}
}

// Start schedules the sweep at the given interval and begins running it.
func (s *Sweeper) Start(interval time.Duration) error {
	spec := fmt.Sprintf("@every %s", interval)
	if _, err := s.cron.AddFunc(spec, s.Sweep); err != nil {
		return fmt.Errorf("scheduler: failed to schedule sweep: %w", err)
	}
	s.cron.Start()
	utils.Info("scheduler: finalize sweep started", map[string]any{"interval": interval.String()})
	return nil
}

// Stop halts the sweep schedule; a sweep already in flight completes.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}

// Sweep finalizes every lapsed auction once. Failures are logged and left
// for the next cycle; Finalize is safe to call repeatedly.
func (s *Sweeper) Sweep() {
	lapsed, err := s.store.OpenAuctionsEndedBefore(s.clk.Now())
	if err != nil {
		utils.Error("scheduler: failed to list lapsed auctions", map[string]any{"error": err.Error()})
		return
	}

	for _, a := range lapsed {
		if _, err := s.finalizer.Finalize(a.AuctionID); err != nil {
			utils.Error("scheduler: finalization failed", map[string]any{
				"auction_id": a.AuctionID,
				"error":      err.Error(),
			})
		}
	}
}
