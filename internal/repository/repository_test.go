package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"live-auction/internal/auctionerrors"
	model "live-auction/internal/models"
)

func testAuction(id string, endsAt time.Time) model.Auction {
	return model.Auction{
		AuctionID:     id,
		Title:         "lot " + id,
		StartingPrice: decimal.NewFromInt(100),
		StartsAt:      endsAt.Add(-time.Hour),
		EndsAt:        endsAt,
	}
}

func testBid(id, auctionID, bidderID string, amount int64, at time.Time) model.Bid {
	return model.Bid{
		BidID:       id,
		AuctionID:   auctionID,
		BidderID:    bidderID,
		Amount:      decimal.NewFromInt(amount),
		Class:       model.BidClassWinning,
		Active:      true,
		SubmittedAt: at,
	}
}

func TestMemoryRepo_AppendAndHighestActive(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateAuction(testAuction("a1", now.Add(time.Hour))))

	_, err := repo.HighestActive("a1")
	require.ErrorIs(t, err, auctionerrors.ErrNoBids)

	_, err = repo.Append(testBid("b1", "a1", "u1", 150, now))
	require.NoError(t, err)
	_, err = repo.Append(testBid("b2", "a1", "u2", 200, now.Add(time.Minute)))
	require.NoError(t, err)

	highest, err := repo.HighestActive("a1")
	require.NoError(t, err)
	require.Equal(t, "b2", highest.BidID)
	require.True(t, highest.Amount.Equal(decimal.NewFromInt(200)))
}

func TestMemoryRepo_AppendUnknownAuction(t *testing.T) {
	repo := NewMemoryRepo()
	_, err := repo.Append(testBid("b1", "missing", "u1", 150, time.Now().UTC()))
	require.ErrorIs(t, err, auctionerrors.ErrAuctionNotFound)
}

func TestMemoryRepo_MarkInactive(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateAuction(testAuction("a1", now.Add(time.Hour))))

	_, err := repo.Append(testBid("b1", "a1", "u1", 150, now))
	require.NoError(t, err)
	_, err = repo.Append(testBid("b2", "a1", "u2", 200, now.Add(time.Minute)))
	require.NoError(t, err)

	require.NoError(t, repo.MarkInactive("b1"))

	bids, err := repo.AllForAuction("a1")
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.False(t, bids[0].Active)
	require.Equal(t, model.BidClassOutbid, bids[0].Class)
	// amount and time untouched
	require.True(t, bids[0].Amount.Equal(decimal.NewFromInt(150)))
	require.Equal(t, now, bids[0].SubmittedAt)

	require.ErrorIs(t, repo.MarkInactive("nope"), auctionerrors.ErrBidNotFound)
}

func TestMemoryRepo_AllForAuctionOrdering(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateAuction(testAuction("a1", now.Add(time.Hour))))

	// appended out of time order; reads must sort by submission time
	_, err := repo.Append(testBid("b2", "a1", "u2", 200, now.Add(time.Minute)))
	require.NoError(t, err)
	_, err = repo.Append(testBid("b1", "a1", "u1", 150, now))
	require.NoError(t, err)

	bids, err := repo.AllForAuction("a1")
	require.NoError(t, err)
	require.Equal(t, []string{"b1", "b2"}, []string{bids[0].BidID, bids[1].BidID})
}

func TestMemoryRepo_AllForBidder(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateAuction(testAuction("a1", now.Add(time.Hour))))

	_, err := repo.Append(testBid("b1", "a1", "u1", 150, now))
	require.NoError(t, err)
	_, err = repo.Append(testBid("b2", "a1", "u2", 200, now.Add(time.Minute)))
	require.NoError(t, err)
	_, err = repo.Append(testBid("b3", "a1", "u1", 250, now.Add(2*time.Minute)))
	require.NoError(t, err)

	bids, err := repo.AllForBidder("a1", "u1")
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.Equal(t, "b1", bids[0].BidID)
	require.Equal(t, "b3", bids[1].BidID)
}

func TestMemoryRepo_SetEndTimeOnlyForward(t *testing.T) {
	repo := NewMemoryRepo()
	endsAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateAuction(testAuction("a1", endsAt)))

	require.NoError(t, repo.SetEndTime("a1", endsAt.Add(5*time.Minute)))

	err := repo.SetEndTime("a1", endsAt)
	require.Error(t, err)

	a, err := repo.GetAuction("a1")
	require.NoError(t, err)
	require.Equal(t, endsAt.Add(5*time.Minute), a.EndsAt)
}

func TestMemoryRepo_MarkEndedAndResult(t *testing.T) {
	repo := NewMemoryRepo()
	endsAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateAuction(testAuction("a1", endsAt)))

	_, done, err := repo.GetResult("a1")
	require.NoError(t, err)
	require.False(t, done)

	result := model.AuctionResult{
		AuctionID:   "a1",
		TotalBids:   3,
		FinalizedAt: endsAt.Add(time.Second),
		Winner:      &model.WinnerSummary{BidderID: "u1", Amount: decimal.NewFromInt(250)},
	}
	require.NoError(t, repo.MarkEnded("a1", result))

	stored, done, err := repo.GetResult("a1")
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, result, stored)

	a, err := repo.GetAuction("a1")
	require.NoError(t, err)
	require.True(t, a.Ended)
}

func TestMemoryRepo_OpenAuctionsEndedBefore(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateAuction(testAuction("past2", now.Add(-time.Minute))))
	require.NoError(t, repo.CreateAuction(testAuction("past1", now.Add(-time.Hour))))
	require.NoError(t, repo.CreateAuction(testAuction("future", now.Add(time.Hour))))
	require.NoError(t, repo.CreateAuction(testAuction("closed", now.Add(-2*time.Hour))))
	require.NoError(t, repo.MarkEnded("closed", model.AuctionResult{AuctionID: "closed", FinalizedAt: now}))

	lapsed, err := repo.OpenAuctionsEndedBefore(now)
	require.NoError(t, err)
	require.Len(t, lapsed, 2)
	// soonest-ended first
	require.Equal(t, "past1", lapsed[0].AuctionID)
	require.Equal(t, "past2", lapsed[1].AuctionID)
}

func TestMemoryRepo_Users(t *testing.T) {
	repo := NewMemoryRepo()

	_, ok := repo.GetUser("u1")
	require.False(t, ok)

	require.NoError(t, repo.AddUser(model.User{UserID: "u1", Name: "Alice", Email: "alice@example.com"}))
	u, ok := repo.GetUser("u1")
	require.True(t, ok)
	require.Equal(t, "Alice", u.Name)
}

func TestMemoryRepo_GetAuctionNotFound(t *testing.T) {
	repo := NewMemoryRepo()
	_, err := repo.GetAuction("missing")
	require.True(t, errors.Is(err, auctionerrors.ErrAuctionNotFound))
}
