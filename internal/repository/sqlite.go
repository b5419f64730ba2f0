package repository

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"live-auction/internal/auctionerrors"
	model "live-auction/internal/models"
)

// auctionRecord is the gorm row shape for auctions.
type auctionRecord struct {
	AuctionID     string          `gorm:"primaryKey"`
	Title         string
	Description   string
	StartingPrice decimal.Decimal `gorm:"type:numeric"`
	StartsAt      time.Time
	EndsAt        time.Time `gorm:"index"`
	Ended         bool      `gorm:"index"`
	WinnerID      string
	WinnerName    string
	WinnerAmount  decimal.Decimal `gorm:"type:numeric"`
	TotalBids     int
	Participants  int
	FinalizedAt   *time.Time
}

func (auctionRecord) TableName() string { return "auctions" }

// bidRecord is the gorm row shape for ledger entries.
type bidRecord struct {
	BidID       string `gorm:"primaryKey"`
	AuctionID   string `gorm:"index:idx_auction_time;index:idx_auction_active"`
	BidderID    string `gorm:"index"`
	Amount      decimal.Decimal `gorm:"type:numeric"`
	Class       string
	Active      bool      `gorm:"index:idx_auction_active"`
	SubmittedAt time.Time `gorm:"index:idx_auction_time"`
}

func (bidRecord) TableName() string { return "bids" }

// userRecord is the gorm row shape for the bidder directory.
type userRecord struct {
	UserID string `gorm:"primaryKey"`
	Name   string
	Email  string
}

func (userRecord) TableName() string { return "users" }

// SQLiteRepo is a durable AuctionDB backed by SQLite through gorm.
type SQLiteRepo struct {
	db *gorm.DB
}

// NewSQLiteRepo opens (or creates) the database at path and migrates the
// schema. Pass ":memory:" for an ephemeral database.
func NewSQLiteRepo(path string) (*SQLiteRepo, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.AutoMigrate(&auctionRecord{}, &bidRecord{}, &userRecord{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// CreateAuction registers an auction record.
func (r *SQLiteRepo) CreateAuction(a model.Auction) error {
	rec := auctionRecord{
		AuctionID:     a.AuctionID,
		Title:         a.Title,
		Description:   a.Description,
		StartingPrice: a.StartingPrice,
		StartsAt:      a.StartsAt,
		EndsAt:        a.EndsAt,
		Ended:         a.Ended,
	}
	if err := r.db.Save(&rec).Error; err != nil {
		return fmt.Errorf("create auction %s: %w", a.AuctionID, auctionerrors.ErrPersistence)
	}
	return nil
}

// GetAuction returns the auction record for an ID.
func (r *SQLiteRepo) GetAuction(auctionID string) (model.Auction, error) {
	var rec auctionRecord
	err := r.db.First(&rec, "auction_id = ?", auctionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, auctionerrors.ErrPersistence)
	}
	return rec.toAuction(), nil
}

// SetEndTime moves an auction's end time forward.
func (r *SQLiteRepo) SetEndTime(auctionID string, endsAt time.Time) error {
	res := r.db.Model(&auctionRecord{}).
		Where("auction_id = ? AND ends_at <= ?", auctionID, endsAt).
		Update("ends_at", endsAt)
	if res.Error != nil {
		return fmt.Errorf("set end time for auction %s: %w", auctionID, auctionerrors.ErrPersistence)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("set end time for auction %s: end time may not move backward", auctionID)
	}
	return nil
}

// MarkEnded flags an auction as finalized and stores its result.
func (r *SQLiteRepo) MarkEnded(auctionID string, result model.AuctionResult) error {
	updates := map[string]any{
		"ended":        true,
		"total_bids":   result.TotalBids,
		"participants": result.TotalParticipants,
		"finalized_at": result.FinalizedAt,
	}
	if result.Winner != nil {
		updates["winner_id"] = result.Winner.BidderID
		updates["winner_name"] = result.Winner.Name
		updates["winner_amount"] = result.Winner.Amount
	}
	res := r.db.Model(&auctionRecord{}).Where("auction_id = ?", auctionID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("mark auction %s ended: %w", auctionID, auctionerrors.ErrPersistence)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("mark auction %s ended: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	return nil
}

// GetResult returns the stored finalization result, if any.
func (r *SQLiteRepo) GetResult(auctionID string) (model.AuctionResult, bool, error) {
	var rec auctionRecord
	err := r.db.First(&rec, "auction_id = ?", auctionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.AuctionResult{}, false, nil
	}
	if err != nil {
		return model.AuctionResult{}, false, fmt.Errorf("get result for auction %s: %w", auctionID, auctionerrors.ErrPersistence)
	}
	if !rec.Ended || rec.FinalizedAt == nil {
		return model.AuctionResult{}, false, nil
	}

	result := model.AuctionResult{
		AuctionID:         rec.AuctionID,
		TotalBids:         rec.TotalBids,
		TotalParticipants: rec.Participants,
		FinalizedAt:       *rec.FinalizedAt,
	}
	if rec.WinnerID != "" {
		result.Winner = &model.WinnerSummary{
			BidderID: rec.WinnerID,
			Name:     rec.WinnerName,
			Amount:   rec.WinnerAmount,
		}
	}
	return result, true, nil
}

// OpenAuctionsEndedBefore returns non-finalized auctions whose end time has
// lapsed, soonest first.
func (r *SQLiteRepo) OpenAuctionsEndedBefore(t time.Time) ([]model.Auction, error) {
	var recs []auctionRecord
	err := r.db.Where("ended = ? AND ends_at <= ?", false, t).Order("ends_at asc").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list lapsed auctions: %w", auctionerrors.ErrPersistence)
	}
	auctions := make([]model.Auction, 0, len(recs))
	for _, rec := range recs {
		auctions = append(auctions, rec.toAuction())
	}
	return auctions, nil
}

// Append inserts an immutable ledger entry and returns its ID.
func (r *SQLiteRepo) Append(bid model.Bid) (string, error) {
	rec := bidRecord{
		BidID:       bid.BidID,
		AuctionID:   bid.AuctionID,
		BidderID:    bid.BidderID,
		Amount:      bid.Amount,
		Class:       string(bid.Class),
		Active:      bid.Active,
		SubmittedAt: bid.SubmittedAt,
	}
	if err := r.db.Create(&rec).Error; err != nil {
		return "", fmt.Errorf("append bid for auction %s: %w", bid.AuctionID, auctionerrors.ErrPersistence)
	}
	return bid.BidID, nil
}

// MarkInactive flips a prior entry's active flag and reclassifies it.
func (r *SQLiteRepo) MarkInactive(bidID string) error {
	res := r.db.Model(&bidRecord{}).Where("bid_id = ?", bidID).
		Updates(map[string]any{"active": false, "class": string(model.BidClassOutbid)})
	if res.Error != nil {
		return fmt.Errorf("mark bid %s inactive: %w", bidID, auctionerrors.ErrPersistence)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("mark bid %s inactive: %w", bidID, auctionerrors.ErrBidNotFound)
	}
	return nil
}

// HighestActive returns the currently active maximum-amount bid.
func (r *SQLiteRepo) HighestActive(auctionID string) (model.Bid, error) {
	var rec bidRecord
	err := r.db.Where("auction_id = ? AND active = ?", auctionID, true).
		Order("amount desc").Order("submitted_at asc").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Bid{}, fmt.Errorf("highest active bid for auction %s: %w", auctionID, auctionerrors.ErrNoBids)
	}
	if err != nil {
		return model.Bid{}, fmt.Errorf("highest active bid for auction %s: %w", auctionID, auctionerrors.ErrPersistence)
	}
	return rec.toBid(), nil
}

// AllForAuction returns every ledger entry for an auction, ascending by
// submission time.
func (r *SQLiteRepo) AllForAuction(auctionID string) ([]model.Bid, error) {
	var recs []bidRecord
	err := r.db.Where("auction_id = ?", auctionID).Order("submitted_at asc").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, auctionerrors.ErrPersistence)
	}
	return toBids(recs), nil
}

// AllForBidder returns one participant's entries, ascending by submission
// time.
func (r *SQLiteRepo) AllForBidder(auctionID, bidderID string) ([]model.Bid, error) {
	var recs []bidRecord
	err := r.db.Where("auction_id = ? AND bidder_id = ?", auctionID, bidderID).
		Order("submitted_at asc").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("get bids for bidder %s: %w", bidderID, auctionerrors.ErrPersistence)
	}
	return toBids(recs), nil
}

// AddUser registers a bidder's display fields.
func (r *SQLiteRepo) AddUser(u model.User) error {
	rec := userRecord{UserID: u.UserID, Name: u.Name, Email: u.Email}
	if err := r.db.Save(&rec).Error; err != nil {
		return fmt.Errorf("add user %s: %w", u.UserID, auctionerrors.ErrPersistence)
	}
	return nil
}

// GetUser returns a bidder's display fields, if known.
func (r *SQLiteRepo) GetUser(userID string) (model.User, bool) {
	var rec userRecord
	if err := r.db.First(&rec, "user_id = ?", userID).Error; err != nil {
		return model.User{}, false
	}
	return model.User{UserID: rec.UserID, Name: rec.Name, Email: rec.Email}, true
}

func (rec auctionRecord) toAuction() model.Auction {
	return model.Auction{
		AuctionID:     rec.AuctionID,
		Title:         rec.Title,
		Description:   rec.Description,
		StartingPrice: rec.StartingPrice,
		StartsAt:      rec.StartsAt,
		EndsAt:        rec.EndsAt,
		Ended:         rec.Ended,
	}
}

func (rec bidRecord) toBid() model.Bid {
	return model.Bid{
		BidID:       rec.BidID,
		AuctionID:   rec.AuctionID,
		BidderID:    rec.BidderID,
		Amount:      rec.Amount,
		Class:       model.BidClass(rec.Class),
		Active:      rec.Active,
		SubmittedAt: rec.SubmittedAt,
	}
}

func toBids(recs []bidRecord) []model.Bid {
	bids := make([]model.Bid, 0, len(recs))
	for _, rec := range recs {
		bids = append(bids, rec.toBid())
	}
	return bids
}
