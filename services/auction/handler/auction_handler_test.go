package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"live-auction/internal/arbitration"
	"live-auction/internal/auctionerrors"
	model "live-auction/internal/models"
	"live-auction/services/auction/helpers"
)

func newTestRouter(t *testing.T) (*gin.Engine, *MockAuctionServiceInterface) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	mockService := NewMockAuctionServiceInterface(ctrl)
	h := NewAuctionHandler(mockService)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/bids", h.PlaceBidHandler)
	router.POST("/auctions", h.CreateAuctionHandler)
	router.GET("/auctions/:auction_id/leaderboard", h.LeaderboardHandler)
	router.GET("/auctions/:auction_id/bids", h.GetBidsByAuctionHandler)
	router.POST("/auctions/:auction_id/finalize", h.FinalizeHandler)
	return router, mockService
}

func doJSON(t *testing.T, router *gin.Engine, method, url string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody []byte
	switch v := body.(type) {
	case nil:
	case string:
		reqBody = []byte(v)
	default:
		var err error
		reqBody, err = json.Marshal(v)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// Test PlaceBidHandler
func TestPlaceBidHandler(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		requestBody    any
		mockSetup      func(m *MockAuctionServiceInterface)
		expectedStatus int
		expectedMsg    string
	}{
		{
			name: "success_valid_bid",
			requestBody: helpers.PlaceBidRequest{
				AuctionID: "a1",
				BidderID:  "u1",
				Amount:    150,
			},
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().
					PlaceBid("a1", "u1", decimal.NewFromFloat(150)).
					Return(arbitration.BidOutcome{
						Bid: model.Bid{
							BidID:       "bid1",
							AuctionID:   "a1",
							BidderID:    "u1",
							Amount:      decimal.NewFromInt(150),
							Class:       model.BidClassInitial,
							Active:      true,
							SubmittedAt: now,
						},
					}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "bid accepted",
		},
		{
			name:           "invalid_json",
			requestBody:    `{invalid json}`,
			mockSetup:      func(m *MockAuctionServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name: "missing_auction_id",
			requestBody: helpers.PlaceBidRequest{
				BidderID: "u1",
				Amount:   150,
			},
			mockSetup:      func(m *MockAuctionServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name: "zero_amount",
			requestBody: helpers.PlaceBidRequest{
				AuctionID: "a1",
				BidderID:  "u1",
				Amount:    0,
			},
			mockSetup:      func(m *MockAuctionServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name: "bid_too_low",
			requestBody: helpers.PlaceBidRequest{
				AuctionID: "a1",
				BidderID:  "u1",
				Amount:    120,
			},
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().
					PlaceBid("a1", "u1", decimal.NewFromFloat(120)).
					Return(arbitration.BidOutcome{}, fmt.Errorf("engine: %w", auctionerrors.ErrBidTooLow))
			},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "bid amount too low",
		},
		{
			name: "auction_ended",
			requestBody: helpers.PlaceBidRequest{
				AuctionID: "a1",
				BidderID:  "u1",
				Amount:    500,
			},
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().
					PlaceBid("a1", "u1", decimal.NewFromFloat(500)).
					Return(arbitration.BidOutcome{}, fmt.Errorf("engine: %w", auctionerrors.ErrAuctionEnded))
			},
			expectedStatus: http.StatusGone,
			expectedMsg:    "auction has ended",
		},
		{
			name: "auction_not_found",
			requestBody: helpers.PlaceBidRequest{
				AuctionID: "missing",
				BidderID:  "u1",
				Amount:    150,
			},
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().
					PlaceBid("missing", "u1", decimal.NewFromFloat(150)).
					Return(arbitration.BidOutcome{}, fmt.Errorf("engine: %w", auctionerrors.ErrAuctionNotFound))
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "auction not found",
		},
		{
			name: "self_outbid",
			requestBody: helpers.PlaceBidRequest{
				AuctionID: "a1",
				BidderID:  "u1",
				Amount:    300,
			},
			mockSetup: func(m *MockAuctionServiceInterface) {
				m.EXPECT().
					PlaceBid("a1", "u1", decimal.NewFromFloat(300)).
					Return(arbitration.BidOutcome{}, fmt.Errorf("engine: %w", auctionerrors.ErrSelfOutbid))
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedMsg:    "bidder already leads this auction",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			router, mockService := newTestRouter(t)
			tc.mockSetup(mockService)

			w := doJSON(t, router, http.MethodPost, "/bids", tc.requestBody)
			require.Equal(t, tc.expectedStatus, w.Code)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.Equal(t, tc.expectedMsg, resp["message"])

			if tc.expectedStatus == http.StatusCreated {
				data := resp["data"].(map[string]any)
				bid := data["bid"].(map[string]any)
				require.Equal(t, "bid1", bid["bid_id"])
				require.Equal(t, "a1", bid["auction_id"])
				require.Equal(t, "150", bid["amount"])
				require.Equal(t, "initial", bid["class"])
			}
		})
	}
}

// Test LeaderboardHandler
func TestLeaderboardHandler(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("success", func(t *testing.T) {
		router, mockService := newTestRouter(t)
		mockService.EXPECT().Snapshot("a1").Return(model.LeaderboardSnapshot{
			AuctionID: "a1",
			Entries: []model.LeaderboardEntry{{
				Rank:       1,
				BidderID:   "u1",
				Name:       "Alice",
				TotalBids:  2,
				HighestBid: decimal.NewFromInt(250),
				LatestBid:  now,
				IsLeader:   true,
			}},
			HighestBid:        decimal.NewFromInt(250),
			Winner:            &model.WinnerSummary{BidderID: "u1", Name: "Alice", Amount: decimal.NewFromInt(250)},
			TotalParticipants: 1,
			TotalBids:         2,
			GeneratedAt:       now,
		}, nil)

		w := doJSON(t, router, http.MethodGet, "/auctions/a1/leaderboard", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data := resp["data"].(map[string]any)
		require.Equal(t, "a1", data["auction_id"])
		entries := data["entries"].([]any)
		require.Len(t, entries, 1)
		top := entries[0].(map[string]any)
		require.Equal(t, float64(1), top["rank"])
		require.Equal(t, true, top["is_leader"])
	})

	t.Run("auction_not_found", func(t *testing.T) {
		router, mockService := newTestRouter(t)
		mockService.EXPECT().Snapshot("missing").
			Return(model.LeaderboardSnapshot{}, fmt.Errorf("engine: %w", auctionerrors.ErrAuctionNotFound))

		w := doJSON(t, router, http.MethodGet, "/auctions/missing/leaderboard", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

// Test FinalizeHandler
func TestFinalizeHandler(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("success", func(t *testing.T) {
		router, mockService := newTestRouter(t)
		mockService.EXPECT().Finalize("a1").Return(model.AuctionResult{
			AuctionID:         "a1",
			Winner:            &model.WinnerSummary{BidderID: "u1", Name: "Alice", Amount: decimal.NewFromInt(250)},
			TotalBids:         3,
			TotalParticipants: 2,
			FinalizedAt:       now,
		}, nil)

		w := doJSON(t, router, http.MethodPost, "/auctions/a1/finalize", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data := resp["data"].(map[string]any)
		winner := data["winner"].(map[string]any)
		require.Equal(t, "u1", winner["bidder_id"])
	})

	t.Run("still_open", func(t *testing.T) {
		router, mockService := newTestRouter(t)
		mockService.EXPECT().Finalize("a1").
			Return(model.AuctionResult{}, fmt.Errorf("engine: %w", auctionerrors.ErrAuctionStillOpen))

		w := doJSON(t, router, http.MethodPost, "/auctions/a1/finalize", nil)
		require.Equal(t, http.StatusConflict, w.Code)
	})
}

// Test GetBidsByAuctionHandler
func TestGetBidsByAuctionHandler(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("returns_bids", func(t *testing.T) {
		router, mockService := newTestRouter(t)
		mockService.EXPECT().BidsForAuction("a1").Return([]model.Bid{
			{BidID: "b1", AuctionID: "a1", BidderID: "u1", Amount: decimal.NewFromInt(150), Class: model.BidClassOutbid, SubmittedAt: now},
			{BidID: "b2", AuctionID: "a1", BidderID: "u2", Amount: decimal.NewFromInt(200), Class: model.BidClassWinning, Active: true, SubmittedAt: now.Add(time.Minute)},
		}, nil)

		w := doJSON(t, router, http.MethodGet, "/auctions/a1/bids", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data := resp["data"].([]any)
		require.Len(t, data, 2)
	})

	t.Run("empty_ledger_is_ok", func(t *testing.T) {
		router, mockService := newTestRouter(t)
		mockService.EXPECT().BidsForAuction("a1").Return(nil, nil)

		w := doJSON(t, router, http.MethodGet, "/auctions/a1/bids", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Empty(t, resp["data"])
	})
}

// Test CreateAuctionHandler
func TestCreateAuctionHandler(t *testing.T) {
	endsAt := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

	t.Run("success", func(t *testing.T) {
		router, mockService := newTestRouter(t)
		mockService.EXPECT().RegisterAuction(gomock.Any()).DoAndReturn(func(a model.Auction) error {
			require.Equal(t, "a1", a.AuctionID)
			require.Equal(t, endsAt, a.EndsAt)
			require.True(t, a.StartingPrice.Equal(decimal.NewFromFloat(100)))
			return nil
		})

		w := doJSON(t, router, http.MethodPost, "/auctions", helpers.CreateAuctionRequest{
			AuctionID:     "a1",
			Title:         "lot",
			StartingPrice: 100,
			EndsAt:        endsAt.Format(time.RFC3339),
		})
		require.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("invalid_ends_at", func(t *testing.T) {
		router, _ := newTestRouter(t)
		w := doJSON(t, router, http.MethodPost, "/auctions", helpers.CreateAuctionRequest{
			AuctionID:     "a1",
			Title:         "lot",
			StartingPrice: 100,
			EndsAt:        "not-a-time",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}
