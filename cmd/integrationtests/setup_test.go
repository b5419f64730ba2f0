package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"live-auction/internal/arbitration"
	"live-auction/internal/broadcast"
	"live-auction/internal/clock"
	"live-auction/internal/leaderboard"
	model "live-auction/internal/models"
	"live-auction/internal/repository"
	"live-auction/internal/server"
)

// testStart is the fixed wall-clock origin every integration test runs from.
var testStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// testEnv bundles the wired application with the handles the tests need to
// steer it: the fake clock and the seeded repository.
type testEnv struct {
	Router *gin.Engine
	Clock  *clock.Fake
	Repo   *repository.MemoryRepo
	Hub    *broadcast.Hub
	Engine *arbitration.Engine
}

// SetupTestEnv initializes the full router over an in-memory repository and a
// fake clock for integration testing.
func SetupTestEnv() *testEnv {
	gin.SetMode(gin.TestMode)

	repo := repository.NewMemoryRepo()
	clk := clock.NewFake(testStart)
	hub := broadcast.NewHub(broadcast.DefaultBufferSize)
	projector := leaderboard.NewProjector(repo, repo, clk)
	engine := arbitration.NewEngine(repo, projector, hub, clk, arbitration.Config{
		AntiSnipeWindow: 2 * time.Minute,
		ExtensionStep:   5 * time.Minute,
		RetryAttempts:   3,
	})

	return &testEnv{
		Router: server.SetupRouter(engine, hub),
		Clock:  clk,
		Repo:   repo,
		Hub:    hub,
		Engine: engine,
	}
}

// SetupTestEnvWithAuctions seeds the repository with auctions before wiring.
func SetupTestEnvWithAuctions(auctions ...model.Auction) *testEnv {
	env := SetupTestEnv()
	for _, a := range auctions {
		if err := env.Repo.CreateAuction(a); err != nil {
			panic(err)
		}
	}
	return env
}

// ExecuteRequest executes an HTTP request and returns the response recorder.
func ExecuteRequest(t *testing.T, router *gin.Engine, method, url string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ExecuteRequestAndParse executes an HTTP request on the given router and
// parses the response. For created resources the data envelope is unwrapped.
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url string, body any) (map[string]any, *httptest.ResponseRecorder) {
	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		if err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}

		if w.Code == 201 {
			resp = resp["data"].(map[string]any)
		}
	}

	return resp, w
}

// openAuction returns an auction open at testStart and closing after d.
func openAuction(id string, startingPrice float64, d time.Duration) model.Auction {
	return model.Auction{
		AuctionID:     id,
		Title:         "test lot " + id,
		StartingPrice: decimalFrom(startingPrice),
		StartsAt:      testStart.Add(-time.Hour),
		EndsAt:        testStart.Add(d),
	}
}

func decimalFrom(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}
