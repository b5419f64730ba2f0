package main

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"live-auction/internal/arbitration"
	"live-auction/internal/broadcast"
	"live-auction/internal/clock"
	"live-auction/internal/config"
	"live-auction/internal/leaderboard"
	model "live-auction/internal/models"
	"live-auction/internal/repository"
	"live-auction/internal/scheduler"
	"live-auction/internal/server"
	"live-auction/utils"
)

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	utils.SetLogLevel(cfg.Logging.Level)

	db, err := buildRepo(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}

	clk := clock.System()
	hub := broadcast.NewHub(cfg.Events.SubscriberBuffer)
	projector := leaderboard.NewProjector(db, db, clk)
	engine := arbitration.NewEngine(db, projector, hub, clk, arbitration.Config{
		AntiSnipeWindow: cfg.AntiSnipeWindow(),
		ExtensionStep:   cfg.Extension(),
		AllowSelfOutbid: cfg.Auction.AllowSelfOutbid,
		RetryAttempts:   cfg.Auction.RetryAttempts,
	})

	sweeper := scheduler.NewSweeper(engine, db, clk)
	if err := sweeper.Start(cfg.SweepInterval()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start finalize sweep: %v\n", err)
		os.Exit(1)
	}
	defer sweeper.Stop()

	if cfg.Storage.Driver == "memory" {
		prepopulate(db, clk)
	}

	router := server.SetupRouter(engine, hub)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	fmt.Printf("Starting live auction server on %s...\n", addr)
	if err := router.Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
}

// buildRepo selects the configured persistence implementation.
func buildRepo(cfg *config.Config) (repository.AuctionDB, error) {
	if cfg.Storage.Driver == "sqlite" {
		return repository.NewSQLiteRepo(cfg.Storage.Path)
	}
	return repository.NewMemoryRepo(), nil
}

// prepopulate seeds sample users for the in-memory repo so event payloads
// carry names during local development.
func prepopulate(db repository.AuctionDB, clk clock.Clock) {
	users := []model.User{
		{UserID: "user1", Name: "Alice Carver", Email: "alice@example.com"},
		{UserID: "user2", Name: "Bram Osei", Email: "bram@example.com"},
		{UserID: "user3", Name: "Chiara Lund", Email: "chiara@example.com"},
	}
	for _, u := range users {
		if err := db.AddUser(u); err != nil {
			utils.Warn("failed to seed user", map[string]any{"user_id": u.UserID, "error": err.Error()})
		}
	}

	now := clk.Now()
	sample := model.Auction{
		AuctionID:     "auction1",
		Title:         "Sample lot",
		Description:   "Seeded auction for local development",
		StartingPrice: decimal.NewFromInt(100),
		StartsAt:      now,
		EndsAt:        now.Add(30 * time.Minute),
	}
	if err := db.CreateAuction(sample); err != nil {
		utils.Warn("failed to seed auction", map[string]any{"auction_id": sample.AuctionID, "error": err.Error()})
	}
}

// configPath returns the config file location from env or the default.
func configPath() string {
	if p := os.Getenv("AUCTION_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}
