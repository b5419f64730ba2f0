package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application settings. Values load from a YAML file, then
// environment variables override the deploy-sensitive ones.
type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Storage struct {
		// Driver selects the ledger implementation: "memory" or "sqlite".
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"storage"`

	Auction struct {
		AntiSnipeWindowSec int  `yaml:"anti_snipe_window_sec"`
		ExtensionSec       int  `yaml:"extension_sec"`
		AllowSelfOutbid    bool `yaml:"allow_self_outbid"`
		RetryAttempts      int  `yaml:"retry_attempts"`
		SweepIntervalSec   int  `yaml:"sweep_interval_sec"`
	} `yaml:"auction"`

	Events struct {
		SubscriberBuffer int `yaml:"subscriber_buffer"`
	} `yaml:"events"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Storage.Driver = "memory"
	cfg.Storage.Path = "data/auctions.db"
	cfg.Auction.AntiSnipeWindowSec = 120
	cfg.Auction.ExtensionSec = 300
	cfg.Auction.RetryAttempts = 3
	cfg.Auction.SweepIntervalSec = 30
	cfg.Events.SubscriberBuffer = 256
	cfg.Logging.Level = "info"
	return cfg
}

// Load reads and validates the configuration at path. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Storage.Driver != "memory" && c.Storage.Driver != "sqlite" {
		return fmt.Errorf("unknown storage driver: %s", c.Storage.Driver)
	}
	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		return fmt.Errorf("sqlite storage requires a path")
	}
	if c.Auction.AntiSnipeWindowSec < 0 || c.Auction.ExtensionSec < 0 {
		return fmt.Errorf("anti-sniping durations must not be negative")
	}
	if c.Auction.RetryAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1")
	}
	if c.Auction.SweepIntervalSec <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	return nil
}

// AntiSnipeWindow returns the anti-sniping window as a duration.
func (c *Config) AntiSnipeWindow() time.Duration {
	return time.Duration(c.Auction.AntiSnipeWindowSec) * time.Second
}

// Extension returns the extension step as a duration.
func (c *Config) Extension() time.Duration {
	return time.Duration(c.Auction.ExtensionSec) * time.Second
}

// SweepInterval returns the finalize sweep cadence as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Auction.SweepIntervalSec) * time.Second
}

// overrideWithEnv applies environment overrides where present.
func overrideWithEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil {
			cfg.Server.Port = p
		}
	}
	if driver := os.Getenv("AUCTION_STORAGE_DRIVER"); driver != "" {
		cfg.Storage.Driver = driver
	}
	if path := os.Getenv("AUCTION_DB_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if level := os.Getenv("AUCTION_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
