package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	LeaderElection LeaderElectionConfig `yaml:"leader_election"`
	Auction        AuctionConfig        `yaml:"auction"`
	Notify         NotifyConfig         `yaml:"notify"`
	Fetcher        FetcherConfig        `yaml:"fetcher"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig holds OpenTelemetry settings. An empty OTLPEndpoint
// disables export and logs to the console instead.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
	LogLevel       string `yaml:"log_level"`
}

// LeaderElectionConfig holds Kubernetes leader election settings.
type LeaderElectionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	LeaseName      string        `yaml:"lease_name"`
	LeaseNamespace string        `yaml:"lease_namespace"`
	LeaseDuration  time.Duration `yaml:"lease_duration"`
	RenewDeadline  time.Duration `yaml:"renew_deadline"`
	RetryPeriod    time.Duration `yaml:"retry_period"`
}

// Selection modes for picking the next player.
const (
	SelectionSequential = "sequential"
	SelectionRandom     = "random"
)

// AuctionConfig holds the auction rules.
type AuctionConfig struct {
	BasePrice     int           `yaml:"base_price"`
	BidStep       int           `yaml:"bid_step"`
	DefaultBudget int           `yaml:"default_budget"`
	MinBudget     int           `yaml:"min_budget"`
	MinTeams      int           `yaml:"min_teams"`
	MaxTeams      int           `yaml:"max_teams"`
	DefaultTeams  int           `yaml:"default_teams"`
	Selection     string        `yaml:"selection"` // "sequential" or "random"
	BidTimer      time.Duration `yaml:"bid_timer"`
	UploadLimit   int64         `yaml:"upload_limit"`
}

// NotifyConfig holds outbound notification settings.
type NotifyConfig struct {
	DiscordWebhookURL string `yaml:"discord_webhook_url"`
}

// FetcherConfig holds photo fetcher settings.
type FetcherConfig struct {
	Input        string        `yaml:"input"`
	Output       string        `yaml:"output"`
	DownloadDir  string        `yaml:"download_dir"`
	LinkColumn   string        `yaml:"link_column"`
	OutputColumn string        `yaml:"output_column"`
	Endpoint     string        `yaml:"endpoint"` // must contain a single %s for the file id
	Timeout      time.Duration `yaml:"timeout"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "auctiond",
			ServiceVersion: "0.1.0",
			LogLevel:       "info",
		},
		LeaderElection: LeaderElectionConfig{
			Enabled:        false,
			LeaseName:      "auctiond-leader",
			LeaseNamespace: "default",
			LeaseDuration:  15 * time.Second,
			RenewDeadline:  10 * time.Second,
			RetryPeriod:    2 * time.Second,
		},
		Auction: AuctionConfig{
			BasePrice:     20,
			BidStep:       10,
			DefaultBudget: 900,
			MinBudget:     100,
			MinTeams:      2,
			MaxTeams:      12,
			DefaultTeams:  4,
			Selection:     SelectionSequential,
			BidTimer:      30 * time.Second,
			UploadLimit:   10 << 20,
		},
		Fetcher: FetcherConfig{
			Input:        "input.xlsx",
			Output:       "output.xlsx",
			DownloadDir:  "downloads",
			LinkColumn:   "photo",
			OutputColumn: "downloaded_photo",
			Endpoint:     "https://drive.google.com/uc?export=download&id=%s",
			Timeout:      30 * time.Second,
		},
	}
}

// Load reads a YAML configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	a := c.Auction
	switch a.Selection {
	case SelectionSequential, SelectionRandom:
		// valid
	default:
		return fmt.Errorf("unsupported selection mode %q: must be %q or %q", a.Selection, SelectionSequential, SelectionRandom)
	}
	if a.BasePrice <= 0 {
		return fmt.Errorf("auction.base_price must be positive, got %d", a.BasePrice)
	}
	if a.BidStep <= 0 {
		return fmt.Errorf("auction.bid_step must be positive, got %d", a.BidStep)
	}
	if a.MinBudget <= 0 || a.DefaultBudget < a.MinBudget {
		return fmt.Errorf("auction budgets invalid: default %d, min %d", a.DefaultBudget, a.MinBudget)
	}
	if a.MinTeams < 1 || a.MaxTeams < a.MinTeams {
		return fmt.Errorf("auction team bounds invalid: min %d, max %d", a.MinTeams, a.MaxTeams)
	}
	if a.DefaultTeams < a.MinTeams || a.DefaultTeams > a.MaxTeams {
		return fmt.Errorf("auction.default_teams %d outside [%d, %d]", a.DefaultTeams, a.MinTeams, a.MaxTeams)
	}
	if c.Fetcher.LinkColumn == "" || c.Fetcher.OutputColumn == "" {
		return fmt.Errorf("fetcher columns must not be empty")
	}
	return nil
}
