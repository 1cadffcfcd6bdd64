package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jensholdgaard/cricket-auction/internal/auction"
	"github.com/jensholdgaard/cricket-auction/internal/clock"
	"github.com/jensholdgaard/cricket-auction/internal/config"
	"github.com/jensholdgaard/cricket-auction/internal/event"
	"github.com/jensholdgaard/cricket-auction/internal/health"
	"github.com/jensholdgaard/cricket-auction/internal/leader"
	"github.com/jensholdgaard/cricket-auction/internal/notify"
	"github.com/jensholdgaard/cricket-auction/internal/telemetry"
	"github.com/jensholdgaard/cricket-auction/internal/timer"
	"github.com/jensholdgaard/cricket-auction/internal/web"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config file not found, using defaults", slog.String("path", path))
		return config.Default(), nil
	}
	return cfg, err
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tp, err := telemetry.Setup(ctx, cfg.Telemetry, os.Stderr)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	selector, err := auction.NewSelector(cfg.Auction.Selection, rand.NewPCG(rand.Uint64(), rand.Uint64()))
	if err != nil {
		return fmt.Errorf("creating selector: %w", err)
	}
	machine := auction.NewMachine(auction.RulesFromConfig(cfg.Auction), selector, rand.NewPCG(rand.Uint64(), rand.Uint64()), clk)

	bus := event.NewBus()
	session, err := auction.NewSession(machine, event.NewMemoryStore(clk), bus, logger, tp.TracerProvider, tp.MeterProvider)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	cues := notify.NewCues()
	bus.Subscribe(cues.Handle)

	countdown := timer.NewCountdown(ctx, clk, cfg.Auction.BidTimer, logger, func(ctx context.Context, playerNo int) {
		session.Emit(ctx, event.TimerExpired, event.TimerExpiredData{PlayerNo: playerNo})
	})
	bus.Subscribe(countdown.Handle)

	if cfg.Notify.DiscordWebhookURL != "" {
		dg, dgErr := discordgo.New("")
		if dgErr != nil {
			return fmt.Errorf("creating discord client: %w", dgErr)
		}
		announcer, dgErr := notify.NewDiscord(dg, cfg.Notify.DiscordWebhookURL, logger)
		if dgErr != nil {
			return fmt.Errorf("configuring discord announcer: %w", dgErr)
		}
		bus.Subscribe(announcer.Handle)
		go func() { _ = announcer.Run(ctx) }()
		logger.InfoContext(ctx, "discord announcements enabled")
	}

	healthHandler := health.NewHandler(clk, version)

	handlers, err := web.NewHandlers(session, countdown, cues, healthHandler, cfg.Auction, logger)
	if err != nil {
		return fmt.Errorf("creating web handlers: %w", err)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handlers.Routes(tp.TracerProvider),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoContext(ctx, "starting http server", slog.Int("port", cfg.Server.Port))
		if listenErr := httpServer.ListenAndServe(); listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "http server error", slog.Any("error", listenErr))
			cancel()
		}
	}()

	if cfg.LeaderElection.Enabled {
		client, clientErr := leader.InClusterClient()
		if clientErr != nil {
			return fmt.Errorf("leader election client: %w", clientErr)
		}
		logger.InfoContext(ctx, "leader election enabled, waiting for leadership...")

		// Only the leader holds the auction traffic; followers stay unready.
		if leaderErr := leader.Run(ctx, cfg.LeaderElection, client, logger, leader.Callbacks{
			OnStartedLeading: func(ctx context.Context) {
				healthHandler.SetReady(true)
				logger.InfoContext(ctx, "auctiond is running (leader)", slog.String("version", version))
			},
			OnStoppedLeading: func() {
				healthHandler.SetReady(false)
			},
		}); leaderErr != nil {
			return fmt.Errorf("leader election: %w", leaderErr)
		}
	} else {
		healthHandler.SetReady(true)
		logger.InfoContext(ctx, "auctiond is running", slog.String("version", version))
		<-ctx.Done()
	}

	logger.Info("shutting down...")
	healthHandler.SetReady(false)
	countdown.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}
