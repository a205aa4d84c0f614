package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/adit-m/paisabot/internal/api"
	"github.com/adit-m/paisabot/internal/chart"
	"github.com/adit-m/paisabot/internal/config"
	"github.com/adit-m/paisabot/internal/db"
	"github.com/adit-m/paisabot/internal/dialog"
	"github.com/adit-m/paisabot/internal/ledger"
	"github.com/adit-m/paisabot/internal/payment"
)

func main() {
	log := logrus.New()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx := context.Background()

	var (
		store    ledger.Store
		sessions dialog.SessionStore
		resolver api.Resolver
		recorder payment.Recorder
	)
	if cfg.DatabaseURL != "" {
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		// Run migrations
		if err := database.RunMigrations(ctx); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		store, sessions, resolver, recorder = database, database, database, database
	} else {
		log.Warn("DATABASE_URL not set; using in-memory stores (state is lost on restart)")
		store = ledger.NewMemoryStore()
		sessions = dialog.NewMemorySessionStore()
		resolver = api.ResolverFunc(func(_ context.Context, raw string) (string, error) {
			return ledger.NormalizeNumber(raw), nil
		})
	}

	tokens := api.NewChartTokens(cfg.JWTSecret)
	charts := chart.NewPieRenderer(cfg.ChartDir, cfg.ChartBaseURL, tokens, log)
	gateway := payment.NewMockGateway(log, recorder)
	machine := dialog.NewMachine(store, charts, gateway, log)

	apiServer := api.New(cfg, machine, sessions, resolver, tokens, log)

	// Start API server
	go func() {
		if err := apiServer.Start(); err != nil {
			log.WithError(err).Error("API server error")
		}
	}()

	// Wait for signal to stop
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
}
