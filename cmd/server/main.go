package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"github.com/mikemainguy/video-conferencing-app/auth"
	"github.com/mikemainguy/video-conferencing-app/internal"
	"github.com/mikemainguy/video-conferencing-app/observability"
	"github.com/mikemainguy/video-conferencing-app/repositories"
	"github.com/mikemainguy/video-conferencing-app/runtime/workers"
	"github.com/mikemainguy/video-conferencing-app/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so deferred cleanup always executes.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	limit := repositories.DefaultRetention
	if config.HistoryLimit != nil {
		limit = *config.HistoryLimit
	}
	store := repositories.NewBadgerRepository(db, log, limit)

	// 3. Auth
	issuer := auth.NewTokenIssuer(config.AuthTokenSecret, config.AuthTokenDuration)
	accounts, err := auth.ParseAccounts(config.Accounts)
	if err != nil {
		return fmt.Errorf("accounts config error: %w", err)
	}
	if accounts.Empty() {
		log.Warn("No accounts configured, token endpoint is open")
	}

	// 4. HTTP Server & Workers
	monitoring := observability.NewMonitoringManager(log)
	srv := server.New(log, issuer, accounts, store, monitoring)

	sup := workers.NewSupervisor(log)
	sup.Add(
		workers.NewMonitorWorker(monitoring),
		workers.NewHeartbeatWorker(log, monitoring, srv.Hub()),
	)

	if config.DebugPort > 0 && log.Enabled(context.Background(), slog.LevelDebug) {
		url := fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort)
		log.Info("Debug message inspector available", "url", url)
		internal.StartDebugServer(db, config.DebugPort, func() map[string]any {
			stats := monitoring.GetLatest()
			return map[string]any{
				"rooms":           stats.ActiveRooms,
				"connections":     stats.ActiveConns,
				"messages_stored": stats.MessagesStored,
				"tokens_issued":   stats.TokensIssued,
			}
		})
	}

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sup.Run(ctx)

	// 6. Serve until stop or error
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	errChan := make(chan error, 1)
	go func() {
		if err := srv.Listen(address); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 7. Final Cleanup
	if err := srv.Shutdown(); err != nil {
		log.Warn("Server shutdown failed", "error", err)
	}
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
