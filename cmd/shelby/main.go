// Command shelby hosts the persistence core's maintenance duties: schema
// migration, user bootstrap, and the periodic sweep for document files whose
// metadata commit never happened. The web layer links the packages under
// internal/ directly.
package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/shelby-app/shelby/internal/blob"
	"github.com/shelby-app/shelby/internal/config"
	"github.com/shelby-app/shelby/internal/db"
	"github.com/shelby-app/shelby/internal/services"
	"github.com/shelby-app/shelby/pkg/logging"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run schema migrations and exit")
	sweepOnceFlag   = flag.Bool("sweep-once", false, "Run one orphan-file sweep and exit")
	createUserFlag  = flag.String("create-user", "", "Create a user with this name (password from SHELBY_PASSWORD) and exit")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()
	logging.Setup()

	cfg := config.Load()

	conn, err := db.Open(cfg.DatabasePath, cfg.BusyTimeout)
	if err != nil {
		slog.Error("failed to open store", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(conn); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
	if *migrateOnlyFlag {
		slog.Info("migrations completed")
		return
	}

	if *createUserFlag != "" {
		users := services.NewUserService(conn)
		if _, err := users.Create(*createUserFlag, os.Getenv("SHELBY_PASSWORD")); err != nil {
			slog.Error("create user failed", "username", *createUserFlag, "error", err)
			os.Exit(1)
		}
		slog.Info("user created", "username", *createUserFlag)
		return
	}

	files, err := blob.New(cfg.DocumentsDir)
	if err != nil {
		slog.Error("failed to open document store", "dir", cfg.DocumentsDir, "error", err)
		os.Exit(1)
	}
	documents := services.NewDocumentService(conn, files)

	if *sweepOnceFlag {
		removed, err := documents.Sweep(cfg.SweepGrace)
		if err != nil {
			slog.Error("sweep failed", "error", err)
			os.Exit(1)
		}
		slog.Info("sweep completed", "removed", removed)
		return
	}

	slog.Info("sweep daemon starting",
		"data", cfg.DataDir, "interval", cfg.SweepInterval, "grace", cfg.SweepGrace)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if _, err := documents.Sweep(cfg.SweepGrace); err != nil {
				slog.Error("sweep failed", "error", err)
			}
		case <-quit:
			slog.Info("shutdown signal received")
			return
		}
	}
}
