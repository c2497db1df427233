// Command tlefetch refreshes the element-set snapshot once and exits 0 on
// success, 1 when the snapshot could not be written. Run it from cron.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/star/passwatch/internal/catalog"
	"github.com/star/passwatch/internal/refresher"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// Load .env file if it exists.
	godotenv.Load()

	cfg, err := refresher.LoadConfig()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Error("loading catalog", "path", cfg.CatalogPath, "error", err)
		os.Exit(1)
	}

	logger.Info("tlefetch config",
		"snapshot_path", cfg.SnapshotPath,
		"log_path", cfg.LogPath,
		"catalog_path", cfg.CatalogPath,
		"satellites", len(cat.Satellites),
		"concurrency", cfg.Concurrency,
		"timeout", cfg.Timeout.String(),
		"archive_dir", cfg.ArchiveDir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := refresher.New(cfg, cat, logger).Run(ctx); err != nil {
		logger.Error("refresh failed", "error", err)
		stop()
		os.Exit(1)
	}
}
