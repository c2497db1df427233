package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/star/passwatch/internal/api"
	"github.com/star/passwatch/internal/auth"
	"github.com/star/passwatch/internal/metrics"
	"github.com/star/passwatch/internal/passes"
	"github.com/star/passwatch/internal/snapshot"
	"github.com/star/passwatch/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// Load .env file if it exists.
	godotenv.Load()

	addr := loadAddr()

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	snapCfg := loadSnapshotConfig(logger)
	store := snapshot.NewStore(snapCfg.Path)
	if _, err := store.Reload(); err != nil {
		logger.Info("no snapshot loaded, serving without element-set data", "path", snapCfg.Path, "error", err)
	} else {
		cur := store.Get()
		logger.Info("loaded snapshot",
			"path", snapCfg.Path,
			"satellites", len(cur.Snapshot.Satellites),
			"last_updated", cur.Snapshot.LastUpdated.Format(time.RFC3339),
		)
	}

	passCfg := loadPassConfig(logger)
	svc := passes.NewService(passCfg, logger)

	srv := api.NewServer(api.Options{
		Addr:       addr,
		Auth:       authCfg,
		TrustProxy: loadTrustProxy(logger),
		Passes:     svc,
		Snapshots:  store,
		Static:     web.Content,
	}, logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Pick up snapshots written by the refresher and keep the age gauge current.
	go func() {
		ticker := time.NewTicker(snapCfg.ReloadInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				changed, err := store.Reload()
				switch {
				case err != nil:
					logger.Warn("snapshot reload failed", "path", snapCfg.Path, "error", err)
				case changed:
					logger.Info("snapshot reloaded", "satellites", len(store.Get().Snapshot.Satellites))
				}
				if age := store.AgeSeconds(); age >= 0 {
					metrics.SetSnapshotAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// loadAddr honours PASSWATCH_HTTP_ADDR, then a bare PORT as set by hosting
// platforms, then :8000.
func loadAddr() string {
	if addr := os.Getenv("PASSWATCH_HTTP_ADDR"); addr != "" {
		return addr
	}
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8000"
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("PASSWATCH_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("PASSWATCH_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("PASSWATCH_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("PASSWATCH_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

type snapshotConfig struct {
	Path           string
	ReloadInterval time.Duration
}

func loadSnapshotConfig(logger *slog.Logger) snapshotConfig {
	cfg := snapshotConfig{
		Path:           "static/tle_data.json",
		ReloadInterval: 30 * time.Second,
	}

	if v := os.Getenv("PASSWATCH_SNAPSHOT_PATH"); v != "" {
		cfg.Path = v
	}

	if v := os.Getenv("PASSWATCH_SNAPSHOT_RELOAD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid PASSWATCH_SNAPSHOT_RELOAD value, using default", "value", v, "default", 30)
		} else {
			cfg.ReloadInterval = time.Duration(n) * time.Second
		}
	}

	logger.Info("snapshot config",
		"path", cfg.Path,
		"reload_seconds", cfg.ReloadInterval.Seconds(),
	)

	return cfg
}

func loadPassConfig(logger *slog.Logger) passes.Config {
	cfg := passes.Config{
		Horizon: passes.DefaultHorizon,
		Workers: runtime.NumCPU(),
	}

	if v := os.Getenv("PASSWATCH_PASS_HORIZON"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid PASSWATCH_PASS_HORIZON value, using default", "value", v, "default", 86400)
		} else {
			cfg.Horizon = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("PASSWATCH_PASS_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid PASSWATCH_PASS_WORKERS value, using default", "value", v, "default", cfg.Workers)
		} else {
			cfg.Workers = n
		}
	}

	logger.Info("pass config",
		"horizon_seconds", cfg.Horizon.Seconds(),
		"workers", cfg.Workers,
	)

	return cfg
}

func loadTrustProxy(logger *slog.Logger) bool {
	v := os.Getenv("PASSWATCH_TRUST_PROXY")
	if v == "" {
		return false
	}
	trust, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid PASSWATCH_TRUST_PROXY value, defaulting to false", "value", v)
		return false
	}
	return trust
}
