package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jheath/partsbin/internal/auth"
	"github.com/jheath/partsbin/internal/config"
	"github.com/jheath/partsbin/internal/devices"
	"github.com/jheath/partsbin/internal/event"
	"github.com/jheath/partsbin/internal/inventory"
	"github.com/jheath/partsbin/internal/prefs"
	"github.com/jheath/partsbin/internal/server"
	"github.com/jheath/partsbin/internal/store"
	"github.com/jheath/partsbin/internal/version"
	"github.com/jheath/partsbin/internal/ws"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration (before logger, so log level/format can be configured).
	viperCfg, err := config.LoadServer(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("PartsBin server starting", zap.String("version", version.Short()))

	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	// Open database.
	dbPath := viperCfg.GetString("database.path")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		logger.Fatal("failed to create data directory", zap.Error(err))
	}
	db, err := store.Open(dbPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.CheckVersion(ctx, version.Version); err != nil {
		logger.Fatal("schema version check failed", zap.Error(err))
	}
	logger.Info("database initialized",
		zap.String("component", "database"),
		zap.String("path", dbPath),
	)

	// Shared event bus.
	bus := event.NewBus(logger.Named("event"))

	// Component stores (each runs its own migrations).
	deviceStore, err := devices.NewStore(ctx, db)
	if err != nil {
		logger.Fatal("failed to initialize device store", zap.Error(err))
	}
	prefStore, err := prefs.NewStore(ctx, db)
	if err != nil {
		logger.Fatal("failed to initialize preference store", zap.Error(err))
	}
	inventoryStore, err := inventory.NewStore(ctx, db)
	if err != nil {
		logger.Fatal("failed to initialize inventory store", zap.Error(err))
	}
	userStore, err := auth.NewStore(ctx, db)
	if err != nil {
		logger.Fatal("failed to initialize user store", zap.Error(err))
	}

	// Auth tokens.
	jwtSecret := viperCfg.GetString("auth.jwt_secret")
	if jwtSecret == "" {
		// Generate an ephemeral secret -- tokens won't survive restarts.
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			logger.Fatal("failed to generate JWT secret", zap.Error(err))
		}
		jwtSecret = hex.EncodeToString(b)
		logger.Info("using auto-generated JWT secret (set auth.jwt_secret in config to persist sessions across restarts)",
			zap.String("component", "auth"),
		)
	}
	accessTTL := viperCfg.GetDuration("auth.access_token_ttl")
	if accessTTL == 0 {
		accessTTL = 12 * time.Hour
	}
	tokens := auth.NewTokenService([]byte(jwtSecret), accessTTL)
	logger.Info("auth service initialized",
		zap.String("component", "auth"),
		zap.Duration("access_token_ttl", accessTTL),
	)

	// API handlers.
	deviceHandler := devices.NewHandler(deviceStore, bus, logger.Named("devices"))
	prefHandler := prefs.NewHandler(prefStore, bus, auth.RequireAdmin(tokens), logger.Named("prefs"))
	inventoryHandler := inventory.NewHandler(inventoryStore, bus, logger.Named("inventory"))
	authHandler := auth.NewHandler(userStore, tokens, logger.Named("auth"))
	wsHandler := ws.NewHandler(bus, func(token string) (string, error) {
		claims, err := tokens.ValidateAccessToken(token)
		if err != nil {
			return "", err
		}
		return claims.Username, nil
	}, logger.Named("ws"))

	// HTTP server.
	addr := viperCfg.GetString("server.host") + ":" + viperCfg.GetString("server.port")
	readyCheck := server.ReadinessChecker(func(ctx context.Context) error {
		return db.DB().PingContext(ctx)
	})
	srv := server.New(addr, logger.Named("server"), readyCheck, auth.OptionalAuth(tokens),
		deviceHandler, prefHandler, inventoryHandler, authHandler, wsHandler)

	// Periodic pruning of preference history and stale devices per
	// retention config.
	if retention := viperCfg.GetDuration("prefs.history_retention"); retention > 0 {
		go prunePrefHistory(ctx, prefStore, retention, logger.Named("prefs"))
	}
	if retention := viperCfg.GetDuration("devices.stale_retention"); retention > 0 {
		go pruneStaleDevices(ctx, deviceStore, retention, logger.Named("devices"))
	}

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()
	logger.Info("PartsBin server ready", zap.String("addr", addr))

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	logger.Info("PartsBin server stopped")
}

// prunePrefHistory trims old theme-change history once a day.
func prunePrefHistory(ctx context.Context, store *prefs.Store, retention time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PruneHistory(ctx, retention)
			if err != nil {
				logger.Warn("preference history prune failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("preference history pruned", zap.Int64("rows", n))
			}
		}
	}
}

// pruneStaleDevices drops device identities with no heartbeat inside the
// retention window. A pruned device re-registers by fingerprint on its next
// resolution, keeping the same fingerprint-to-identity mapping fresh.
func pruneStaleDevices(ctx context.Context, store *devices.Store, retention time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PruneStale(ctx, retention)
			if err != nil {
				logger.Warn("stale device prune failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("stale devices pruned", zap.Int64("rows", n))
			}
		}
	}
}
