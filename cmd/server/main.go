package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/driftsec/phishdeck/internal/api"
	"github.com/driftsec/phishdeck/internal/config"
	"github.com/driftsec/phishdeck/internal/pkg/logger"
	"github.com/driftsec/phishdeck/internal/store/conn"
	"github.com/driftsec/phishdeck/internal/store/dynamo"
	"github.com/driftsec/phishdeck/internal/store/postgres"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const defaultConfigPath = "config/config.yml"

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return defaultConfigPath
}

// remoteDescriptor builds the probe target for the configured remote
// backend, or nil when none is configured.
func remoteDescriptor(cfg *config.Config) *conn.Descriptor {
	switch cfg.Database.RemoteKind {
	case "dynamo":
		return &conn.Descriptor{
			Kind: conn.KindDynamo,
			Dynamo: dynamo.Options{
				Table:           cfg.Dynamo.Table,
				Region:          cfg.Dynamo.Region,
				Endpoint:        cfg.Dynamo.Endpoint,
				AccessKeyID:     cfg.Dynamo.AccessKeyID,
				SecretAccessKey: cfg.Dynamo.SecretAccessKey,
			},
		}
	default:
		if cfg.Database.RemoteURL == "" {
			return nil
		}
		return &conn.Descriptor{Kind: conn.KindPostgres, DSN: cfg.Database.RemoteURL}
	}
}

func main() {
	path := configPath()
	cfg, err := config.LoadFromEnv(path)
	if err != nil {
		logger.Error("failed to load config", "path", path, "error", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))

	manager := conn.NewManager(conn.Settings{
		Remote: remoteDescriptor(cfg),
		Local:  conn.Descriptor{Kind: conn.KindPostgres, DSN: cfg.Database.LocalDSN()},
		Seed: postgres.SeedOptions{
			AdminEmail:    cfg.Admin.Email,
			AdminPassword: cfg.Admin.Password,
		},
	})
	harness := &conn.Harness{ConfigPath: path, Manager: manager}

	// Warm the backend up front so the first request does not pay for the
	// probe sequence. A fatal outcome is logged but the server still comes
	// up: the admin routes stay usable for diagnosis and restore.
	warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := manager.Get(warmCtx); err != nil {
		logger.Error("storage backend unavailable at startup", "error", err)
	}
	warmCancel()

	server := api.NewServer(manager, harness, cfg.Admin.Token)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := cfg.Server.Addr()
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", "error", err)
	}

	manager.Reset()
	logger.Info("server stopped")
}
