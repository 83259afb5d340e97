package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"time"

	"snapreceipt/internal/amqp"
	"snapreceipt/internal/assetcache"
	"snapreceipt/internal/cli"
	"snapreceipt/internal/config"
	apphttp "snapreceipt/internal/http"
	"snapreceipt/internal/log"
	"snapreceipt/internal/services"
	"snapreceipt/internal/session"
	"snapreceipt/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.NotifyShutdown(context.Background())
	defer stop()

	store, cleanup := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	// The SQLite mirror keeps a local copy of the hosted dataset so the app
	// still has data when the backend is unreachable.
	var mirror session.Mirror
	if cfg.DataBackend == "rest" && cfg.SQLiteDBPath != "" {
		repo, err := storage.NewRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to open SQLite mirror", log.FieldError, err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		mirror = repo
		logger.Info("SQLite mirror enabled", "path", cfg.SQLiteDBPath)
	}

	sess := session.New(store, mirror)
	loadCtx, loadCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := sess.Reload(loadCtx); err != nil {
		// Offline start: serve once a later reload succeeds.
		logger.Warn("Initial session load failed", log.FieldError, err)
	}
	loadCancel()

	var queue services.ScanPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Scan queue unavailable, captures will not be scanned", log.FieldError, err)
		} else {
			queue = client
			logger.Info("Scan queue connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	svc := services.NewReceiptService(store, sess, queue)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Service shutdown error", log.FieldError, err)
		}
	}()

	shell, shellClose := setupAssetGateway(ctx, logger, cfg)
	defer shellClose()

	srv := apphttp.NewServer(":"+cfg.Port, sess, svc, shell)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "backend", cfg.DataBackend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	}

	logger.Info("Server stopped gracefully")
}

// setupAssetGateway opens the shell cache and runs the install/activate
// lifecycle. A failed install is tolerated when a previous generation is
// already cached.
func setupAssetGateway(ctx context.Context, logger *log.Logger, cfg *config.Config) (http.Handler, func()) {
	if cfg.OriginURL == "" {
		return nil, func() {}
	}

	store, err := assetcache.OpenStore(cfg.AssetCachePath)
	if err != nil {
		logger.Error("Failed to open asset cache", log.FieldError, err, "path", cfg.AssetCachePath)
		os.Exit(1)
	}

	gw, err := assetcache.NewGateway(store, assetcache.Config{
		Origin:       cfg.OriginURL,
		Version:      cfg.AssetVersion,
		Manifest:     cfg.AssetManifest,
		DynamicHosts: dynamicHosts(cfg),
	})
	if err != nil {
		logger.Error("Failed to configure asset gateway", log.FieldError, err)
		os.Exit(1)
	}

	if err := gw.Install(ctx); err != nil {
		logger.Warn("Asset install failed, serving previously cached shell", log.FieldError, err)
	} else if err := gw.Activate(ctx); err != nil {
		logger.Warn("Asset activation failed", log.FieldError, err)
	} else {
		logger.Info("Asset cache ready", log.FieldVersion, cfg.AssetVersion, "assets", len(cfg.AssetManifest))
	}

	return gw, func() {
		gw.Wait()
		if err := store.Close(); err != nil {
			logger.Error("Asset cache close error", log.FieldError, err)
		}
	}
}

// dynamicHosts merges the configured bypass list with the backend API host,
// which must never be served from the shell cache.
func dynamicHosts(cfg *config.Config) []string {
	hosts := append([]string(nil), cfg.DynamicHosts...)
	if cfg.BackendURL != "" {
		if u, err := url.Parse(cfg.BackendURL); err == nil && u.Hostname() != "" {
			hosts = append(hosts, u.Hostname())
		}
	}
	return hosts
}
