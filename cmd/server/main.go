package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Sczr0/Next-Phi-Backend/internal/api"
	"github.com/Sczr0/Next-Phi-Backend/internal/authclient"
	"github.com/Sczr0/Next-Phi-Backend/internal/catalog"
	"github.com/Sczr0/Next-Phi-Backend/internal/config"
	"github.com/Sczr0/Next-Phi-Backend/internal/handler"
	"github.com/Sczr0/Next-Phi-Backend/internal/logger"
	"github.com/Sczr0/Next-Phi-Backend/internal/render"
	"github.com/Sczr0/Next-Phi-Backend/internal/saveprovider"
	"github.com/Sczr0/Next-Phi-Backend/internal/stats"
)

func main() {
	// Charger .env si présent
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Could not load config: %v", err)
		os.Exit(1)
	}

	cat, err := catalog.Load(cfg.Resources.InfoPath)
	if err != nil {
		logger.Error("Could not load song catalog: %v", err)
		os.Exit(1)
	}
	logger.Success("Catalog loaded: %d songs", cat.Len())

	key, err := cfg.SaveKey()
	if err != nil {
		logger.Error("Invalid save key: %v", err)
		os.Exit(1)
	}
	iv, err := cfg.SaveIV()
	if err != nil {
		logger.Error("Invalid save IV: %v", err)
		os.Exit(1)
	}
	provider := saveprovider.NewProvider(saveprovider.NewClient(cfg.TapTap.DefaultVersion), key, iv)
	auth := authclient.NewService(authclient.NewClient(cfg.TapTap.DefaultVersion))

	illFolder := filepath.Join(cfg.Resources.BasePath, cfg.Resources.IllustrationFolder)
	renderer := render.NewRenderer(cfg.Image, cfg.Watermark, illFolder)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store *stats.Store
	var recorder *stats.Recorder
	var archiver *stats.Archiver
	if cfg.Stats.Enabled {
		store, err = stats.Open(cfg.Stats, cfg.Leaderboard)
		if err != nil {
			logger.Error("Could not open stats storage: %v", err)
			os.Exit(1)
		}
		defer store.Close()

		recorder = stats.NewRecorder(store)
		go recorder.Run(ctx)

		if cfg.Stats.Archive.Parquet {
			archiver = stats.NewArchiver(store, cfg.Stats.Archive)
			if err := archiver.Start(cfg.Stats.DailyAggregateTime); err != nil {
				logger.Warning("Archive scheduler not started: %v", err)
				archiver = nil
			}
		}
	} else {
		logger.Info("Statistics storage disabled")
	}

	go auth.RunSweeper(ctx, time.Minute)

	handler.Init(&handler.App{
		Cfg:      cfg,
		Catalog:  cat,
		Provider: provider,
		Auth:     auth,
		Renderer: renderer,
		Store:    store,
		Archiver: archiver,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.SetupRouter(cfg, recorder),
	}

	if cfg.Shutdown.Watchdog.Enabled {
		go runWatchdog(ctx, cfg.Shutdown.Watchdog)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Success("Server starting on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed: %v", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	if cfg.Shutdown.ForceQuit {
		delay := time.Duration(cfg.Shutdown.ForceDelaySecs) * time.Second
		timer := time.AfterFunc(time.Duration(cfg.Shutdown.TimeoutSecs)*time.Second+delay, func() {
			logger.Error("Shutdown deadline exceeded, forcing exit")
			os.Exit(1)
		})
		defer timer.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Shutdown.TimeoutSecs)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warning("Graceful shutdown incomplete: %v", err)
	}

	if archiver != nil {
		archiver.Stop()
	}
	if recorder != nil {
		recorder.Wait()
	}
	logger.Success("Server stopped")
}

// runWatchdog vérifie périodiquement que le runtime répond. Un tick en
// retard au-delà du timeout signale un blocage du processus.
func runWatchdog(ctx context.Context, cfg config.WatchdogConfig) {
	interval := time.Duration(cfg.IntervalSecs) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= interval {
		timeout = interval * 3
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if lag := now.Sub(last) - interval; lag > timeout {
				logger.Warning("Watchdog: event loop stalled for %v", lag)
			}
			last = now
		}
	}
}
