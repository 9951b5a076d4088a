package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/petrel-labs/liveboard/internal/analysis"
	appcfg "github.com/petrel-labs/liveboard/internal/config"
	"github.com/petrel-labs/liveboard/internal/httpapi"
	"github.com/petrel-labs/liveboard/internal/live"
	"github.com/petrel-labs/liveboard/internal/obslog"
	"github.com/petrel-labs/liveboard/internal/session"
	"github.com/petrel-labs/liveboard/internal/store"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	snapshots, err := store.NewRedisStore(cfg.RedisURL, cfg.SnapshotTTL)
	if err != nil {
		logger.Fatal("redis init failed", zap.Error(err))
	}
	defer snapshots.Close()

	var archive session.Archiver
	if cfg.DatabaseURL != "" {
		pg, err := store.NewArchive(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("archive init failed", zap.Error(err))
		}
		defer pg.Close()
		schemaCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := pg.EnsureSchema(schemaCtx); err != nil {
			cancel()
			logger.Fatal("archive schema failed", zap.Error(err))
		}
		cancel()
		archive = pg
	} else {
		logger.Info("archive disabled, DATABASE_URL not set")
	}

	hub := live.NewHub(cfg.HubQueueSize)
	coord := session.NewCoordinator(snapshots, hub, archive)

	var eng analysis.Engine = analysis.MaterialEngine{}
	if cfg.StockfishPath != "" {
		sf, err := analysis.NewStockfishEngine(cfg.StockfishPath, cfg.EngineThreads, cfg.EngineHashMB, cfg.EnginePoolSize)
		if err != nil {
			logger.Fatal("stockfish init failed", zap.Error(err))
		}
		defer sf.Close()
		eng = sf
		logger.Info("analysis engine: stockfish", zap.String("path", cfg.StockfishPath))
	} else {
		logger.Info("analysis engine: built-in material evaluator")
	}
	analyzer := analysis.NewManager(eng, cfg.AnalysisTimeout)

	api := httpapi.NewServer(coord, analyzer)
	push := httpapi.NewPushServer(coord)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- api.Listen(cfg.HTTPAddr)
	}()
	go func() {
		logger.Info("websocket listening", zap.String("addr", cfg.WSAddr))
		errCh <- push.Listen(cfg.WSAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("listener failed", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := api.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := push.Shutdown(ctx); err != nil {
		logger.Warn("websocket shutdown", zap.Error(err))
	}
	logger.Info("bye")
}
