package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/crucial-sub/Stock-Lab-sub002/src/coalescer"
	"github.com/crucial-sub/Stock-Lab-sub002/src/config"
	"github.com/crucial-sub/Stock-Lab-sub002/src/feed"
	"github.com/crucial-sub/Stock-Lab-sub002/src/feed/kis"
	"github.com/crucial-sub/Stock-Lab-sub002/src/feed/replay"
	"github.com/crucial-sub/Stock-Lab-sub002/src/helpers"
	"github.com/crucial-sub/Stock-Lab-sub002/src/interfaces"
	"github.com/crucial-sub/Stock-Lab-sub002/src/logger"
	"github.com/crucial-sub/Stock-Lab-sub002/src/models"
	"github.com/crucial-sub/Stock-Lab-sub002/src/network"
	"github.com/crucial-sub/Stock-Lab-sub002/src/server"
	"github.com/crucial-sub/Stock-Lab-sub002/src/storage"
	"github.com/crucial-sub/Stock-Lab-sub002/src/utils"
)

// cleanupInterval spaces out retention deletes so they never ride the hot path.
const cleanupInterval = 1 * time.Hour

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.LogLevel, cfg.Name)

	// 1. Storage
	var db interfaces.IDatabase

	switch cfg.Storage.DBType {
	case "postgres":
		db, err = storage.NewPostgresDB(cfg.MConfig, appLogger)
	default:
		// Default to SQLite
		db, err = storage.NewAsyncSQLiteDB(cfg.MConfig, appLogger)
	}

	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	if err := db.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
	}
	defer db.Close()

	// 2. Feed sources
	var networkManager interfaces.INetworkManager = network.NewAsyncNetworkManager(cfg.MConfig, appLogger)

	if len(cfg.Feed.Sources) == 0 {
		appLogger.Critical("No feed sources configured")
	}

	sources := make([]interfaces.ITickSource, 0, len(cfg.Feed.Sources))
	for _, srcCfg := range cfg.Feed.Sources {
		switch srcCfg.Type {
		case "replay":
			sources = append(sources, replay.NewReplaySource(srcCfg, cfg.LogLevel))
		default:
			sources = append(sources, kis.NewKISSource(cfg.MConfig, srcCfg, networkManager))
		}
	}
	feedManager := feed.NewManager(sources, appLogger)

	// 3. Coalescer
	flushInterval := coalescer.DefaultFlushInterval
	if cfg.Coalescer.FlushIntervalMs > 0 {
		flushInterval = time.Duration(cfg.Coalescer.FlushIntervalMs) * time.Millisecond
	}
	coal := coalescer.NewCoalescer(flushInterval, cfg.Coalescer.MailboxSize, appLogger)

	// 4. History store
	maxPoints := cfg.Feed.HistoryPoints
	if maxPoints <= 0 {
		maxPoints = utils.CalculateMaxDataPoints(cfg.Storage.RetentionDays)
	}
	history := utils.NewHistoryStore(helpers.GetRecommendedMemoryLimit(), maxPoints)

	// 5. Warm up from persisted snapshots
	var srv interfaces.IDataExchanger = server.NewQuoteServer(cfg.MConfig, coal, history, appLogger)

	persisted, err := db.LoadLatestSnapshots()
	if err != nil {
		appLogger.Warning("Failed to load persisted snapshots: %v", err)
	} else if len(persisted) > 0 {
		for key, snap := range persisted {
			history.AddSnapshot(key, snap)
		}
		srv.SeedState(persisted)
		appLogger.Info("Warmed up %d instruments from storage", len(persisted))
	}

	// 6. Start Server
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	// 7. Main Loop (Push Model)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wrapWg := &sync.WaitGroup{}
	ticksChan := make(chan models.MTick, 1024)

	coal.Start(ctx)

	if err := feedManager.Start(ctx, ticksChan, wrapWg); err != nil {
		appLogger.Critical("Failed to start feed: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	errHandler := helpers.NewErrorHandler()
	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	appLogger.Info("Starting relay loop (Push Model)...")

	for {
		select {
		case tick, ok := <-ticksChan:
			if !ok {
				appLogger.Info("Feed closed tick channel.")
				return
			}
			coal.SubmitTick(tick)

		case event := <-coal.Events():
			switch event.Type {
			case coalescer.EventReady:
				appLogger.Info("Coalescer ready, accepting ticks")

			case coalescer.EventBatch:
				batch := event.Batch
				if _, err := errHandler.ExecuteWithRetry("save snapshots", func() (interface{}, error) {
					return nil, db.SaveSnapshots(batch)
				}, 3); err != nil {
					appLogger.Error("Failed to persist batch: %v", err)
				}
				history.AddBatch(event.Batch)
				srv.Broadcast(event.Batch, coal.Metrics())
			}

		case <-cleanupTicker.C:
			if err := db.CleanupOldData(); err != nil {
				appLogger.Error("Retention cleanup failed: %v", err)
			}

		case <-quit:
			appLogger.Info("Shutting down...")
			cancel()      // Signal feed and coalescer to stop
			feedManager.Stop()
			wrapWg.Wait() // Wait for sources to close
			return
		}
	}
}
