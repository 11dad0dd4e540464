package main

import (
	"context"
	"flag"
	"fmt"
	"sync"
	"time"

	"github.com/crucial-sub/Stock-Lab-sub002/src/coalescer"
	"github.com/crucial-sub/Stock-Lab-sub002/src/feed/replay"
	"github.com/crucial-sub/Stock-Lab-sub002/src/logger"
	"github.com/crucial-sub/Stock-Lab-sub002/src/models"
)

// Smoke runner: drives the coalescer with synthetic ticks and prints every
// flushed batch. No server, no storage, no live gateway needed.

func main() {
	duration := flag.Duration("duration", 5*time.Second, "how long to run")
	flushMs := flag.Int("flush-ms", 100, "flush interval in milliseconds")
	perSec := flag.Int("ticks-per-sec", 200, "synthetic tick rate")
	flag.Parse()

	appLogger := logger.NewLogger("INFO", "SmokeRunner")

	source := replay.NewReplaySource(models.MSourceConfig{
		Name:           "replay-smoke",
		Type:           "replay",
		Instruments:    []string{"005930", "000660", "035420", "005380"},
		TicksPerSecond: *perSec,
	}, "INFO")

	coal := coalescer.NewCoalescer(time.Duration(*flushMs)*time.Millisecond, 0, appLogger)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	coal.Start(ctx)

	ticksChan := make(chan models.MTick, 1024)
	var wg sync.WaitGroup
	if err := source.Start(ctx, ticksChan, &wg); err != nil {
		appLogger.Critical("Failed to start replay source: %v", err)
	}

	done := time.After(*duration)
	batches := 0

	for {
		select {
		case tick := <-ticksChan:
			coal.SubmitTick(tick)

		case event := <-coal.Events():
			switch event.Type {
			case coalescer.EventReady:
				fmt.Println("READY")

			case coalescer.EventBatch:
				batches++
				fmt.Printf("BATCH %d @ %d: %d instruments\n",
					batches, event.Batch.FlushedAt, len(event.Batch.Snapshots))
				for key, snap := range event.Batch.Snapshots {
					fmt.Printf("  %s price=%s change=%s vol=%.0f value=%.0f\n",
						key, snap.Price, snap.ChangeRate, snap.Volume, snap.TradingValue)
				}
			}

		case <-done:
			cancel()
			source.Stop()
			wg.Wait()

			m := coal.Metrics()
			fmt.Printf("DONE: %d batches, %d ticks coalesced, %d batches dropped\n",
				batches, m.TicksCoalesced, m.BatchesDropped)
			return
		}
	}
}
