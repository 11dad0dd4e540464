package replay

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/crucial-sub/Stock-Lab-sub002/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSource(t *testing.T, instruments []string, perSec int) *ReplaySource {
	t.Helper()
	return NewReplaySource(models.MSourceConfig{
		Name:           "replay-test",
		Type:           "replay",
		Instruments:    instruments,
		TicksPerSecond: perSec,
	}, "ERROR")
}

func TestReplaySourceEmitsTicksForAllInstruments(t *testing.T) {
	src := newTestSource(t, []string{"005930", "000660"}, 200)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan models.MTick, 64)
	var wg sync.WaitGroup
	require.NoError(t, src.Start(ctx, out, &wg))

	seen := make(map[string]int)
	deadline := time.After(3 * time.Second)
	for len(seen) < 2 {
		select {
		case tick := <-out:
			seen[tick.InstrumentKey]++

			// Every emitted field must parse cleanly downstream.
			_, err := strconv.ParseFloat(tick.Price, 64)
			assert.NoError(t, err)
			_, err = strconv.ParseFloat(tick.Volume, 64)
			assert.NoError(t, err)
			assert.NotEmpty(t, tick.SourceTimestamp)
		case <-deadline:
			t.Fatalf("timed out, ticks seen so far: %v", seen)
		}
	}

	require.NoError(t, src.Stop())
	wg.Wait()
}

func TestReplaySourceStartStopLifecycle(t *testing.T) {
	src := newTestSource(t, []string{"005930"}, 100)

	out := make(chan models.MTick, 16)
	var wg sync.WaitGroup

	require.NoError(t, src.Start(context.Background(), out, &wg))
	assert.Error(t, src.Start(context.Background(), out, &wg), "double start must fail")

	require.NoError(t, src.Stop())
	wg.Wait()
	assert.Error(t, src.Stop(), "double stop must fail")
}

func TestReplaySourceUpdateInstruments(t *testing.T) {
	src := newTestSource(t, []string{"005930"}, 200)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan models.MTick, 64)
	var wg sync.WaitGroup
	require.NoError(t, src.Start(ctx, out, &wg))

	require.NoError(t, src.UpdateInstruments([]string{"035420"}))

	// After the swap the stream must converge on the new key.
	deadline := time.After(3 * time.Second)
	for {
		select {
		case tick := <-out:
			if tick.InstrumentKey == "035420" {
				require.NoError(t, src.Stop())
				wg.Wait()
				return
			}
		case <-deadline:
			t.Fatal("never saw a tick for the updated instrument")
		}
	}
}
