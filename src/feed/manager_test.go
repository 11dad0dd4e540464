package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/crucial-sub/Stock-Lab-sub002/src/feed/replay"
	"github.com/crucial-sub/Stock-Lab-sub002/src/interfaces"
	"github.com/crucial-sub/Stock-Lab-sub002/src/logger"
	"github.com/crucial-sub/Stock-Lab-sub002/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitReleased fails the test if the WaitGroup does not release within d.
func waitReleased(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("WaitGroup still held after all sources stopped")
	}
}

func newReplay(name string, instruments []string) interfaces.ITickSource {
	return replay.NewReplaySource(models.MSourceConfig{
		Name:           name,
		Type:           "replay",
		Instruments:    instruments,
		TicksPerSecond: 200,
	}, "ERROR")
}

func TestManagerStartStop(t *testing.T) {
	mgr := NewManager([]interfaces.ITickSource{
		newReplay("a", []string{"005930"}),
		newReplay("b", []string{"000660"}),
	}, logger.NewLogger("ERROR", "FeedTest"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan models.MTick, 256)
	var wg sync.WaitGroup
	require.NoError(t, mgr.Start(ctx, out, &wg))
	assert.Error(t, mgr.Start(ctx, out, &wg), "double start must fail")

	// Ticks from both sources land on the shared channel.
	seen := make(map[string]bool)
	deadline := time.After(3 * time.Second)
	for len(seen) < 2 {
		select {
		case tick := <-out:
			seen[tick.InstrumentKey] = true
		case <-deadline:
			t.Fatalf("timed out, seen: %v", seen)
		}
	}

	require.NoError(t, mgr.Stop())
	waitReleased(t, &wg, 3*time.Second)
	assert.NoError(t, mgr.Stop(), "stop is idempotent")
}

// The manager must not add to the WaitGroup itself: sources already pair
// wg.Add in Start with wg.Done in their run loops, and a second Add with no
// matching Done would hold the counter forever and hang shutdown.
func TestManagerStopReleasesWaitGroup(t *testing.T) {
	mgr := NewManager([]interfaces.ITickSource{
		newReplay("a", []string{"005930"}),
	}, logger.NewLogger("ERROR", "FeedTest"))

	out := make(chan models.MTick, 64)
	var wg sync.WaitGroup
	require.NoError(t, mgr.Start(context.Background(), out, &wg))

	require.NoError(t, mgr.Stop())
	waitReleased(t, &wg, 3*time.Second)
}

// Same property for a source added while the manager is running.
func TestManagerAddSourceWhileRunningReleasesWaitGroup(t *testing.T) {
	mgr := NewManager(nil, logger.NewLogger("ERROR", "FeedTest"))

	out := make(chan models.MTick, 64)
	var wg sync.WaitGroup
	require.NoError(t, mgr.Start(context.Background(), out, &wg))

	require.NoError(t, mgr.AddSource(newReplay("late", []string{"000660"})))

	require.NoError(t, mgr.Stop())
	waitReleased(t, &wg, 3*time.Second)
}

func TestManagerAddRemoveSource(t *testing.T) {
	mgr := NewManager(nil, logger.NewLogger("ERROR", "FeedTest"))

	require.NoError(t, mgr.AddSource(newReplay("a", []string{"005930"})))
	assert.Error(t, mgr.AddSource(newReplay("a", []string{"005930"})), "duplicate name must fail")

	src, err := mgr.GetSource("a")
	require.NoError(t, err)
	assert.Equal(t, "a", src.Name())

	assert.Len(t, mgr.GetAllSources(), 1)

	require.NoError(t, mgr.RemoveSource("a"))
	assert.Error(t, mgr.RemoveSource("a"))
	assert.Empty(t, mgr.GetAllSources())
}

func TestManagerUpdateInstruments(t *testing.T) {
	mgr := NewManager([]interfaces.ITickSource{
		newReplay("a", []string{"005930"}),
	}, logger.NewLogger("ERROR", "FeedTest"))

	require.NoError(t, mgr.UpdateInstruments([]string{"035420", "005380"}))
}
