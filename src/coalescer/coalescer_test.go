package coalescer

import (
	"context"
	"testing"
	"time"

	"github.com/crucial-sub/Stock-Lab-sub002/src/logger"
	"github.com/crucial-sub/Stock-Lab-sub002/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func newTestCoalescer(t *testing.T, interval time.Duration) (*Coalescer, context.CancelFunc) {
	t.Helper()
	c := NewCoalescer(interval, 0, logger.NewLogger("ERROR", "coalescer-test"))
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	t.Cleanup(cancel)
	return c, cancel
}

// requireReady consumes the one-time READY event that precedes any batch.
func requireReady(t *testing.T, c *Coalescer) {
	t.Helper()
	select {
	case e := <-c.Events():
		require.Equal(t, EventReady, e.Type)
		require.Nil(t, e.Batch)
	case <-time.After(2 * time.Second):
		t.Fatal("no READY event at startup")
	}
}

// nextBatch waits for the next BATCH_UPDATE or fails after timeout.
func nextBatch(t *testing.T, c *Coalescer, timeout time.Duration) *models.MBatchUpdate {
	t.Helper()
	select {
	case e := <-c.Events():
		require.Equal(t, EventBatch, e.Type)
		require.NotNil(t, e.Batch)
		return e.Batch
	case <-time.After(timeout):
		t.Fatal("no batch within timeout")
		return nil
	}
}

// requireNoEvent asserts silence on the event channel for the given window.
func requireNoEvent(t *testing.T, c *Coalescer, window time.Duration) {
	t.Helper()
	select {
	case e := <-c.Events():
		t.Fatalf("unexpected event %s during idle window", e.Type)
	case <-time.After(window):
	}
}

// -----------------------------------------------------------------------------
// Startup
// -----------------------------------------------------------------------------

func TestReadySignaledOnceAtStartup(t *testing.T) {
	c, _ := newTestCoalescer(t, 20*time.Millisecond)
	requireReady(t, c)

	c.SubmitTick(models.MTick{InstrumentKey: "005930", Price: "70000", Volume: "100", SourceTimestamp: "T1"})
	batch := nextBatch(t, c, time.Second)
	assert.Len(t, batch.Snapshots, 1)
}

// -----------------------------------------------------------------------------
// Property 1: last-received-wins, regardless of source timestamps
// -----------------------------------------------------------------------------

func TestLastReceivedWins(t *testing.T) {
	c, _ := newTestCoalescer(t, 30*time.Millisecond)
	requireReady(t, c)

	// T0 < T1 but the T0 tick arrives second: it must still win.
	c.SubmitTick(models.MTick{InstrumentKey: "005930", Price: "70000", ChangeRate: "1.25", Volume: "100", SourceTimestamp: "T1"})
	c.SubmitTick(models.MTick{InstrumentKey: "005930", Price: "69000", ChangeRate: "-0.18", Volume: "50", SourceTimestamp: "T0"})

	batch := nextBatch(t, c, time.Second)
	require.Len(t, batch.Snapshots, 1)

	snap := batch.Snapshots["005930"]
	assert.Equal(t, "69000", snap.Price)
	assert.Equal(t, "-0.18", snap.ChangeRate)
	assert.Equal(t, 50.0, snap.Volume)
	assert.Equal(t, 3_450_000.0, snap.TradingValue)
	assert.Equal(t, "T0", snap.LastUpdate)
}

// -----------------------------------------------------------------------------
// Property 2: idle intervals are silent but the timer keeps running
// -----------------------------------------------------------------------------

func TestSilentEmptyFlush(t *testing.T) {
	c, _ := newTestCoalescer(t, 25*time.Millisecond)
	requireReady(t, c)

	// Several flush intervals pass with nothing pending: no emission.
	requireNoEvent(t, c, 120*time.Millisecond)

	// The schedule must have survived the idle stretch.
	c.SubmitTick(models.MTick{InstrumentKey: "000660", Price: "180000", Volume: "10", SourceTimestamp: "T2"})
	batch := nextBatch(t, c, time.Second)
	assert.Contains(t, batch.Snapshots, "000660")
}

// -----------------------------------------------------------------------------
// Property 3: N keys between two flushes yield one batch with N entries
// -----------------------------------------------------------------------------

func TestMultiKeyBatching(t *testing.T) {
	c, _ := newTestCoalescer(t, 50*time.Millisecond)
	requireReady(t, c)

	keys := []string{"005930", "000660", "035420", "207940"}
	for i, key := range keys {
		c.SubmitTick(models.MTick{InstrumentKey: key, Price: "1000", Volume: "1", SourceTimestamp: "T0"})
		// Second tick for half the keys: still one entry each.
		if i%2 == 0 {
			c.SubmitTick(models.MTick{InstrumentKey: key, Price: "2000", Volume: "2", SourceTimestamp: "T1"})
		}
	}

	batch := nextBatch(t, c, time.Second)
	require.Len(t, batch.Snapshots, len(keys))
	assert.Equal(t, "2000", batch.Snapshots["005930"].Price)
	assert.Equal(t, "1000", batch.Snapshots["000660"].Price)
	assert.Positive(t, batch.FlushedAt)
}

// -----------------------------------------------------------------------------
// Property 4: Clear discards pending state without emission
// -----------------------------------------------------------------------------

func TestClearDiscardsPending(t *testing.T) {
	c, _ := newTestCoalescer(t, 60*time.Millisecond)
	requireReady(t, c)

	c.SubmitTick(models.MTick{InstrumentKey: "005930", Price: "70000", Volume: "100", SourceTimestamp: "T1"})
	c.Clear()

	// The interval where the tick would have flushed stays silent.
	requireNoEvent(t, c, 150*time.Millisecond)

	// New ticks after the clear flush normally.
	c.SubmitTick(models.MTick{InstrumentKey: "005930", Price: "70500", Volume: "20", SourceTimestamp: "T2"})
	batch := nextBatch(t, c, time.Second)
	assert.Equal(t, "70500", batch.Snapshots["005930"].Price)
}

// -----------------------------------------------------------------------------
// Property 5: interval reconfiguration reschedules the pending wait
// -----------------------------------------------------------------------------

func TestSetFlushIntervalReschedules(t *testing.T) {
	c, _ := newTestCoalescer(t, 5*time.Second)
	requireReady(t, c)

	c.SubmitTick(models.MTick{InstrumentKey: "005930", Price: "70000", Volume: "100", SourceTimestamp: "T1"})

	// With the original 5s cadence this batch would be far away. After the
	// reconfiguration it must arrive within the new duration (plus slack).
	start := time.Now()
	c.SetFlushInterval(30 * time.Millisecond)
	batch := nextBatch(t, c, time.Second)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Contains(t, batch.Snapshots, "005930")

	// The following cadence follows the new interval, not the original.
	c.SubmitTick(models.MTick{InstrumentKey: "005930", Price: "70100", Volume: "5", SourceTimestamp: "T2"})
	nextBatch(t, c, time.Second)
}

func TestNonPositiveIntervalClamped(t *testing.T) {
	c, _ := newTestCoalescer(t, -1)

	requireReady(t, c)
	c.SubmitTick(models.MTick{InstrumentKey: "005930", Price: "1", Volume: "1", SourceTimestamp: "T0"})
	nextBatch(t, c, time.Second)

	// Reconfiguring to zero must not stall the loop either.
	c.SetFlushInterval(0)
	c.SubmitTick(models.MTick{InstrumentKey: "005930", Price: "2", Volume: "1", SourceTimestamp: "T1"})
	nextBatch(t, c, time.Second)
}

// -----------------------------------------------------------------------------
// Property 6: defensive parsing and idempotent resubmission
// -----------------------------------------------------------------------------

func TestDefensiveParsingAndIdempotence(t *testing.T) {
	c, _ := newTestCoalescer(t, 40*time.Millisecond)
	requireReady(t, c)

	tick := models.MTick{InstrumentKey: "005930", Price: "", ChangeRate: "abc", Volume: "100", SourceTimestamp: "T1"}
	c.SubmitTick(tick)
	c.SubmitTick(tick) // identical resubmission must not change the batch

	batch := nextBatch(t, c, time.Second)
	require.Len(t, batch.Snapshots, 1)

	snap := batch.Snapshots["005930"]
	assert.Equal(t, "", snap.Price)
	assert.Equal(t, 100.0, snap.Volume)
	assert.Equal(t, 0.0, snap.TradingValue) // never NaN
	assert.Equal(t, "T1", snap.LastUpdate)
}

func TestTickWithoutKeyIgnored(t *testing.T) {
	c, _ := newTestCoalescer(t, 25*time.Millisecond)
	requireReady(t, c)

	c.SubmitTick(models.MTick{Price: "70000", Volume: "100", SourceTimestamp: "T1"})
	requireNoEvent(t, c, 100*time.Millisecond)
}

// -----------------------------------------------------------------------------
// Metrics
// -----------------------------------------------------------------------------

func TestMetricsCounters(t *testing.T) {
	c, _ := newTestCoalescer(t, 100*time.Millisecond)
	requireReady(t, c)

	c.SubmitTick(models.MTick{InstrumentKey: "005930", Price: "1", Volume: "1", SourceTimestamp: "T0"})
	c.SubmitTick(models.MTick{InstrumentKey: "000660", Price: "2", Volume: "1", SourceTimestamp: "T0"})
	nextBatch(t, c, time.Second)

	m := c.Metrics()
	assert.Equal(t, uint64(2), m.TicksCoalesced)
	assert.Equal(t, uint64(1), m.BatchesEmitted)
	assert.Positive(t, m.LastFlushMs)
}

// -----------------------------------------------------------------------------
// ParseNumeric
// -----------------------------------------------------------------------------

func TestParseNumeric(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"70000", 70000},
		{"-0.18", -0.18},
		{" 42.5 ", 42.5},
		{"1,234,500", 1234500},
		{"", 0},
		{"abc", 0},
		{"NaN", 0},
		{"+Inf", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseNumeric(tc.in), "input %q", tc.in)
	}
}
