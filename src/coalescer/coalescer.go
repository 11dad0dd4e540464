package coalescer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/crucial-sub/Stock-Lab-sub002/src/logger"
	"github.com/crucial-sub/Stock-Lab-sub002/src/models"
)

// -----------------------------------------------------------------------------
// Coalescer decouples the arrival rate of upstream price ticks from the rate
// at which the delivery layer is notified. Same-key ticks are coalesced into
// one snapshot per flush interval, last-received-wins (NOT last-timestamp-
// wins: an older SourceTimestamp arriving later still overwrites).
//
// All inbound messages (ticks and control) are serialized through a single
// mailbox channel and handled by one goroutine that exclusively owns the
// pending map. Consumers only ever see maps that the loop has handed off.
// -----------------------------------------------------------------------------

const (
	// DefaultFlushInterval is used when the config leaves the interval unset.
	DefaultFlushInterval = 100 * time.Millisecond

	// MinFlushInterval is the floor applied to non-positive or sub-millisecond
	// intervals instead of rejecting them.
	MinFlushInterval = time.Millisecond

	defaultMailboxSize = 4096
	eventBufferSize    = 64
)

// -----------------------------------------------------------------------------
// Events
// -----------------------------------------------------------------------------

type EventType string

const (
	// EventReady is emitted exactly once, before any batch, so the consumer
	// can tell "alive, no data yet" apart from "not started".
	EventReady EventType = "READY"

	// EventBatch carries the snapshots accumulated since the previous flush.
	EventBatch EventType = "BATCH_UPDATE"
)

type Event struct {
	Type  EventType
	Batch *models.MBatchUpdate // nil for READY
}

// -----------------------------------------------------------------------------
// Mailbox messages
// -----------------------------------------------------------------------------

type msgKind int

const (
	msgTick msgKind = iota
	msgSetInterval
	msgClear
)

type message struct {
	kind     msgKind
	tick     models.MTick
	interval time.Duration
}

// -----------------------------------------------------------------------------
// Coalescer
// -----------------------------------------------------------------------------

type Coalescer struct {
	Logger *logger.Logger

	mailbox chan message
	events  chan Event
	pending map[string]models.MSnapshot

	interval time.Duration
	started  atomic.Bool

	ticksCoalesced atomic.Uint64
	ticksDropped   atomic.Uint64
	batchesEmitted atomic.Uint64
	batchesDropped atomic.Uint64
	lastFlushMs    atomic.Int64
}

// -----------------------------------------------------------------------------

// NewCoalescer creates a coalescer flushing at the given interval. A zero or
// negative interval is clamped to MinFlushInterval; zero mailboxSize picks
// the default.
func NewCoalescer(interval time.Duration, mailboxSize int, log *logger.Logger) *Coalescer {
	if mailboxSize <= 0 {
		mailboxSize = defaultMailboxSize
	}
	return &Coalescer{
		Logger:   log,
		mailbox:  make(chan message, mailboxSize),
		events:   make(chan Event, eventBufferSize),
		pending:  make(map[string]models.MSnapshot),
		interval: clampInterval(interval, log),
	}
}

// -----------------------------------------------------------------------------

func clampInterval(d time.Duration, log *logger.Logger) time.Duration {
	if d <= 0 {
		if log != nil {
			log.Warning("Non-positive flush interval %v, clamping to %v", d, MinFlushInterval)
		}
		return MinFlushInterval
	}
	if d < MinFlushInterval {
		return MinFlushInterval
	}
	return d
}

// -----------------------------------------------------------------------------
// Public contract
// -----------------------------------------------------------------------------

// Start launches the flush loop. The first flush is scheduled immediately and
// a READY event is emitted before any batch. Start is idempotent.
func (c *Coalescer) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.run(ctx)
}

// -----------------------------------------------------------------------------

// SubmitTick hands one tick to the coalescer. It never blocks and never
// returns an error: ticks without an instrument key are ignored, and a full
// mailbox drops the tick rather than stalling the caller.
func (c *Coalescer) SubmitTick(tick models.MTick) {
	if tick.InstrumentKey == "" {
		return
	}
	select {
	case c.mailbox <- message{kind: msgTick, tick: tick}:
	default:
		c.ticksDropped.Add(1)
	}
}

// -----------------------------------------------------------------------------

// SetFlushInterval replaces the flush cadence. The currently pending wait is
// cancelled and rescheduled with the new duration; pending snapshots are
// kept and nothing is flushed early.
func (c *Coalescer) SetFlushInterval(d time.Duration) {
	c.mailbox <- message{kind: msgSetInterval, interval: d}
}

// -----------------------------------------------------------------------------

// Clear discards all pending snapshots without emitting them. The flush
// schedule is unaffected.
func (c *Coalescer) Clear() {
	c.mailbox <- message{kind: msgClear}
}

// -----------------------------------------------------------------------------

// Events returns the outbound event stream (READY once, then BATCH_UPDATE
// per non-empty flush).
func (c *Coalescer) Events() <-chan Event {
	return c.events
}

// -----------------------------------------------------------------------------

// Metrics returns a point-in-time copy of the feed counters.
func (c *Coalescer) Metrics() models.MFeedMetrics {
	return models.MFeedMetrics{
		TicksCoalesced: c.ticksCoalesced.Load(),
		BatchesEmitted: c.batchesEmitted.Load(),
		BatchesDropped: c.batchesDropped.Load(),
		LastFlushMs:    c.lastFlushMs.Load(),
	}
}

// -----------------------------------------------------------------------------
// Flush loop
// -----------------------------------------------------------------------------

func (c *Coalescer) run(ctx context.Context) {
	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	c.emit(Event{Type: EventReady})

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-c.mailbox:
			switch msg.kind {
			case msgTick:
				c.apply(msg.tick)
			case msgSetInterval:
				c.interval = clampInterval(msg.interval, c.Logger)
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(c.interval)
			case msgClear:
				c.pending = make(map[string]models.MSnapshot)
			}

		case <-timer.C:
			c.flush(time.Now())
			// Always reschedule, even after an empty (silent) flush, so the
			// loop never stalls through idle periods.
			timer.Reset(c.interval)
		}
	}
}

// -----------------------------------------------------------------------------

// apply inserts-or-overwrites the pending snapshot for the tick's key.
func (c *Coalescer) apply(tick models.MTick) {
	price := ParseNumeric(tick.Price)
	volume := ParseNumeric(tick.Volume)

	c.pending[tick.InstrumentKey] = models.MSnapshot{
		InstrumentKey: tick.InstrumentKey,
		Price:         tick.Price,
		ChangeRate:    tick.ChangeRate,
		Volume:        volume,
		TradingValue:  price * volume,
		Strength:      tick.Strength,
		LastUpdate:    tick.SourceTimestamp,
	}
	c.ticksCoalesced.Add(1)
}

// -----------------------------------------------------------------------------

// flush emits the pending map as one batch and resets it. An empty pending
// map emits nothing.
func (c *Coalescer) flush(now time.Time) {
	if len(c.pending) == 0 {
		return
	}

	batch := &models.MBatchUpdate{
		Snapshots: c.pending,
		FlushedAt: now.UnixMilli(),
	}
	// Hand the map off to the consumer; the loop never touches it again.
	c.pending = make(map[string]models.MSnapshot, len(batch.Snapshots))

	c.lastFlushMs.Store(batch.FlushedAt)
	c.emit(Event{Type: EventBatch, Batch: batch})
}

// -----------------------------------------------------------------------------

// emit is fire-and-forget: the loop never blocks waiting on the consumer. A
// full events channel drops the batch, mirroring how the hub prunes slow
// websocket clients.
func (c *Coalescer) emit(e Event) {
	select {
	case c.events <- e:
		if e.Type == EventBatch {
			c.batchesEmitted.Add(1)
		}
	default:
		if e.Type == EventBatch {
			c.batchesDropped.Add(1)
			if c.Logger != nil {
				c.Logger.Warning("Consumer too slow, dropped batch of %d snapshots", len(e.Batch.Snapshots))
			}
		}
	}
}
