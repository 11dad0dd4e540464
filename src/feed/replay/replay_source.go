package replay

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crucial-sub/Stock-Lab-sub002/src/logger"
	"github.com/crucial-sub/Stock-Lab-sub002/src/models"
)

// -----------------------------------------------------------------------------
// ReplaySource generates a synthetic tick stream with a random walk per
// instrument. Used for local development and smoke testing without a live
// gateway; it ignores market hours on purpose.
// -----------------------------------------------------------------------------

const (
	basePrice     = 70000.0
	maxStepWon    = 100 // Max price move per tick, in won
	defaultPerSec = 10
)

type ReplaySource struct {
	SourceConfig models.MSourceConfig
	Logger       *logger.Logger
	instruments  atomic.Value // Stores []string safely
	cancelFunc   context.CancelFunc
	isRunning    atomic.Bool
	mu           sync.Mutex
}

// -----------------------------------------------------------------------------

func NewReplaySource(sourceCfg models.MSourceConfig, logLevel string) *ReplaySource {
	s := &ReplaySource{
		SourceConfig: sourceCfg,
		Logger:       logger.NewLogger(logLevel, "ReplaySource-"+sourceCfg.Name),
	}
	s.instruments.Store(sourceCfg.Instruments)
	return s
}

// -----------------------------------------------------------------------------

func (s *ReplaySource) Name() string {
	return s.SourceConfig.Name
}

// -----------------------------------------------------------------------------

// IsRealTime returns true: ticks are pushed as they are generated.
func (s *ReplaySource) IsRealTime() bool {
	return true
}

// -----------------------------------------------------------------------------

func (s *ReplaySource) Start(parentCtx context.Context, outputChan chan<- models.MTick, wg *sync.WaitGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning.Load() {
		return fmt.Errorf("source %s is already running", s.Name())
	}

	ctx, cancel := context.WithCancel(parentCtx)
	s.cancelFunc = cancel
	s.isRunning.Store(true)

	wg.Add(1)
	go s.runLoop(ctx, outputChan, wg)
	s.Logger.Info("Started ReplaySource: %s", s.Name())
	return nil
}

// -----------------------------------------------------------------------------

func (s *ReplaySource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning.Load() {
		return fmt.Errorf("source %s is not running", s.Name())
	}

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.isRunning.Store(false)
	s.Logger.Info("Stopped ReplaySource: %s", s.Name())
	return nil
}

// -----------------------------------------------------------------------------

// walkState holds the evolving per-instrument price walk.
type walkState struct {
	price     float64
	prevClose float64
	volume    int64
}

// -----------------------------------------------------------------------------

// runLoop emits one tick per interval, round-robin across instruments.
func (s *ReplaySource) runLoop(ctx context.Context, outputChan chan<- models.MTick, wg *sync.WaitGroup) {
	defer wg.Done()

	perSec := s.SourceConfig.TicksPerSecond
	if perSec <= 0 {
		perSec = defaultPerSec
	}

	ticker := time.NewTicker(time.Second / time.Duration(perSec))
	defer ticker.Stop()

	// Fixed seed keeps replays reproducible across runs
	rng := rand.New(rand.NewSource(42))
	states := make(map[string]*walkState)
	next := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			keys := s.getInstruments()
			if len(keys) == 0 {
				continue
			}

			key := keys[next%len(keys)]
			next++

			state, ok := states[key]
			if !ok {
				state = &walkState{price: basePrice, prevClose: basePrice}
				states[key] = state
			}

			tick := s.nextTick(rng, key, state)

			select {
			case outputChan <- tick:
			case <-ctx.Done():
				return
			}
		}
	}
}

// -----------------------------------------------------------------------------

// nextTick advances one instrument's walk and renders it as a raw tick.
func (s *ReplaySource) nextTick(rng *rand.Rand, key string, state *walkState) models.MTick {
	step := float64(rng.Intn(2*maxStepWon+1) - maxStepWon)
	state.price += step
	if state.price < 1 {
		state.price = 1
	}
	state.volume += int64(rng.Intn(500) + 1)

	changeRate := (state.price - state.prevClose) / state.prevClose * 100

	return models.MTick{
		InstrumentKey:   key,
		Price:           strconv.FormatFloat(state.price, 'f', 0, 64),
		ChangeRate:      strconv.FormatFloat(changeRate, 'f', 2, 64),
		Volume:          strconv.FormatInt(state.volume, 10),
		Strength:        strconv.FormatFloat(80+rng.Float64()*40, 'f', 2, 64),
		SourceTimestamp: strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
}

// -----------------------------------------------------------------------------

func (s *ReplaySource) UpdateInstruments(keys []string) error {
	s.instruments.Store(keys)
	s.Logger.Info("Updated instrument list. New count: %d", len(keys))
	return nil
}

// -----------------------------------------------------------------------------

func (s *ReplaySource) getInstruments() []string {
	return s.instruments.Load().([]string)
}
