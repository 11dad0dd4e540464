package kis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crucial-sub/Stock-Lab-sub002/src/interfaces"
	"github.com/crucial-sub/Stock-Lab-sub002/src/logger"
	"github.com/crucial-sub/Stock-Lab-sub002/src/models"
	"github.com/crucial-sub/Stock-Lab-sub002/src/utils"
)

// quotePath is the KIS domestic-stock price endpoint, relative to the
// configured gateway base URL.
const quotePath = "/uapi/domestic-stock/v1/quotations/inquire-price"

type KISSource struct {
	Config          *models.MConfig
	SourceConfig    models.MSourceConfig
	instruments     atomic.Value // Stores []string safely
	Network         interfaces.INetworkManager
	Logger          *logger.Logger
	MarketScheduler *utils.MarketScheduler
	cancelFunc      context.CancelFunc // To support Stop()
	outputChan      chan<- models.MTick
	isRunning       atomic.Bool
	mu              sync.Mutex
}

// -----------------------------------------------------------------------------

func (s *KISSource) Name() string {
	return s.SourceConfig.Name
}

// -----------------------------------------------------------------------------

// IsRealTime returns false because the REST gateway follows the polling model
func (s *KISSource) IsRealTime() bool {
	return false
}

// -----------------------------------------------------------------------------

func NewKISSource(cfg *models.MConfig, sourceCfg models.MSourceConfig, netMgr interfaces.INetworkManager) *KISSource {
	s := &KISSource{
		Config:          cfg,
		SourceConfig:    sourceCfg,
		Network:         netMgr,
		Logger:          logger.NewLogger(cfg.LogLevel, "KISSource-"+sourceCfg.Name),
		MarketScheduler: utils.NewMarketScheduler(sourceCfg.Instruments, logger.NewLogger(cfg.LogLevel, "MarketScheduler-"+sourceCfg.Name)),
	}
	s.instruments.Store(sourceCfg.Instruments)
	return s
}

// -----------------------------------------------------------------------------
// Wire format of the KIS quote endpoint. Only the fields we forward.
// -----------------------------------------------------------------------------

type kisQuoteResponse struct {
	RtCd   string `json:"rt_cd"` // "0" on success
	Msg    string `json:"msg1"`
	Output struct {
		Price      string `json:"stck_prpr"` // Current price
		ChangeRate string `json:"prdy_ctrt"` // Change rate vs prev close (%)
		Volume     string `json:"acml_vol"`  // Accumulated volume
		Strength   string `json:"cttr"`      // Contract strength
	} `json:"output"`
}

// -----------------------------------------------------------------------------

// fetchQuote fetches one instrument's current quote and converts it to a tick.
func (s *KISSource) fetchQuote(key string) (models.MTick, error) {
	params := map[string]string{
		"FID_COND_MRKT_DIV_CODE": "J", // KRX stocks
		"FID_INPUT_ISCD":         key,
	}
	headers := map[string]string{
		"authorization": "Bearer " + s.SourceConfig.APIKey,
		"tr_id":         "FHKST01010100",
	}

	body, err := s.Network.Get(s.SourceConfig.Endpoint+quotePath, params, headers)
	if err != nil {
		return models.MTick{}, err
	}

	var resp kisQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.MTick{}, fmt.Errorf("failed to parse quote for %s: %v", key, err)
	}

	if resp.RtCd != "0" {
		return models.MTick{}, fmt.Errorf("gateway rejected quote for %s: %s", key, resp.Msg)
	}

	return models.MTick{
		InstrumentKey:   key,
		Price:           resp.Output.Price,
		ChangeRate:      resp.Output.ChangeRate,
		Volume:          resp.Output.Volume,
		Strength:        resp.Output.Strength,
		SourceTimestamp: strconv.FormatInt(time.Now().UnixMilli(), 10),
	}, nil
}

// -----------------------------------------------------------------------------

// fetchBatch fetches all watched instruments concurrently and pushes each
// resulting tick. Instruments whose market is closed are skipped.
func (s *KISSource) fetchBatch(ctx context.Context) {
	keys := s.getInstruments()
	if len(keys) == 0 {
		return
	}

	now := time.Now()
	var wg sync.WaitGroup

	// Semaphore for concurrency limit
	sem := make(chan struct{}, s.Config.Network.ConcurrentRequests)

	for _, key := range keys {
		if !s.MarketScheduler.IsInstrumentOpen(key, now) {
			continue
		}

		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			// Small delay to avoid rate limiting
			time.Sleep(10 * time.Millisecond)

			tick, err := s.fetchQuote(k)
			if err != nil {
				s.Logger.Info("Error fetching quote %s: %v", k, err)
				return
			}

			select {
			case s.outputChan <- tick:
			case <-ctx.Done():
			}
		}(key)
	}
	wg.Wait()
}

// -----------------------------------------------------------------------------

// Start begins the polling loop
func (s *KISSource) Start(parentCtx context.Context, outputChan chan<- models.MTick, wg *sync.WaitGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning.Load() {
		return fmt.Errorf("source %s is already running", s.Name())
	}

	// Derive a context so we can stop just this source via Stop()
	ctx, cancel := context.WithCancel(parentCtx)
	s.cancelFunc = cancel
	s.outputChan = outputChan
	s.isRunning.Store(true)

	wg.Add(1)
	go s.runLoop(ctx, wg)
	s.Logger.Info("Started KISSource: %s", s.Name())
	return nil
}

// -----------------------------------------------------------------------------

// Stop signals the run loop to exit
func (s *KISSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning.Load() {
		return fmt.Errorf("source %s is not running", s.Name())
	}

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.isRunning.Store(false)
	s.Logger.Info("Stopped KISSource: %s", s.Name())
	return nil
}

// -----------------------------------------------------------------------------

// runLoop polls the gateway on the configured interval
func (s *KISSource) runLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	interval := time.Duration(s.SourceConfig.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.MarketScheduler.AnyMarketOpen() {
				s.Logger.Info("All markets are closed. Pausing for 10 minutes...")
				// Interruptible sleep
				select {
				case <-time.After(10 * time.Minute):
				case <-ctx.Done():
					return
				}
				continue
			}

			s.fetchBatch(ctx)
		}
	}
}

// -----------------------------------------------------------------------------

func (s *KISSource) UpdateInstruments(keys []string) error {
	// Atomic swap
	s.instruments.Store(keys)
	s.Logger.Info("Updated instrument list. New count: %d", len(keys))

	// Also update MarketScheduler
	s.MarketScheduler.UpdateInstruments(keys)

	return nil
}

// -----------------------------------------------------------------------------

func (s *KISSource) getInstruments() []string {
	return s.instruments.Load().([]string)
}
