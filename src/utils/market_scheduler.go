package utils

import (
	"sync"
	"time"

	"github.com/crucial-sub/Stock-Lab-sub002/src/logger"
)

type MarketScheduler struct {
	Calendars map[string]*TradingCalendar
	Logger    *logger.Logger
	mu        sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(instruments []string, l *logger.Logger) *MarketScheduler {
	ms := &MarketScheduler{
		Calendars: make(map[string]*TradingCalendar),
		Logger:    l,
	}
	ms.MapInstrumentsToCalendars(instruments)
	return ms
}

// -----------------------------------------------------------------------------

// MapInstrumentsToCalendars maps instrument keys to their exchange calendars.
// Called from both the constructor and UpdateInstruments, so the map is
// rebuilt from scratch each time.
func (ms *MarketScheduler) MapInstrumentsToCalendars(instruments []string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.Calendars = make(map[string]*TradingCalendar)

	for _, key := range instruments {
		cal := GetCalendar(key)
		if cal != nil {
			ms.Calendars[key] = cal
		}
	}

	// Count unique calendars
	uniqueCals := make(map[*TradingCalendar]bool)
	for _, cal := range ms.Calendars {
		uniqueCals[cal] = true
	}

	ms.Logger.Info("MarketScheduler: Mapped %d instruments to %d unique calendars.",
		len(instruments), len(uniqueCals))
}

// UpdateInstruments updates the scheduler with a new instrument list
func (ms *MarketScheduler) UpdateInstruments(instruments []string) {
	ms.MapInstrumentsToCalendars(instruments)
}

// -----------------------------------------------------------------------------

// AnyMarketOpen checks if ANY tracked market is currently open
func (ms *MarketScheduler) AnyMarketOpen() bool {
	now := time.Now().UTC()

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	uniqueCals := make(map[*TradingCalendar]bool)
	for _, cal := range ms.Calendars {
		uniqueCals[cal] = true
	}

	if len(uniqueCals) == 0 {
		return false
	}

	for cal := range uniqueCals {
		if cal.IsOpenOnMinute(now) {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------

// IsInstrumentOpen checks a single instrument's market session.
func (ms *MarketScheduler) IsInstrumentOpen(key string, t time.Time) bool {
	ms.mu.RLock()
	cal, ok := ms.Calendars[key]
	ms.mu.RUnlock()

	if !ok {
		return false
	}
	return cal.IsOpenOnMinute(t)
}
