package utils

import (
	"log"
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// TradingCalendar calculates trading sessions using scmhub/calendar.
type TradingCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// GetCalendar maps an instrument key to its exchange calendar. Bare 6-digit
// codes are KRX listings (the primary market here); cross-listed keys carry
// a venue suffix mapped to a MIC code (ISO 10383, see scmhub/calendar).
func GetCalendar(instrumentKey string) *TradingCalendar {
	mic := "xkrx"
	switch {
	case strings.HasSuffix(instrumentKey, ".KS"), strings.HasSuffix(instrumentKey, ".KQ"):
		mic = "xkrx"
	case strings.HasSuffix(instrumentKey, ".T"):
		mic = "xtks"
	case strings.HasSuffix(instrumentKey, ".HK"):
		mic = "xhkg"
	case strings.HasSuffix(instrumentKey, ".SS"):
		mic = "xshg"
	case strings.HasSuffix(instrumentKey, ".SZ"):
		mic = "xshe"
	case strings.HasSuffix(instrumentKey, ".L"):
		mic = "xlon"
	case !isNumericCode(instrumentKey):
		// Plain alphabetic tickers (AAPL, TSLA) are US listings.
		mic = "xnys"
	}

	cal := calendar.GetCalendar(mic)
	if cal == nil {
		cal = calendar.GetCalendar("xkrx")
	}

	if cal == nil {
		log.Printf("WARNING: Failed to load calendar for MIC '%s' and fallback 'xkrx'. Using simple fallback (Mon-Fri 09:00-15:30 KST).", mic)
		seoulLoc, _ := time.LoadLocation("Asia/Seoul")
		if seoulLoc == nil {
			seoulLoc = time.UTC // Worst case
		}
		return &TradingCalendar{Fallback: true, Timezone: seoulLoc}
	}

	return &TradingCalendar{Calendar: cal, Fallback: false, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

// isNumericCode reports whether the key looks like a KRX issue code.
func isNumericCode(key string) bool {
	if len(key) != 6 {
		return false
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	// Normalize to timezone if available
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		// Simple fallback: Mon-Fri
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	// Library handles IsHoliday / IsBusinessDay
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenOnMinute checks if the market is open at a specific minute.
func (tc *TradingCalendar) IsOpenOnMinute(t time.Time) bool {
	// Normalize to timezone if available
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if tc.Fallback {
		if !tc.IsTradingDay(t) {
			return false
		}

		hour := t.Hour()
		minute := t.Minute()

		// 09:00 - 15:30 KST
		if hour >= 9 && (hour < 15 || (hour == 15 && minute <= 30)) {
			return true
		}
		return false
	}

	return tc.Calendar.IsOpen(t)
}
