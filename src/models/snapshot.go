package models

// -----------------------------------------------------------------------------
// MSnapshot is the coalesced state for one instrument at flush time.
// Price and ChangeRate are carried verbatim from the most recent tick
// (last-write-wins); Volume and TradingValue are derived with defensive
// parsing so they are always finite.
// -----------------------------------------------------------------------------

type MSnapshot struct {
	InstrumentKey string  `json:"instrument_key"`
	Price         string  `json:"price"`
	ChangeRate    string  `json:"change_rate"`
	Volume        float64 `json:"volume"`
	TradingValue  float64 `json:"trading_value"`
	Strength      string  `json:"strength,omitempty"`
	LastUpdate    string  `json:"last_update"`
}

// -----------------------------------------------------------------------------
// MBatchUpdate is one flush emission: every instrument that saw at least one
// tick since the previous flush, keyed by instrument, plus the flush time.
// -----------------------------------------------------------------------------

type MBatchUpdate struct {
	Snapshots map[string]MSnapshot `json:"snapshots"`
	FlushedAt int64                `json:"flushed_at"`
}
