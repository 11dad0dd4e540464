package models

// -----------------------------------------------------------------------------
// MTick represents one raw price update for one instrument, exactly as the
// upstream feed transmitted it. Numeric fields stay strings until the
// coalescer derives from them.
// -----------------------------------------------------------------------------

type MTick struct {
	InstrumentKey   string `json:"instrument_key"`
	Price           string `json:"price"`
	ChangeRate      string `json:"change_rate"`
	Volume          string `json:"volume"`
	Strength        string `json:"strength,omitempty"`
	SourceTimestamp string `json:"source_timestamp"`
}
