package models

type MFeedMetrics struct {
	TicksCoalesced uint64 `json:"ticks_coalesced"`
	BatchesEmitted uint64 `json:"batches_emitted"`
	BatchesDropped uint64 `json:"batches_dropped"`
	LastFlushMs    int64  `json:"last_flush_ms"`
}
