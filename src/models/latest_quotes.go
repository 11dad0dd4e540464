package models

// -----------------------------------------------------------------------------
// Server State Structure (pushed to dashboard clients)
// -----------------------------------------------------------------------------

type MLatestQuotes struct {
	Type      string               `json:"type"` // "INITIAL" or "UPDATE"
	Snapshots map[string]MSnapshot `json:"snapshots"`
	Timestamp int64                `json:"timestamp"`
	Metrics   MFeedMetrics         `json:"feed_metrics"`
}

// -----------------------------------------------------------------------------
// MSubscribeCommand for client messages
// -----------------------------------------------------------------------------

type MSubscribeCommand struct {
	Command     string   `json:"command"`
	Instruments []string `json:"instruments"`
}
