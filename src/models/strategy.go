package models

// MStrategy is one investment strategy with its descriptive tags.
type MStrategy struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// MStrategyScore is the match result of one strategy against a survey.
type MStrategyScore struct {
	Strategy MStrategy `json:"strategy"`
	Score    float64   `json:"score"`
	Matched  []string  `json:"matched"`
}
