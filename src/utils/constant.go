package utils

import "math"

// -----------------------------------------------------------------------------

// Constants and helper functions for data retention and memory management.
// The KRX regular session runs 09:00-15:30 KST, i.e. 390 minutes.
// Rounded up to 400 points per day for safety (one stored snapshot per
// minute of session time is the sizing assumption for history buffers).
const (
	DefaultRetentionDays = 7
)

// -----------------------------------------------------------------------------

// CalculateMaxDataPoints calculates max history points based on retention days.
// approx 400 points per day (covering the 6.5h session)
func CalculateMaxDataPoints(days int) int {
	return int(math.Ceil(float64(days) * 400))
}
