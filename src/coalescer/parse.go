package coalescer

import (
	"math"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------

// ParseNumeric converts a feed-transmitted numeric string to a float64.
// Malformed input degrades to 0 rather than producing an error or NaN, which
// keeps derived fields like trading value finite for every tick. Thousands
// separators are tolerated since some feeds localize volume fields.
func ParseNumeric(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ",", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
