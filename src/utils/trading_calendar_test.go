package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNumericCode(t *testing.T) {
	assert.True(t, isNumericCode("005930"))
	assert.True(t, isNumericCode("000660"))
	assert.False(t, isNumericCode("AAPL"))
	assert.False(t, isNumericCode("0059301")) // 7 digits
	assert.False(t, isNumericCode("00593A"))
	assert.False(t, isNumericCode(""))
}

func TestGetCalendarNeverNil(t *testing.T) {
	for _, key := range []string{"005930", "035420.KQ", "AAPL", "9984.T", "0700.HK"} {
		cal := GetCalendar(key)
		assert.NotNil(t, cal, "key %s", key)
		assert.NotNil(t, cal.Timezone, "key %s", key)
	}
}
