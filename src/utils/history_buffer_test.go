package utils

import (
	"strconv"
	"testing"

	"github.com/crucial-sub/Stock-Lab-sub002/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryBufferWrapAround(t *testing.T) {
	hb := NewHistoryBuffer(3)

	for i := 1; i <= 5; i++ {
		hb.Append(models.MSnapshot{InstrumentKey: "005930", Price: strconv.Itoa(i)})
	}

	assert.Equal(t, 3, hb.Size())
	assert.True(t, hb.IsFull())

	all := hb.GetAll()
	require.Len(t, all, 3)
	assert.Equal(t, "3", all[0].Price)
	assert.Equal(t, "5", all[2].Price)
}

func TestHistoryBufferGetLatestOrder(t *testing.T) {
	hb := NewHistoryBuffer(10)
	for i := 1; i <= 4; i++ {
		hb.Append(models.MSnapshot{Price: strconv.Itoa(i)})
	}

	latest := hb.GetLatest(2)
	require.Len(t, latest, 2)
	assert.Equal(t, "3", latest[0].Price)
	assert.Equal(t, "4", latest[1].Price)

	// Requesting more than stored returns everything.
	assert.Len(t, hb.GetLatest(100), 4)
	assert.Empty(t, hb.GetLatest(0))
}

func TestHistoryBufferResizeKeepsNewest(t *testing.T) {
	hb := NewHistoryBuffer(5)
	for i := 1; i <= 5; i++ {
		hb.Append(models.MSnapshot{Price: strconv.Itoa(i)})
	}

	hb.Resize(2)
	assert.Equal(t, 2, hb.Capacity())

	all := hb.GetAll()
	require.Len(t, all, 2)
	assert.Equal(t, "4", all[0].Price)
	assert.Equal(t, "5", all[1].Price)

	// Still a working ring after the resize.
	hb.Append(models.MSnapshot{Price: "6"})
	all = hb.GetAll()
	assert.Equal(t, "5", all[0].Price)
	assert.Equal(t, "6", all[1].Price)
}

func TestHistoryStoreLatestAndHistory(t *testing.T) {
	hs := NewHistoryStore(512, 100)

	hs.AddBatch(&models.MBatchUpdate{
		Snapshots: map[string]models.MSnapshot{
			"005930": {InstrumentKey: "005930", Price: "70000"},
			"000660": {InstrumentKey: "000660", Price: "180000"},
		},
		FlushedAt: 1,
	})
	hs.AddSnapshot("005930", models.MSnapshot{InstrumentKey: "005930", Price: "70100"})

	latest, ok := hs.Latest("005930")
	require.True(t, ok)
	assert.Equal(t, "70100", latest.Price)

	assert.Len(t, hs.History("005930", 0), 2)
	assert.Len(t, hs.History("005930", 1), 1)
	assert.Empty(t, hs.History("035420", 0))

	assert.Equal(t, 2, hs.InstrumentCount())
	assert.Len(t, hs.LatestAll(), 2)

	_, ok = hs.Latest("035420")
	assert.False(t, ok)
}
