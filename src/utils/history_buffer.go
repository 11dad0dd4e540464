package utils

import (
	"github.com/crucial-sub/Stock-Lab-sub002/src/models"
)

// -----------------------------------------------------------------------------
// HistoryBuffer is a fixed-size circular buffer of flushed snapshots for one
// instrument. True ring buffer - appending past capacity overwrites the
// oldest entry.
// -----------------------------------------------------------------------------

type HistoryBuffer struct {
	data     []models.MSnapshot
	capacity int
	index    int // Next write position
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewHistoryBuffer creates a new buffer with fixed capacity
func NewHistoryBuffer(capacity int) *HistoryBuffer {
	if capacity <= 0 {
		capacity = 1000 // Default reasonable size
	}

	return &HistoryBuffer{
		data:     make([]models.MSnapshot, capacity),
		capacity: capacity,
	}
}

// -----------------------------------------------------------------------------

// Append adds one snapshot
func (hb *HistoryBuffer) Append(snap models.MSnapshot) {
	hb.data[hb.index] = snap
	hb.index = (hb.index + 1) % hb.capacity

	// Update size (never exceeds capacity)
	if hb.size < hb.capacity {
		hb.size++
	}
}

// -----------------------------------------------------------------------------

// GetLatest returns the n latest snapshots, oldest first
func (hb *HistoryBuffer) GetLatest(n int) []models.MSnapshot {
	if hb.size == 0 || n <= 0 {
		return []models.MSnapshot{}
	}

	count := n
	if n > hb.size {
		count = hb.size
	}

	result := make([]models.MSnapshot, count)

	// Latest data is at index-1
	startIdx := (hb.index - count + hb.capacity) % hb.capacity

	for i := 0; i < count; i++ {
		result[i] = hb.data[(startIdx+i)%hb.capacity]
	}

	return result
}

// -----------------------------------------------------------------------------

// GetAll returns all data in insertion order (oldest to newest)
func (hb *HistoryBuffer) GetAll() []models.MSnapshot {
	if hb.size == 0 {
		return []models.MSnapshot{}
	}

	result := make([]models.MSnapshot, hb.size)

	// Oldest element: wrap-around when full, index 0 otherwise
	startIdx := 0
	if hb.size == hb.capacity {
		startIdx = hb.index
	}

	for i := 0; i < hb.size; i++ {
		result[i] = hb.data[(startIdx+i)%hb.capacity]
	}

	return result
}

// -----------------------------------------------------------------------------

// Size returns current number of elements
func (hb *HistoryBuffer) Size() int {
	return hb.size
}

// -----------------------------------------------------------------------------

// Capacity returns buffer capacity (fixed)
func (hb *HistoryBuffer) Capacity() int {
	return hb.capacity
}

// -----------------------------------------------------------------------------

// Resize changes the capacity of the buffer.
// If newCapacity < size, oldest data is dropped.
func (hb *HistoryBuffer) Resize(newCapacity int) {
	if newCapacity <= 0 || newCapacity == hb.capacity {
		return
	}

	count := hb.size
	if count > newCapacity {
		count = newCapacity
	}

	// Extract the latest 'count' items from the old buffer
	newData := make([]models.MSnapshot, newCapacity)
	startIdx := (hb.index - count + hb.capacity) % hb.capacity

	for i := 0; i < count; i++ {
		newData[i] = hb.data[(startIdx+i)%hb.capacity]
	}

	hb.data = newData
	hb.capacity = newCapacity
	hb.size = count
	hb.index = count % newCapacity
}

// -----------------------------------------------------------------------------

// IsFull returns whether buffer is full
func (hb *HistoryBuffer) IsFull() bool {
	return hb.size == hb.capacity
}

// -----------------------------------------------------------------------------

// Clear resets the buffer
func (hb *HistoryBuffer) Clear() {
	hb.index = 0
	hb.size = 0
}
