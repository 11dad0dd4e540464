package utils

import (
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/crucial-sub/Stock-Lab-sub002/src/logger"
	"github.com/crucial-sub/Stock-Lab-sub002/src/models"
)

// -----------------------------------------------------------------------------
// HistoryStore keeps per-instrument history buffers of flushed snapshots and
// enforces a process memory ceiling. It backs the /api/quotes endpoints.
// -----------------------------------------------------------------------------

type HistoryStore struct {
	Streams     map[string]*HistoryBuffer
	MaxMemoryMB int
	MaxPoints   int
	Logger      *logger.Logger
	mu          sync.RWMutex

	appended int
}

// -----------------------------------------------------------------------------

func NewHistoryStore(maxMemoryMB, maxPoints int) *HistoryStore {
	return &HistoryStore{
		Streams:     make(map[string]*HistoryBuffer),
		MaxMemoryMB: maxMemoryMB,
		MaxPoints:   maxPoints,
		Logger:      logger.NewLogger("", "HistoryStore"),
	}
}

// -----------------------------------------------------------------------------

// AddBatch appends every snapshot of one flushed batch.
func (hs *HistoryStore) AddBatch(batch *models.MBatchUpdate) {
	if batch == nil {
		return
	}
	for key, snap := range batch.Snapshots {
		hs.AddSnapshot(key, snap)
	}
}

// -----------------------------------------------------------------------------

// AddSnapshot appends one snapshot to the instrument's buffer.
func (hs *HistoryStore) AddSnapshot(key string, snap models.MSnapshot) {
	hs.mu.Lock()

	buffer, ok := hs.Streams[key]
	if !ok {
		buffer = NewHistoryBuffer(hs.MaxPoints)
		hs.Streams[key] = buffer
	}
	buffer.Append(snap)

	hs.appended++
	check := hs.appended%100 == 0
	hs.mu.Unlock()

	// Periodic memory check
	if check {
		hs.CheckMemoryLimits()
	}
}

// -----------------------------------------------------------------------------

// Latest returns the newest snapshot for one instrument.
func (hs *HistoryStore) Latest(key string) (models.MSnapshot, bool) {
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	buffer, ok := hs.Streams[key]
	if !ok || buffer.Size() == 0 {
		return models.MSnapshot{}, false
	}

	latest := buffer.GetLatest(1)
	return latest[0], true
}

// -----------------------------------------------------------------------------

// LatestAll returns the newest snapshot for every instrument.
func (hs *HistoryStore) LatestAll() map[string]models.MSnapshot {
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	result := make(map[string]models.MSnapshot, len(hs.Streams))
	for key, buffer := range hs.Streams {
		if buffer.Size() == 0 {
			continue
		}
		latest := buffer.GetLatest(1)
		result[key] = latest[0]
	}
	return result
}

// -----------------------------------------------------------------------------

// History returns up to n snapshots for one instrument, oldest first.
// n <= 0 returns the full buffer.
func (hs *HistoryStore) History(key string, n int) []models.MSnapshot {
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	buffer, ok := hs.Streams[key]
	if !ok {
		return []models.MSnapshot{}
	}

	if n <= 0 {
		return buffer.GetAll()
	}
	return buffer.GetLatest(n)
}

// -----------------------------------------------------------------------------

// CheckMemoryLimits checks and enforces memory limits
func (hs *HistoryStore) CheckMemoryLimits() {
	currentMemory := hs.GetProcessMemoryMB()

	if currentMemory > float64(hs.MaxMemoryMB) {
		hs.Logger.Info("Memory usage %.1fMB exceeds limit %dMB. Cleaning up.",
			currentMemory, hs.MaxMemoryMB)

		// Halve buffer capacities to shed load
		hs.mu.Lock()
		for key := range hs.Streams {
			buffer := hs.Streams[key]
			if buffer.Capacity() > 100 {
				newCapacity := buffer.Capacity() / 2
				if newCapacity < 50 {
					newCapacity = 50
				}
				buffer.Resize(newCapacity)
			}
		}
		hs.mu.Unlock()

		// Force garbage collection
		runtime.GC()
		debug.FreeOSMemory()
	}
}

// -----------------------------------------------------------------------------

// GetProcessMemoryMB gets current process memory usage in MB
func (hs *HistoryStore) GetProcessMemoryMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return float64(m.HeapAlloc) / 1024 / 1024
}

// -----------------------------------------------------------------------------

// InstrumentCount returns number of instruments with data
func (hs *HistoryStore) InstrumentCount() int {
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	return len(hs.Streams)
}

// -----------------------------------------------------------------------------

// Cleanup clears all data
func (hs *HistoryStore) Cleanup() {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	hs.Streams = make(map[string]*HistoryBuffer)
	runtime.GC()
	debug.FreeOSMemory()
}
