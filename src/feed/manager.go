package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/crucial-sub/Stock-Lab-sub002/src/interfaces"
	"github.com/crucial-sub/Stock-Lab-sub002/src/logger"
	"github.com/crucial-sub/Stock-Lab-sub002/src/models"
)

// Manager aggregates multiple ITickSource instances behind one tick channel
type Manager struct {
	Sources    map[string]interfaces.ITickSource
	Logger     *logger.Logger
	mu         sync.RWMutex
	outputChan chan<- models.MTick // Send-only, managed by parent
	ctx        context.Context     // Lifecycle context (derived)
	cancelFunc context.CancelFunc  // To stop all sources
	wg         *sync.WaitGroup     // Shared WaitGroup (ptr)
}

// -----------------------------------------------------------------------------

func NewManager(sources []interfaces.ITickSource, log *logger.Logger) *Manager {
	m := &Manager{
		Sources: make(map[string]interfaces.ITickSource),
		Logger:  log,
	}

	for _, s := range sources {
		m.Sources[s.Name()] = s
	}

	return m
}

// -----------------------------------------------------------------------------

// AddSource adds a new source and starts it if the manager is running
func (m *Manager) AddSource(source interfaces.ITickSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := source.Name()
	if _, exists := m.Sources[name]; exists {
		return fmt.Errorf("source %s already exists", name)
	}

	m.Sources[name] = source
	m.Logger.Info("Added source: %s", name)

	// If Manager is already running, start the new source immediately.
	// Sources own the wg.Add/Done pair for their run loop.
	if m.outputChan != nil && m.ctx != nil {
		if err := source.Start(m.ctx, m.outputChan, m.wg); err != nil {
			return fmt.Errorf("failed to start source %s: %v", name, err)
		}
		m.Logger.Info("Started source: %s", name)
	}

	return nil
}

// -----------------------------------------------------------------------------

// RemoveSource stops and removes a source
func (m *Manager) RemoveSource(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, exists := m.Sources[name]
	if !exists {
		return fmt.Errorf("source %s not found", name)
	}

	// Stop the source
	if err := source.Stop(); err != nil {
		m.Logger.Error("Error stopping source %s: %v", name, err)
	}

	delete(m.Sources, name)
	m.Logger.Info("Removed source: %s", name)
	return nil
}

// -----------------------------------------------------------------------------

// GetSource retrieves a source by name
func (m *Manager) GetSource(name string) (interfaces.ITickSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	source, exists := m.Sources[name]
	if !exists {
		return nil, fmt.Errorf("source %s not found", name)
	}
	return source, nil
}

// -----------------------------------------------------------------------------

// GetAllSources returns a list of all sources
func (m *Manager) GetAllSources() []interfaces.ITickSource {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]interfaces.ITickSource, 0, len(m.Sources))
	for _, s := range m.Sources {
		list = append(list, s)
	}
	return list
}

// -----------------------------------------------------------------------------

// Start starts all sources
func (m *Manager) Start(parentCtx context.Context, outputChan chan<- models.MTick, wg *sync.WaitGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx != nil {
		return fmt.Errorf("feed manager is already running")
	}

	// Derive a context so we can stop the manager independently if needed
	ctx, cancel := context.WithCancel(parentCtx)
	m.ctx = ctx
	m.cancelFunc = cancel

	m.outputChan = outputChan
	m.wg = wg // Store pointer to shared WG

	// Each source does its own wg.Add(1) in Start and wg.Done when its run
	// loop exits, so the manager must not touch the counter here.
	for _, src := range m.Sources {
		if err := src.Start(m.ctx, m.outputChan, m.wg); err != nil {
			m.Logger.Error("Failed to start source %s: %v", src.Name(), err)
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop stops all sources gracefully by cancelling the internal context
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return nil // Already stopped
	}

	m.Logger.Info("Stopping feed manager...")

	// Cancel context -> Signals all sources to stop
	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	m.cancelFunc = nil
	m.ctx = nil

	m.Logger.Info("Feed manager stopped.")
	return nil
}

// -----------------------------------------------------------------------------

// StartSource starts a specific source by name
func (m *Manager) StartSource(name string) error {
	m.mu.RLock()
	source, exists := m.Sources[name]
	ctx := m.ctx
	outChan := m.outputChan
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("source %s not found", name)
	}
	if outChan == nil || ctx == nil {
		return fmt.Errorf("feed manager is not running")
	}

	return source.Start(ctx, outChan, m.wg)
}

// -----------------------------------------------------------------------------

// StopSource stops a specific source by name
func (m *Manager) StopSource(name string) error {
	m.mu.RLock()
	source, exists := m.Sources[name]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("source %s not found", name)
	}

	return source.Stop()
}

// -----------------------------------------------------------------------------

// IsRealTime reports whether the underlying sources push ticks in real time.
func (m *Manager) IsRealTime() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.Sources) > 0 {
		// Just pick one
		for _, s := range m.Sources {
			return s.IsRealTime()
		}
	}
	return false
}

// -----------------------------------------------------------------------------

func (m *Manager) UpdateInstruments(keys []string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, src := range m.Sources {
		if err := src.UpdateInstruments(keys); err != nil {
			m.Logger.Error("Failed to update instruments for a source: %v", err)
			return err
		}
	}
	return nil
}
