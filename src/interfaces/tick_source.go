package interfaces

import (
	"context"
	"sync"

	"github.com/crucial-sub/Stock-Lab-sub002/src/models"
)

// -----------------------------------------------------------------------------
// ITickSource interface for producing raw ticks from upstream feeds.
// -----------------------------------------------------------------------------

type ITickSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// IsRealTime returns true if the source pushes ticks as they happen
	// rather than on a polling interval.
	IsRealTime() bool

	// -----------------------------------------------------------------------------

	// UpdateInstruments replaces the set of instrument keys being watched
	UpdateInstruments(keys []string) error

	// -----------------------------------------------------------------------------

	// Start begins producing ticks.
	// ctx: controls the lifecycle (cancellation stops the source)
	// outputChan: channel to push ticks to
	// wg: WaitGroup to signal when the source has fully stopped
	Start(ctx context.Context, outputChan chan<- models.MTick, wg *sync.WaitGroup) error

	// -----------------------------------------------------------------------------

	// Stop terminates the source (legacy/manual stop)
	// Ideally, cancelling the context passed to Start should be enough.
	Stop() error
}
