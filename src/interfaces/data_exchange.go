package interfaces

import "github.com/crucial-sub/Stock-Lab-sub002/src/models"

// -----------------------------------------------------------------------------
// IDataExchanger defines the interface for pushing coalesced data to external
// listeners (the dashboard websocket hub).
// -----------------------------------------------------------------------------

type IDataExchanger interface {

	// -----------------------------------------------------------------------------

	// Broadcast pushes one flushed batch to connected clients.
	Broadcast(batch *models.MBatchUpdate, metrics models.MFeedMetrics)

	// -----------------------------------------------------------------------------

	// SeedState replaces the INITIAL state without broadcasting (restart warm-up).
	SeedState(snapshots map[string]models.MSnapshot)

	// -----------------------------------------------------------------------------

	// Start the server
	Start() error

	// -----------------------------------------------------------------------------

	// Stop the server gracefully
	Stop() error
}
