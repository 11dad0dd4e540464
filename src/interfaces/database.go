package interfaces

import "github.com/crucial-sub/Stock-Lab-sub002/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for storage operations.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveSnapshots persists one flushed batch in a single transaction.
	SaveSnapshots(batch *models.MBatchUpdate) error

	// -----------------------------------------------------------------------------

	// LoadLatestSnapshots returns the most recent snapshot per instrument,
	// used to warm the delivery state after a restart.
	LoadLatestSnapshots() (map[string]models.MSnapshot, error)

	// -----------------------------------------------------------------------------

	// CleanupOldData removes snapshots older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
