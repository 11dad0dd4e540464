package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/crucial-sub/Stock-Lab-sub002/src/logger"
	"github.com/crucial-sub/Stock-Lab-sub002/src/models"

	_ "modernc.org/sqlite"
)

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables() error {
	// Kept across restarts so LoadLatestSnapshots can warm up the process.
	// SQLite types: INTEGER for int64, REAL for float64, TEXT for string
	query := `
		CREATE TABLE IF NOT EXISTS snapshots (
			instrument_key TEXT,
			flushed_at INTEGER,
			price TEXT,
			change_rate TEXT,
			volume REAL,
			trading_value REAL,
			strength TEXT,
			source_ts TEXT,
			PRIMARY KEY (instrument_key, flushed_at)
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create snapshots: %w", err)
	}

	query = `
		CREATE INDEX IF NOT EXISTS idx_snapshots_flushed_at
		ON snapshots (flushed_at);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create flushed_at index: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

// SaveSnapshots persists every snapshot of one flushed batch.
// Re-flushes of the same (key, flushed_at) pair overwrite the previous row.
func (d *AsyncSQLiteDB) SaveSnapshots(batch *models.MBatchUpdate) error {
	if batch == nil || len(batch.Snapshots) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO snapshots (instrument_key, flushed_at, price, change_rate, volume, trading_value, strength, source_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (instrument_key, flushed_at) DO UPDATE SET
			price = excluded.price,
			change_rate = excluded.change_rate,
			volume = excluded.volume,
			trading_value = excluded.trading_value,
			strength = excluded.strength,
			source_ts = excluded.source_ts
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for key, snap := range batch.Snapshots {
		_, err := stmt.Exec(key, batch.FlushedAt, snap.Price, snap.ChangeRate,
			snap.Volume, snap.TradingValue, snap.Strength, snap.LastUpdate)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

// LoadLatestSnapshots returns the newest stored snapshot per instrument.
// Used to warm up in-memory state at startup.
func (d *AsyncSQLiteDB) LoadLatestSnapshots() (map[string]models.MSnapshot, error) {
	query := `
		SELECT s.instrument_key, s.flushed_at, s.price, s.change_rate, s.volume, s.trading_value, s.strength, s.source_ts
		FROM snapshots s
		WHERE s.flushed_at = (
			SELECT MAX(flushed_at) FROM snapshots WHERE instrument_key = s.instrument_key
		)
	`

	rows, err := d.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]models.MSnapshot)
	for rows.Next() {
		var snap models.MSnapshot
		var flushedAt int64
		if err := rows.Scan(&snap.InstrumentKey, &flushedAt, &snap.Price, &snap.ChangeRate,
			&snap.Volume, &snap.TradingValue, &snap.Strength, &snap.LastUpdate); err != nil {
			return nil, err
		}
		result[snap.InstrumentKey] = snap
	}

	return result, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).UnixMilli()

	d.Logger.Info("Cleaning up snapshots older than %d days (flushed_at < %d)...", retentionDays, cutoff)

	if _, err := d.DB.Exec("DELETE FROM snapshots WHERE flushed_at < ?", cutoff); err != nil {
		d.Logger.Error("Cleanup snapshots error: %v", err)
		return err
	}

	d.Logger.Info("Cleanup completed")
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
