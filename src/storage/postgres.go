package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crucial-sub/Stock-Lab-sub002/src/logger"
	"github.com/crucial-sub/Stock-Lab-sub002/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	// Per-binary schema keeps multiple relay instances apart on one cluster
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresDB{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	// Register the watched instruments of every feed source
	for _, srcCfg := range d.Config.Feed.Sources {
		if err := d.RegisterInstruments(srcCfg.Name, srcCfg.Instruments); err != nil {
			d.Logger.Error("PostgresDB: Failed to register instruments for source %s: %v", srcCfg.Name, err)
		}
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	// Kept across restarts so LoadLatestSnapshots can warm up the process.
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."snapshots" (
			instrument_key TEXT,
			flushed_at BIGINT,
			price TEXT,
			change_rate TEXT,
			volume DOUBLE PRECISION,
			trading_value DOUBLE PRECISION,
			strength TEXT,
			source_ts TEXT,
			PRIMARY KEY (instrument_key, flushed_at)
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create snapshots: %w", err)
	}

	query = fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_snapshots_flushed_at
		ON "%s"."snapshots" (flushed_at);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create flushed_at index: %w", err)
	}

	// Instrument registry (metadata)
	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."instruments" (
			instrument_key TEXT PRIMARY KEY,
			source_name TEXT,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

// RegisterInstruments records which source watches which instrument keys.
func (d *PostgresDB) RegisterInstruments(sourceName string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO "%s"."instruments" (instrument_key, source_name, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (instrument_key) DO UPDATE SET
			source_name = excluded.source_name,
			updated_at = excluded.updated_at
	`, d.Schema)

	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, key := range keys {
		if _, err := stmt.Exec(key, sourceName, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

// SaveSnapshots persists every snapshot of one flushed batch.
func (d *PostgresDB) SaveSnapshots(batch *models.MBatchUpdate) error {
	if batch == nil || len(batch.Snapshots) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO "%s"."snapshots" (instrument_key, flushed_at, price, change_rate, volume, trading_value, strength, source_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (instrument_key, flushed_at) DO UPDATE SET
			price = excluded.price,
			change_rate = excluded.change_rate,
			volume = excluded.volume,
			trading_value = excluded.trading_value,
			strength = excluded.strength,
			source_ts = excluded.source_ts
	`, d.Schema)

	stmt, err := tx.Prepare(query)
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
func (d *PostgresDB) LoadLatestSnapshots() (map[string]models.MSnapshot, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT ON (instrument_key)
			instrument_key, flushed_at, price, change_rate, volume, trading_value, strength, source_ts
		FROM "%s"."snapshots"
		ORDER BY instrument_key, flushed_at DESC
	`, d.Schema)

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

func (d *PostgresDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).UnixMilli()

	d.Logger.Info("Cleaning up snapshots older than %d days (flushed_at < %d)...", retentionDays, cutoff)

	query := fmt.Sprintf(`DELETE FROM "%s"."snapshots" WHERE flushed_at < $1`, d.Schema)
	if _, err := d.DB.Exec(query, cutoff); err != nil {
		d.Logger.Error("Cleanup snapshots error: %v", err)
		return err
	}

	d.Logger.Info("Cleanup completed")
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
