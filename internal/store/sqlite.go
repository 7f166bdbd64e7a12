package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fundquant/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ SnapshotStore = (*SQLiteStore)(nil)

// SQLiteStore implements SnapshotStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// modernc sqlite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", dbPath, err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		dataset    TEXT    NOT NULL,
		source     TEXT    NOT NULL,
		fetched_at INTEGER NOT NULL,
		stale      INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_dataset ON snapshots(dataset, fetched_at)`,
	`CREATE TABLE IF NOT EXISTS quotes (
		snapshot_id    INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
		seq            INTEGER NOT NULL,
		code           TEXT    NOT NULL,
		name           TEXT    NOT NULL,
		latest         REAL, change_amount REAL, change_rate REAL,
		open           REAL, high REAL, low REAL, prev_close REAL,
		volume         REAL, amount REAL, amplitude REAL, turnover REAL,
		pe             REAL, pb REAL, total_cap REAL, circulated_cap REAL,
		PRIMARY KEY (snapshot_id, seq)
	)`,
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// SnapshotStore implementation
// ---------------------------------------------------------------------------

// SaveSnapshot inserts the snapshot header and all its quote rows in one
// transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (dataset, source, fetched_at, stale) VALUES (?, ?, ?, ?)`,
		string(snap.Dataset), snap.Source, snap.FetchedAt.UnixMilli(), snap.Stale)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO quotes (snapshot_id, seq, code, name, latest, change_amount, change_rate,
			open, high, low, prev_close, volume, amount, amplitude, turnover,
			pe, pb, total_cap, circulated_cap)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare quotes: %w", err)
	}
	defer stmt.Close()

	for i, q := range snap.Quotes {
		if _, err := stmt.ExecContext(ctx, id, i, q.Code, q.Name, q.Latest, q.ChangeAmount, q.ChangeRate,
			q.Open, q.High, q.Low, q.PrevClose, q.Volume, q.Amount, q.Amplitude, q.Turnover,
			q.PE, q.PB, q.TotalCap, q.CirculatedCap); err != nil {
			return fmt.Errorf("insert quote %s: %w", q.Code, err)
		}
	}
	return tx.Commit()
}

// LatestSnapshot returns the most recently fetched snapshot for dataset.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, dataset domain.Dataset) (*domain.Snapshot, error) {
	var (
		id      int64
		fetched int64
		snap    = &domain.Snapshot{Dataset: dataset}
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, fetched_at, stale FROM snapshots
		 WHERE dataset = ? ORDER BY fetched_at DESC, id DESC LIMIT 1`,
		string(dataset)).Scan(&id, &snap.Source, &fetched, &snap.Stale)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	snap.FetchedAt = time.UnixMilli(fetched)

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, latest, change_amount, change_rate, open, high, low, prev_close,
			volume, amount, amplitude, turnover, pe, pb, total_cap, circulated_cap
		FROM quotes WHERE snapshot_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q domain.Quote
		if err := rows.Scan(&q.Code, &q.Name, &q.Latest, &q.ChangeAmount, &q.ChangeRate,
			&q.Open, &q.High, &q.Low, &q.PrevClose, &q.Volume, &q.Amount, &q.Amplitude,
			&q.Turnover, &q.PE, &q.PB, &q.TotalCap, &q.CirculatedCap); err != nil {
			return nil, err
		}
		snap.Quotes = append(snap.Quotes, q)
	}
	return snap, rows.Err()
}

// Prune deletes all but the newest keep snapshots of dataset and returns the
// number of snapshots removed.
func (s *SQLiteStore) Prune(ctx context.Context, dataset domain.Dataset, keep int) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	const victims = `SELECT id FROM snapshots WHERE dataset = ?
		ORDER BY fetched_at DESC, id DESC LIMIT -1 OFFSET ?`
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM quotes WHERE snapshot_id IN (`+victims+`)`, string(dataset), keep); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM snapshots WHERE id IN (`+victims+`)`, string(dataset), keep)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}
