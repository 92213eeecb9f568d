// Package store persists scan history to SQLite. It is optional plumbing:
// the dashboard runs entirely from memory, the store only archives completed
// scans for later analysis.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ljmasx/SignalSlice/scanner"
)

// Store wraps the scan-history database.
type Store struct {
	DB *sql.DB
}

// New creates a Store from an already-opened database.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// ScanRecord is one archived scan.
type ScanRecord struct {
	ID           string  `json:"id"`
	StartedAt    int64   `json:"started_at"`
	FinishedAt   int64   `json:"finished_at"`
	PizzaPct     float64 `json:"pizza_pct"`
	BarPct       float64 `json:"bar_pct"`
	PizzaSamples int     `json:"pizza_samples"`
	BarSamples   int     `json:"bar_samples"`
	PizzaIndex   float64 `json:"pizza_index"`
	GayBarIndex  float64 `json:"gay_bar_index"`
	Anomalies    int     `json:"anomalies"`
}

// ReadingRecord is one archived per-location reading.
type ReadingRecord struct {
	ID         string `json:"id"`
	ScanID     string `json:"scan_id"`
	LocationID string `json:"location_id"`
	Busyness   int    `json:"busyness"`
	HasData    bool   `json:"has_data"`
	Source     string `json:"source"`
	Error      string `json:"error,omitempty"`
	CapturedAt int64  `json:"captured_at"`
}

// Stats summarises the archive.
type Stats struct {
	ScanCount    int   `json:"scan_count"`
	ReadingCount int   `json:"reading_count"`
	AnomalyCount int   `json:"anomaly_count"`
	OldestScan   int64 `json:"oldest_scan"`
	NewestScan   int64 `json:"newest_scan"`
}

// Archive persists one completed scan and its readings in a transaction.
func (s *Store) Archive(ctx context.Context, res scanner.Result) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	scanID := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO scans (id, started_at, finished_at, pizza_pct, bar_pct,
		pizza_samples, bar_samples, pizza_index, gay_bar_index, anomalies)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		scanID, res.StartedAt.UnixMilli(), res.FinishedAt.UnixMilli(),
		res.Aggregate.PizzaPct, res.Aggregate.BarPct,
		res.Aggregate.PizzaSamples, res.Aggregate.BarSamples,
		res.PizzaIndex, res.GayBarIndex, res.Anomalies,
	)
	if err != nil {
		return fmt.Errorf("store: insert scan: %w", err)
	}

	for _, r := range res.Readings {
		capturedAt := r.CapturedAt
		if capturedAt.IsZero() {
			capturedAt = res.FinishedAt
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO readings (id, scan_id, location_id, busyness, has_data,
			source, error, captured_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), scanID, r.LocationID, r.Busyness, r.HasData,
			r.Source, r.Err, capturedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("store: insert reading %s: %w", r.LocationID, err)
		}
	}
	return tx.Commit()
}

// RecentScans returns archived scans, newest first.
func (s *Store) RecentScans(ctx context.Context, limit int) ([]*ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, started_at, finished_at, pizza_pct, bar_pct,
		pizza_samples, bar_samples, pizza_index, gay_bar_index, anomalies
		FROM scans ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*ScanRecord
	for rows.Next() {
		var r ScanRecord
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.PizzaPct,
			&r.BarPct, &r.PizzaSamples, &r.BarSamples, &r.PizzaIndex,
			&r.GayBarIndex, &r.Anomalies); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		result = append(result, &r)
	}
	return result, rows.Err()
}

// ReadingsForScan returns one scan's readings, ordered by location.
func (s *Store) ReadingsForScan(ctx context.Context, scanID string) ([]*ReadingRecord, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, scan_id, location_id, busyness, has_data, source, error, captured_at
		FROM readings WHERE scan_id = ? ORDER BY location_id`, scanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*ReadingRecord
	for rows.Next() {
		var r ReadingRecord
		if err := rows.Scan(&r.ID, &r.ScanID, &r.LocationID, &r.Busyness,
			&r.HasData, &r.Source, &r.Error, &r.CapturedAt); err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		result = append(result, &r)
	}
	return result, rows.Err()
}

// LocationHistory returns one location's readings, newest first.
func (s *Store) LocationHistory(ctx context.Context, locationID string, limit int) ([]*ReadingRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, scan_id, location_id, busyness, has_data, source, error, captured_at
		FROM readings WHERE location_id = ?
		ORDER BY captured_at DESC LIMIT ?`, locationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*ReadingRecord
	for rows.Next() {
		var r ReadingRecord
		if err := rows.Scan(&r.ID, &r.ScanID, &r.LocationID, &r.Busyness,
			&r.HasData, &r.Source, &r.Error, &r.CapturedAt); err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		result = append(result, &r)
	}
	return result, rows.Err()
}

// ArchiveStats summarises the archive contents.
func (s *Store) ArchiveStats(ctx context.Context) (*Stats, error) {
	var st Stats
	var oldest, newest sql.NullInt64
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(anomalies), 0), MIN(finished_at), MAX(finished_at)
		FROM scans`).Scan(&st.ScanCount, &st.AnomalyCount, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}
	st.OldestScan = oldest.Int64
	st.NewestScan = newest.Int64
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM readings`).Scan(&st.ReadingCount); err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}
	return &st, nil
}

// Prune deletes scans finished before the cutoff; readings cascade. Returns
// the number of scans removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM scans WHERE finished_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("store: prune: %w", err)
	}
	return res.RowsAffected()
}
