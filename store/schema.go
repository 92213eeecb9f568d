package store

// Schema is the complete scan-history schema. Timestamps are epoch
// milliseconds UTC.
const Schema = `
-- One row per completed scan
CREATE TABLE IF NOT EXISTS scans (
    id             TEXT PRIMARY KEY,
    started_at     INTEGER NOT NULL,
    finished_at    INTEGER NOT NULL,
    pizza_pct      REAL NOT NULL DEFAULT 0,
    bar_pct        REAL NOT NULL DEFAULT 0,
    pizza_samples  INTEGER NOT NULL DEFAULT 0,
    bar_samples    INTEGER NOT NULL DEFAULT 0,
    pizza_index    REAL NOT NULL DEFAULT 0,
    gay_bar_index  REAL NOT NULL DEFAULT 0,
    anomalies      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_scans_time ON scans(finished_at DESC);

-- Per-location readings of each scan
CREATE TABLE IF NOT EXISTS readings (
    id           TEXT PRIMARY KEY,
    scan_id      TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
    location_id  TEXT NOT NULL,
    busyness     INTEGER NOT NULL DEFAULT 0,
    has_data     INTEGER NOT NULL DEFAULT 0,
    source       TEXT NOT NULL DEFAULT 'none',
    error        TEXT NOT NULL DEFAULT '',
    captured_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_readings_scan ON readings(scan_id);
CREATE INDEX IF NOT EXISTS idx_readings_location ON readings(location_id, captured_at DESC);
`
