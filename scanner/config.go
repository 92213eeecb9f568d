package scanner

import (
	"log/slog"
	"time"
)

// Config controls the periodic scan loop.
type Config struct {
	// Interval between periodic scans. Default: 1h.
	Interval time.Duration
	// ScanTimeout bounds one full scan, all locations included. Default: 10m.
	ScanTimeout time.Duration
	// InitialScan runs one scan immediately when the loop starts.
	InitialScan bool
	// AlignHourly delays the first periodic tick to the next full hour, so
	// samples land on comparable points of the popular-times histogram.
	AlignHourly bool

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.ScanTimeout <= 0 {
		c.ScanTimeout = 10 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
