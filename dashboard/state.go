// Package dashboard owns the process-wide dashboard state and its delivery:
// the state store with its bounded history and activity rings, the typed
// event model, and the websocket hub with a polling-friendly snapshot.
package dashboard

import (
	"sync"
	"time"
)

// Index series names.
const (
	IndexPizza  = "pizza_index"
	IndexGayBar = "gay_bar_index"
)

// Activity entry kinds.
const (
	KindInit    = "INIT"
	KindScan    = "SCAN"
	KindScrape  = "SCRAPE"
	KindAnalyze = "ANALYZE"
	KindAnomaly = "ANOMALY"
	KindConnect = "CONNECT"
	KindSystem  = "SYSTEM"
	KindError   = "ERROR"
	KindWarning = "WARNING"
	KindPizza   = "PIZZA"
	KindGayBar  = "GAYBAR"
)

// Activity severity levels.
const (
	LevelNormal   = "normal"
	LevelWarning  = "warning"
	LevelCritical = "critical"
	LevelSuccess  = "success"
)

// IndexValue is one accepted index observation.
type IndexValue struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Anomaly   bool      `json:"is_anomaly"`
}

// ActivityEntry is one feed record. Immutable once created.
type ActivityEntry struct {
	Kind      string    `json:"type"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is a consistent, immutable read of the dashboard state.
type Snapshot struct {
	PizzaIndex      float64         `json:"pizza_index"`
	GayBarIndex     float64         `json:"gay_bar_index"`
	ActiveLocations int             `json:"active_locations"`
	ScanCount       int             `json:"scan_count"`
	AnomalyCount    int             `json:"anomaly_count"`
	LastScanTime    *time.Time      `json:"last_scan_time"`
	Scanning        bool            `json:"scanning"`
	ScannerRunning  bool            `json:"scanner_running"`
	ActivityFeed    []ActivityEntry `json:"activity_feed"`
}

// Config sizes the bounded rings.
type Config struct {
	// MaxActivityItems caps the activity feed. Default: 10.
	MaxActivityItems int
	// MaxChartPoints caps each index history ring. Default: 50.
	MaxChartPoints int
	// ActiveLocations is the size of the configured location set.
	ActiveLocations int
}

func (c *Config) defaults() {
	if c.MaxActivityItems <= 0 {
		c.MaxActivityItems = 10
	}
	if c.MaxChartPoints <= 0 {
		c.MaxChartPoints = 50
	}
}

// series is one index's current value plus its bounded history.
type series struct {
	current IndexValue
	history []IndexValue
}

// Store is the sole owner of mutable dashboard state. The scanner pipeline
// is its only writer; readers observe committed state through Snapshot.
// Commits are short; sampling never happens under this lock.
type Store struct {
	mu             sync.RWMutex
	cfg            Config
	pizza          series
	gayBar         series
	activity       []ActivityEntry // most-recent-first
	scanCount      int
	anomalyCount   int
	lastScanTime   *time.Time
	scanning       bool
	scannerRunning bool
}

// NewStore creates a Store.
func NewStore(cfg Config) *Store {
	cfg.defaults()
	return &Store{cfg: cfg}
}

// CommitIndex appends an accepted value to the named series, evicting the
// oldest history entry past capacity, and moves the current-value pointer.
func (s *Store) CommitIndex(name string, value float64, anomaly bool) IndexValue {
	iv := IndexValue{Value: value, Timestamp: time.Now(), Anomaly: anomaly}
	s.mu.Lock()
	defer s.mu.Unlock()
	ser := s.seriesFor(name)
	if ser == nil {
		return iv
	}
	ser.current = iv
	ser.history = append(ser.history, iv)
	if len(ser.history) > s.cfg.MaxChartPoints {
		// Eviction happens at every insert so the cap holds at all times.
		ser.history = ser.history[len(ser.history)-s.cfg.MaxChartPoints:]
	}
	return iv
}

// Current returns the named index's current value (zero before first commit).
func (s *Store) Current(name string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ser := s.seriesFor(name); ser != nil {
		return ser.current.Value
	}
	return 0
}

// History returns a chronological copy of the named series' ring.
func (s *Store) History(name string) []IndexValue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ser := s.seriesFor(name)
	if ser == nil {
		return nil
	}
	out := make([]IndexValue, len(ser.history))
	copy(out, ser.history)
	return out
}

// AddActivity prepends a feed entry, evicting the oldest past capacity.
func (s *Store) AddActivity(kind, message, level string) ActivityEntry {
	entry := ActivityEntry{Kind: kind, Message: message, Level: level, Timestamp: time.Now()}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append([]ActivityEntry{entry}, s.activity...)
	if len(s.activity) > s.cfg.MaxActivityItems {
		s.activity = s.activity[:s.cfg.MaxActivityItems]
	}
	return entry
}

// SetScanning flips the scanning flag for snapshot readers. The atomic
// single-flight claim itself lives in the scanner.
func (s *Store) SetScanning(v bool) {
	s.mu.Lock()
	s.scanning = v
	s.mu.Unlock()
}

// SetScannerRunning records whether the periodic loop is alive.
func (s *Store) SetScannerRunning(v bool) {
	s.mu.Lock()
	s.scannerRunning = v
	s.mu.Unlock()
}

// FinishScan increments the scan counter and stamps the scan time. Called
// exactly once per scan attempt, success or failure.
func (s *Store) FinishScan(ts time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanCount++
	s.lastScanTime = &ts
	return s.scanCount
}

// CountAnomaly bumps the monotonic anomaly counter.
func (s *Store) CountAnomaly() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anomalyCount++
	return s.anomalyCount
}

// Snapshot returns an immutable copy of the committed state, activity feed
// most-recent-first.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feed := make([]ActivityEntry, len(s.activity))
	copy(feed, s.activity)
	var last *time.Time
	if s.lastScanTime != nil {
		t := *s.lastScanTime
		last = &t
	}
	return Snapshot{
		PizzaIndex:      s.pizza.current.Value,
		GayBarIndex:     s.gayBar.current.Value,
		ActiveLocations: s.cfg.ActiveLocations,
		ScanCount:       s.scanCount,
		AnomalyCount:    s.anomalyCount,
		LastScanTime:    last,
		Scanning:        s.scanning,
		ScannerRunning:  s.scannerRunning,
		ActivityFeed:    feed,
	}
}

func (s *Store) seriesFor(name string) *series {
	switch name {
	case IndexPizza:
		return &s.pizza
	case IndexGayBar:
		return &s.gayBar
	default:
		return nil
	}
}
