// Package scanner drives the scan pipeline: claim the single scan slot,
// sample every configured location, aggregate per pool, classify anomalies,
// commit to the dashboard store and push the resulting events. At most one
// scan is ever in flight, whether triggered manually or by the periodic loop.
package scanner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ljmasx/SignalSlice/dashboard"
	"github.com/ljmasx/SignalSlice/index"
	"github.com/ljmasx/SignalSlice/location"
	"github.com/ljmasx/SignalSlice/sampler"
)

// Broadcaster delivers one event to live subscribers. Must not block.
type Broadcaster interface {
	Broadcast(ev dashboard.Event)
}

// Result is the archival record of one completed scan.
type Result struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	Readings    []sampler.Reading
	Aggregate   index.Aggregate
	PizzaIndex  float64
	GayBarIndex float64
	Anomalies   int
}

// Archiver persists completed scans. Optional; archival failures are logged
// and never fail the scan.
type Archiver interface {
	Archive(ctx context.Context, res Result) error
}

// Service owns the scan slot and the periodic loop.
type Service struct {
	cfg      Config
	set      *location.Set
	sampler  sampler.Sampler
	store    *dashboard.Store
	events   Broadcaster
	archiver Archiver

	scanning atomic.Bool

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New creates a scan service. archiver may be nil.
func New(cfg Config, set *location.Set, smp sampler.Sampler, store *dashboard.Store, events Broadcaster, archiver Archiver) *Service {
	cfg.defaults()
	return &Service{
		cfg:      cfg,
		set:      set,
		sampler:  smp,
		store:    store,
		events:   events,
		archiver: archiver,
	}
}

// TriggerScan claims the scan slot and runs one scan in the background.
// Fails synchronously with ErrScanInProgress when a scan is already running,
// so callers can report the conflict immediately.
func (s *Service) TriggerScan() error {
	if !s.scanning.CompareAndSwap(false, true) {
		return ErrScanInProgress
	}
	go func() {
		defer s.scanning.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ScanTimeout)
		defer cancel()
		s.scan(ctx)
	}()
	return nil
}

// ScanOnce claims the slot and runs one scan synchronously.
func (s *Service) ScanOnce(ctx context.Context) error {
	if !s.scanning.CompareAndSwap(false, true) {
		return ErrScanInProgress
	}
	defer s.scanning.Store(false)
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ScanTimeout)
	defer cancel()
	s.scan(ctx)
	return nil
}

// StartScanner starts the periodic loop.
func (s *Service) StartScanner() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.store.SetScannerRunning(true)
	entry := s.store.AddActivity(dashboard.KindSystem, "Periodic scanner started", dashboard.LevelSuccess)
	s.events.Broadcast(dashboard.NewActivityEvent(entry))
	go s.loop(s.stop, s.done)
	return nil
}

// StopScanner signals the periodic loop to stop. An in-flight scan finishes;
// use Wait to block until the loop has fully exited.
func (s *Service) StopScanner() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrNotRunning
	}
	s.running = false
	close(s.stop)
	entry := s.store.AddActivity(dashboard.KindSystem, "Periodic scanner stopped", dashboard.LevelWarning)
	s.events.Broadcast(dashboard.NewActivityEvent(entry))
	return nil
}

// Wait blocks until the periodic loop has exited. Returns immediately when
// the loop was never started.
func (s *Service) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *Service) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer s.store.SetScannerRunning(false)

	if s.cfg.InitialScan {
		if err := s.ScanOnce(context.Background()); err != nil {
			s.cfg.Logger.Warn("scanner: initial scan skipped", "error", err)
		}
	}

	timer := time.NewTimer(nextDelay(time.Now(), s.cfg.Interval, s.cfg.AlignHourly))
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			if err := s.ScanOnce(context.Background()); err != nil {
				s.cfg.Logger.Warn("scanner: periodic scan skipped", "error", err)
			}
			timer.Reset(nextDelay(time.Now(), s.cfg.Interval, s.cfg.AlignHourly))
		}
	}
}

// nextDelay returns the wait before the next periodic scan. Aligned mode
// recomputes the distance to the next full hour on every cycle, so the
// minutes a scan takes never drift the schedule off the hour marks.
func nextDelay(now time.Time, interval time.Duration, align bool) time.Duration {
	if !align {
		return interval
	}
	return now.Truncate(time.Hour).Add(time.Hour).Sub(now)
}

// scan runs the full pipeline. The caller holds the scan slot.
func (s *Service) scan(ctx context.Context) {
	started := time.Now()
	s.store.SetScanning(true)
	defer s.store.SetScanning(false)

	s.events.Broadcast(dashboard.Event{Event: dashboard.EventScanningStart})
	entry := s.store.AddActivity(dashboard.KindScan,
		fmt.Sprintf("Scanning %d locations...", s.set.Active()), dashboard.LevelNormal)
	s.events.Broadcast(dashboard.NewActivityEvent(entry))

	readings := s.sampler.Sample(ctx, s.set.Locations)
	s.reportReadings(readings)

	agg := index.Compute(readings, s.set)
	finished := time.Now()

	if agg.PizzaSamples == 0 && agg.BarSamples == 0 {
		// Total failure: the scan counts, the indexes skip a beat.
		s.cfg.Logger.Error("scanner: scan produced no usable data")
		entry := s.store.AddActivity(dashboard.KindError,
			"Scan failed: no data from any location", dashboard.LevelCritical)
		s.events.Broadcast(dashboard.NewActivityEvent(entry))
		s.finish(finished)
		return
	}

	anomalies := 0
	if agg.PizzaSamples > 0 {
		if s.commit(dashboard.IndexPizza, agg.PizzaIndex()) {
			anomalies++
		}
	} else {
		s.warnEmptyPool("pizza")
	}
	if agg.BarSamples > 0 {
		if s.commit(dashboard.IndexGayBar, agg.BarIndex()) {
			anomalies++
		}
	} else {
		s.warnEmptyPool("gay bar")
	}

	if s.archiver != nil {
		res := Result{
			StartedAt:   started,
			FinishedAt:  finished,
			Readings:    readings,
			Aggregate:   agg,
			PizzaIndex:  s.store.Current(dashboard.IndexPizza),
			GayBarIndex: s.store.Current(dashboard.IndexGayBar),
			Anomalies:   anomalies,
		}
		if err := s.archiver.Archive(ctx, res); err != nil {
			s.cfg.Logger.Error("scanner: archive scan", "error", err)
		}
	}

	entry = s.store.AddActivity(dashboard.KindAnalyze,
		fmt.Sprintf("Scan complete in %s", finished.Sub(started).Round(time.Second)),
		dashboard.LevelSuccess)
	s.events.Broadcast(dashboard.NewActivityEvent(entry))
	s.finish(finished)
}

// commit classifies one accepted value against the previous one, records it
// and pushes the update. Reports whether the value was anomalous.
func (s *Service) commit(name string, value float64) bool {
	prev := s.store.Current(name)
	change := index.PercentChange(prev, value)
	anomaly := index.Classify(prev, value)

	s.store.CommitIndex(name, value, anomaly)
	s.events.Broadcast(dashboard.NewIndexUpdateEvent(name, value, change, prev))
	s.cfg.Logger.Info("scanner: index updated",
		"index", name, "value", value, "change", change, "anomaly", anomaly)

	if !anomaly {
		return false
	}
	count := s.store.CountAnomaly()
	title := "Pizza Index Anomaly"
	kind := dashboard.KindPizza
	if name == dashboard.IndexGayBar {
		title = "Gay Bar Index Anomaly"
		kind = dashboard.KindGayBar
	}
	msg := fmt.Sprintf("%s jumped from %.1f to %.1f (%+.1f%%)", title, prev, value, change)
	if prev <= 0 {
		msg = fmt.Sprintf("%s opened high at %.1f", title, value)
	}
	entry := s.store.AddActivity(kind, msg, dashboard.LevelCritical)
	s.events.Broadcast(dashboard.NewActivityEvent(entry))
	s.events.Broadcast(dashboard.NewAnomalyEvent(count, title, msg))
	return true
}

// warnEmptyPool records that one pool produced no usable readings this
// scan. The pool's index keeps its previous value and emits no update.
func (s *Service) warnEmptyPool(pool string) {
	s.cfg.Logger.Warn("scanner: no usable readings for pool", "pool", pool)
	entry := s.store.AddActivity(dashboard.KindWarning,
		fmt.Sprintf("No data from any %s location, index unchanged", pool),
		dashboard.LevelWarning)
	s.events.Broadcast(dashboard.NewActivityEvent(entry))
}

func (s *Service) reportReadings(readings []sampler.Reading) {
	usable := 0
	for _, r := range readings {
		if r.HasData {
			usable++
			continue
		}
		s.cfg.Logger.Warn("scanner: no data for location",
			"location", r.LocationID, "error", r.Err)
	}
	level := dashboard.LevelNormal
	if usable < len(readings) {
		level = dashboard.LevelWarning
	}
	entry := s.store.AddActivity(dashboard.KindScrape,
		fmt.Sprintf("Collected busyness for %d/%d locations", usable, len(readings)), level)
	s.events.Broadcast(dashboard.NewActivityEvent(entry))
}

func (s *Service) finish(ts time.Time) {
	count := s.store.FinishScan(ts)
	s.events.Broadcast(dashboard.NewScanStatsEvent(count, ts))
	s.events.Broadcast(dashboard.Event{Event: dashboard.EventScanningComplete})
}
