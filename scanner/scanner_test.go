package scanner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ljmasx/SignalSlice/dashboard"
	"github.com/ljmasx/SignalSlice/location"
	"github.com/ljmasx/SignalSlice/sampler"
)

// eventSink records broadcast events for assertions.
type eventSink struct {
	mu     sync.Mutex
	events []dashboard.Event
}

func (e *eventSink) Broadcast(ev dashboard.Event) {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
}

func (e *eventSink) byType(evType string) []dashboard.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []dashboard.Event
	for _, ev := range e.events {
		if ev.Event == evType {
			out = append(out, ev)
		}
	}
	return out
}

// blockingSampler parks until released, to hold the scan slot open.
type blockingSampler struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingSampler) Sample(_ context.Context, locs []location.Location) []sampler.Reading {
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-b.release
	return make([]sampler.Reading, len(locs))
}

func testSet(t *testing.T) *location.Set {
	t.Helper()
	set, err := location.Parse([]byte(`
locations:
  - id: joes
    name: "Joe's Pizza"
    url: https://maps.example/joes
    category: pizza
  - id: prince
    name: "Prince Street Pizza"
    url: https://maps.example/prince
    category: pizza
  - id: stonewall
    name: "Stonewall Inn"
    url: https://maps.example/stonewall
    category: gay_bar
  - id: duplex
    name: "The Duplex"
    url: https://maps.example/duplex
    category: gay_bar
`))
	if err != nil {
		t.Fatalf("parse locations: %v", err)
	}
	return set
}

func newService(t *testing.T, smp sampler.Sampler) (*Service, *dashboard.Store, *eventSink) {
	t.Helper()
	store := dashboard.NewStore(dashboard.Config{ActiveLocations: 4})
	sink := &eventSink{}
	svc := New(Config{Logger: slog.Default()}, testSet(t), smp, store, sink, nil)
	return svc, store, sink
}

// WHAT: a first scan commits the pool means as index values without flagging
// a moderate value as anomalous.
func TestFirstScanCommitsWithoutAnomaly(t *testing.T) {
	smp := &sampler.Static{Values: map[string]int{
		"joes": 20, "prince": 40, // pizza mean 30% -> 3.0
		"stonewall": 30, "duplex": 50, // bar mean 40% -> inverted 6.0
	}}
	svc, store, sink := newService(t, smp)

	if err := svc.ScanOnce(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if got := store.Current(dashboard.IndexPizza); got != 3.0 {
		t.Fatalf("pizza index = %v, want 3.0", got)
	}
	if got := store.Current(dashboard.IndexGayBar); got != 6.0 {
		t.Fatalf("gay bar index = %v, want 6.0", got)
	}
	if snap := store.Snapshot(); snap.AnomalyCount != 0 {
		t.Fatalf("anomaly count = %d, want 0", snap.AnomalyCount)
	}
	if n := len(sink.byType(dashboard.EventPizzaIndexUpdate)); n != 1 {
		t.Fatalf("pizza update events = %d, want 1", n)
	}
	if n := len(sink.byType(dashboard.EventScanningStart)); n != 1 {
		t.Fatalf("scanning_start events = %d, want 1", n)
	}
	if n := len(sink.byType(dashboard.EventScanningComplete)); n != 1 {
		t.Fatalf("scanning_complete events = %d, want 1", n)
	}
}

// WHAT: a large jump between consecutive scans raises an anomaly, counts it
// and pushes an anomaly_detected event.
func TestJumpBetweenScansIsAnomalous(t *testing.T) {
	smp := &sampler.Static{Values: map[string]int{
		"joes": 30, "prince": 30, "stonewall": 70, "duplex": 70,
	}}
	svc, store, sink := newService(t, smp)

	if err := svc.ScanOnce(context.Background()); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	// Pizza 3.0 -> 8.0: over both thresholds.
	smp.Values["joes"] = 80
	smp.Values["prince"] = 80
	if err := svc.ScanOnce(context.Background()); err != nil {
		t.Fatalf("second scan: %v", err)
	}

	if got := store.Current(dashboard.IndexPizza); got != 8.0 {
		t.Fatalf("pizza index = %v, want 8.0", got)
	}
	snap := store.Snapshot()
	if snap.AnomalyCount != 1 {
		t.Fatalf("anomaly count = %d, want 1", snap.AnomalyCount)
	}
	alerts := sink.byType(dashboard.EventAnomalyDetected)
	if len(alerts) != 1 {
		t.Fatalf("anomaly events = %d, want 1", len(alerts))
	}
	hist := store.History(dashboard.IndexPizza)
	if len(hist) != 2 || !hist[1].Anomaly {
		t.Fatalf("history = %v, want 2 points with the last anomalous", hist)
	}
}

// WHAT: when one pool goes dark while the other reports, the dark pool's
// index keeps its previous value, emits no update event, and a warning
// entry lands in the feed.
func TestEmptyPoolRetainsIndex(t *testing.T) {
	smp := &sampler.Static{Values: map[string]int{
		"joes": 30, "prince": 30, "stonewall": 40, "duplex": 40,
	}}
	svc, store, sink := newService(t, smp)

	if err := svc.ScanOnce(context.Background()); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	// Both bars stop reporting; the pizza pool shifts a little.
	smp.Values = map[string]int{"joes": 35, "prince": 35}
	if err := svc.ScanOnce(context.Background()); err != nil {
		t.Fatalf("second scan: %v", err)
	}

	if got := store.Current(dashboard.IndexGayBar); got != 6.0 {
		t.Fatalf("gay bar index = %v, want retained 6.0", got)
	}
	if len(store.History(dashboard.IndexGayBar)) != 1 {
		t.Fatal("gay bar history advanced without data")
	}
	if n := len(sink.byType(dashboard.EventGayBarUpdate)); n != 1 {
		t.Fatalf("gay bar update events = %d, want 1", n)
	}
	if n := len(sink.byType(dashboard.EventPizzaIndexUpdate)); n != 2 {
		t.Fatalf("pizza update events = %d, want 2", n)
	}
	warned := false
	for _, e := range store.Snapshot().ActivityFeed {
		if e.Kind == dashboard.KindWarning && e.Level == dashboard.LevelWarning {
			warned = true
		}
	}
	if !warned {
		t.Fatal("no warning entry for the empty pool")
	}
	if snap := store.Snapshot(); snap.ScanCount != 2 {
		t.Fatalf("scan count = %d, want 2", snap.ScanCount)
	}
}

// WHAT: a scan where no location yields data advances the scan counter but
// leaves both indexes and their histories untouched.
// WHY: an outage must not masquerade as "the city went quiet".
func TestTotalFailureSkipsABeat(t *testing.T) {
	smp := &sampler.Static{Values: map[string]int{
		"joes": 40, "prince": 40, "stonewall": 40, "duplex": 40,
	}}
	svc, store, sink := newService(t, smp)

	if err := svc.ScanOnce(context.Background()); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	smp.Values = map[string]int{}
	if err := svc.ScanOnce(context.Background()); err != nil {
		t.Fatalf("failed scan: %v", err)
	}

	snap := store.Snapshot()
	if snap.ScanCount != 2 {
		t.Fatalf("scan count = %d, want 2", snap.ScanCount)
	}
	if snap.PizzaIndex != 4.0 {
		t.Fatalf("pizza index = %v, want unchanged 4.0", snap.PizzaIndex)
	}
	if len(store.History(dashboard.IndexPizza)) != 1 {
		t.Fatal("history advanced on a failed scan")
	}
	if n := len(sink.byType(dashboard.EventPizzaIndexUpdate)); n != 1 {
		t.Fatalf("pizza update events = %d, want 1 (none for the failed scan)", n)
	}
	critical := false
	for _, e := range snap.ActivityFeed {
		if e.Kind == dashboard.KindError && e.Level == dashboard.LevelCritical {
			critical = true
		}
	}
	if !critical {
		t.Fatal("no critical error entry for the failed scan")
	}
}

// WHAT: while one scan holds the slot, further triggers fail with
// ErrScanInProgress instead of queueing.
func TestSingleFlight(t *testing.T) {
	smp := &blockingSampler{started: make(chan struct{}, 1), release: make(chan struct{})}
	svc, _, _ := newService(t, smp)

	if err := svc.TriggerScan(); err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	<-smp.started

	if err := svc.TriggerScan(); !errors.Is(err, ErrScanInProgress) {
		t.Fatalf("second trigger = %v, want ErrScanInProgress", err)
	}
	if err := svc.ScanOnce(context.Background()); !errors.Is(err, ErrScanInProgress) {
		t.Fatalf("ScanOnce = %v, want ErrScanInProgress", err)
	}

	close(smp.release)
	deadline := time.After(2 * time.Second)
	for svc.scanning.Load() {
		select {
		case <-deadline:
			t.Fatal("scan slot never released")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if err := svc.TriggerScan(); err != nil {
		t.Fatalf("trigger after release: %v", err)
	}
}

// WHAT: scanning_complete closes the bracket: the completion activity is
// broadcast before it, and nothing follows it.
func TestScanEventOrdering(t *testing.T) {
	smp := &sampler.Static{Values: map[string]int{
		"joes": 30, "prince": 30, "stonewall": 40, "duplex": 40,
	}}
	svc, _, sink := newService(t, smp)

	if err := svc.ScanOnce(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) == 0 {
		t.Fatal("no events broadcast")
	}
	last := sink.events[len(sink.events)-1]
	if last.Event != dashboard.EventScanningComplete {
		t.Fatalf("last event = %s, want scanning_complete", last.Event)
	}
	completionSeen := false
	for _, ev := range sink.events {
		if ev.Event != dashboard.EventActivityUpdate {
			continue
		}
		if entry, ok := ev.Data.(dashboard.ActivityEntry); ok && entry.Kind == dashboard.KindAnalyze {
			completionSeen = true
		}
	}
	if !completionSeen {
		t.Fatal("no completion activity broadcast before scanning_complete")
	}
}

// WHAT: aligned scheduling re-aims at the next full hour every cycle, so a
// slow scan cannot drift the schedule; unaligned mode uses the interval.
func TestNextDelayRealignsEachCycle(t *testing.T) {
	at := func(min, sec int) time.Time {
		return time.Date(2026, 8, 29, 10, min, sec, 0, time.UTC)
	}
	if got := nextDelay(at(25, 30), time.Hour, true); got != 34*time.Minute+30*time.Second {
		t.Errorf("aligned at 10:25:30: got %v, want 34m30s", got)
	}
	// Just after a scan that ran past the hour mark.
	if got := nextDelay(at(0, 42), time.Hour, true); got != 59*time.Minute+18*time.Second {
		t.Errorf("aligned at 10:00:42: got %v, want 59m18s", got)
	}
	if got := nextDelay(at(25, 30), 15*time.Minute, false); got != 15*time.Minute {
		t.Errorf("unaligned: got %v, want 15m", got)
	}
}

// WHAT: the periodic loop lifecycle rejects double starts and double stops
// and flips the scanner_running flag.
func TestScannerLifecycle(t *testing.T) {
	smp := &sampler.Static{Values: map[string]int{}}
	svc, store, _ := newService(t, smp)

	if err := svc.StartScanner(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.StartScanner(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second start = %v, want ErrAlreadyRunning", err)
	}
	if !store.Snapshot().ScannerRunning {
		t.Fatal("scanner_running flag not set")
	}

	if err := svc.StopScanner(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := svc.StopScanner(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("second stop = %v, want ErrNotRunning", err)
	}
	svc.Wait()
	if store.Snapshot().ScannerRunning {
		t.Fatal("scanner_running flag still set after stop")
	}
}
