package dashboard

import "time"

// Event types pushed to live subscribers, one per state transition.
const (
	EventInitialState     = "initial_state"
	EventActivityUpdate   = "activity_update"
	EventPizzaIndexUpdate = "pizza_index_update"
	EventGayBarUpdate     = "gay_bar_index_update"
	EventScanStats        = "scan_stats_update"
	EventAnomalyDetected  = "anomaly_detected"
	EventScanningStart    = "scanning_start"
	EventScanningComplete = "scanning_complete"
)

// Event is the wire envelope for one push message.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// IndexUpdate is the payload of pizza_index_update / gay_bar_index_update.
type IndexUpdate struct {
	Value    float64 `json:"value"`
	Change   float64 `json:"change"` // percent change since previous value
	OldValue float64 `json:"old_value"`
}

// ScanStats is the payload of scan_stats_update.
type ScanStats struct {
	ScanCount    int       `json:"scan_count"`
	LastScanTime time.Time `json:"last_scan_time"`
}

// AnomalyAlert is the payload of anomaly_detected.
type AnomalyAlert struct {
	AnomalyCount int       `json:"anomaly_count"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewIndexUpdateEvent builds the update event for the named series.
func NewIndexUpdateEvent(name string, value, change, old float64) Event {
	evType := EventPizzaIndexUpdate
	if name == IndexGayBar {
		evType = EventGayBarUpdate
	}
	return Event{Event: evType, Data: IndexUpdate{Value: value, Change: change, OldValue: old}}
}

// NewActivityEvent wraps a feed entry.
func NewActivityEvent(entry ActivityEntry) Event {
	return Event{Event: EventActivityUpdate, Data: entry}
}

// NewScanStatsEvent wraps the scan counters.
func NewScanStatsEvent(count int, last time.Time) Event {
	return Event{Event: EventScanStats, Data: ScanStats{ScanCount: count, LastScanTime: last}}
}

// NewAnomalyEvent wraps an anomaly alert.
func NewAnomalyEvent(count int, title, message string) Event {
	return Event{Event: EventAnomalyDetected, Data: AnomalyAlert{
		AnomalyCount: count, Title: title, Message: message, Timestamp: time.Now(),
	}}
}

// NewInitialStateEvent wraps a full snapshot for the connect handshake.
func NewInitialStateEvent(snap Snapshot) Event {
	return Event{Event: EventInitialState, Data: snap}
}
