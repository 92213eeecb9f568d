package dashboard

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// ScanController is the slice of the scanner the HTTP surface needs.
type ScanController interface {
	// TriggerScan starts an immediate scan, or fails synchronously when one
	// is already in flight.
	TriggerScan() error
	// StartScanner starts the periodic loop; fails when already running.
	StartScanner() error
	// StopScanner stops the periodic loop; fails when not running.
	StopScanner() error
}

// API serves the pull surface and the websocket upgrade.
type API struct {
	store   *Store
	hub     *Hub
	scanner ScanController
}

// NewAPI creates the HTTP API.
func NewAPI(store *Store, hub *Hub, scanner ScanController) *API {
	return &API{store: store, hub: hub, scanner: scanner}
}

// Register mounts all routes on r.
func (a *API) Register(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})
	r.Get("/status", a.handleStatus)
	r.Get("/activity_feed", a.handleActivityFeed)
	r.Post("/trigger_scan", a.handleTriggerScan)
	r.Post("/scanner/start", a.handleStartScanner)
	r.Post("/scanner/stop", a.handleStopScanner)
	r.Get("/ws", a.hub.ServeWS)
}

func (a *API) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, 200, a.store.Snapshot())
}

func (a *API) handleActivityFeed(w http.ResponseWriter, _ *http.Request) {
	snap := a.store.Snapshot()
	writeJSON(w, 200, map[string]any{
		"activity_feed": snap.ActivityFeed,
		"timestamp":     time.Now(),
	})
}

func (a *API) handleTriggerScan(w http.ResponseWriter, _ *http.Request) {
	if err := a.scanner.TriggerScan(); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"status":  "scan_already_running",
			"message": err.Error(),
		})
		return
	}
	writeJSON(w, 200, map[string]string{
		"status":  "scan_triggered",
		"message": "Manual scan started",
	})
}

func (a *API) handleStartScanner(w http.ResponseWriter, _ *http.Request) {
	if err := a.scanner.StartScanner(); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"status":  "scanner_already_running",
			"message": err.Error(),
		})
		return
	}
	writeJSON(w, 200, map[string]string{"status": "scanner_started"})
}

func (a *API) handleStopScanner(w http.ResponseWriter, _ *http.Request) {
	if err := a.scanner.StopScanner(); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"status":  "scanner_not_running",
			"message": err.Error(),
		})
		return
	}
	writeJSON(w, 200, map[string]string{"status": "scanner_stopped"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
