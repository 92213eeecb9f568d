package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Hub fans committed state transitions out to live websocket subscribers.
// Delivery is best-effort and at-most-once per connection: a client whose
// send buffer is full is dropped and must reconnect and re-snapshot.
type Hub struct {
	store      *Store
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	logger     *slog.Logger
}

// NewHub creates a Hub bound to the given store. Call Run to start it.
func NewHub(store *Store, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		store:      store,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 64),
		logger:     logger,
	}
}

// Run dispatches registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return

		case client := <-h.register:
			// Initial-state handshake: the full snapshot is queued before
			// the client joins the broadcast set, so it never observes a
			// gap between join and first incremental event.
			if msg, err := json.Marshal(NewInitialStateEvent(h.store.Snapshot())); err == nil {
				client.send <- msg
			}
			h.clients[client] = true
			h.logger.Info("dashboard: client connected", "remote", client.remoteAddr())

			entry := h.store.AddActivity(KindConnect, "Dashboard client connected", LevelNormal)
			h.fanOut(NewActivityEvent(entry))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Info("dashboard: client disconnected", "remote", client.remoteAddr())
			}

		case ev := <-h.broadcast:
			h.fanOut(ev)
		}
	}
}

// Broadcast queues an event for all live subscribers. Emitted by the
// scanner only after the corresponding store commit. Non-blocking: under
// backpressure the event is dropped for everyone and logged; polling
// clients are unaffected.
func (h *Hub) Broadcast(ev Event) {
	select {
	case h.broadcast <- ev:
	default:
		h.logger.Warn("dashboard: broadcast queue full, dropping event", "event", ev.Event)
	}
}

func (h *Hub) fanOut(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("dashboard: marshal event", "event", ev.Event, "error", err)
		return
	}
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			// Slow or gone: drop the connection, it will re-snapshot.
			h.logger.Warn("dashboard: client send buffer full, dropping", "remote", client.remoteAddr())
			close(client.send)
			delete(h.clients, client)
		}
	}
}
