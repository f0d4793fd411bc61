// Package realtime pushes committed changes to connected POS terminals over
// WebSocket so their product, customer and sale views refresh.
package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"pos-backend/internal/metrics"
	"pos-backend/internal/models"
)

const (
	writeWait  = 5 * time.Second
	bufferSize = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans events out to the clients subscribed to the event's branch.
type Hub struct {
	clients    map[*websocket.Conn]string
	clientsMux sync.Mutex
	broadcast  chan models.Event
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]string),
		broadcast: make(chan models.Event, bufferSize),
	}
}

// Publish queues evt. It never blocks a caller; when the queue is full the
// event is dropped and terminals catch up on their next refresh.
func (h *Hub) Publish(evt models.Event) {
	select {
	case h.broadcast <- evt:
	default:
		log.WithFields(log.Fields{"type": evt.Type, "branch": evt.BranchID}).Warn("[Realtime] Queue full, dropping event")
	}
}

// Run delivers queued events until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case evt := <-h.broadcast:
			h.deliver(evt)
		}
	}
}

func (h *Hub) deliver(evt models.Event) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	for client, branch := range h.clients {
		if branch != evt.BranchID {
			continue
		}
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteJSON(evt); err != nil {
			client.Close()
			delete(h.clients, client)
			metrics.RealtimeClients.Dec()
		}
	}
}

func (h *Hub) closeAll() {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	for client := range h.clients {
		client.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		client.Close()
		delete(h.clients, client)
		metrics.RealtimeClients.Dec()
	}
}

// Clients returns the number of connected terminals.
func (h *Hub) Clients() int {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and subscribes the connection to the branch
// given in the "branch" query parameter.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	branch := r.URL.Query().Get("branch")
	if branch == "" {
		http.Error(w, "branch query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("[Realtime] WebSocket upgrade failed")
		return
	}

	h.clientsMux.Lock()
	h.clients[conn] = branch
	h.clientsMux.Unlock()
	metrics.RealtimeClients.Inc()

	log.WithFields(log.Fields{"branch": branch, "remote": r.RemoteAddr}).Debug("[Realtime] Client connected")

	// terminals only listen; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.clientsMux.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		metrics.RealtimeClients.Dec()
	}
	h.clientsMux.Unlock()
	conn.Close()
}
