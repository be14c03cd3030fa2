package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"nhooyr.io/websocket"

	"github.com/clipforge/clipforge/internal/render"
)

const exportEvent = "export:update"

// WSMessage is the envelope of every websocket frame.
type WSMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// ExportHub fans render events out to websocket clients. New clients are
// sent the latest event of every export that has not finished yet.
type ExportHub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	activeMu sync.RWMutex
	active   map[string][]byte

	logger *slog.Logger
}

func NewExportHub(logger *slog.Logger) *ExportHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportHub{
		clients: make(map[*wsClient]struct{}),
		active:  make(map[string][]byte),
		logger:  logger,
	}
}

// Pump broadcasts events until the channel is closed.
func (h *ExportHub) Pump(events <-chan render.Event) {
	for ev := range events {
		h.Broadcast(ev)
	}
}

func (h *ExportHub) Broadcast(ev render.Event) {
	msg, err := json.Marshal(WSMessage{Event: exportEvent, Data: ev})
	if err != nil {
		return
	}
	h.track(ev, msg)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

func (h *ExportHub) track(ev render.Event, msg []byte) {
	h.activeMu.Lock()
	defer h.activeMu.Unlock()
	switch ev.Status {
	case render.JobStatusCompleted, render.JobStatusFailed, render.JobStatusCancelled:
		delete(h.active, ev.JobID)
	default:
		h.active[ev.JobID] = msg
	}
}

// join queues the latest event of every unfinished export for c and then
// registers it for broadcasts. Replayed events always precede later broadcasts.
func (h *ExportHub) join(c *wsClient) {
	h.activeMu.RLock()
	defer h.activeMu.RUnlock()
	for _, msg := range h.active {
		select {
		case c.send <- msg:
		default:
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *ExportHub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
}

// CloseAll disconnects every client.
func (h *ExportHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *ExportHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams export events until the client
// goes away.
func (h *ExportHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*", "localhost", "127.0.0.1"},
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", "error", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, 64)}
	h.join(client)
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())

	ctx := r.Context()
	go func() {
		defer conn.Close(websocket.StatusNormalClosure, "")
		for msg := range client.send {
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}()

	// Clients only listen; reading keeps control frames flowing and detects close.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}
	h.remove(client)
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}
