package api

import (
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// liveEvent is one broadcast message on a segmentation's live feed.
type liveEvent struct {
	Segmentation string        `json:"segmentation_id"`
	Stroke       strokeRequest `json:"stroke"`
}

// Hub broadcasts accepted strokes to attached viewers, so a second viewer of
// the same segmentation sees paint as it lands. Losing a message is harmless:
// the next mask snapshot carries the full state anyway.
type Hub struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]string // conn -> segmentation ID
}

// NewHub creates an empty live-feed hub.
func NewHub(corsOrigins []string) *Hub {
	allowed := make(map[string]bool, len(corsOrigins))
	for _, o := range corsOrigins {
		allowed[o] = true
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin] || allowed["*"]
			},
		},
		conns: make(map[*websocket.Conn]string),
	}
}

// ServeWS upgrades the connection and keeps it registered until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	segID := chi.URLParam(r, "segmentation")
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Live] upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = segID
	h.mu.Unlock()
	log.Printf("[Live] viewer attached to %s (%s)", segID, conn.RemoteAddr())

	// Drain reads to detect disconnects; viewers never send payloads.
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends a stroke to every viewer attached to the segmentation.
func (h *Hub) Broadcast(segID string, stroke strokeRequest) {
	event := liveEvent{Segmentation: segID, Stroke: stroke}

	// Exclusive lock: gorilla/websocket allows at most one writer per
	// connection, and concurrent stroke posts broadcast to the same conns.
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, id := range h.conns {
		if id != segID {
			continue
		}
		if err := conn.WriteJSON(event); err != nil {
			log.Printf("[Live] send to %s failed: %v", conn.RemoteAddr(), err)
		}
	}
}

// Close drops every attached viewer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
	}
	h.conns = make(map[*websocket.Conn]string)
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
	log.Printf("[Live] viewer detached (%s)", conn.RemoteAddr())
}
