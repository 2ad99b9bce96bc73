package picktest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 2 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// peer is one connected socket.
type peer struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.send)
	})
}

// Hub broadcasts realtime messages to every socket of one batch.
type Hub struct {
	mu       sync.RWMutex
	peers    map[*peer]bool
	accepted int
	stopped  bool
	refuse   bool
	logger   *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		peers:  make(map[*peer]bool),
		logger: logger,
	}
}

// Broadcast sends payload, JSON encoded, to every connected peer.
// Returns the number of peers the message was queued for.
func (h *Hub) Broadcast(payload any) int {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast", "error", err)
		return 0
	}
	return h.BroadcastRaw(data)
}

// BroadcastRaw sends a raw frame to every connected peer.
func (h *Hub) BroadcastRaw(data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return 0
	}
	n := 0
	for p := range h.peers {
		select {
		case p.send <- data:
			n++
		default:
			h.logger.Warn("Dropping slow socket peer")
		}
	}
	return n
}

// ClientCount returns the number of connected peers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Accepted returns how many sockets were upgraded over the hub's lifetime.
func (h *Hub) Accepted() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.accepted
}

// DropAll closes every connected socket, as a server restart would.
func (h *Hub) DropAll() {
	h.mu.Lock()
	peers := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
		delete(h.peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		p.close()
	}
}

// Refuse makes new handshakes fail with 503 until called with false.
func (h *Hub) Refuse(refuse bool) {
	h.mu.Lock()
	h.refuse = refuse
	h.mu.Unlock()
}

// Stop closes all peers and refuses new ones. Safe to call more than once.
func (h *Hub) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.DropAll()
}

// ServeWs upgrades a request and registers the socket.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	unavailable := h.stopped || h.refuse
	h.mu.RUnlock()
	if unavailable {
		http.Error(w, "realtime unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	p := &peer{hub: h, conn: conn, send: make(chan []byte, 64)}

	h.mu.Lock()
	h.peers[p] = true
	h.accepted++
	h.mu.Unlock()

	go p.writePump()
	go p.readPump()
}

func (h *Hub) unregister(p *peer) {
	h.mu.Lock()
	if h.peers[p] {
		delete(h.peers, p)
	}
	h.mu.Unlock()
	p.close()
}

// readPump discards inbound frames and unregisters the peer on close.
func (p *peer) readPump() {
	defer func() {
		p.hub.unregister(p)
		_ = p.conn.Close()
	}()

	p.conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := p.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump sends one frame per message until the send channel closes.
func (p *peer) writePump() {
	defer func() {
		_ = p.conn.Close()
	}()

	for message := range p.send {
		if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return
		}
		if err := p.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}

	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = p.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseServiceRestart, "bye"))
}
