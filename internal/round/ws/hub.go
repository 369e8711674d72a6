package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBuffer = 16
	writeWait  = 5 * time.Second
)

// ClientMsg mensagem recebida do cliente: só "ping" por enquanto
type ClientMsg struct {
	Type string `json:"type"`
}

// SnapshotFunc devolve a mensagem enviada logo após a conexão (estado corrente)
type SnapshotFunc func(ctx context.Context) ([]byte, bool)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub mantém as conexões e replica mensagens para todas elas.
// Cada conexão tem um único escritor; clientes lentos são desconectados
type Hub struct {
	upgrader websocket.Upgrader
	snapshot SnapshotFunc
	log      *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}

	OnConnect    func()
	OnDisconnect func()
	OnDropped    func()
}

func NewHub(allowOrigin func(r *http.Request) bool, snapshot SnapshotFunc, log *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		snapshot: snapshot,
		log:      log,
		clients:  make(map[*client]struct{}),
	}
}

// Clients número de conexões ativas
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS gerencia o ciclo de vida de uma conexão
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	if h.snapshot != nil {
		if b, ok := h.snapshot(r.Context()); ok {
			c.send <- b
		}
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	if h.OnConnect != nil {
		h.OnConnect()
	}

	go h.writeLoop(c)

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		if msg.Type == "ping" {
			h.enqueue(c, []byte(`{"type":"pong"}`))
		}
	}
	h.remove(c)
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for b := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			h.remove(c)
			// drena até o canal ser fechado pelo remove
			for range c.send {
			}
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close()
		if h.OnDisconnect != nil {
			h.OnDisconnect()
		}
	}
}

// enqueue não bloqueia: buffer cheio derruba o cliente
func (h *Hub) enqueue(c *client, b []byte) {
	h.mu.RLock()
	_, ok := h.clients[c]
	if ok {
		select {
		case c.send <- b:
			h.mu.RUnlock()
			return
		default:
		}
	}
	h.mu.RUnlock()
	if ok {
		h.log.Warn("ws client too slow, dropping")
		if h.OnDropped != nil {
			h.OnDropped()
		}
		h.remove(c)
	}
}

// Broadcast serializa v e envia para todos os clientes conectados
func (h *Hub) Broadcast(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	h.BroadcastRaw(b)
}

func (h *Hub) BroadcastRaw(b []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.enqueue(c, b)
	}
}
