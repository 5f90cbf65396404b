// Package events streams game events to connected players over WebSocket.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"tycoon/internal/game"
	"tycoon/internal/metrics"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingEvery  = 30 * time.Second
	clientBuf  = 64
	publishBuf = 256
)

// Message is one batch of events for one player, as sent to its clients.
type Message struct {
	Type     string       `json:"type"`
	PlayerID string       `json:"player_id"`
	Events   []game.Event `json:"events"`
	At       time.Time    `json:"at"`
}

type client struct {
	playerID string
	conn     *websocket.Conn
	send     chan []byte
}

type outbound struct {
	playerID string
	data     []byte
}

// Hub fans events out to the sockets subscribed to each player. It implements
// game.Publisher; Publish never blocks and drops batches when the hub is behind.
type Hub struct {
	log        *slog.Logger
	clients    map[string]map[*client]struct{}
	broadcast  chan outbound
	register   chan *client
	unregister chan *client
	done       chan struct{}
	upgrader   websocket.Upgrader
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		log:        logger,
		clients:    make(map[string]map[*client]struct{}),
		broadcast:  make(chan outbound, publishBuf),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Run owns the client registry until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for _, set := range h.clients {
				for c := range set {
					h.drop(c)
				}
			}
			return

		case c := <-h.register:
			set := h.clients[c.playerID]
			if set == nil {
				set = make(map[*client]struct{})
				h.clients[c.playerID] = set
			}
			set[c] = struct{}{}
			metrics.WebSocketClients.Inc()
			h.log.Info("event stream connected", "player_id", c.playerID, "player_clients", len(set))

		case c := <-h.unregister:
			if set, ok := h.clients[c.playerID]; ok {
				if _, ok := set[c]; ok {
					h.drop(c)
				}
			}

		case msg := <-h.broadcast:
			for c := range h.clients[msg.playerID] {
				select {
				case c.send <- msg.data:
				default:
					h.log.Warn("event stream client too slow, dropping", "player_id", c.playerID)
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	set := h.clients[c.playerID]
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.playerID)
	}
	close(c.send)
	metrics.WebSocketClients.Dec()
}

func (h *Hub) Publish(playerID string, evs []game.Event) {
	if len(evs) == 0 {
		return
	}
	data, err := json.Marshal(Message{Type: "events", PlayerID: playerID, Events: evs, At: time.Now().UTC()})
	if err != nil {
		h.log.Error("encode events failed", "player_id", playerID, "err", err)
		return
	}
	select {
	case h.broadcast <- outbound{playerID: playerID, data: data}:
	default:
	}
}

// HandleWS upgrades the request and subscribes the socket to playerID.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request, playerID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("event stream upgrade failed", "player_id", playerID, "err", err)
		return
	}
	c := &client{playerID: playerID, conn: conn, send: make(chan []byte, clientBuf)}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
