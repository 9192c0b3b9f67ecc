// Package live pushes domain facts to connected browsers over websockets.
// Clients join a room per tournament; payloads carry identifiers only, so a
// client that wants details re-fetches them from the API.
package live

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rafacaro85/polla-mundialista-core/models"
)

const (
	FactMatchFinished  = "MATCH_FINISHED"
	FactPhaseUnlocked  = "PHASE_UNLOCKED"
	FactPhaseCompleted = "PHASE_COMPLETED"
)

// Fact is the wire payload broadcast to a tournament room.
type Fact struct {
	Type         string       `json:"type"`
	TournamentID int          `json:"tournament_id"`
	MatchID      int          `json:"match_id,omitempty"`
	Phase        models.Phase `json:"phase,omitempty"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	room string
}

type Hub struct {
	logger *slog.Logger

	register   chan *Client
	unregister chan *Client
	facts      chan Fact

	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		facts:      make(chan Fact, 64),
		rooms:      make(map[string]map[*Client]bool),
	}
}

func roomID(tournamentID int) string {
	return strconv.Itoa(tournamentID)
}

// NewClient wires an upgraded connection into the tournament's room and
// starts its pumps.
func (h *Hub) NewClient(conn *websocket.Conn, tournamentID int) *Client {
	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 16),
		room: roomID(tournamentID),
	}
	h.register <- client
	go client.writePump()
	go client.readPump()
	return client
}

// BroadcastFact queues a fact for the tournament room. Delivery is
// best-effort; a slow client is skipped rather than blocking the hub.
func (h *Hub) BroadcastFact(fact Fact) {
	select {
	case h.facts <- fact:
	default:
		h.logger.Warn("live fact queue full, dropping fact", slog.String("type", fact.Type))
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.room]; !ok {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.room]; ok {
				if _, present := clients[client]; present {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.room)
					}
				}
			}
			h.mu.Unlock()

		case fact := <-h.facts:
			payload, err := json.Marshal(fact)
			if err != nil {
				h.logger.Error("failed to marshal live fact", slog.Any("error", err))
				continue
			}
			h.mu.RLock()
			for client := range h.rooms[roomID(fact.TournamentID)] {
				select {
				case client.send <- payload:
				default:
					// Slow consumer; it will catch up on reconnect.
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// Inbound messages are ignored; the socket is broadcast-only.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
