package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
)

const (
	writeWait      = 10 * time.Second
	clientSendSize = 256
)

// Message is the frame written to websocket clients.
type Message struct {
	Type  string          `json:"type"`
	Event *model.Event    `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is one websocket connection bound to a player of a game.
type Client struct {
	ID       string
	GameID   model.GameID
	PlayerID model.PlayerID

	conn *websocket.Conn
	send chan []byte
}

// NewClient wraps a websocket connection.
func NewClient(conn *websocket.Conn, game model.GameID, player model.PlayerID) *Client {
	return &Client{
		ID:       uuid.NewString(),
		GameID:   game,
		PlayerID: player,
		conn:     conn,
		send:     make(chan []byte, clientSendSize),
	}
}

// Conn returns the underlying connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

// WritePump writes queued frames until the client is unregistered or a write
// fails. It owns writes on the connection.
func (c *Client) WritePump() {
	defer c.conn.Close()
	for frame := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// Hub tracks connected clients per game and delivers events to them.
type Hub struct {
	logger *zap.Logger

	mu    sync.RWMutex
	games map[model.GameID]map[*Client]struct{}
}

var _ model.Notifier = (*Hub)(nil)

// NewHub returns an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger: logger,
		games:  make(map[model.GameID]map[*Client]struct{}),
	}
}

// Register starts delivering a game's events to c.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.games[c.GameID]
	if !ok {
		clients = make(map[*Client]struct{})
		h.games[c.GameID] = clients
	}
	clients[c] = struct{}{}
	h.logger.Debug("client registered",
		zap.String("client_id", c.ID),
		zap.Int64("game_id", int64(c.GameID)),
		zap.Int64("player_id", int64(c.PlayerID)),
	)
}

// Unregister stops delivery to c and closes its send buffer, which ends its
// WritePump. Unregistering twice is a no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	clients, ok := h.games[c.GameID]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.games, c.GameID)
	}
	h.logger.Debug("client unregistered", zap.String("client_id", c.ID))
}

// Clients returns how many connections are attached to a game.
func (h *Hub) Clients(game model.GameID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.games[game])
}

// Broadcast writes event to every client of the game.
func (h *Hub) Broadcast(_ context.Context, game model.GameID, event model.Event) {
	h.deliver(game, nil, event)
}

// Send writes event to the clients of one player.
func (h *Hub) Send(_ context.Context, game model.GameID, player model.PlayerID, event model.Event) {
	h.deliver(game, &player, event)
}

// Reply writes a frame to a single client.
func (h *Hub) Reply(c *Client, msg Message) {
	frame, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode reply", zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pushLocked(c, frame)
}

func (h *Hub) deliver(game model.GameID, player *model.PlayerID, event model.Event) {
	frame, err := json.Marshal(Message{Type: "event", Event: &event})
	if err != nil {
		h.logger.Error("failed to encode event",
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.games[game] {
		if player != nil && c.PlayerID != *player {
			continue
		}
		h.pushLocked(c, frame)
	}
}

// pushLocked drops clients that cannot keep up.
func (h *Hub) pushLocked(c *Client, frame []byte) {
	if _, ok := h.games[c.GameID][c]; !ok {
		return
	}
	select {
	case c.send <- frame:
	default:
		h.logger.Warn("client too slow, disconnecting",
			zap.String("client_id", c.ID),
			zap.Int64("player_id", int64(c.PlayerID)),
		)
		h.removeLocked(c)
	}
}
