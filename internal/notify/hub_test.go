package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
)

// serveHub attaches every connection to the game and player in its query.
// Connection goroutines outlive the tests, so the hubs under test log nowhere.
func serveHub(t *testing.T, hub *Hub) *httptest.Server {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		game, _ := strconv.ParseInt(r.URL.Query().Get("game"), 10, 64)
		player, _ := strconv.ParseInt(r.URL.Query().Get("player"), 10, 64)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(conn, model.GameID(game), model.PlayerID(player))
		hub.Register(c)
		go c.WritePump()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				hub.Unregister(c)
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, game, player int) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?game=" + strconv.Itoa(game) + "&player=" + strconv.Itoa(player)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) model.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	require.Equal(t, "event", msg.Type)
	require.NotNil(t, msg.Event)
	return *msg.Event
}

func TestHubRoutesEventsByGameAndPlayer(t *testing.T) {
	hub := NewHub(nil)
	srv := serveHub(t, hub)

	alice := dial(t, srv, 1, 1)
	bob := dial(t, srv, 1, 2)
	dial(t, srv, 2, 3)
	require.Eventually(t, func() bool { return hub.Clients(1) == 2 && hub.Clients(2) == 1 },
		2*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	hub.Broadcast(ctx, 1, model.NewEvent(model.EventPlayPending, 1, nil, nil))
	assert.Equal(t, model.EventPlayPending, readEvent(t, alice).Type)
	assert.Equal(t, model.EventPlayPending, readEvent(t, bob).Type)

	hub.Send(ctx, 1, 2, model.NewEvent(model.EventSecretShown, 1, nil, nil))
	hub.Broadcast(ctx, 1, model.NewEvent(model.EventPlayResolved, 1, nil, nil))

	assert.Equal(t, model.EventSecretShown, readEvent(t, bob).Type)
	assert.Equal(t, model.EventPlayResolved, readEvent(t, bob).Type)
	// Alice never sees the private event.
	assert.Equal(t, model.EventPlayResolved, readEvent(t, alice).Type)
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub := NewHub(nil)
	srv := serveHub(t, hub)

	conn := dial(t, srv, 7, 1)
	require.Eventually(t, func() bool { return hub.Clients(7) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients(7) == 0 }, 2*time.Second, 10*time.Millisecond)

	// Delivering to a game without clients is a no-op.
	hub.Broadcast(context.Background(), 7, model.NewEvent(model.EventGameEnded, 7, nil, nil))
}
