package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/deathcards/deathcards-server-go/internal/game"
	"github.com/deathcards/deathcards-server-go/internal/game/model"
	"github.com/deathcards/deathcards-server-go/internal/notify"
	apperrors "github.com/deathcards/deathcards-server-go/internal/platform/errors"
)

type call struct {
	op      string
	game    model.GameID
	player  model.PlayerID
	cards   []model.CardID
	card    *model.CardID
	secret  model.SecretID
	suspect *model.PlayerID
	targets model.Targets
}

// fakeEngine records every call and answers with result and err.
type fakeEngine struct {
	mu     sync.Mutex
	calls  []call
	result game.Result
	err    error
}

func (f *fakeEngine) record(c call) (game.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.result, f.err
}

func (f *fakeEngine) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeEngine) PlayCard(_ context.Context, g model.GameID, p model.PlayerID, cards []model.CardID, t model.Targets) (game.Result, error) {
	return f.record(call{op: "play", game: g, player: p, cards: cards, targets: t})
}

func (f *fakeEngine) PlayInterruptOrPass(_ context.Context, g model.GameID, p model.PlayerID, card *model.CardID) (game.Result, error) {
	return f.record(call{op: "respond", game: g, player: p, card: card})
}

func (f *fakeEngine) RevealSecret(_ context.Context, g model.GameID, p model.PlayerID, s model.SecretID) (game.Result, error) {
	return f.record(call{op: "reveal", game: g, player: p, secret: s})
}

func (f *fakeEngine) SubmitVote(_ context.Context, g model.GameID, p model.PlayerID, suspect *model.PlayerID) (game.Result, error) {
	return f.record(call{op: "vote", game: g, player: p, suspect: suspect})
}

func (f *fakeEngine) SubmitDonationChoice(_ context.Context, g model.GameID, p model.PlayerID, c model.CardID) (game.Result, error) {
	return f.record(call{op: "donate", game: g, player: p, card: &c})
}

func (f *fakeEngine) SelectTradeCard(_ context.Context, g model.GameID, p model.PlayerID, c model.CardID) (game.Result, error) {
	return f.record(call{op: "trade", game: g, player: p, card: &c})
}

func (f *fakeEngine) SelectCard(_ context.Context, g model.GameID, p model.PlayerID, c model.CardID) (game.Result, error) {
	return f.record(call{op: "select", game: g, player: p, card: &c})
}

func (f *fakeEngine) SupplyEffectTargets(_ context.Context, g model.GameID, p model.PlayerID, t model.Targets) (game.Result, error) {
	return f.record(call{op: "targets", game: g, player: p, targets: t})
}

func cmd(t *testing.T, typ string, data any) Command {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return Command{ID: "req", Type: typ, Data: raw}
}

func TestDispatchRoutesCommands(t *testing.T) {
	engine := &fakeEngine{result: game.Result{Status: model.FlowContinue}}
	h := NewHandler(engine, notify.NewHub(nil), zaptest.NewLogger(t))
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  Command
		want call
	}{
		{
			name: "play card",
			cmd:  cmd(t, CmdPlayCard, map[string]any{"card_ids": []int{4, 5}, "targets": map[string]any{"player": 2}}),
			want: call{op: "play", game: 1, player: 3, cards: []model.CardID{4, 5}, targets: model.Targets{Player: model.Ptr(model.PlayerID(2))}},
		},
		{
			name: "pass",
			cmd:  Command{Type: CmdRespond},
			want: call{op: "respond", game: 1, player: 3},
		},
		{
			name: "interrupt",
			cmd:  cmd(t, CmdRespond, map[string]any{"card_id": 9}),
			want: call{op: "respond", game: 1, player: 3, card: model.Ptr(model.CardID(9))},
		},
		{
			name: "reveal",
			cmd:  cmd(t, CmdRevealSecret, map[string]any{"secret_id": 11}),
			want: call{op: "reveal", game: 1, player: 3, secret: 11},
		},
		{
			name: "abstain",
			cmd:  cmd(t, CmdVote, map[string]any{"suspect_id": nil}),
			want: call{op: "vote", game: 1, player: 3},
		},
		{
			name: "donate",
			cmd:  cmd(t, CmdDonate, map[string]any{"card_id": 6}),
			want: call{op: "donate", game: 1, player: 3, card: model.Ptr(model.CardID(6))},
		},
		{
			name: "trade",
			cmd:  cmd(t, CmdSelectTradeCard, map[string]any{"card_id": 7}),
			want: call{op: "trade", game: 1, player: 3, card: model.Ptr(model.CardID(7))},
		},
		{
			name: "select from ashes",
			cmd:  cmd(t, CmdSelectCard, map[string]any{"card_id": 8}),
			want: call{op: "select", game: 1, player: 3, card: model.Ptr(model.CardID(8))},
		},
		{
			name: "supply targets",
			cmd:  cmd(t, CmdSupplyEffectTargets, map[string]any{"targets": map[string]any{"secret": 2}}),
			want: call{op: "targets", game: 1, player: 3, targets: model.Targets{Secret: model.Ptr(model.SecretID(2))}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine.calls = nil
			res, err := h.Dispatch(ctx, 1, 3, tt.cmd)
			require.NoError(t, err)
			assert.Equal(t, model.FlowContinue, res.Status)
			require.Len(t, engine.calls, 1)
			assert.Equal(t, tt.want, engine.calls[0])
		})
	}
}

func TestDispatchRejectsBadCommands(t *testing.T) {
	engine := &fakeEngine{}
	h := NewHandler(engine, notify.NewHub(nil), nil)
	ctx := context.Background()

	_, err := h.Dispatch(ctx, 1, 1, Command{Type: "shuffle_everything"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTarget))

	_, err = h.Dispatch(ctx, 1, 1, Command{Type: CmdDonate})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeMissingTarget))

	_, err = h.Dispatch(ctx, 1, 1, Command{Type: CmdPlayCard, Data: json.RawMessage(`{"card_ids": "x"}`)})
	assert.Equal(t, apperrors.KindInvalidAction, apperrors.KindOf(err))

	assert.Empty(t, engine.calls)
}

func TestErrorReplyHidesInternalDetails(t *testing.T) {
	reply := toErrorReply("r1", apperrors.WithMetadata(apperrors.CodeNotYourTurn, "not your turn", map[string]string{"player_id": "2"}))
	assert.Equal(t, "NOT_YOUR_TURN", reply.Code)
	assert.Equal(t, string(apperrors.KindForbiddenAction), reply.Kind)
	assert.Equal(t, "PermissionDenied", reply.Status)
	assert.Equal(t, "2", reply.Metadata["player_id"])

	reply = toErrorReply("r2", errors.New("connection reset"))
	assert.Equal(t, string(apperrors.KindInternal), reply.Kind)
	assert.Equal(t, "Internal", reply.Status)
	assert.Equal(t, "internal error", reply.Message)
}

func TestHandlerRepliesOverWebsocket(t *testing.T) {
	engine := &fakeEngine{result: game.Result{Status: model.FlowPaused, PendingActionID: "pa-1"}}
	// Connection goroutines outlive the test; they log to a no-op logger.
	hub := notify.NewHub(nil)
	srv := httptest.NewServer(NewHandler(engine, hub, nil))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?game=4&player=2"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() (notify.Message, map[string]any) {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg notify.Message
		require.NoError(t, conn.ReadJSON(&msg))
		var body map[string]any
		require.NoError(t, json.Unmarshal(msg.Data, &body))
		return msg, body
	}

	require.NoError(t, conn.WriteJSON(Command{ID: "a", Type: CmdPlayCard, Data: json.RawMessage(`{"card_ids":[1]}`)}))
	msg, body := read()
	assert.Equal(t, "result", msg.Type)
	assert.Equal(t, "a", body["id"])
	assert.Equal(t, "PAUSED", body["status"])
	assert.Equal(t, "pa-1", body["pending_action_id"])

	require.NoError(t, conn.WriteJSON(Command{ID: "b", Type: "nope"}))
	msg, body = read()
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "b", body["id"])
	assert.Equal(t, "INVALID_TARGET", body["code"])
	assert.Equal(t, "InvalidArgument", body["status"])

	calls := engine.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, model.GameID(4), calls[0].game)
	assert.Equal(t, model.PlayerID(2), calls[0].player)
}
