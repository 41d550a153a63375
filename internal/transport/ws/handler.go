// Package ws exposes the engine over websockets. A connection is bound to one
// player of one game; it receives that player's events and sends JSON
// commands that map onto engine operations.
package ws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"google.golang.org/grpc/status"

	"github.com/deathcards/deathcards-server-go/internal/game"
	"github.com/deathcards/deathcards-server-go/internal/game/model"
	"github.com/deathcards/deathcards-server-go/internal/notify"
	apperrors "github.com/deathcards/deathcards-server-go/internal/platform/errors"
)

const maxMessageSize = 64 << 10

// Engine is the set of operations a client may invoke.
type Engine interface {
	PlayCard(ctx context.Context, id model.GameID, player model.PlayerID, cards []model.CardID, targets model.Targets) (game.Result, error)
	PlayInterruptOrPass(ctx context.Context, id model.GameID, player model.PlayerID, card *model.CardID) (game.Result, error)
	RevealSecret(ctx context.Context, id model.GameID, player model.PlayerID, secret model.SecretID) (game.Result, error)
	SubmitVote(ctx context.Context, id model.GameID, voter model.PlayerID, suspect *model.PlayerID) (game.Result, error)
	SubmitDonationChoice(ctx context.Context, id model.GameID, player model.PlayerID, card model.CardID) (game.Result, error)
	SelectTradeCard(ctx context.Context, id model.GameID, player model.PlayerID, card model.CardID) (game.Result, error)
	SelectCard(ctx context.Context, id model.GameID, player model.PlayerID, card model.CardID) (game.Result, error)
	SupplyEffectTargets(ctx context.Context, id model.GameID, player model.PlayerID, targets model.Targets) (game.Result, error)
}

var _ Engine = (*game.Engine)(nil)

// Command is a request sent by a client.
type Command struct {
	ID   string          `json:"id,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Command types.
const (
	CmdPlayCard            = "play_card"
	CmdRespond             = "respond"
	CmdRevealSecret        = "reveal_secret"
	CmdVote                = "vote"
	CmdDonate              = "donate"
	CmdSelectTradeCard     = "select_trade_card"
	CmdSelectCard          = "select_card"
	CmdSupplyEffectTargets = "supply_targets"
)

type playCardData struct {
	CardIDs []model.CardID `json:"card_ids"`
	Targets model.Targets  `json:"targets"`
}

type cardData struct {
	CardID *model.CardID `json:"card_id"`
}

type secretData struct {
	SecretID model.SecretID `json:"secret_id"`
}

type voteData struct {
	SuspectID *model.PlayerID `json:"suspect_id"`
}

type targetsData struct {
	Targets model.Targets `json:"targets"`
}

// ResultReply acknowledges a successful command.
type ResultReply struct {
	ID string `json:"id,omitempty"`
	game.Result
}

// ErrorReply describes a rejected command.
type ErrorReply struct {
	ID       string            `json:"id,omitempty"`
	Code     string            `json:"code"`
	Kind     string            `json:"kind"`
	Status   string            `json:"status"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Handler upgrades HTTP requests and serves commands on the connection.
type Handler struct {
	engine   Engine
	hub      *notify.Hub
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler serves engine commands and registers every connection on hub.
func NewHandler(engine Engine, hub *notify.Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		engine: engine,
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			// No authentication: any origin may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP expects "game" and "player" query parameters.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.ParseInt(r.URL.Query().Get("game"), 10, 64)
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	playerID, err := strconv.ParseInt(r.URL.Query().Get("player"), 10, 64)
	if err != nil {
		http.Error(w, "invalid player id", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := notify.NewClient(conn, model.GameID(gameID), model.PlayerID(playerID))
	h.hub.Register(client)
	go client.WritePump()
	h.readPump(r.Context(), client)
}

func (h *Handler) readPump(ctx context.Context, c *notify.Client) {
	defer h.hub.Unregister(c)

	conn := c.Conn()
	conn.SetReadLimit(maxMessageSize)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read failed", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			h.reply(c, "", nil, apperrors.Wrap(apperrors.CodeInvalidTarget, "malformed command", err))
			continue
		}
		res, err := h.Dispatch(ctx, c.GameID, c.PlayerID, cmd)
		h.reply(c, cmd.ID, &res, err)
	}
}

// Dispatch runs one command on behalf of player.
func (h *Handler) Dispatch(ctx context.Context, g model.GameID, player model.PlayerID, cmd Command) (game.Result, error) {
	h.logger.Debug("command received",
		zap.String("type", cmd.Type),
		zap.Int64("game_id", int64(g)),
		zap.Int64("player_id", int64(player)),
	)
	switch cmd.Type {
	case CmdPlayCard:
		var d playCardData
		if err := decode(cmd, &d); err != nil {
			return game.Result{}, err
		}
		return h.engine.PlayCard(ctx, g, player, d.CardIDs, d.Targets)
	case CmdRespond:
		var d cardData
		if err := decode(cmd, &d); err != nil {
			return game.Result{}, err
		}
		return h.engine.PlayInterruptOrPass(ctx, g, player, d.CardID)
	case CmdRevealSecret:
		var d secretData
		if err := decode(cmd, &d); err != nil {
			return game.Result{}, err
		}
		return h.engine.RevealSecret(ctx, g, player, d.SecretID)
	case CmdVote:
		var d voteData
		if err := decode(cmd, &d); err != nil {
			return game.Result{}, err
		}
		return h.engine.SubmitVote(ctx, g, player, d.SuspectID)
	case CmdDonate, CmdSelectTradeCard, CmdSelectCard:
		var d cardData
		if err := decode(cmd, &d); err != nil {
			return game.Result{}, err
		}
		if d.CardID == nil {
			return game.Result{}, apperrors.New(apperrors.CodeMissingTarget, "card_id is required")
		}
		switch cmd.Type {
		case CmdDonate:
			return h.engine.SubmitDonationChoice(ctx, g, player, *d.CardID)
		case CmdSelectTradeCard:
			return h.engine.SelectTradeCard(ctx, g, player, *d.CardID)
		default:
			return h.engine.SelectCard(ctx, g, player, *d.CardID)
		}
	case CmdSupplyEffectTargets:
		var d targetsData
		if err := decode(cmd, &d); err != nil {
			return game.Result{}, err
		}
		return h.engine.SupplyEffectTargets(ctx, g, player, d.Targets)
	default:
		return game.Result{}, apperrors.WithMetadata(apperrors.CodeInvalidTarget,
			fmt.Sprintf("unknown command %q", cmd.Type), map[string]string{"type": cmd.Type})
	}
}

func decode(cmd Command, v any) error {
	if len(cmd.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(cmd.Data, v); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidTarget, "malformed "+cmd.Type+" payload", err)
	}
	return nil
}

func (h *Handler) reply(c *notify.Client, id string, res *game.Result, err error) {
	var (
		msgType = "result"
		body    any
	)
	if err != nil {
		msgType = "error"
		body = toErrorReply(id, err)
		if apperrors.KindOf(err) == apperrors.KindInternal {
			h.logger.Error("command failed", zap.String("client_id", c.ID), zap.Error(err))
		}
	} else {
		body = ResultReply{ID: id, Result: *res}
	}
	data, mErr := json.Marshal(body)
	if mErr != nil {
		h.logger.Error("failed to encode reply", zap.Error(mErr))
		return
	}
	h.hub.Reply(c, notify.Message{Type: msgType, Data: data})
}

// toErrorReply keeps internal details out of the message sent to clients.
func toErrorReply(id string, err error) ErrorReply {
	var de *apperrors.Error
	if !stderrors.As(err, &de) {
		de = apperrors.Wrap(apperrors.CodeCorruptState, "internal error", err)
	}
	st, _ := status.FromError(de.ToGRPCStatus())
	reply := ErrorReply{
		ID:       id,
		Code:     string(de.Code),
		Kind:     string(de.Kind()),
		Status:   st.Code().String(),
		Message:  de.Message,
		Metadata: de.Metadata,
	}
	if de.Kind() == apperrors.KindInternal {
		reply.Message = "internal error"
		reply.Metadata = nil
	}
	return reply
}
