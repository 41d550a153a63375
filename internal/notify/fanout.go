package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
)

// Fanout delivers every event to each of its notifiers in order.
type Fanout []model.Notifier

var _ model.Notifier = Fanout(nil)

func (f Fanout) Broadcast(ctx context.Context, game model.GameID, event model.Event) {
	for _, n := range f {
		n.Broadcast(ctx, game, event)
	}
}

func (f Fanout) Send(ctx context.Context, game model.GameID, player model.PlayerID, event model.Event) {
	for _, n := range f {
		n.Send(ctx, game, player, event)
	}
}

// EventLog records every event at debug level.
type EventLog struct {
	Logger *zap.Logger
}

func (l EventLog) Broadcast(_ context.Context, game model.GameID, event model.Event) {
	l.Logger.Debug("event broadcast",
		zap.Int64("game_id", int64(game)),
		zap.String("event_type", string(event.Type)),
	)
}

func (l EventLog) Send(_ context.Context, game model.GameID, player model.PlayerID, event model.Event) {
	l.Logger.Debug("event sent",
		zap.Int64("game_id", int64(game)),
		zap.Int64("player_id", int64(player)),
		zap.String("event_type", string(event.Type)),
	)
}
