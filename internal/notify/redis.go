package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
)

// DefaultChannelPrefix namespaces the Redis channels events are published on.
const DefaultChannelPrefix = "deathcards"

// envelope is the payload published on a game channel.
type envelope struct {
	Recipient *model.PlayerID `json:"recipient,omitempty"`
	Event     model.Event     `json:"event"`
}

// RedisPublisher publishes events on one Redis channel per game so that every
// server instance can deliver them to its own websocket clients.
type RedisPublisher struct {
	client redis.UniversalClient
	prefix string
	logger *zap.Logger
}

var _ model.Notifier = (*RedisPublisher)(nil)

// NewRedisPublisher publishes through client on channels named
// "<prefix>:game:<id>".
func NewRedisPublisher(client redis.UniversalClient, prefix string, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisPublisher{client: client, prefix: prefix, logger: logger}
}

// Channel returns the channel a game's events go to.
func (p *RedisPublisher) Channel(game model.GameID) string {
	return gameChannel(p.prefix, game)
}

func gameChannel(prefix string, game model.GameID) string {
	return fmt.Sprintf("%s:game:%d", prefix, game)
}

// Broadcast publishes an event for every player of a game.
func (p *RedisPublisher) Broadcast(ctx context.Context, game model.GameID, event model.Event) {
	p.publish(ctx, game, envelope{Event: event})
}

// Send publishes an event for one player.
func (p *RedisPublisher) Send(ctx context.Context, game model.GameID, player model.PlayerID, event model.Event) {
	p.publish(ctx, game, envelope{Recipient: &player, Event: event})
}

func (p *RedisPublisher) publish(ctx context.Context, game model.GameID, env envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("failed to encode event", zap.Error(err))
		return
	}
	if err := p.client.Publish(ctx, p.Channel(game), payload).Err(); err != nil {
		p.logger.Warn("failed to publish event",
			zap.String("event_type", string(env.Event.Type)),
			zap.Int64("game_id", int64(game)),
			zap.Error(err),
		)
	}
}

// Relay subscribes to every game channel under prefix and hands the events to
// local until ctx is cancelled.
func Relay(ctx context.Context, client redis.UniversalClient, prefix string, local model.Notifier, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	sub := client.PSubscribe(ctx, prefix+":game:*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", prefix, err)
	}
	logger.Info("relaying redis events", zap.String("pattern", prefix+":game:*"))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := dispatch(ctx, prefix, msg.Channel, []byte(msg.Payload), local); err != nil {
				logger.Warn("dropping relayed event",
					zap.String("channel", msg.Channel),
					zap.Error(err),
				)
			}
		}
	}
}

// dispatch decodes one published payload and delivers it locally.
func dispatch(ctx context.Context, prefix, channel string, payload []byte, local model.Notifier) error {
	id, err := strconv.ParseInt(strings.TrimPrefix(channel, prefix+":game:"), 10, 64)
	if err != nil {
		return fmt.Errorf("parse channel %q: %w", channel, err)
	}
	game := model.GameID(id)
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if env.Recipient != nil {
		local.Send(ctx, game, *env.Recipient, env.Event)
	} else {
		local.Broadcast(ctx, game, env.Event)
	}
	return nil
}
