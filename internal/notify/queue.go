// Package notify delivers engine events to players: an asynchronous queue in
// front of the real transports, a websocket hub, a Redis publisher for
// multi-instance deployments and a fan-out over several of them.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
)

// DefaultQueueSize is used when NewQueue is given a non-positive size.
const DefaultQueueSize = 1024

type delivery struct {
	game   model.GameID
	player *model.PlayerID // nil broadcasts
	event  model.Event
}

// Queue decouples the engine from slow transports. Events are handed to the
// target from a single goroutine in the order they were queued. When the
// buffer is full new events are dropped.
type Queue struct {
	target model.Notifier
	logger *zap.Logger
	ch     chan delivery

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

var _ model.Notifier = (*Queue)(nil)

// NewQueue starts a queue delivering to target. Call Close to flush and stop it.
func NewQueue(target model.Notifier, size int, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &Queue{
		target: target,
		logger: logger,
		ch:     make(chan delivery, size),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for d := range q.ch {
		// Delivery outlives the request that produced the event.
		ctx := context.Background()
		if d.player == nil {
			q.target.Broadcast(ctx, d.game, d.event)
		} else {
			q.target.Send(ctx, d.game, *d.player, d.event)
		}
	}
}

// Broadcast queues an event for every player of a game.
func (q *Queue) Broadcast(_ context.Context, game model.GameID, event model.Event) {
	q.enqueue(delivery{game: game, event: event})
}

// Send queues an event for one player.
func (q *Queue) Send(_ context.Context, game model.GameID, player model.PlayerID, event model.Event) {
	q.enqueue(delivery{game: game, player: model.Ptr(player), event: event})
}

func (q *Queue) enqueue(d delivery) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("notification queue closed, dropping event",
			zap.String("event_type", string(d.event.Type)),
			zap.Int64("game_id", int64(d.game)),
		)
		return
	}
	select {
	case q.ch <- d:
	default:
		q.logger.Warn("notification queue full, dropping event",
			zap.String("event_type", string(d.event.Type)),
			zap.Int64("game_id", int64(d.game)),
			zap.Int("capacity", cap(q.ch)),
		)
	}
}

// Close stops accepting events and waits until the queued ones are delivered
// or ctx expires.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
