package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/deathcards/deathcards-server-go/internal/game/gametest"
	"github.com/deathcards/deathcards-server-go/internal/game/model"
)

func TestQueueDeliversInOrder(t *testing.T) {
	rec := &gametest.Recorder{}
	q := NewQueue(rec, 8, nil)
	ctx := context.Background()

	q.Broadcast(ctx, 1, model.NewEvent(model.EventPlayPending, 1, nil, nil))
	q.Send(ctx, 1, 3, model.NewEvent(model.EventHandUpdated, 1, nil, nil))
	q.Broadcast(ctx, 1, model.NewEvent(model.EventPlayResolved, 1, nil, nil))

	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, q.Close(closeCtx))

	assert.Equal(t, []model.EventType{
		model.EventPlayPending,
		model.EventHandUpdated,
		model.EventPlayResolved,
	}, rec.Types())
	assert.True(t, rec.SentTo(3, model.EventHandUpdated))
}

// blockingNotifier holds every delivery until release is closed.
type blockingNotifier struct {
	release   chan struct{}
	delivered chan model.EventType
}

func (b *blockingNotifier) Broadcast(_ context.Context, _ model.GameID, e model.Event) {
	<-b.release
	b.delivered <- e.Type
}

func (b *blockingNotifier) Send(ctx context.Context, game model.GameID, _ model.PlayerID, e model.Event) {
	b.Broadcast(ctx, game, e)
}

func TestQueueDropsWhenFull(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	target := &blockingNotifier{release: make(chan struct{}), delivered: make(chan model.EventType, 3)}
	q := NewQueue(target, 1, zap.New(core))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		q.Broadcast(ctx, 1, model.NewEvent(model.EventVoteCast, 1, nil, nil))
	}
	close(target.release)

	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, q.Close(closeCtx))

	dropped := logs.FilterMessage("notification queue full, dropping event").Len()
	assert.GreaterOrEqual(t, dropped, 1)
	assert.Equal(t, 3, dropped+len(target.delivered))
}

func TestQueueDropsAfterClose(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rec := &gametest.Recorder{}
	q := NewQueue(rec, 4, zap.New(core))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Close(ctx))
	require.NoError(t, q.Close(ctx))

	q.Send(ctx, 1, 2, model.NewEvent(model.EventHandUpdated, 1, nil, nil))
	assert.Empty(t, rec.Events())
	assert.Equal(t, 1, logs.FilterMessage("notification queue closed, dropping event").Len())
}

func TestFanoutReachesEveryNotifier(t *testing.T) {
	a, b := &gametest.Recorder{}, &gametest.Recorder{}
	f := Fanout{a, b, EventLog{Logger: zap.NewNop()}}

	f.Broadcast(context.Background(), 1, model.NewEvent(model.EventGameEnded, 1, nil, nil))
	f.Send(context.Background(), 1, 2, model.NewEvent(model.EventSecretShown, 1, nil, nil))

	for _, r := range []*gametest.Recorder{a, b} {
		assert.Equal(t, []model.EventType{model.EventGameEnded, model.EventSecretShown}, r.Types())
		assert.True(t, r.SentTo(2, model.EventSecretShown))
	}
}
