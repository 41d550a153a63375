// Package game exposes the card-play resolution engine: plays, the Not So
// Fast interrupt window and the multi-step sagas that can block a game.
package game

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/deathcards/deathcards-server-go/internal/game/effects"
	"github.com/deathcards/deathcards-server-go/internal/game/model"
	"github.com/deathcards/deathcards-server-go/internal/game/rules"
	apperrors "github.com/deathcards/deathcards-server-go/internal/platform/errors"
)

// Result acknowledges an engine operation.
type Result struct {
	Status model.FlowStatus `json:"status"`
	// PendingActionID is set while a play waits in the interrupt window.
	PendingActionID string `json:"pending_action_id,omitempty"`
}

// Option customizes an Engine.
type Option func(*Engine)

// WithMaxChainDepth bounds how many chained effects one play may trigger.
func WithMaxChainDepth(depth int) Option {
	return func(e *Engine) { e.maxDepth = depth }
}

// WithShuffle replaces the random source used by shuffling effects.
func WithShuffle(shuffle func(n int, swap func(i, j int))) Option {
	return func(e *Engine) { e.shuffle = shuffle }
}

// Engine runs the rules of one or more games over a store. Mutating calls
// are serialized per game.
type Engine struct {
	store    model.Store
	notifier model.Notifier
	logger   *zap.Logger

	classifier *rules.Classifier
	handoffs   *rules.HandoffTriggers
	maxDepth   int
	shuffle    func(n int, swap func(i, j int))
	executor   *effects.Executor
	deps       effects.Deps

	mu    sync.Mutex
	locks map[model.GameID]*sync.Mutex
}

// NewEngine wires an engine over a store and a notifier.
func NewEngine(store model.Store, notifier model.Notifier, logger *zap.Logger, opts ...Option) *Engine {
	if notifier == nil {
		notifier = model.NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		store:    store,
		notifier: notifier,
		logger:   logger,
		maxDepth: rules.DefaultMaxChainDepth,
		locks:    make(map[model.GameID]*sync.Mutex),

		classifier: rules.DefaultClassifier(),
		handoffs:   rules.DefaultHandoffTriggers(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.deps = effects.Deps{Store: store, Notifier: notifier, Logger: logger, Shuffle: e.shuffle}
	e.executor = effects.NewExecutor(e.deps, e.classifier, effects.WithMaxDepth(e.maxDepth))
	return e
}

// lock serializes work on one game. The returned unlock drops the game's
// mutex from the map once res reports the game ended; later callers get a
// fresh mutex and are turned away by activeGame, which drops it again.
func (e *Engine) lock(game model.GameID) func(res *Result) {
	e.mu.Lock()
	l, ok := e.locks[game]
	if !ok {
		l = &sync.Mutex{}
		e.locks[game] = l
	}
	e.mu.Unlock()

	l.Lock()
	return func(res *Result) {
		if res != nil && res.Status == model.FlowEnded {
			e.forget(game)
		}
		l.Unlock()
	}
}

// forget drops the mutex of a game that has ended or does not exist.
func (e *Engine) forget(game model.GameID) {
	e.mu.Lock()
	delete(e.locks, game)
	e.mu.Unlock()
}

// PlayCard plays one or more cards from the actor's hand. Cancellable plays
// open the interrupt window and return its id; the others resolve at once.
func (e *Engine) PlayCard(ctx context.Context, game model.GameID, player model.PlayerID, cards []model.CardID, targets model.Targets) (res Result, err error) {
	defer e.lock(game)(&res)

	g, err := e.activeGame(ctx, game)
	if err != nil {
		return Result{}, err
	}
	if !g.Action.Idle() {
		return Result{}, apperrors.WithMetadata(apperrors.CodeGameBlocked,
			fmt.Sprintf("game %d is waiting on %s", game, g.Action.State),
			map[string]string{"state": string(g.Action.State)})
	}
	return e.play(ctx, g, effects.Request{GameID: game, PlayerID: player, CardIDs: cards, Targets: targets})
}

// play runs the play pipeline for player and system plays alike.
func (e *Engine) play(ctx context.Context, g *model.Game, req effects.Request) (Result, error) {
	actor, err := e.member(ctx, g.ID, req.PlayerID)
	if err != nil {
		return Result{}, err
	}
	if !req.System {
		if g.CurrentTurn != actor.ID {
			return Result{}, apperrors.New(apperrors.CodeNotYourTurn,
				fmt.Sprintf("it is not player %d's turn", actor.ID))
		}
		if actor.SocialDisgrace {
			return Result{}, apperrors.New(apperrors.CodeSocialDisgrace,
				fmt.Sprintf("player %d is in social disgrace", actor.ID))
		}
	}
	if err := e.checkPlayedCards(ctx, g.ID, req); err != nil {
		return Result{}, err
	}

	rule, _, err := e.executor.ClassifyEffect(ctx, g.ID, req.CardIDs)
	if err != nil {
		return Result{}, err
	}
	if err := e.executor.Validate(ctx, rule, req); err != nil {
		return Result{}, err
	}
	if !req.System && e.classifier.Cancellable(rule) {
		return e.openWindow(ctx, req, rule)
	}

	status, err := e.executor.Execute(ctx, req)
	if err != nil {
		return Result{}, err
	}
	e.broadcast(ctx, g.ID, model.EventPlayResolved, model.Ptr(req.PlayerID), map[string]any{
		"card_ids": req.CardIDs,
		"rule":     rule.Name,
		"status":   status,
	})
	e.logger.Info("play resolved",
		zap.Int64("game_id", int64(g.ID)),
		zap.Int64("player_id", int64(req.PlayerID)),
		zap.String("rule", rule.Name),
		zap.String("status", string(status)),
		zap.Bool("system", req.System),
	)
	return Result{Status: status}, nil
}

// checkPlayedCards validates the shape of a play and, for player plays, that
// every card is in the actor's hand.
func (e *Engine) checkPlayedCards(ctx context.Context, game model.GameID, req effects.Request) error {
	if len(req.CardIDs) == 0 {
		return apperrors.New(apperrors.CodeEmptyPlay, "no cards played")
	}
	seen := make(map[model.CardID]bool, len(req.CardIDs))
	for _, id := range req.CardIDs {
		if seen[id] {
			return apperrors.WithMetadata(apperrors.CodeDuplicateCard,
				fmt.Sprintf("card %d played twice", id),
				map[string]string{"card_id": fmt.Sprint(id)})
		}
		seen[id] = true

		card, err := e.store.Card(ctx, id)
		if err != nil {
			return err
		}
		if card.GameID != game {
			return apperrors.New(apperrors.CodeCardNotFound,
				fmt.Sprintf("card %d is not part of game %d", id, game))
		}
		if !req.System && !card.OwnedBy(req.PlayerID) {
			return apperrors.New(apperrors.CodeNotCardOwner,
				fmt.Sprintf("card %d is not in player %d's hand", id, req.PlayerID))
		}
		if !req.System && card.Kind.IsDevious() {
			return apperrors.WithMetadata(apperrors.CodeDeviousPlay,
				fmt.Sprintf("card %d only takes effect when it changes hands", id),
				map[string]string{"kind": string(card.Kind)})
		}
		if card.Kind == model.KindNotSoFast {
			return apperrors.New(apperrors.CodeInterruptInPlay,
				"Not So Fast can only be played as an interrupt")
		}
		if len(req.CardIDs) > 1 && !card.Kind.IsDetective() {
			return apperrors.WithMetadata(apperrors.CodeMixedPlay,
				"only detectives can be played together",
				map[string]string{"kind": string(card.Kind)})
		}
	}
	return nil
}

// activeGame loads a game and rejects finished or unknown ones, forgetting
// their locks.
func (e *Engine) activeGame(ctx context.Context, game model.GameID) (*model.Game, error) {
	g, err := e.store.Game(ctx, game)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeGameNotFound) {
			e.forget(game)
		}
		return nil, err
	}
	if g.Finished {
		e.forget(game)
		return nil, apperrors.New(apperrors.CodeGameFinished, fmt.Sprintf("game %d has ended", game))
	}
	return g, nil
}

// member loads a player and checks they take part in game.
func (e *Engine) member(ctx context.Context, game model.GameID, player model.PlayerID) (*model.Player, error) {
	p, err := e.store.Player(ctx, player)
	if err != nil {
		return nil, err
	}
	if p.GameID != game {
		return nil, apperrors.WithMetadata(apperrors.CodePlayerNotFound,
			fmt.Sprintf("player %d is not part of game %d", player, game),
			map[string]string{"player_id": fmt.Sprint(player)})
	}
	return p, nil
}

// settle returns a game to NONE after a saga or window closes.
func (e *Engine) settle(ctx context.Context, game model.GameID) error {
	if err := e.store.ClearSaga(ctx, game); err != nil {
		return apperrors.Wrap(apperrors.CodeStoreWriteFailed, "clear saga", err)
	}
	if err := e.store.SetActionState(ctx, game, model.ActionState{State: model.StateNone}); err != nil {
		return apperrors.Wrap(apperrors.CodeStoreWriteFailed, "reset action state", err)
	}
	return nil
}

func (e *Engine) broadcast(ctx context.Context, game model.GameID, t model.EventType, actor *model.PlayerID, data map[string]any) {
	e.notifier.Broadcast(ctx, game, model.NewEvent(t, game, actor, data))
}

func (e *Engine) send(ctx context.Context, game model.GameID, to model.PlayerID, t model.EventType, actor *model.PlayerID, data map[string]any) {
	e.notifier.Send(ctx, game, to, model.NewEvent(t, game, actor, data))
}
