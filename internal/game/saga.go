package game

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/deathcards/deathcards-server-go/internal/game/effects"
	"github.com/deathcards/deathcards-server-go/internal/game/model"
	"github.com/deathcards/deathcards-server-go/internal/game/rules"
	apperrors "github.com/deathcards/deathcards-server-go/internal/platform/errors"
)

// activeSaga loads the game and its saga, checking the game waits on one of
// the given states and that the stored saga agrees with it.
func (e *Engine) activeSaga(ctx context.Context, game model.GameID, states ...model.State) (*model.Game, model.Saga, error) {
	g, err := e.activeGame(ctx, game)
	if err != nil {
		return nil, nil, err
	}
	if !slices.Contains(states, g.Action.State) {
		return nil, nil, wrongState(g, states...)
	}
	saga, err := e.store.Saga(ctx, game)
	if err != nil {
		return nil, nil, err
	}
	if saga == nil {
		return nil, nil, apperrors.New(apperrors.CodeCorruptState,
			fmt.Sprintf("game %d is in state %s without a saga", game, g.Action.State))
	}
	if saga.State() != g.Action.State {
		return nil, nil, apperrors.WithMetadata(apperrors.CodeCorruptState,
			fmt.Sprintf("saga %s does not belong to state %s", saga.Type(), g.Action.State),
			map[string]string{"saga": string(saga.Type()), "state": string(g.Action.State)})
	}
	return g, saga, nil
}

func sagaMismatch(saga model.Saga) error {
	return apperrors.New(apperrors.CodeCorruptState, fmt.Sprintf("unexpected saga %s", saga.Type()))
}

func notPrompted(player model.PlayerID) error {
	return apperrors.New(apperrors.CodeNotPrompted,
		fmt.Sprintf("player %d is not the one being asked", player))
}

// RevealSecret answers a reveal prompt with one of the prompted player's
// face-down secrets.
func (e *Engine) RevealSecret(ctx context.Context, game model.GameID, player model.PlayerID, secret model.SecretID) (res Result, err error) {
	defer e.lock(game)(&res)

	_, s, err := e.activeSaga(ctx, game, model.StateAwaitingRevealForChoice, model.StateAwaitingRevealForSteal)
	if err != nil {
		return Result{}, err
	}
	saga, ok := s.(model.RevealSaga)
	if !ok {
		return Result{}, sagaMismatch(s)
	}
	if player != saga.Target {
		return Result{}, notPrompted(player)
	}
	sec, err := e.store.Secret(ctx, secret)
	if err != nil {
		return Result{}, err
	}
	if sec.GameID != game || sec.Owner != player {
		return Result{}, apperrors.New(apperrors.CodeNotSecretOwner,
			fmt.Sprintf("secret %d does not belong to player %d", secret, player))
	}
	if sec.Revealed {
		return Result{}, apperrors.New(apperrors.CodeSecretAlreadyRevealed,
			fmt.Sprintf("secret %d is already revealed", secret))
	}

	status := model.FlowContinue
	by := model.Ptr(saga.Initiator)
	switch saga.Mode {
	case model.RevealPrivate:
		e.send(ctx, game, saga.Initiator, model.EventSecretShown, model.Ptr(player), map[string]any{
			"secret_id": sec.ID,
			"owner_id":  sec.Owner,
			"kind":      sec.Kind,
		})
	case model.RevealSteal:
		status, err = effects.RevealSecret(ctx, e.deps, game, sec.ID, by)
		if err != nil {
			return Result{}, err
		}
		if status != model.FlowEnded {
			if err := effects.StealSecret(ctx, e.deps, game, sec.ID, saga.Initiator, by); err != nil {
				return Result{}, err
			}
		}
	default:
		status, err = effects.RevealSecret(ctx, e.deps, game, sec.ID, by)
		if err != nil {
			return Result{}, err
		}
	}

	if err := e.settle(ctx, game); err != nil {
		return Result{}, err
	}
	e.logger.Debug("reveal completed",
		zap.Int64("game_id", int64(game)),
		zap.Int64("player_id", int64(player)),
		zap.String("mode", string(saga.Mode)),
	)
	if status == model.FlowEnded {
		return Result{Status: status}, nil
	}
	return e.runDeferred(ctx, game, saga.Deferred)
}

// SelectCard takes one of the offered discards into the chooser's hand.
func (e *Engine) SelectCard(ctx context.Context, game model.GameID, player model.PlayerID, card model.CardID) (res Result, err error) {
	defer e.lock(game)(&res)

	_, s, err := e.activeSaga(ctx, game, model.StateAwaitingSelectionForCard)
	if err != nil {
		return Result{}, err
	}
	saga, ok := s.(model.CardSelectionSaga)
	if !ok {
		return Result{}, sagaMismatch(s)
	}
	if player != saga.Chooser {
		return Result{}, notPrompted(player)
	}
	if !slices.Contains(saga.Options, card) {
		return Result{}, apperrors.New(apperrors.CodeInvalidTarget,
			fmt.Sprintf("card %d was not offered", card))
	}
	c, err := e.store.Card(ctx, card)
	if err != nil {
		return Result{}, err
	}
	if c.Location != model.LocationDiscard {
		return Result{}, apperrors.New(apperrors.CodeCorruptState,
			fmt.Sprintf("offered card %d left the discard pile", card))
	}

	if err := e.store.MoveCard(ctx, card, model.ToHand(player)); err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeStoreWriteFailed, "take card", err)
	}
	if err := e.settle(ctx, game); err != nil {
		return Result{}, err
	}
	e.send(ctx, game, player, model.EventHandUpdated, model.Ptr(player), map[string]any{
		"card_id": card,
	})
	return Result{Status: model.FlowContinue}, nil
}

// SupplyEffectTargets completes the targets of a parked chained effect and
// runs it. Fields left nil keep the targets recorded when it was parked.
func (e *Engine) SupplyEffectTargets(ctx context.Context, game model.GameID, player model.PlayerID, targets model.Targets) (res Result, err error) {
	defer e.lock(game)(&res)

	g, s, err := e.activeSaga(ctx, game, model.StateAwaitingTargetsForEffect)
	if err != nil {
		return Result{}, err
	}
	saga, ok := s.(model.ChainTargetSaga)
	if !ok {
		return Result{}, sagaMismatch(s)
	}
	if player != saga.Initiator {
		return Result{}, notPrompted(player)
	}

	if err := e.settle(ctx, game); err != nil {
		return Result{}, err
	}
	status, err := e.executor.Resume(ctx, effects.FollowUp{
		Request: effects.Request{
			GameID:    game,
			PlayerID:  player,
			CardIDs:   saga.CardIDs,
			Targets:   mergeTargets(saga.Targets, targets),
			System:    true,
			Retrigger: true,
		},
		ParkOnMissingTarget: true,
	})
	if err != nil {
		if apperrors.KindOf(err) != apperrors.KindInternal {
			// Put the prompt back so the player can try other targets.
			if rerr := e.restoreSaga(ctx, g, saga); rerr != nil {
				return Result{}, rerr
			}
		}
		return Result{}, err
	}
	return Result{Status: status}, nil
}

func (e *Engine) restoreSaga(ctx context.Context, g *model.Game, saga model.Saga) error {
	if err := e.store.SaveSaga(ctx, g.ID, saga); err != nil {
		return apperrors.Wrap(apperrors.CodeStoreWriteFailed, "restore saga", err)
	}
	if err := e.store.SetActionState(ctx, g.ID, g.Action); err != nil {
		return apperrors.Wrap(apperrors.CodeStoreWriteFailed, "restore action state", err)
	}
	return nil
}

func mergeTargets(base, over model.Targets) model.Targets {
	if over.Player != nil {
		base.Player = over.Player
	}
	if over.Secret != nil {
		base.Secret = over.Secret
	}
	if over.Card != nil {
		base.Card = over.Card
	}
	if over.Set != nil {
		base.Set = over.Set
	}
	if over.Recipient != nil {
		base.Recipient = over.Recipient
	}
	if over.Direction != "" {
		base.Direction = over.Direction
	}
	return base
}

// reroute replays the devious cards that changed hands. A replay that
// prompts somebody queues the remaining ones behind that prompt.
func (e *Engine) reroute(ctx context.Context, game model.GameID, handoffs []rules.Handoff) (Result, error) {
	plays := e.handoffs.Handle(handoffs)
	deferred := make([]model.DeferredPlay, len(plays))
	for i, p := range plays {
		deferred[i] = model.DeferredPlay{
			PlayerID: p.Actor,
			CardIDs:  []model.CardID{p.CardID},
			Targets:  model.Targets{Player: model.Ptr(p.Target)},
		}
		e.logger.Info("devious card changed hands",
			zap.Int64("game_id", int64(game)),
			zap.Int64("card_id", int64(p.CardID)),
			zap.String("kind", string(p.Kind)),
			zap.Int64("actor", int64(p.Actor)),
			zap.Int64("target", int64(p.Target)),
		)
	}
	return e.runDeferred(ctx, game, deferred)
}

// runDeferred plays queued system plays in order until one blocks the game.
func (e *Engine) runDeferred(ctx context.Context, game model.GameID, plays []model.DeferredPlay) (Result, error) {
	result := Result{Status: model.FlowContinue}
	for i, p := range plays {
		g, err := e.store.Game(ctx, game)
		if err != nil {
			return Result{}, err
		}
		result, err = e.play(ctx, g, effects.Request{
			GameID:   game,
			PlayerID: p.PlayerID,
			CardIDs:  p.CardIDs,
			Targets:  p.Targets,
			System:   true,
		})
		if err != nil {
			return Result{}, err
		}
		switch result.Status {
		case model.FlowEnded:
			return result, nil
		case model.FlowPaused:
			return result, e.queueBehindPrompt(ctx, game, plays[i+1:])
		}
	}
	return result, nil
}

// queueBehindPrompt attaches plays to the reveal the game now waits on.
func (e *Engine) queueBehindPrompt(ctx context.Context, game model.GameID, plays []model.DeferredPlay) error {
	if len(plays) == 0 {
		return nil
	}
	s, err := e.store.Saga(ctx, game)
	if err != nil {
		return err
	}
	saga, ok := s.(model.RevealSaga)
	if !ok {
		e.logger.Warn("dropping deferred plays, game is not waiting on a reveal",
			zap.Int64("game_id", int64(game)),
			zap.Int("dropped", len(plays)),
		)
		return nil
	}
	saga.Deferred = append(saga.Deferred, plays...)
	if err := e.store.SaveSaga(ctx, game, saga); err != nil {
		return apperrors.Wrap(apperrors.CodeStoreWriteFailed, "queue deferred plays", err)
	}
	return nil
}
