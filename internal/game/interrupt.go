package game

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/deathcards/deathcards-server-go/internal/game/effects"
	"github.com/deathcards/deathcards-server-go/internal/game/model"
	"github.com/deathcards/deathcards-server-go/internal/game/rules"
	apperrors "github.com/deathcards/deathcards-server-go/internal/platform/errors"
)

// openWindow records a cancellable play and blocks the game until every
// other player has answered it.
func (e *Engine) openWindow(ctx context.Context, req effects.Request, rule rules.Rule) (Result, error) {
	pending := &model.PendingAction{
		ID:                 uuid.NewString(),
		GameID:             req.GameID,
		PlayerID:           req.PlayerID,
		Kind:               model.PendingPlayCards,
		CardIDs:            req.CardIDs,
		Targets:            req.Targets,
		LastActionPlayerID: req.PlayerID,
	}
	if err := e.store.CreatePendingAction(ctx, pending); err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeStoreWriteFailed, "create pending action", err)
	}
	state := model.ActionState{State: model.StatePendingNSF, Initiator: model.Ptr(req.PlayerID)}
	if err := e.store.SetActionState(ctx, req.GameID, state); err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeStoreWriteFailed, "set action state", err)
	}

	e.broadcast(ctx, req.GameID, model.EventPlayPending, model.Ptr(req.PlayerID), map[string]any{
		"pending_action_id": pending.ID,
		"card_ids":          req.CardIDs,
		"rule":              rule.Name,
	})
	e.logger.Debug("interrupt window opened",
		zap.Int64("game_id", int64(req.GameID)),
		zap.String("pending_action_id", pending.ID),
		zap.String("rule", rule.Name),
	)

	done, err := e.windowComplete(ctx, pending)
	if err != nil {
		return Result{}, err
	}
	if done {
		return e.closeWindow(ctx, pending)
	}
	return Result{Status: model.FlowPaused, PendingActionID: pending.ID}, nil
}

// PlayInterruptOrPass answers the open interrupt window. A nil card passes;
// otherwise the card must be a Not So Fast from the responder's hand.
func (e *Engine) PlayInterruptOrPass(ctx context.Context, game model.GameID, player model.PlayerID, card *model.CardID) (res Result, err error) {
	defer e.lock(game)(&res)

	g, err := e.activeGame(ctx, game)
	if err != nil {
		return Result{}, err
	}
	if g.Action.State != model.StatePendingNSF {
		return Result{}, wrongState(g, model.StatePendingNSF)
	}
	pending, err := e.store.PendingAction(ctx, game)
	if err != nil {
		return Result{}, err
	}
	if pending == nil {
		return Result{}, apperrors.New(apperrors.CodeCorruptState,
			fmt.Sprintf("game %d is waiting on interrupts without a pending action", game))
	}
	responder, err := e.member(ctx, game, player)
	if err != nil {
		return Result{}, err
	}
	if responder.ID == pending.LastActionPlayerID {
		return Result{}, apperrors.New(apperrors.CodeLastAggressor,
			fmt.Sprintf("player %d made the last move in this window", responder.ID))
	}
	if pending.HasResponded(responder.ID) {
		return Result{}, apperrors.New(apperrors.CodeAlreadyResponded,
			fmt.Sprintf("player %d already answered this round", responder.ID))
	}

	if card == nil {
		pending, err = e.store.IncrementResponses(ctx, game, responder.ID)
		if err != nil {
			return Result{}, apperrors.Wrap(apperrors.CodeStoreWriteFailed, "record pass", err)
		}
		e.broadcast(ctx, game, model.EventResponsePassed, model.Ptr(responder.ID), map[string]any{
			"pending_action_id": pending.ID,
			"responses":         pending.ResponsesCount,
		})
	} else {
		pending, err = e.interrupt(ctx, game, responder, *card)
		if err != nil {
			return Result{}, err
		}
	}

	done, err := e.windowComplete(ctx, pending)
	if err != nil {
		return Result{}, err
	}
	if done {
		return e.closeWindow(ctx, pending)
	}
	return Result{Status: model.FlowPaused, PendingActionID: pending.ID}, nil
}

func (e *Engine) interrupt(ctx context.Context, game model.GameID, responder *model.Player, id model.CardID) (*model.PendingAction, error) {
	if responder.SocialDisgrace {
		return nil, apperrors.New(apperrors.CodeSocialDisgrace,
			fmt.Sprintf("player %d is in social disgrace", responder.ID))
	}
	card, err := e.store.Card(ctx, id)
	if err != nil {
		return nil, err
	}
	if !card.OwnedBy(responder.ID) {
		return nil, apperrors.New(apperrors.CodeNotCardOwner,
			fmt.Sprintf("card %d is not in player %d's hand", id, responder.ID))
	}
	if card.Kind != model.KindNotSoFast {
		return nil, apperrors.WithMetadata(apperrors.CodeNotAnInterrupt,
			fmt.Sprintf("card %d cannot interrupt a play", id),
			map[string]string{"kind": string(card.Kind)})
	}

	if err := e.store.MoveCard(ctx, id, model.ToDiscard()); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreWriteFailed, "discard interrupt", err)
	}
	pending, err := e.store.RecordInterrupt(ctx, game, responder.ID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreWriteFailed, "record interrupt", err)
	}

	actor := model.Ptr(responder.ID)
	e.broadcast(ctx, game, model.EventInterruptPlayed, actor, map[string]any{
		"pending_action_id": pending.ID,
		"card_id":           id,
		"nsf_count":         pending.NSFCount,
	})
	e.send(ctx, game, responder.ID, model.EventHandUpdated, actor, nil)
	return pending, nil
}

// windowComplete reports whether everyone but the last aggressor has
// answered since the last interrupt.
func (e *Engine) windowComplete(ctx context.Context, pending *model.PendingAction) (bool, error) {
	players, err := e.store.Players(ctx, pending.GameID)
	if err != nil {
		return false, err
	}
	return pending.ResponsesCount >= len(players)-1, nil
}

// closeWindow cancels or executes the pending play and removes it.
func (e *Engine) closeWindow(ctx context.Context, pending *model.PendingAction) (Result, error) {
	if pending.Cancelled() {
		return e.cancelPending(ctx, pending)
	}

	req := effects.Request{
		GameID:   pending.GameID,
		PlayerID: pending.PlayerID,
		CardIDs:  pending.CardIDs,
		Targets:  pending.Targets,
	}
	status, execErr := e.executor.Execute(ctx, req)
	if execErr != nil && apperrors.KindOf(execErr) == apperrors.KindInternal {
		e.logger.Error("pending play failed, window left open",
			zap.Int64("game_id", int64(pending.GameID)),
			zap.String("pending_action_id", pending.ID),
			zap.Error(execErr),
		)
		return Result{}, execErr
	}

	if err := e.dropPending(ctx, pending); err != nil {
		return Result{}, err
	}
	if execErr != nil {
		return e.rejectPending(ctx, pending, execErr), nil
	}

	e.broadcast(ctx, pending.GameID, model.EventPlayResolved, model.Ptr(pending.PlayerID), map[string]any{
		"pending_action_id": pending.ID,
		"card_ids":          pending.CardIDs,
		"nsf_count":         pending.NSFCount,
		"status":            status,
	})
	e.logger.Info("pending play resolved",
		zap.Int64("game_id", int64(pending.GameID)),
		zap.String("pending_action_id", pending.ID),
		zap.Int("nsf_count", pending.NSFCount),
		zap.String("status", string(status)),
	)
	return Result{Status: status, PendingActionID: pending.ID}, nil
}

// cancelPending discards the cards of a cancelled play. Ariadne Oliver stays
// where she is.
func (e *Engine) cancelPending(ctx context.Context, pending *model.PendingAction) (Result, error) {
	var discarded []model.CardID
	for _, id := range pending.CardIDs {
		card, err := e.store.Card(ctx, id)
		if err != nil {
			return Result{}, err
		}
		if card.Kind == model.KindAriadneOliver {
			continue
		}
		if err := e.store.MoveCard(ctx, id, model.ToDiscard()); err != nil {
			return Result{}, apperrors.Wrap(apperrors.CodeStoreWriteFailed, "discard cancelled card", err)
		}
		discarded = append(discarded, id)
	}
	if err := e.dropPending(ctx, pending); err != nil {
		return Result{}, err
	}

	actor := model.Ptr(pending.PlayerID)
	e.broadcast(ctx, pending.GameID, model.EventPlayCancelled, actor, map[string]any{
		"pending_action_id": pending.ID,
		"card_ids":          discarded,
		"nsf_count":         pending.NSFCount,
	})
	e.send(ctx, pending.GameID, pending.PlayerID, model.EventHandUpdated, actor, nil)
	e.logger.Info("pending play cancelled",
		zap.Int64("game_id", int64(pending.GameID)),
		zap.String("pending_action_id", pending.ID),
		zap.Int("nsf_count", pending.NSFCount),
	)
	return Result{Status: model.FlowContinue, PendingActionID: pending.ID}, nil
}

// rejectPending tells the table that a play whose targets went stale while
// the window was open fizzled. Its cards stay in the actor's hand and the
// responder who closed the window gets a normal acknowledgement.
func (e *Engine) rejectPending(ctx context.Context, pending *model.PendingAction, cause error) Result {
	code := apperrors.CodeOf(cause)
	actor := model.Ptr(pending.PlayerID)
	e.broadcast(ctx, pending.GameID, model.EventPlayCancelled, actor, map[string]any{
		"pending_action_id": pending.ID,
		"card_ids":          []model.CardID{},
		"nsf_count":         pending.NSFCount,
		"reason":            string(code),
	})
	e.send(ctx, pending.GameID, pending.PlayerID, model.EventPlayRejected, actor, map[string]any{
		"pending_action_id": pending.ID,
		"code":              string(code),
		"kind":              string(code.Kind()),
		"message":           cause.Error(),
	})
	e.logger.Info("pending play rejected on resolution",
		zap.Int64("game_id", int64(pending.GameID)),
		zap.String("pending_action_id", pending.ID),
		zap.String("code", string(code)),
		zap.Error(cause),
	)
	return Result{Status: model.FlowContinue, PendingActionID: pending.ID}
}

// dropPending deletes the pending action and resets the game unless the
// resolved play parked a saga of its own.
func (e *Engine) dropPending(ctx context.Context, pending *model.PendingAction) error {
	if err := e.store.DeletePendingAction(ctx, pending.GameID); err != nil {
		return apperrors.Wrap(apperrors.CodeStoreWriteFailed, "delete pending action", err)
	}
	g, err := e.store.Game(ctx, pending.GameID)
	if err != nil {
		return err
	}
	if g.Action.State != model.StatePendingNSF {
		return nil
	}
	if err := e.store.SetActionState(ctx, pending.GameID, model.ActionState{State: model.StateNone}); err != nil {
		return apperrors.Wrap(apperrors.CodeStoreWriteFailed, "reset action state", err)
	}
	return nil
}

func wrongState(g *model.Game, want ...model.State) error {
	return apperrors.WithMetadata(apperrors.CodeWrongActionState,
		fmt.Sprintf("game %d is in state %s", g.ID, g.Action.State),
		map[string]string{"state": string(g.Action.State), "expected": fmt.Sprint(want)})
}
