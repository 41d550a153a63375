package game

import (
	"context"
	"fmt"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
	"github.com/deathcards/deathcards-server-go/internal/game/rules"
	apperrors "github.com/deathcards/deathcards-server-go/internal/platform/errors"
)

// SelectTradeCard completes a card trade: the prompted player gives card and
// receives the card offered by the initiator.
func (e *Engine) SelectTradeCard(ctx context.Context, game model.GameID, player model.PlayerID, card model.CardID) (res Result, err error) {
	defer e.lock(game)(&res)

	_, s, err := e.activeSaga(ctx, game, model.StateAwaitingSelectionForCardTrade)
	if err != nil {
		return Result{}, err
	}
	saga, ok := s.(model.TradeSaga)
	if !ok {
		return Result{}, sagaMismatch(s)
	}
	if player != saga.Target {
		return Result{}, notPrompted(player)
	}
	selected, err := e.store.Card(ctx, card)
	if err != nil {
		return Result{}, err
	}
	if !selected.OwnedBy(player) {
		return Result{}, apperrors.New(apperrors.CodeNotCardOwner,
			fmt.Sprintf("card %d is not in player %d's hand", card, player))
	}
	offered, err := e.store.Card(ctx, saga.OfferedCard)
	if err != nil {
		return Result{}, err
	}
	if !offered.OwnedBy(saga.Initiator) {
		return Result{}, apperrors.New(apperrors.CodeWrongActionState,
			fmt.Sprintf("offered card %d is no longer in player %d's hand", offered.ID, saga.Initiator))
	}

	if err := e.store.MoveCard(ctx, offered.ID, model.ToHand(saga.Target)); err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeStoreWriteFailed, "give offered card", err)
	}
	if err := e.store.MoveCard(ctx, selected.ID, model.ToHand(saga.Initiator)); err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeStoreWriteFailed, "give selected card", err)
	}
	if err := e.settle(ctx, game); err != nil {
		return Result{}, err
	}

	e.broadcast(ctx, game, model.EventTradeCompleted, model.Ptr(player), map[string]any{
		"initiator_id": saga.Initiator,
		"target_id":    saga.Target,
	})
	e.send(ctx, game, saga.Initiator, model.EventHandUpdated, model.Ptr(player), nil)
	e.send(ctx, game, saga.Target, model.EventHandUpdated, model.Ptr(player), nil)

	var handoffs []rules.Handoff
	for _, ho := range []rules.Handoff{
		{GameID: game, CardID: offered.ID, Kind: offered.Kind, From: saga.Initiator, To: saga.Target},
		{GameID: game, CardID: selected.ID, Kind: selected.Kind, From: saga.Target, To: saga.Initiator},
	} {
		if ho.Kind.IsDevious() {
			handoffs = append(handoffs, ho)
		}
	}
	return e.reroute(ctx, game, handoffs)
}
