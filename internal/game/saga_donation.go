package game

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
	"github.com/deathcards/deathcards-server-go/internal/game/rules"
	apperrors "github.com/deathcards/deathcards-server-go/internal/platform/errors"
)

// SubmitDonationChoice records the card a donor passes along. Once every
// donor has chosen, the cards rotate one seat in the saga's direction.
func (e *Engine) SubmitDonationChoice(ctx context.Context, game model.GameID, player model.PlayerID, card model.CardID) (res Result, err error) {
	defer e.lock(game)(&res)

	_, s, err := e.activeSaga(ctx, game, model.StateAwaitingCardDonations)
	if err != nil {
		return Result{}, err
	}
	saga, ok := s.(model.DonationSaga)
	if !ok {
		return Result{}, sagaMismatch(s)
	}
	if !slices.Contains(saga.Donors, player) {
		return Result{}, apperrors.New(apperrors.CodeNotEligible,
			fmt.Sprintf("player %d has nothing to donate", player))
	}
	if _, done := saga.Choices[player]; done {
		return Result{}, apperrors.New(apperrors.CodeAlreadyDonated,
			fmt.Sprintf("player %d already chose a card", player))
	}
	c, err := e.store.Card(ctx, card)
	if err != nil {
		return Result{}, err
	}
	if !c.OwnedBy(player) {
		return Result{}, apperrors.New(apperrors.CodeNotCardOwner,
			fmt.Sprintf("card %d is not in player %d's hand", card, player))
	}

	if saga.Choices == nil {
		saga.Choices = make(map[model.PlayerID]model.CardID, len(saga.Donors))
	}
	saga.Choices[player] = card
	e.broadcast(ctx, game, model.EventDonationSubmitted, model.Ptr(player), map[string]any{
		"submitted": len(saga.Choices),
		"donors":    len(saga.Donors),
	})

	if len(saga.Choices) < len(saga.Donors) {
		if err := e.store.SaveSaga(ctx, game, saga); err != nil {
			return Result{}, apperrors.Wrap(apperrors.CodeStoreWriteFailed, "save donation", err)
		}
		return Result{Status: model.FlowPaused}, nil
	}
	return e.closeDonation(ctx, game, saga)
}

func (e *Engine) closeDonation(ctx context.Context, game model.GameID, saga model.DonationSaga) (Result, error) {
	players, err := e.store.Players(ctx, game)
	if err != nil {
		return Result{}, err
	}
	moves, err := rotate(players, saga)
	if err != nil {
		return Result{}, err
	}

	var handoffs []rules.Handoff
	for _, mv := range moves {
		card, err := e.store.Card(ctx, mv.CardID)
		if err != nil {
			return Result{}, err
		}
		if err := e.store.MoveCard(ctx, mv.CardID, model.ToHand(mv.To)); err != nil {
			return Result{}, apperrors.Wrap(apperrors.CodeStoreWriteFailed, "pass card", err)
		}
		mv.Kind = card.Kind
		if card.Kind.IsDevious() {
			handoffs = append(handoffs, mv)
		}
	}
	if err := e.settle(ctx, game); err != nil {
		return Result{}, err
	}
	for _, p := range players {
		e.send(ctx, game, p.ID, model.EventHandUpdated, nil, nil)
	}
	e.logger.Info("donation completed",
		zap.Int64("game_id", int64(game)),
		zap.String("direction", string(saga.Direction)),
		zap.Int("cards", len(moves)),
		zap.Int("devious", len(handoffs)),
	)
	return e.reroute(ctx, game, handoffs)
}

// rotate computes where each donated card goes: one seat right (+1) or left
// (-1) in turn order, wrapping around the table.
func rotate(players []model.Player, saga model.DonationSaga) ([]rules.Handoff, error) {
	step := 1
	if saga.Direction == model.DirectionLeft {
		step = -1
	}
	seat := make(map[model.PlayerID]int, len(players))
	for i, p := range players {
		seat[p.ID] = i
	}

	n := len(players)
	moves := make([]rules.Handoff, 0, len(saga.Donors))
	for _, donor := range saga.Donors {
		i, ok := seat[donor]
		if !ok {
			return nil, apperrors.New(apperrors.CodeCorruptState,
				fmt.Sprintf("donor %d is not seated at the table", donor))
		}
		moves = append(moves, rules.Handoff{
			GameID: players[i].GameID,
			CardID: saga.Choices[donor],
			From:   donor,
			To:     players[((i+step)%n+n)%n].ID,
		})
	}
	return moves, nil
}
