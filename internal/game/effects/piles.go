package effects

import (
	"context"
	"slices"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
)

const (
	ashesWindow = 5
	delayWindow = 5
	trainWindow = 6
)

// newestFirst orders a pile from its top down. Cards without a position are
// the oldest.
func newestFirst(cards []model.Card) []model.Card {
	sorted := slices.Clone(cards)
	slices.SortStableFunc(sorted, func(a, b model.Card) int {
		switch {
		case a.Position == nil && b.Position == nil:
			return 0
		case a.Position == nil:
			return 1
		case b.Position == nil:
			return -1
		default:
			return *b.Position - *a.Position
		}
	})
	return sorted
}

// pileTop returns up to n cards from the top of a pile.
func pileTop(ctx context.Context, d Deps, game model.GameID, loc model.Location, n int, exclude []model.CardID) ([]model.Card, error) {
	cards, err := d.Store.Cards(ctx, model.CardFilter{GameID: game, Location: loc})
	if err != nil {
		return nil, readFailed("load pile", err)
	}
	cards = slices.DeleteFunc(cards, func(c model.Card) bool {
		return slices.Contains(exclude, c.ID)
	})
	cards = newestFirst(cards)
	if len(cards) > n {
		cards = cards[:n]
	}
	return cards, nil
}

// lookIntoTheAshes offers the newest discards to the actor.
type lookIntoTheAshes struct{ Deps }

func (v lookIntoTheAshes) Execute(ctx context.Context, req Request) (Outcome, error) {
	options, err := pileTop(ctx, v.Deps, req.GameID, model.LocationDiscard, ashesWindow, req.CardIDs)
	if err != nil {
		return Outcome{}, err
	}
	if len(options) == 0 {
		return continued(), nil
	}

	ids := cardIDs(options)
	saga := model.CardSelectionSaga{Chooser: req.PlayerID, Options: ids}
	actor := model.Ptr(req.PlayerID)
	if err := v.prompt(ctx, req.GameID, saga, actor, actor); err != nil {
		return Outcome{}, err
	}
	v.send(ctx, req.GameID, req.PlayerID, model.EventCardSelectionRequested, actor, map[string]any{
		"options": ids,
	})
	return paused(), nil
}

// delayTheMurderersEscape puts the newest discards back on the draw pile in
// random order.
type delayTheMurderersEscape struct{ Deps }

func (v delayTheMurderersEscape) Execute(ctx context.Context, req Request) (Outcome, error) {
	cards, err := pileTop(ctx, v.Deps, req.GameID, model.LocationDiscard, delayWindow, req.CardIDs)
	if err != nil {
		return Outcome{}, err
	}
	v.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })

	for _, c := range cards {
		if err := v.Store.MoveCard(ctx, c.ID, model.ToDeckTop()); err != nil {
			return Outcome{}, writeFailed("move card to deck", err)
		}
	}
	if len(cards) > 0 {
		v.broadcast(ctx, req.GameID, model.EventDeckUpdated, model.Ptr(req.PlayerID), map[string]any{
			"added": len(cards),
		})
	}
	return continued(), nil
}

// earlyTrainToPaddington discards the top of the draw pile.
type earlyTrainToPaddington struct{ Deps }

func (v earlyTrainToPaddington) Execute(ctx context.Context, req Request) (Outcome, error) {
	cards, err := pileTop(ctx, v.Deps, req.GameID, model.LocationDeck, trainWindow, nil)
	if err != nil {
		return Outcome{}, err
	}
	for _, c := range cards {
		if err := v.Store.MoveCard(ctx, c.ID, model.ToDiscard()); err != nil {
			return Outcome{}, writeFailed("discard card", err)
		}
	}
	if len(cards) > 0 {
		actor := model.Ptr(req.PlayerID)
		v.broadcast(ctx, req.GameID, model.EventCardsDiscarded, actor, map[string]any{
			"card_ids": cardIDs(cards),
			"source":   model.LocationDeck,
		})
		v.broadcast(ctx, req.GameID, model.EventDeckUpdated, actor, map[string]any{
			"removed": len(cards),
		})
	}
	return continued(), nil
}

// cardsOffTheTable discards every interrupt card in the target's hand.
type cardsOffTheTable struct{ Deps }

func (v cardsOffTheTable) Validate(ctx context.Context, req Request) error {
	_, err := targetPlayer(ctx, v.Deps, req)
	return err
}

func (v cardsOffTheTable) Execute(ctx context.Context, req Request) (Outcome, error) {
	target, err := targetPlayer(ctx, v.Deps, req)
	if err != nil {
		return Outcome{}, err
	}
	cards, err := v.Store.Cards(ctx, model.CardFilter{
		GameID:   req.GameID,
		Location: model.LocationHand,
		Owner:    model.Ptr(target.ID),
		Kind:     model.KindNotSoFast,
	})
	if err != nil {
		return Outcome{}, readFailed("load hand", err)
	}
	for _, c := range cards {
		if err := v.Store.MoveCard(ctx, c.ID, model.ToDiscard()); err != nil {
			return Outcome{}, writeFailed("discard card", err)
		}
	}
	if len(cards) > 0 {
		v.broadcast(ctx, req.GameID, model.EventCardsDiscarded, model.Ptr(req.PlayerID), map[string]any{
			"card_ids":  cardIDs(cards),
			"player_id": target.ID,
		})
		v.send(ctx, req.GameID, target.ID, model.EventHandUpdated, model.Ptr(req.PlayerID), nil)
	}
	return continued(), nil
}
