package effects

import (
	"context"
	"slices"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
)

// pointYourSuspicions opens a vote among every player of the game.
type pointYourSuspicions struct{ Deps }

func (v pointYourSuspicions) Execute(ctx context.Context, req Request) (Outcome, error) {
	players, err := v.Store.Players(ctx, req.GameID)
	if err != nil {
		return Outcome{}, readFailed("load players", err)
	}
	voters := playerIDs(players)
	saga := model.VoteSaga{
		Initiator: req.PlayerID,
		Voters:    voters,
		Votes:     make(map[model.PlayerID]*model.PlayerID, len(voters)),
	}
	actor := model.Ptr(req.PlayerID)
	if err := v.prompt(ctx, req.GameID, saga, nil, actor); err != nil {
		return Outcome{}, err
	}
	v.broadcast(ctx, req.GameID, model.EventVoteStarted, actor, map[string]any{
		"voters": voters,
	})
	return paused(), nil
}

// deadCardFolly asks every player holding cards to pass one along.
type deadCardFolly struct{ Deps }

func (v deadCardFolly) Validate(_ context.Context, req Request) error {
	if req.Targets.Direction == "" {
		return missingTarget("direction")
	}
	if !req.Targets.Direction.Valid() {
		return invalidTarget("unknown direction %q", req.Targets.Direction)
	}
	return nil
}

func (v deadCardFolly) Execute(ctx context.Context, req Request) (Outcome, error) {
	if err := v.Validate(ctx, req); err != nil {
		return Outcome{}, err
	}

	players, err := v.Store.Players(ctx, req.GameID)
	if err != nil {
		return Outcome{}, readFailed("load players", err)
	}
	var donors []model.PlayerID
	for _, p := range players {
		hand, err := v.Store.Cards(ctx, model.CardFilter{GameID: req.GameID, Location: model.LocationHand, Owner: model.Ptr(p.ID)})
		if err != nil {
			return Outcome{}, readFailed("load hand", err)
		}
		hand = slices.DeleteFunc(hand, func(c model.Card) bool { return slices.Contains(req.CardIDs, c.ID) })
		if len(hand) > 0 {
			donors = append(donors, p.ID)
		}
	}
	if len(donors) == 0 {
		return continued(), nil
	}

	saga := model.DonationSaga{
		Initiator: req.PlayerID,
		Direction: req.Targets.Direction,
		Donors:    donors,
		Choices:   make(map[model.PlayerID]model.CardID, len(donors)),
	}
	actor := model.Ptr(req.PlayerID)
	if err := v.prompt(ctx, req.GameID, saga, nil, actor); err != nil {
		return Outcome{}, err
	}
	v.broadcast(ctx, req.GameID, model.EventDonationRequested, actor, map[string]any{
		"direction": req.Targets.Direction,
		"donors":    donors,
	})
	return paused(), nil
}

// cardTrade offers one of the actor's cards to the target in exchange for a
// card of the target's choosing.
type cardTrade struct{ Deps }

func (v cardTrade) Validate(ctx context.Context, req Request) error {
	_, _, err := v.offer(ctx, req)
	return err
}

func (v cardTrade) Execute(ctx context.Context, req Request) (Outcome, error) {
	target, offered, err := v.offer(ctx, req)
	if err != nil {
		return Outcome{}, err
	}
	saga := model.TradeSaga{Initiator: req.PlayerID, Target: target.ID, OfferedCard: offered.ID}
	actor := model.Ptr(req.PlayerID)
	if err := v.prompt(ctx, req.GameID, saga, model.Ptr(target.ID), actor); err != nil {
		return Outcome{}, err
	}
	v.send(ctx, req.GameID, target.ID, model.EventTradeRequested, actor, map[string]any{
		"initiator_id": req.PlayerID,
	})
	return paused(), nil
}

// offer returns the trade partner and the card offered to them.
func (v cardTrade) offer(ctx context.Context, req Request) (*model.Player, *model.Card, error) {
	target, err := targetPlayer(ctx, v.Deps, req)
	if err != nil {
		return nil, nil, err
	}
	if target.ID == req.PlayerID {
		return nil, nil, invalidTarget("cannot trade with yourself")
	}
	if req.Targets.Card == nil {
		return nil, nil, missingTarget("card")
	}
	offered, err := v.Store.Card(ctx, *req.Targets.Card)
	if err != nil {
		return nil, nil, readFailed("load offered card", err)
	}
	if !offered.OwnedBy(req.PlayerID) || slices.Contains(req.CardIDs, offered.ID) {
		return nil, nil, invalidTarget("card %d is not in the trader's hand", offered.ID)
	}
	hand, err := v.Store.Cards(ctx, model.CardFilter{GameID: req.GameID, Location: model.LocationHand, Owner: model.Ptr(target.ID)})
	if err != nil {
		return nil, nil, readFailed("load hand", err)
	}
	if len(hand) == 0 {
		return nil, nil, invalidTarget("player %d has no cards to trade", target.ID)
	}
	return target, offered, nil
}

// murdererEscapes ends the game.
type murdererEscapes struct{ Deps }

func (v murdererEscapes) Execute(ctx context.Context, req Request) (Outcome, error) {
	if err := finishGame(ctx, v.Deps, req.GameID, "murderer_escaped"); err != nil {
		return Outcome{}, err
	}
	return ended(), nil
}
