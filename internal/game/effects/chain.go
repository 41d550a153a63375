package effects

import (
	"context"

	"go.uber.org/zap"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
)

// anotherVictim steals a set and replays the effect the set carries.
type anotherVictim struct{ Deps }

func (v anotherVictim) Validate(ctx context.Context, req Request) error {
	_, err := v.victim(ctx, req)
	return err
}

func (v anotherVictim) Execute(ctx context.Context, req Request) (Outcome, error) {
	from, err := v.victim(ctx, req)
	if err != nil {
		return Outcome{}, err
	}
	set := *req.Targets.Set
	cards, err := v.Store.SetCards(ctx, set)
	if err != nil {
		return Outcome{}, readFailed("load set", err)
	}

	if err := v.Store.TransferSet(ctx, set, req.PlayerID); err != nil {
		return Outcome{}, writeFailed("transfer set", err)
	}
	v.broadcast(ctx, req.GameID, model.EventSetStolen, model.Ptr(req.PlayerID), map[string]any{
		"set_id":  set,
		"from_id": from,
		"to_id":   req.PlayerID,
	})
	v.Logger.Debug("set stolen",
		zap.Int64("game_id", int64(req.GameID)),
		zap.Int64("set_id", int64(set)),
		zap.Int64("from", int64(from)),
		zap.Int64("to", int64(req.PlayerID)),
	)

	// The replay targets everything except the stolen set itself.
	targets := req.Targets
	targets.Set = nil
	return Outcome{
		Status: model.FlowContinue,
		FollowUps: []FollowUp{{
			Request: Request{
				GameID:    req.GameID,
				PlayerID:  req.PlayerID,
				CardIDs:   cardIDs(cards),
				Targets:   targets,
				System:    true,
				Retrigger: true,
			},
			ParkOnMissingTarget: true,
		}},
	}, nil
}

// victim returns the owner of the targeted set, who must not be the actor.
func (v anotherVictim) victim(ctx context.Context, req Request) (model.PlayerID, error) {
	from, err := targetSetOwner(ctx, v.Deps, req)
	if err != nil {
		return 0, err
	}
	if from == req.PlayerID {
		return 0, invalidTarget("set %d already belongs to the actor", *req.Targets.Set)
	}
	return from, nil
}
