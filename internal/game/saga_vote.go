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

// SubmitVote records a ballot in the open vote. A nil suspect abstains. The
// last ballot closes the vote and the winner must reveal a secret.
func (e *Engine) SubmitVote(ctx context.Context, game model.GameID, voter model.PlayerID, suspect *model.PlayerID) (res Result, err error) {
	defer e.lock(game)(&res)

	_, s, err := e.activeSaga(ctx, game, model.StateAwaitingVotes)
	if err != nil {
		return Result{}, err
	}
	saga, ok := s.(model.VoteSaga)
	if !ok {
		return Result{}, sagaMismatch(s)
	}
	if !slices.Contains(saga.Voters, voter) {
		return Result{}, apperrors.New(apperrors.CodeNotEligible,
			fmt.Sprintf("player %d cannot vote", voter))
	}
	if _, voted := saga.Votes[voter]; voted {
		return Result{}, apperrors.New(apperrors.CodeAlreadyVoted,
			fmt.Sprintf("player %d already voted", voter))
	}
	if suspect != nil {
		if _, err := e.member(ctx, game, *suspect); err != nil {
			return Result{}, err
		}
	}

	if saga.Votes == nil {
		saga.Votes = make(map[model.PlayerID]*model.PlayerID, len(saga.Voters))
	}
	saga.Votes[voter] = suspect
	e.broadcast(ctx, game, model.EventVoteCast, model.Ptr(voter), map[string]any{
		"votes":  len(saga.Votes),
		"voters": len(saga.Voters),
	})

	if len(saga.Votes) < len(saga.Voters) {
		if err := e.store.SaveSaga(ctx, game, saga); err != nil {
			return Result{}, apperrors.Wrap(apperrors.CodeStoreWriteFailed, "save vote", err)
		}
		return Result{Status: model.FlowPaused}, nil
	}
	return e.closeVote(ctx, game, saga)
}

func (e *Engine) closeVote(ctx context.Context, game model.GameID, saga model.VoteSaga) (Result, error) {
	winner := tally(saga)
	if err := e.settle(ctx, game); err != nil {
		return Result{}, err
	}
	e.broadcast(ctx, game, model.EventVoteEnded, model.Ptr(saga.Initiator), map[string]any{
		"winner_id": winner,
	})
	if winner == nil {
		e.logger.Info("vote ended without a suspect", zap.Int64("game_id", int64(game)))
		return Result{Status: model.FlowContinue}, nil
	}
	e.logger.Info("vote ended",
		zap.Int64("game_id", int64(game)),
		zap.Int64("winner_id", int64(*winner)),
	)

	status, err := e.executor.Invoke(ctx, rules.VariantRevealByChoice, effects.Request{
		GameID:   game,
		PlayerID: saga.Initiator,
		Targets:  model.Targets{Player: winner},
		System:   true,
	})
	if apperrors.HasCode(err, apperrors.CodeInvalidTarget) {
		e.logger.Info("suspect has nothing left to reveal",
			zap.Int64("game_id", int64(game)),
			zap.Int64("player_id", int64(*winner)),
		)
		return Result{Status: model.FlowContinue}, nil
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Status: status}, nil
}

// tally returns the plurality suspect. Ties go to the initiator's pick when
// it is among the leaders, else to the lowest player id.
func tally(saga model.VoteSaga) *model.PlayerID {
	counts := make(map[model.PlayerID]int)
	for _, suspect := range saga.Votes {
		if suspect != nil {
			counts[*suspect]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	best := 0
	var leaders []model.PlayerID
	for suspect, n := range counts {
		switch {
		case n > best:
			best = n
			leaders = []model.PlayerID{suspect}
		case n == best:
			leaders = append(leaders, suspect)
		}
	}
	if len(leaders) == 1 {
		return model.Ptr(leaders[0])
	}
	if pick := saga.Votes[saga.Initiator]; pick != nil && slices.Contains(leaders, *pick) {
		return model.Ptr(*pick)
	}
	return model.Ptr(slices.Min(leaders))
}
