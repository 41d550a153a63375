package effects

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
	apperrors "github.com/deathcards/deathcards-server-go/internal/platform/errors"
)

// revealChosenSecret lets the actor pick any face-down secret of the target.
type revealChosenSecret struct{ Deps }

func (v revealChosenSecret) Validate(ctx context.Context, req Request) error {
	_, err := v.chosen(ctx, req)
	return err
}

func (v revealChosenSecret) Execute(ctx context.Context, req Request) (Outcome, error) {
	secret, err := v.chosen(ctx, req)
	if err != nil {
		return Outcome{}, err
	}
	status, err := RevealSecret(ctx, v.Deps, req.GameID, secret.ID, model.Ptr(req.PlayerID))
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: status}, nil
}

func (v revealChosenSecret) chosen(ctx context.Context, req Request) (*model.Secret, error) {
	target, err := targetPlayer(ctx, v.Deps, req)
	if err != nil {
		return nil, err
	}
	if req.Targets.Secret == nil {
		return nil, missingTarget("secret")
	}
	secret, err := v.Store.Secret(ctx, *req.Targets.Secret)
	if err != nil {
		return nil, readFailed("load secret", err)
	}
	if secret.Owner != target.ID {
		return nil, invalidTarget("secret %d does not belong to player %d", secret.ID, target.ID)
	}
	if secret.Revealed {
		return nil, apperrors.New(apperrors.CodeSecretAlreadyRevealed,
			fmt.Sprintf("secret %d is already revealed", secret.ID))
	}
	return secret, nil
}

// revealByChoice makes the target reveal a secret of their choosing.
type revealByChoice struct{ Deps }

func (v revealByChoice) Validate(ctx context.Context, req Request) error {
	_, err := revealablePlayer(ctx, v.Deps, req)
	return err
}

func (v revealByChoice) Execute(ctx context.Context, req Request) (Outcome, error) {
	target, err := revealablePlayer(ctx, v.Deps, req)
	if err != nil {
		return Outcome{}, err
	}
	return promptReveal(ctx, v.Deps, req.GameID, model.RevealChoice, req.PlayerID, target.ID)
}

// revealForSteal makes the target reveal a secret that then passes to the actor.
type revealForSteal struct{ Deps }

func (v revealForSteal) Validate(ctx context.Context, req Request) error {
	_, err := v.victim(ctx, req)
	return err
}

func (v revealForSteal) Execute(ctx context.Context, req Request) (Outcome, error) {
	target, err := v.victim(ctx, req)
	if err != nil {
		return Outcome{}, err
	}
	return promptReveal(ctx, v.Deps, req.GameID, model.RevealSteal, req.PlayerID, target.ID)
}

func (v revealForSteal) victim(ctx context.Context, req Request) (*model.Player, error) {
	if req.Targets.Player != nil && *req.Targets.Player == req.PlayerID {
		return nil, invalidTarget("cannot steal from yourself")
	}
	return revealablePlayer(ctx, v.Deps, req)
}

// hideSecret turns any revealed secret face-down again.
type hideSecret struct{ Deps }

func (v hideSecret) Validate(ctx context.Context, req Request) error {
	if req.Targets.Secret == nil {
		return missingTarget("secret")
	}
	_, err := revealedSecret(ctx, v.Deps, req.GameID, *req.Targets.Secret)
	return err
}

func (v hideSecret) Execute(ctx context.Context, req Request) (Outcome, error) {
	if req.Targets.Secret == nil {
		return Outcome{}, missingTarget("secret")
	}
	if err := HideSecret(ctx, v.Deps, req.GameID, *req.Targets.Secret, model.Ptr(req.PlayerID)); err != nil {
		return Outcome{}, err
	}
	return continued(), nil
}

// ariadneOliver joins another player's set and makes its owner reveal.
type ariadneOliver struct{ Deps }

func (v ariadneOliver) Validate(ctx context.Context, req Request) error {
	_, err := v.owner(ctx, req)
	return err
}

func (v ariadneOliver) Execute(ctx context.Context, req Request) (Outcome, error) {
	owner, err := v.owner(ctx, req)
	if err != nil {
		return Outcome{}, err
	}
	return promptReveal(ctx, v.Deps, req.GameID, model.RevealChoice, req.PlayerID, owner)
}

func (v ariadneOliver) owner(ctx context.Context, req Request) (model.PlayerID, error) {
	owner, err := targetSetOwner(ctx, v.Deps, req)
	if err != nil {
		return 0, err
	}
	if err := requireHidden(ctx, v.Deps, req.GameID, owner); err != nil {
		return 0, err
	}
	return owner, nil
}

// blackmailed is played by the giver; the new holder shows them a secret.
type blackmailed struct{ Deps }

func (v blackmailed) Execute(ctx context.Context, req Request) (Outcome, error) {
	target, err := targetPlayer(ctx, v.Deps, req)
	if err != nil {
		return Outcome{}, err
	}
	return forcedReveal(ctx, v.Deps, req.GameID, model.RevealPrivate, req.PlayerID, target.ID)
}

// socialFauxPas is played by the new holder, who must reveal a secret.
type socialFauxPas struct{ Deps }

func (v socialFauxPas) Execute(ctx context.Context, req Request) (Outcome, error) {
	giver, err := targetPlayer(ctx, v.Deps, req)
	if err != nil {
		return Outcome{}, err
	}
	return forcedReveal(ctx, v.Deps, req.GameID, model.RevealChoice, giver.ID, req.PlayerID)
}

// andThenThereWasOneMore hands a revealed secret to a recipient face-down.
type andThenThereWasOneMore struct{ Deps }

func (v andThenThereWasOneMore) Validate(ctx context.Context, req Request) error {
	_, _, err := v.handover(ctx, req)
	return err
}

func (v andThenThereWasOneMore) Execute(ctx context.Context, req Request) (Outcome, error) {
	secret, recipient, err := v.handover(ctx, req)
	if err != nil {
		return Outcome{}, err
	}
	if err := StealSecret(ctx, v.Deps, req.GameID, secret.ID, recipient.ID, model.Ptr(req.PlayerID)); err != nil {
		return Outcome{}, err
	}
	return continued(), nil
}

func (v andThenThereWasOneMore) handover(ctx context.Context, req Request) (*model.Secret, *model.Player, error) {
	if req.Targets.Secret == nil {
		return nil, nil, missingTarget("secret")
	}
	if req.Targets.Recipient == nil {
		return nil, nil, missingTarget("recipient")
	}
	secret, err := revealedSecret(ctx, v.Deps, req.GameID, *req.Targets.Secret)
	if err != nil {
		return nil, nil, err
	}
	recipient, err := v.Store.Player(ctx, *req.Targets.Recipient)
	if err != nil {
		return nil, nil, readFailed("load recipient", err)
	}
	if recipient.GameID != req.GameID {
		return nil, nil, invalidTarget("player %d is not part of game %d", recipient.ID, req.GameID)
	}
	return secret, recipient, nil
}

func targetPlayer(ctx context.Context, d Deps, req Request) (*model.Player, error) {
	if req.Targets.Player == nil {
		return nil, missingTarget("player")
	}
	p, err := d.Store.Player(ctx, *req.Targets.Player)
	if err != nil {
		return nil, readFailed("load target player", err)
	}
	if p.GameID != req.GameID {
		return nil, invalidTarget("player %d is not part of game %d", p.ID, req.GameID)
	}
	return p, nil
}

func targetSetOwner(ctx context.Context, d Deps, req Request) (model.PlayerID, error) {
	if req.Targets.Set == nil {
		return 0, missingTarget("set")
	}
	cards, err := d.Store.SetCards(ctx, *req.Targets.Set)
	if err != nil {
		return 0, readFailed("load set", err)
	}
	if cards[0].GameID != req.GameID || cards[0].Owner == nil {
		return 0, invalidTarget("set %d is not part of game %d", *req.Targets.Set, req.GameID)
	}
	return *cards[0].Owner, nil
}

// revealablePlayer returns the target player once it is known to hold at
// least one face-down secret.
func revealablePlayer(ctx context.Context, d Deps, req Request) (*model.Player, error) {
	target, err := targetPlayer(ctx, d, req)
	if err != nil {
		return nil, err
	}
	if err := requireHidden(ctx, d, req.GameID, target.ID); err != nil {
		return nil, err
	}
	return target, nil
}

func requireHidden(ctx context.Context, d Deps, game model.GameID, player model.PlayerID) error {
	hidden, err := hiddenSecrets(ctx, d, game, player)
	if err != nil {
		return err
	}
	if len(hidden) == 0 {
		return invalidTarget("player %d has no hidden secrets", player)
	}
	return nil
}

// revealedSecret loads a face-up secret of the game.
func revealedSecret(ctx context.Context, d Deps, game model.GameID, id model.SecretID) (*model.Secret, error) {
	secret, err := d.Store.Secret(ctx, id)
	if err != nil {
		return nil, readFailed("load secret", err)
	}
	if secret.GameID != game {
		return nil, invalidTarget("secret %d is not part of game %d", id, game)
	}
	if !secret.Revealed {
		return nil, apperrors.New(apperrors.CodeSecretNotRevealed,
			fmt.Sprintf("secret %d is not revealed", id))
	}
	return secret, nil
}

// forcedReveal prompts holder for a system play. A holder without hidden
// secrets simply has nothing to show.
func forcedReveal(ctx context.Context, d Deps, game model.GameID, mode model.RevealMode, initiator, holder model.PlayerID) (Outcome, error) {
	hidden, err := hiddenSecrets(ctx, d, game, holder)
	if err != nil {
		return Outcome{}, err
	}
	if len(hidden) == 0 {
		d.Logger.Info("forced reveal skipped, no hidden secrets",
			zap.Int64("game_id", int64(game)),
			zap.Int64("player_id", int64(holder)),
		)
		return continued(), nil
	}
	return promptReveal(ctx, d, game, mode, initiator, holder)
}

func promptReveal(ctx context.Context, d Deps, game model.GameID, mode model.RevealMode, initiator, target model.PlayerID) (Outcome, error) {
	saga := model.RevealSaga{Mode: mode, Initiator: initiator, Target: target}
	if err := d.prompt(ctx, game, saga, model.Ptr(target), model.Ptr(initiator)); err != nil {
		return Outcome{}, err
	}
	d.send(ctx, game, target, model.EventRevealRequested, model.Ptr(initiator), map[string]any{
		"mode":         mode,
		"initiator_id": initiator,
	})
	return paused(), nil
}
