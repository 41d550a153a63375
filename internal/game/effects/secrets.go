package effects

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
	apperrors "github.com/deathcards/deathcards-server-go/internal/platform/errors"
)

// RevealSecret turns a secret face-up and applies the penalty bookkeeping.
// Revealing the murderer ends the game.
func RevealSecret(ctx context.Context, d Deps, game model.GameID, id model.SecretID, by *model.PlayerID) (model.FlowStatus, error) {
	d = d.withDefaults()
	secret, err := d.Store.Secret(ctx, id)
	if err != nil {
		return "", readFailed("load secret", err)
	}
	if secret.GameID != game {
		return "", invalidTarget("secret %d is not part of game %d", id, game)
	}
	if secret.Revealed {
		return "", apperrors.New(apperrors.CodeSecretAlreadyRevealed,
			fmt.Sprintf("secret %d is already revealed", id))
	}

	if err := d.Store.SetSecretRevealed(ctx, id, true); err != nil {
		return "", writeFailed("reveal secret", err)
	}
	d.broadcast(ctx, game, model.EventSecretRevealed, by, map[string]any{
		"secret_id": secret.ID,
		"owner_id":  secret.Owner,
		"kind":      secret.Kind,
	})

	if secret.Kind == model.SecretMurderer {
		if err := finishGame(ctx, d, game, "murderer_revealed"); err != nil {
			return "", err
		}
		return model.FlowEnded, nil
	}

	if secret.Kind == model.SecretAccomplice {
		return model.FlowContinue, setDisgrace(ctx, d, game, secret.Owner, true)
	}
	penalized, err := penaltyApplies(ctx, d, game, secret.Owner)
	if err != nil {
		return "", err
	}
	if penalized {
		return model.FlowContinue, setDisgrace(ctx, d, game, secret.Owner, true)
	}
	return model.FlowContinue, nil
}

// HideSecret turns a revealed secret face-down. The owner's penalty is lifted
// when the hidden secret was the accomplice or nothing else keeps it.
func HideSecret(ctx context.Context, d Deps, game model.GameID, id model.SecretID, by *model.PlayerID) error {
	d = d.withDefaults()
	secret, err := revealedSecret(ctx, d, game, id)
	if err != nil {
		return err
	}

	if err := d.Store.SetSecretRevealed(ctx, id, false); err != nil {
		return writeFailed("hide secret", err)
	}
	d.broadcast(ctx, game, model.EventSecretHidden, by, map[string]any{
		"secret_id": secret.ID,
		"owner_id":  secret.Owner,
	})

	if secret.Kind == model.SecretAccomplice {
		return setDisgrace(ctx, d, game, secret.Owner, false)
	}
	penalized, err := penaltyApplies(ctx, d, game, secret.Owner)
	if err != nil {
		return err
	}
	if !penalized {
		return setDisgrace(ctx, d, game, secret.Owner, false)
	}
	return nil
}

// StealSecret moves a secret to a new owner face-down and re-evaluates both
// players' penalties.
func StealSecret(ctx context.Context, d Deps, game model.GameID, id model.SecretID, to model.PlayerID, by *model.PlayerID) error {
	d = d.withDefaults()
	secret, err := d.Store.Secret(ctx, id)
	if err != nil {
		return readFailed("load secret", err)
	}
	from := secret.Owner

	if secret.Revealed {
		if err := d.Store.SetSecretRevealed(ctx, id, false); err != nil {
			return writeFailed("hide secret", err)
		}
	}
	if err := d.Store.TransferSecret(ctx, id, to); err != nil {
		return writeFailed("transfer secret", err)
	}
	d.broadcast(ctx, game, model.EventSecretStolen, by, map[string]any{
		"secret_id": id,
		"from_id":   from,
		"to_id":     to,
	})

	for _, player := range []model.PlayerID{from, to} {
		penalized, err := penaltyApplies(ctx, d, game, player)
		if err != nil {
			return err
		}
		if err := setDisgrace(ctx, d, game, player, penalized); err != nil {
			return err
		}
	}
	return nil
}

// penaltyApplies reports whether the player has a revealed accomplice or has
// every secret revealed.
func penaltyApplies(ctx context.Context, d Deps, game model.GameID, player model.PlayerID) (bool, error) {
	secrets, err := d.Store.Secrets(ctx, model.SecretFilter{GameID: game, Owner: model.Ptr(player)})
	if err != nil {
		return false, readFailed("load secrets", err)
	}
	if len(secrets) == 0 {
		return false, nil
	}
	allRevealed := true
	for _, s := range secrets {
		if s.Revealed && s.Kind == model.SecretAccomplice {
			return true, nil
		}
		if !s.Revealed {
			allRevealed = false
		}
	}
	return allRevealed, nil
}

func setDisgrace(ctx context.Context, d Deps, game model.GameID, player model.PlayerID, disgraced bool) error {
	p, err := d.Store.Player(ctx, player)
	if err != nil {
		return readFailed("load player", err)
	}
	if p.SocialDisgrace == disgraced {
		return nil
	}
	if err := d.Store.SetSocialDisgrace(ctx, player, disgraced); err != nil {
		return writeFailed("set social disgrace", err)
	}
	d.broadcast(ctx, game, model.EventSocialDisgrace, nil, map[string]any{
		"player_id": player,
		"disgraced": disgraced,
	})
	return nil
}

func finishGame(ctx context.Context, d Deps, game model.GameID, reason string) error {
	if err := d.Store.FinishGame(ctx, game); err != nil {
		return writeFailed("finish game", err)
	}
	d.broadcast(ctx, game, model.EventGameEnded, nil, map[string]any{"reason": reason})
	d.Logger.Info("game ended",
		zap.Int64("game_id", int64(game)),
		zap.String("reason", reason),
	)
	return nil
}

// hiddenSecrets returns the face-down secrets of a player.
func hiddenSecrets(ctx context.Context, d Deps, game model.GameID, player model.PlayerID) ([]model.Secret, error) {
	secrets, err := d.Store.Secrets(ctx, model.SecretFilter{
		GameID:   game,
		Owner:    model.Ptr(player),
		Revealed: model.Ptr(false),
	})
	if err != nil {
		return nil, readFailed("load secrets", err)
	}
	return secrets, nil
}
