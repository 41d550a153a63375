// Package effects implements the card effect handlers and the executor that
// classifies a play and drives its effect chain.
package effects

import (
	"context"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
	"github.com/deathcards/deathcards-server-go/internal/game/rules"
	apperrors "github.com/deathcards/deathcards-server-go/internal/platform/errors"
)

// Request is one effect invocation.
type Request struct {
	GameID   model.GameID
	PlayerID model.PlayerID
	CardIDs  []model.CardID
	Targets  model.Targets
	// System marks plays synthesized by the engine rather than a player.
	System bool
	// Retrigger marks a replayed effect; its cards stay where they are.
	Retrigger bool
}

// FollowUp is an effect a variant asks the executor to run after it.
type FollowUp struct {
	Request Request
	// ParkOnMissingTarget turns a missing-target failure into a prompt for
	// the actor instead of an error.
	ParkOnMissingTarget bool
}

// Outcome is what a variant reports back to the executor.
type Outcome struct {
	Status    model.FlowStatus
	FollowUps []FollowUp
}

// Variant is a single effect handler.
type Variant interface {
	Execute(ctx context.Context, req Request) (Outcome, error)
}

// Validator is implemented by variants whose targets can be checked before
// the play is committed, e.g. ahead of the interrupt window.
type Validator interface {
	Validate(ctx context.Context, req Request) error
}

// VariantFunc adapts a function to Variant.
type VariantFunc func(ctx context.Context, req Request) (Outcome, error)

// Execute calls f.
func (f VariantFunc) Execute(ctx context.Context, req Request) (Outcome, error) {
	return f(ctx, req)
}

// Deps are the collaborators every variant is built over.
type Deps struct {
	Store    model.Store
	Notifier model.Notifier
	Logger   *zap.Logger
	// Shuffle permutes n elements, like rand.Shuffle.
	Shuffle func(n int, swap func(i, j int))
}

func (d Deps) withDefaults() Deps {
	if d.Notifier == nil {
		d.Notifier = model.NopNotifier{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Shuffle == nil {
		d.Shuffle = rand.Shuffle
	}
	return d
}

// DefaultVariants builds the standard handler for every variant id.
func DefaultVariants(d Deps) map[rules.VariantID]Variant {
	d = d.withDefaults()
	return map[rules.VariantID]Variant{
		rules.VariantRevealChosenSecret:      revealChosenSecret{d},
		rules.VariantRevealByChoice:          revealByChoice{d},
		rules.VariantRevealForSteal:          revealForSteal{d},
		rules.VariantHideSecret:              hideSecret{d},
		rules.VariantAriadneOliver:           ariadneOliver{d},
		rules.VariantLookIntoTheAshes:        lookIntoTheAshes{d},
		rules.VariantAnotherVictim:           anotherVictim{d},
		rules.VariantDelayTheMurderersEscape: delayTheMurderersEscape{d},
		rules.VariantEarlyTrainToPaddington:  earlyTrainToPaddington{d},
		rules.VariantPointYourSuspicions:     pointYourSuspicions{d},
		rules.VariantDeadCardFolly:           deadCardFolly{d},
		rules.VariantCardTrade:               cardTrade{d},
		rules.VariantCardsOffTheTable:        cardsOffTheTable{d},
		rules.VariantAndThenThereWasOneMore:  andThenThereWasOneMore{d},
		rules.VariantBlackmailed:             blackmailed{d},
		rules.VariantSocialFauxPas:           socialFauxPas{d},
		rules.VariantMurdererEscapes:         murdererEscapes{d},
	}
}

func continued() Outcome { return Outcome{Status: model.FlowContinue} }
func paused() Outcome    { return Outcome{Status: model.FlowPaused} }
func ended() Outcome     { return Outcome{Status: model.FlowEnded} }

func missingTarget(what string) error {
	return apperrors.WithMetadata(apperrors.CodeMissingTarget,
		fmt.Sprintf("%s target is required", what),
		map[string]string{"target": what})
}

func invalidTarget(format string, args ...any) error {
	return apperrors.New(apperrors.CodeInvalidTarget, fmt.Sprintf(format, args...))
}

func (d Deps) broadcast(ctx context.Context, game model.GameID, t model.EventType, actor *model.PlayerID, data map[string]any) {
	d.Notifier.Broadcast(ctx, game, model.NewEvent(t, game, actor, data))
}

func (d Deps) send(ctx context.Context, game model.GameID, to model.PlayerID, t model.EventType, actor *model.PlayerID, data map[string]any) {
	d.Notifier.Send(ctx, game, to, model.NewEvent(t, game, actor, data))
}

// prompt stores a saga and blocks the game on the given player.
func (d Deps) prompt(ctx context.Context, game model.GameID, saga model.Saga, prompted, initiator *model.PlayerID) error {
	if err := d.Store.SaveSaga(ctx, game, saga); err != nil {
		return writeFailed("save saga", err)
	}
	state := model.ActionState{State: saga.State(), PromptedPlayer: prompted, Initiator: initiator}
	if err := d.Store.SetActionState(ctx, game, state); err != nil {
		return writeFailed("set action state", err)
	}
	d.Logger.Debug("game paused",
		zap.Int64("game_id", int64(game)),
		zap.String("state", string(state.State)),
	)
	return nil
}

// writeFailed keeps typed errors and wraps anything else as a write failure.
func writeFailed(op string, err error) error {
	if apperrors.CodeOf(err) != apperrors.CodeUnknown {
		return err
	}
	return apperrors.Wrap(apperrors.CodeStoreWriteFailed, op, err)
}

// readFailed keeps typed errors and wraps anything else as corrupt state.
func readFailed(op string, err error) error {
	if apperrors.CodeOf(err) != apperrors.CodeUnknown {
		return err
	}
	return apperrors.Wrap(apperrors.CodeCorruptState, op, err)
}

func playerIDs(players []model.Player) []model.PlayerID {
	ids := make([]model.PlayerID, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	return ids
}

func cardIDs(cards []model.Card) []model.CardID {
	ids := make([]model.CardID, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	return ids
}
