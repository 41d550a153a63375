package effects

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
	"github.com/deathcards/deathcards-server-go/internal/game/rules"
	apperrors "github.com/deathcards/deathcards-server-go/internal/platform/errors"
)

// Executor classifies plays and runs their effects. Follow-up effects are
// queued on a work list and bounded by a resolution guard.
type Executor struct {
	deps       Deps
	classifier *rules.Classifier
	variants   map[rules.VariantID]Variant
	maxDepth   int
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithMaxDepth bounds the effect chain length.
func WithMaxDepth(depth int) ExecutorOption {
	return func(e *Executor) { e.maxDepth = depth }
}

// WithVariant replaces or adds the handler for a variant.
func WithVariant(id rules.VariantID, v Variant) ExecutorOption {
	return func(e *Executor) { e.variants[id] = v }
}

// NewExecutor builds an executor over the default variants.
func NewExecutor(deps Deps, classifier *rules.Classifier, opts ...ExecutorOption) *Executor {
	deps = deps.withDefaults()
	if classifier == nil {
		classifier = rules.DefaultClassifier()
	}
	e := &Executor{
		deps:       deps,
		classifier: classifier,
		variants:   DefaultVariants(deps),
		maxDepth:   rules.DefaultMaxChainDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate checks a classified play's targets without changing anything.
// Variants that cannot be checked ahead of time always pass.
func (e *Executor) Validate(ctx context.Context, rule rules.Rule, req Request) error {
	v, ok := e.variants[rule.Variant].(Validator)
	if !ok {
		return nil
	}
	return v.Validate(ctx, req)
}

// ClassifyEffect loads the played cards and returns the rule they trigger.
func (e *Executor) ClassifyEffect(ctx context.Context, game model.GameID, ids []model.CardID) (rules.Rule, []model.Card, error) {
	if len(ids) == 0 {
		return rules.Rule{}, nil, apperrors.New(apperrors.CodeEmptyPlay, "no cards played")
	}
	cards := make([]model.Card, 0, len(ids))
	kinds := make([]model.CardKind, 0, len(ids))
	for _, id := range ids {
		card, err := e.deps.Store.Card(ctx, id)
		if err != nil {
			return rules.Rule{}, nil, readFailed("load card", err)
		}
		if card.GameID != game {
			return rules.Rule{}, nil, apperrors.New(apperrors.CodeCardNotFound,
				fmt.Sprintf("card %d is not part of game %d", id, game))
		}
		cards = append(cards, *card)
		kinds = append(kinds, card.Kind)
	}
	rule, ok := e.classifier.Classify(kinds)
	if !ok {
		return rules.Rule{}, nil, apperrors.WithMetadata(apperrors.CodeNoMatchingCombo,
			"cards do not form a playable combination",
			map[string]string{"combo": model.ComboOf(kinds...).String()})
	}
	return rule, cards, nil
}

type workItem struct {
	req   Request
	depth int
	park  bool
	// variant skips classification and card placement when set.
	variant rules.VariantID
}

// Execute runs the effect of a play and every follow-up it produces.
func (e *Executor) Execute(ctx context.Context, req Request) (model.FlowStatus, error) {
	return e.run(ctx, workItem{req: req})
}

// Invoke runs one variant directly. The request's cards are neither
// classified nor moved.
func (e *Executor) Invoke(ctx context.Context, id rules.VariantID, req Request) (model.FlowStatus, error) {
	return e.run(ctx, workItem{req: req, variant: id})
}

// Resume runs a follow-up that was parked earlier, as the root of a new chain.
func (e *Executor) Resume(ctx context.Context, f FollowUp) (model.FlowStatus, error) {
	return e.run(ctx, workItem{req: f.Request, park: f.ParkOnMissingTarget})
}

func (e *Executor) run(ctx context.Context, root workItem) (model.FlowStatus, error) {
	guard := rules.NewResolutionGuard(e.maxDepth)
	work := rules.NewWorkList[workItem]()
	work.Push(root)

	status := model.FlowContinue
	for {
		item, ok := work.Pop()
		if !ok {
			return status, nil
		}
		if status == model.FlowPaused {
			e.deps.Logger.Warn("dropping follow-up effect, game is paused",
				zap.Int64("game_id", int64(item.req.GameID)),
				zap.Int("depth", item.depth),
			)
			continue
		}

		out, err := e.resolve(ctx, guard, item)
		if err != nil {
			if item.park && apperrors.HasCode(err, apperrors.CodeMissingTarget) {
				if perr := e.park(ctx, item.req, err); perr != nil {
					return status, perr
				}
				status = model.FlowPaused
				continue
			}
			return status, err
		}

		switch out.Status {
		case model.FlowEnded:
			work.Drain()
			return model.FlowEnded, nil
		case model.FlowPaused:
			status = model.FlowPaused
		}

		followUps := make([]workItem, len(out.FollowUps))
		for i, f := range out.FollowUps {
			followUps[i] = workItem{req: f.Request, depth: item.depth + 1, park: f.ParkOnMissingTarget}
		}
		work.Push(followUps...)
	}
}

func (e *Executor) resolve(ctx context.Context, guard *rules.ResolutionGuard, item workItem) (Outcome, error) {
	req := item.req
	var (
		rule  rules.Rule
		cards []model.Card
		err   error
	)
	if item.variant != "" {
		rule = rules.Rule{Name: string(item.variant), Variant: item.variant}
	} else {
		rule, cards, err = e.ClassifyEffect(ctx, req.GameID, req.CardIDs)
		if err != nil {
			return Outcome{}, err
		}
	}
	if err := guard.Begin(rules.ChainKey(rule.Variant, req.CardIDs), item.depth); err != nil {
		return Outcome{}, err
	}
	variant, ok := e.variants[rule.Variant]
	if !ok {
		return Outcome{}, apperrors.New(apperrors.CodeCorruptState,
			fmt.Sprintf("no handler for variant %s", rule.Variant))
	}

	out, err := variant.Execute(ctx, req)
	if err != nil {
		return Outcome{}, err
	}
	if out.Status == "" {
		out.Status = model.FlowContinue
	}
	if !req.Retrigger && item.variant == "" {
		if err := e.place(ctx, req, rule, cards); err != nil {
			return Outcome{}, err
		}
	}

	e.deps.Logger.Debug("effect resolved",
		zap.Int64("game_id", int64(req.GameID)),
		zap.Int64("player_id", int64(req.PlayerID)),
		zap.String("rule", rule.Name),
		zap.String("variant", string(rule.Variant)),
		zap.String("status", string(out.Status)),
		zap.Int("depth", item.depth),
	)
	return out, nil
}

// place moves the played cards once their effect has run.
func (e *Executor) place(ctx context.Context, req Request, rule rules.Rule, cards []model.Card) error {
	actor := model.Ptr(req.PlayerID)
	ids := cardIDs(cards)

	switch {
	case rule.Variant == rules.VariantAriadneOliver:
		owner, err := targetSetOwner(ctx, e.deps, req)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := e.deps.Store.MoveCard(ctx, id, model.ToSet(owner, *req.Targets.Set)); err != nil {
				return writeFailed("join set", err)
			}
		}

	case allDetectives(cards):
		set, err := e.deps.Store.CreateSet(ctx, req.GameID, req.PlayerID, ids)
		if err != nil {
			return writeFailed("create set", err)
		}
		e.deps.broadcast(ctx, req.GameID, model.EventSetCreated, actor, map[string]any{
			"set_id":   set,
			"owner_id": req.PlayerID,
			"card_ids": ids,
		})

	case rule.Variant == rules.VariantDelayTheMurderersEscape, rule.Variant == rules.VariantEarlyTrainToPaddington:
		for _, id := range ids {
			if err := e.deps.Store.MoveCard(ctx, id, model.Removed()); err != nil {
				return writeFailed("remove card", err)
			}
		}

	default:
		for _, id := range ids {
			if err := e.deps.Store.MoveCard(ctx, id, model.ToDiscard()); err != nil {
				return writeFailed("discard card", err)
			}
		}
		e.deps.broadcast(ctx, req.GameID, model.EventCardsDiscarded, actor, map[string]any{
			"card_ids": ids,
		})
	}

	e.deps.send(ctx, req.GameID, req.PlayerID, model.EventHandUpdated, actor, nil)
	return nil
}

// park blocks the game until the actor supplies the targets a replayed
// effect is missing.
func (e *Executor) park(ctx context.Context, req Request, cause error) error {
	saga := model.ChainTargetSaga{Initiator: req.PlayerID, CardIDs: req.CardIDs, Targets: req.Targets}
	actor := model.Ptr(req.PlayerID)
	if err := e.deps.prompt(ctx, req.GameID, saga, actor, actor); err != nil {
		return err
	}

	var missing string
	var de *apperrors.Error
	if errors.As(cause, &de) {
		missing = de.Metadata["target"]
	}
	e.deps.send(ctx, req.GameID, req.PlayerID, model.EventTargetsRequested, actor, map[string]any{
		"card_ids": req.CardIDs,
		"missing":  missing,
	})
	e.deps.Logger.Info("chained effect parked for targets",
		zap.Int64("game_id", int64(req.GameID)),
		zap.Int64("player_id", int64(req.PlayerID)),
		zap.String("missing", missing),
	)
	return nil
}

func allDetectives(cards []model.Card) bool {
	for _, c := range cards {
		if !c.Kind.IsDetective() {
			return false
		}
	}
	return len(cards) > 0
}
