package rules

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
)

// VariantID names an effect handler.
type VariantID string

const (
	VariantRevealChosenSecret      VariantID = "reveal_chosen_secret"
	VariantRevealByChoice          VariantID = "reveal_by_choice"
	VariantRevealForSteal          VariantID = "reveal_for_steal"
	VariantHideSecret              VariantID = "hide_secret"
	VariantAriadneOliver           VariantID = "ariadne_oliver"
	VariantLookIntoTheAshes        VariantID = "look_into_the_ashes"
	VariantAnotherVictim           VariantID = "another_victim"
	VariantDelayTheMurderersEscape VariantID = "delay_the_murderers_escape"
	VariantEarlyTrainToPaddington  VariantID = "early_train_to_paddington"
	VariantPointYourSuspicions     VariantID = "point_your_suspicions"
	VariantDeadCardFolly           VariantID = "dead_card_folly"
	VariantCardTrade               VariantID = "card_trade"
	VariantCardsOffTheTable        VariantID = "cards_off_the_table"
	VariantAndThenThereWasOneMore  VariantID = "and_then_there_was_one_more"
	VariantBlackmailed             VariantID = "blackmailed"
	VariantSocialFauxPas           VariantID = "social_faux_pas"
	VariantMurdererEscapes         VariantID = "murderer_escapes"
)

// Rule binds a combo pattern to an effect variant.
type Rule struct {
	Name     string
	Pattern  model.Combo
	Variant  VariantID
	Priority int
	seq      int
}

// Registry holds the multi-card combo rules. It is filled once at startup
// and frozen before use.
type Registry struct {
	mu     sync.RWMutex
	rules  []Rule
	frozen bool
}

// NewRegistry creates an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{rules: make([]Rule, 0, 16)}
}

// Register adds a rule. Registering into a frozen registry panics.
func (r *Registry) Register(name string, pattern model.Combo, variant VariantID, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		panic(fmt.Sprintf("rules: register %q on frozen registry", name))
	}
	if pattern.Size() == 0 {
		panic(fmt.Sprintf("rules: rule %q has an empty pattern", name))
	}

	cp := make(model.Combo, len(pattern))
	for k, n := range pattern {
		cp[k] = n
	}
	r.rules = append(r.rules, Rule{
		Name:     name,
		Pattern:  cp,
		Variant:  variant,
		Priority: priority,
		seq:      len(r.rules),
	})
}

// Freeze makes the registry immutable.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Match returns the best rule whose pattern is covered by played. Matches are
// ordered by priority, then pattern size (both descending), then registration
// order.
func (r *Registry) Match(played model.Combo) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []Rule
	for _, rule := range r.rules {
		if played.Covers(rule.Pattern) {
			matches = append(matches, rule)
		}
	}
	if len(matches) == 0 {
		return Rule{}, false
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if sa, sb := a.Pattern.Size(), b.Pattern.Size(); sa != sb {
			return sa > sb
		}
		return a.seq < b.seq
	})
	return matches[0], true
}

// SingleCardTable maps a card played alone to its variant.
type SingleCardTable struct {
	Wildcard        model.CardKind
	WildcardVariant VariantID
	Variants        map[model.CardKind]VariantID
}

// Lookup returns the rule for a single card. The wildcard always maps to
// WildcardVariant regardless of the table.
func (t SingleCardTable) Lookup(kind model.CardKind) (Rule, bool) {
	variant, ok := t.Variants[kind]
	if kind == t.Wildcard && t.Wildcard != "" {
		variant, ok = t.WildcardVariant, true
	}
	if !ok {
		return Rule{}, false
	}
	return Rule{
		Name:    strings.ToLower(string(kind)),
		Pattern: model.ComboOf(kind),
		Variant: variant,
	}, true
}

// Classifier dispatches a play to the single-card table or the combo
// registry depending on how many cards were played.
type Classifier struct {
	Combos  *Registry
	Singles SingleCardTable
	// Exempt lists rule names that execute immediately instead of opening
	// an interrupt window.
	Exempt map[string]bool
}

// Classify returns the rule a play triggers.
func (c *Classifier) Classify(kinds []model.CardKind) (Rule, bool) {
	switch len(kinds) {
	case 0:
		return Rule{}, false
	case 1:
		return c.Singles.Lookup(kinds[0])
	default:
		if c.Combos == nil {
			return Rule{}, false
		}
		return c.Combos.Match(model.ComboOf(kinds...))
	}
}

// Cancellable reports whether a play of rule can be interrupted.
func (c *Classifier) Cancellable(rule Rule) bool {
	return !c.Exempt[rule.Name]
}

// DefaultRegistry returns the frozen standard rule set.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	hq := model.KindHarleyQuin

	r.Register("poirot", model.Combo{model.KindHerculePoirot: 3}, VariantRevealChosenSecret, 0)
	r.Register("poirot_wild", model.Combo{model.KindHerculePoirot: 2, hq: 1}, VariantRevealChosenSecret, 10)
	r.Register("marple", model.Combo{model.KindMissMarple: 3}, VariantRevealChosenSecret, 0)
	r.Register("marple_wild", model.Combo{model.KindMissMarple: 2, hq: 1}, VariantRevealChosenSecret, 10)

	r.Register("satterthwaite", model.Combo{model.KindMrSatterthwaite: 2}, VariantRevealByChoice, 0)
	r.Register("satterthwaite_wild", model.Combo{model.KindMrSatterthwaite: 1, hq: 1}, VariantRevealForSteal, 10)

	r.Register("parker_pyne", model.Combo{model.KindParkerPyne: 2}, VariantHideSecret, 0)
	r.Register("parker_pyne_wild", model.Combo{model.KindParkerPyne: 1, hq: 1}, VariantHideSecret, 10)

	r.Register("lady_eileen", model.Combo{model.KindLadyEileenBrent: 2}, VariantRevealByChoice, 0)
	r.Register("lady_eileen_wild", model.Combo{model.KindLadyEileenBrent: 1, hq: 1}, VariantRevealByChoice, 10)
	r.Register("tommy", model.Combo{model.KindTommyBeresford: 2}, VariantRevealByChoice, 0)
	r.Register("tommy_wild", model.Combo{model.KindTommyBeresford: 1, hq: 1}, VariantRevealByChoice, 10)
	r.Register("tuppence", model.Combo{model.KindTuppenceBeresford: 2}, VariantRevealByChoice, 0)
	r.Register("tuppence_wild", model.Combo{model.KindTuppenceBeresford: 1, hq: 1}, VariantRevealByChoice, 10)
	r.Register(RuleTommyAndTuppence, model.Combo{model.KindTommyBeresford: 1, model.KindTuppenceBeresford: 1}, VariantRevealByChoice, 20)

	r.Freeze()
	return r
}

// RuleTommyAndTuppence is the sibling pair that cannot be interrupted.
const RuleTommyAndTuppence = "tommy_and_tuppence"

// DefaultSingleCardTable returns the standard single-card mapping.
func DefaultSingleCardTable() SingleCardTable {
	return SingleCardTable{
		Wildcard:        model.KindHarleyQuin,
		WildcardVariant: VariantRevealChosenSecret,
		Variants: map[model.CardKind]VariantID{
			model.KindAriadneOliver:           VariantAriadneOliver,
			model.KindCardsOffTheTable:        VariantCardsOffTheTable,
			model.KindAnotherVictim:           VariantAnotherVictim,
			model.KindDeadCardFolly:           VariantDeadCardFolly,
			model.KindLookIntoTheAshes:        VariantLookIntoTheAshes,
			model.KindCardTrade:               VariantCardTrade,
			model.KindAndThenThereWasOneMore:  VariantAndThenThereWasOneMore,
			model.KindDelayTheMurderersEscape: VariantDelayTheMurderersEscape,
			model.KindEarlyTrainToPaddington:  VariantEarlyTrainToPaddington,
			model.KindPointYourSuspicions:     VariantPointYourSuspicions,
			model.KindBlackmailed:             VariantBlackmailed,
			model.KindSocialFauxPas:           VariantSocialFauxPas,
			model.KindMurdererEscapes:         VariantMurdererEscapes,
		},
	}
}

// DefaultClassifier wires the standard registry, table and exemptions.
func DefaultClassifier() *Classifier {
	return &Classifier{
		Combos:  DefaultRegistry(),
		Singles: DefaultSingleCardTable(),
		Exempt: map[string]bool{
			RuleTommyAndTuppence:                             true,
			strings.ToLower(string(model.KindBlackmailed)):   true,
			strings.ToLower(string(model.KindSocialFauxPas)): true,
		},
	}
}
