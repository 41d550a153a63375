package rules

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
)

func TestRegistryMatchPrefersPriority(t *testing.T) {
	r := NewRegistry()
	r.Register("poirot", model.Combo{model.KindHerculePoirot: 3}, VariantRevealChosenSecret, 0)
	r.Register("poirot_wild", model.Combo{model.KindHerculePoirot: 2, model.KindHarleyQuin: 1}, VariantRevealByChoice, 10)
	r.Freeze()

	rule, ok := r.Match(model.Combo{model.KindHerculePoirot: 3, model.KindHarleyQuin: 1})
	require.True(t, ok)
	assert.Equal(t, "poirot_wild", rule.Name)
	assert.Equal(t, 10, rule.Priority)

	rule, ok = r.Match(model.Combo{model.KindHerculePoirot: 3})
	require.True(t, ok)
	assert.Equal(t, "poirot", rule.Name)
}

func TestRegistryMatchPrefersLargerPatternOnEqualPriority(t *testing.T) {
	r := NewRegistry()
	r.Register("pair", model.Combo{model.KindParkerPyne: 2}, VariantHideSecret, 5)
	r.Register("triple", model.Combo{model.KindParkerPyne: 3}, VariantRevealByChoice, 5)

	rule, ok := r.Match(model.Combo{model.KindParkerPyne: 3})
	require.True(t, ok)
	assert.Equal(t, "triple", rule.Name)
}

func TestRegistryMatchTieBreaksByRegistrationOrder(t *testing.T) {
	for i := 0; i < 20; i++ {
		r := NewRegistry()
		r.Register("first", model.Combo{model.KindTommyBeresford: 1, model.KindHarleyQuin: 1}, VariantRevealByChoice, 1)
		r.Register("second", model.Combo{model.KindTuppenceBeresford: 1, model.KindHarleyQuin: 1}, VariantHideSecret, 1)

		rule, ok := r.Match(model.ComboOf(model.KindTommyBeresford, model.KindTuppenceBeresford, model.KindHarleyQuin))
		require.True(t, ok)
		assert.Equal(t, "first", rule.Name)
	}
}

func TestRegistryNoMatch(t *testing.T) {
	r := DefaultRegistry()
	_, ok := r.Match(model.ComboOf(model.KindHerculePoirot, model.KindMissMarple))
	assert.False(t, ok)
}

func TestRegistryFrozenRejectsRegistration(t *testing.T) {
	r := DefaultRegistry()
	assert.Panics(t, func() {
		r.Register("late", model.Combo{model.KindParkerPyne: 1}, VariantHideSecret, 0)
	})
}

func TestRegistryRejectsEmptyPattern(t *testing.T) {
	r := NewRegistry()
	assert.Panics(t, func() {
		r.Register("empty", model.Combo{}, VariantHideSecret, 0)
	})
}

func TestRegistryMatchIsSound(t *testing.T) {
	r := DefaultRegistry()
	kinds := []model.CardKind{
		model.KindHerculePoirot, model.KindMissMarple, model.KindMrSatterthwaite,
		model.KindParkerPyne, model.KindLadyEileenBrent, model.KindTommyBeresford,
		model.KindTuppenceBeresford, model.KindHarleyQuin, model.KindAriadneOliver,
	}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		n := 2 + rng.Intn(5)
		played := make([]model.CardKind, n)
		for j := range played {
			played[j] = kinds[rng.Intn(len(kinds))]
		}
		combo := model.ComboOf(played...)
		rule, ok := r.Match(combo)
		if !ok {
			continue
		}
		for kind, required := range rule.Pattern {
			assert.GreaterOrEqual(t, combo[kind], required, "rule %s matched %s", rule.Name, combo)
		}
	}
}

func TestDefaultRegistryVariants(t *testing.T) {
	r := DefaultRegistry()

	cases := []struct {
		played  []model.CardKind
		name    string
		variant VariantID
	}{
		{[]model.CardKind{model.KindMrSatterthwaite, model.KindMrSatterthwaite}, "satterthwaite", VariantRevealByChoice},
		{[]model.CardKind{model.KindMrSatterthwaite, model.KindHarleyQuin}, "satterthwaite_wild", VariantRevealForSteal},
		{[]model.CardKind{model.KindParkerPyne, model.KindHarleyQuin}, "parker_pyne_wild", VariantHideSecret},
		{[]model.CardKind{model.KindTommyBeresford, model.KindTuppenceBeresford}, RuleTommyAndTuppence, VariantRevealByChoice},
		{[]model.CardKind{model.KindMissMarple, model.KindMissMarple, model.KindMissMarple}, "marple", VariantRevealChosenSecret},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule, ok := r.Match(model.ComboOf(tc.played...))
			require.True(t, ok)
			assert.Equal(t, tc.name, rule.Name)
			assert.Equal(t, tc.variant, rule.Variant)
		})
	}
}

func TestClassifierSingleCards(t *testing.T) {
	c := DefaultClassifier()

	rule, ok := c.Classify([]model.CardKind{model.KindHarleyQuin})
	require.True(t, ok)
	assert.Equal(t, VariantRevealChosenSecret, rule.Variant)

	rule, ok = c.Classify([]model.CardKind{model.KindLookIntoTheAshes})
	require.True(t, ok)
	assert.Equal(t, VariantLookIntoTheAshes, rule.Variant)
	assert.Equal(t, "look_into_the_ashes", rule.Name)

	_, ok = c.Classify([]model.CardKind{model.KindHerculePoirot})
	assert.False(t, ok)

	_, ok = c.Classify(nil)
	assert.False(t, ok)
}

func TestClassifierWildcardOverridesTable(t *testing.T) {
	table := SingleCardTable{
		Wildcard:        model.KindHarleyQuin,
		WildcardVariant: VariantRevealChosenSecret,
		Variants:        map[model.CardKind]VariantID{model.KindHarleyQuin: VariantHideSecret},
	}
	rule, ok := table.Lookup(model.KindHarleyQuin)
	require.True(t, ok)
	assert.Equal(t, VariantRevealChosenSecret, rule.Variant)
}

func TestClassifierCancellable(t *testing.T) {
	c := DefaultClassifier()

	pair, ok := c.Classify([]model.CardKind{model.KindTommyBeresford, model.KindTuppenceBeresford})
	require.True(t, ok)
	assert.False(t, c.Cancellable(pair))

	blackmailed, ok := c.Classify([]model.CardKind{model.KindBlackmailed})
	require.True(t, ok)
	assert.False(t, c.Cancellable(blackmailed))

	fauxPas, ok := c.Classify([]model.CardKind{model.KindSocialFauxPas})
	require.True(t, ok)
	assert.False(t, c.Cancellable(fauxPas))

	trade, ok := c.Classify([]model.CardKind{model.KindCardTrade})
	require.True(t, ok)
	assert.True(t, c.Cancellable(trade))

	tommy, ok := c.Classify([]model.CardKind{model.KindTommyBeresford, model.KindTommyBeresford})
	require.True(t, ok)
	assert.True(t, c.Cancellable(tommy))
}
