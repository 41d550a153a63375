package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
	apperrors "github.com/deathcards/deathcards-server-go/internal/platform/errors"
)

func TestResolutionGuard(t *testing.T) {
	t.Run("nested chain", func(t *testing.T) {
		g := NewResolutionGuard(0)

		require.NoError(t, g.Begin("a", 0))
		require.NoError(t, g.Begin("b", 1))
		assert.Len(t, g.resolving, 2)
	})

	t.Run("siblings unwind", func(t *testing.T) {
		g := NewResolutionGuard(4)

		require.NoError(t, g.Begin("a", 0))
		require.NoError(t, g.Begin("b", 1))
		require.NoError(t, g.Begin("c", 1))
		assert.Equal(t, []string{"a", "c"}, g.resolving)

		// "b" finished, so it may resolve again as a sibling.
		require.NoError(t, g.Begin("b", 1))
	})

	t.Run("cycle", func(t *testing.T) {
		g := NewResolutionGuard(4)

		require.NoError(t, g.Begin("a", 0))
		require.NoError(t, g.Begin("b", 1))
		err := g.Begin("a", 2)
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeEffectCycle))
		assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
	})

	t.Run("maximum depth", func(t *testing.T) {
		g := NewResolutionGuard(3)
		for i := 0; i < 3; i++ {
			require.NoError(t, g.Begin(string(rune('a'+i)), i))
		}
		err := g.Begin("z", 3)
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeChainTooDeep))
		assert.Contains(t, err.Error(), "maximum chain depth")
	})

	t.Run("new root starts a fresh chain", func(t *testing.T) {
		g := NewResolutionGuard(2)
		require.NoError(t, g.Begin("a", 0))
		require.NoError(t, g.Begin("b", 1))
		require.NoError(t, g.Begin("b", 0))
		assert.Equal(t, []string{"b"}, g.resolving)
	})
}

func TestChainKeyIgnoresCardOrder(t *testing.T) {
	a := ChainKey(VariantRevealByChoice, []model.CardID{3, 1, 2})
	b := ChainKey(VariantRevealByChoice, []model.CardID{1, 2, 3})
	assert.Equal(t, a, b)
	assert.Equal(t, "reveal_by_choice[1,2,3]", a)
	assert.NotEqual(t, a, ChainKey(VariantHideSecret, []model.CardID{1, 2, 3}))
}
