package rules

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
	apperrors "github.com/deathcards/deathcards-server-go/internal/platform/errors"
)

// DefaultMaxChainDepth bounds how many effects may be nested in one chain.
const DefaultMaxChainDepth = 8

// ResolutionGuard tracks the effects resolving within one executor call and
// rejects chains that are too deep or that resolve the same cards twice. It
// belongs to a single call and is not safe for concurrent use.
type ResolutionGuard struct {
	resolving []string // keys of resolving effects, innermost at end
	maxDepth  int
}

// NewResolutionGuard creates a guard. A non-positive maxDepth uses the default.
func NewResolutionGuard(maxDepth int) *ResolutionGuard {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxChainDepth
	}
	return &ResolutionGuard{
		resolving: make([]string, 0, maxDepth),
		maxDepth:  maxDepth,
	}
}

// ChainKey identifies an effect by the variant and card set it resolves.
func ChainKey(variant VariantID, cards []model.CardID) string {
	ids := slices.Clone(cards)
	slices.Sort(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(int64(id), 10)
	}
	return string(variant) + "[" + strings.Join(parts, ",") + "]"
}

// Begin marks key as resolving at the given depth. Depth 0 is the played
// effect itself; follow-ups are one deeper than their parent.
func (g *ResolutionGuard) Begin(key string, depth int) error {
	if depth >= g.maxDepth {
		return apperrors.WithMetadata(apperrors.CodeChainTooDeep,
			fmt.Sprintf("maximum chain depth (%d) exceeded", g.maxDepth),
			map[string]string{"effect": key})
	}
	// Unwind siblings that finished at this depth or deeper.
	if depth < len(g.resolving) {
		g.resolving = g.resolving[:depth]
	}
	if slices.Contains(g.resolving, key) {
		return apperrors.WithMetadata(apperrors.CodeEffectCycle,
			"effect re-triggers itself within the same chain",
			map[string]string{"effect": key})
	}
	g.resolving = append(g.resolving, key)
	return nil
}
