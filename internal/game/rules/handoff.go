package rules

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
)

// Handoff describes a card that changed hands during a donation or trade.
type Handoff struct {
	GameID model.GameID
	CardID model.CardID
	Kind   model.CardKind
	From   model.PlayerID
	To     model.PlayerID
}

// HandoffPlay is a system play synthesized from a hand-off.
type HandoffPlay struct {
	Actor  model.PlayerID
	Target model.PlayerID
	CardID model.CardID
	Kind   model.CardKind
}

// HandoffTrigger reacts to one card kind changing hands.
type HandoffTrigger struct {
	ID    string
	Kind  model.CardKind
	Build func(Handoff) HandoffPlay
}

// HandoffTriggers stores the triggers evaluated after cards change hands.
type HandoffTriggers struct {
	mu       sync.Mutex
	triggers map[string]HandoffTrigger
}

// NewHandoffTriggers creates an empty trigger set.
func NewHandoffTriggers() *HandoffTriggers {
	return &HandoffTriggers{triggers: make(map[string]HandoffTrigger)}
}

// Register adds a trigger and returns its ID.
func (h *HandoffTriggers) Register(trigger HandoffTrigger) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if trigger.ID == "" {
		trigger.ID = uuid.NewString()
	}
	h.triggers[trigger.ID] = trigger
	return trigger.ID
}

// Unregister removes a trigger by ID.
func (h *HandoffTriggers) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.triggers, id)
}

// Handle evaluates the hand-offs in order and returns the plays they produce.
func (h *HandoffTriggers) Handle(handoffs []Handoff) []HandoffPlay {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.triggers) == 0 {
		return nil
	}

	ids := make([]string, 0, len(h.triggers))
	for id := range h.triggers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var plays []HandoffPlay
	for _, ho := range handoffs {
		if ho.From == ho.To {
			continue
		}
		for _, id := range ids {
			trigger := h.triggers[id]
			if trigger.Kind != ho.Kind || trigger.Build == nil {
				continue
			}
			play := trigger.Build(ho)
			play.CardID = ho.CardID
			play.Kind = ho.Kind
			plays = append(plays, play)
		}
	}
	return plays
}

// DefaultHandoffTriggers registers the devious cards. Blackmailed is played
// by the giver against the new holder; Social Faux Pas is played by the new
// holder with the giver as target.
func DefaultHandoffTriggers() *HandoffTriggers {
	h := NewHandoffTriggers()
	h.Register(HandoffTrigger{
		ID:   string(model.KindBlackmailed),
		Kind: model.KindBlackmailed,
		Build: func(ho Handoff) HandoffPlay {
			return HandoffPlay{Actor: ho.From, Target: ho.To}
		},
	})
	h.Register(HandoffTrigger{
		ID:   string(model.KindSocialFauxPas),
		Kind: model.KindSocialFauxPas,
		Build: func(ho Handoff) HandoffPlay {
			return HandoffPlay{Actor: ho.To, Target: ho.From}
		},
	})
	return h
}
