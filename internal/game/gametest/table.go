// Package gametest provides a seeded in-memory table and a recording notifier
// for exercising the rule engine in tests.
package gametest

import (
	"context"
	"slices"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
	"github.com/deathcards/deathcards-server-go/internal/store/memory"
)

// Table is a game seeded into a memory store.
type Table struct {
	t        *testing.T
	Ctx      context.Context
	Store    *memory.Store
	Notifier *Recorder
	Logger   *zap.Logger
	Game     model.GameID
	Players  []model.PlayerID
}

// NewTable creates a game with n players. Player ids are 1..n in turn order
// and player 1 has the turn.
func NewTable(t *testing.T, n int) *Table {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := memory.New(logger)

	game := store.AddGame(model.Game{CurrentTurn: 1})
	players := make([]model.PlayerID, n)
	for i := 0; i < n; i++ {
		players[i] = store.AddPlayer(model.Player{
			ID:        model.PlayerID(i + 1),
			GameID:    game,
			Name:      "player-" + string(rune('A'+i)),
			TurnOrder: i,
		})
	}

	return &Table{
		t:        t,
		Ctx:      context.Background(),
		Store:    store,
		Notifier: &Recorder{},
		Logger:   logger,
		Game:     game,
		Players:  players,
	}
}

// Give puts new cards of the given kinds in a player's hand.
func (tb *Table) Give(player model.PlayerID, kinds ...model.CardKind) []model.CardID {
	ids := make([]model.CardID, len(kinds))
	for i, k := range kinds {
		ids[i] = tb.Store.AddCard(model.Card{
			GameID:   tb.Game,
			Kind:     k,
			Location: model.LocationHand,
			Owner:    model.Ptr(player),
		})
	}
	return ids
}

// Discard adds a card to the discard pile. A nil position is the oldest.
func (tb *Table) Discard(kind model.CardKind, position *int) model.CardID {
	return tb.Store.AddCard(model.Card{
		GameID:   tb.Game,
		Kind:     kind,
		Location: model.LocationDiscard,
		Position: position,
	})
}

// Deck adds a card to the draw pile. Higher positions are nearer the top.
func (tb *Table) Deck(kind model.CardKind, position int) model.CardID {
	return tb.Store.AddCard(model.Card{
		GameID:   tb.Game,
		Kind:     kind,
		Location: model.LocationDeck,
		Position: model.Ptr(position),
	})
}

// Secret deals a secret to a player.
func (tb *Table) Secret(owner model.PlayerID, kind model.SecretKind, revealed bool) model.SecretID {
	return tb.Store.AddSecret(model.Secret{
		GameID:   tb.Game,
		Owner:    owner,
		Kind:     kind,
		Revealed: revealed,
	})
}

// Set lays down a set of the given kinds for a player.
func (tb *Table) Set(owner model.PlayerID, kinds ...model.CardKind) (model.SetID, []model.CardID) {
	tb.t.Helper()
	ids := tb.Give(owner, kinds...)
	set, err := tb.Store.CreateSet(tb.Ctx, tb.Game, owner, ids)
	if err != nil {
		tb.t.Fatalf("create set: %v", err)
	}
	return set, ids
}

// Card returns the current state of a card.
func (tb *Table) Card(id model.CardID) model.Card {
	tb.t.Helper()
	c, err := tb.Store.Card(tb.Ctx, id)
	if err != nil {
		tb.t.Fatalf("load card %d: %v", id, err)
	}
	return *c
}

// SecretState returns the current state of a secret.
func (tb *Table) SecretState(id model.SecretID) model.Secret {
	tb.t.Helper()
	s, err := tb.Store.Secret(tb.Ctx, id)
	if err != nil {
		tb.t.Fatalf("load secret %d: %v", id, err)
	}
	return *s
}

// Player returns the current state of a player.
func (tb *Table) Player(id model.PlayerID) model.Player {
	tb.t.Helper()
	p, err := tb.Store.Player(tb.Ctx, id)
	if err != nil {
		tb.t.Fatalf("load player %d: %v", id, err)
	}
	return *p
}

// State returns the current game aggregate.
func (tb *Table) State() model.Game {
	tb.t.Helper()
	g, err := tb.Store.Game(tb.Ctx, tb.Game)
	if err != nil {
		tb.t.Fatalf("load game: %v", err)
	}
	return *g
}

// Saga returns the active saga, or nil.
func (tb *Table) Saga() model.Saga {
	tb.t.Helper()
	s, err := tb.Store.Saga(tb.Ctx, tb.Game)
	if err != nil {
		tb.t.Fatalf("load saga: %v", err)
	}
	return s
}

// Pending returns the pending action, or nil.
func (tb *Table) Pending() *model.PendingAction {
	tb.t.Helper()
	p, err := tb.Store.PendingAction(tb.Ctx, tb.Game)
	if err != nil {
		tb.t.Fatalf("load pending action: %v", err)
	}
	return p
}

// Hand returns the ids of the cards in a player's hand.
func (tb *Table) Hand(player model.PlayerID) []model.CardID {
	tb.t.Helper()
	cards, err := tb.Store.Cards(tb.Ctx, model.CardFilter{
		GameID:   tb.Game,
		Location: model.LocationHand,
		Owner:    model.Ptr(player),
	})
	if err != nil {
		tb.t.Fatalf("load hand: %v", err)
	}
	ids := make([]model.CardID, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	return ids
}

// Recorded is an event with its recipient; To is nil for broadcasts.
type Recorded struct {
	To    *model.PlayerID
	Event model.Event
}

// Recorder is a synchronous notifier that keeps every event.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

// Broadcast records a game-wide event.
func (r *Recorder) Broadcast(_ context.Context, _ model.GameID, event model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Event: event})
}

// Send records an event addressed to one player.
func (r *Recorder) Send(_ context.Context, _ model.GameID, player model.PlayerID, event model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{To: model.Ptr(player), Event: event})
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]model.EventType, len(r.events))
	for i, e := range r.events {
		types[i] = e.Event.Type
	}
	return types
}

// Last returns the most recent event of a type.
func (r *Recorder) Last(t model.EventType) (model.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Event.Type == t {
			return r.events[i].Event, true
		}
	}
	return model.Event{}, false
}

// SentTo reports whether an event of a type was addressed to player.
func (r *Recorder) SentTo(player model.PlayerID, t model.EventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.To != nil && *e.To == player && e.Event.Type == t {
			return true
		}
	}
	return false
}

// Reset forgets every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
