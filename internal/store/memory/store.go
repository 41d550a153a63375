// Package memory is an in-process persistence collaborator backed by maps.
// It is used by tests and single-instance deployments.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
	apperrors "github.com/deathcards/deathcards-server-go/internal/platform/errors"
)

// Store keeps every entity in memory. All returned values are copies.
type Store struct {
	logger *zap.Logger

	mu      sync.RWMutex
	games   map[model.GameID]*model.Game
	players map[model.PlayerID]*model.Player
	cards   map[model.CardID]*model.Card
	secrets map[model.SecretID]*model.Secret
	sagas   map[model.GameID]model.Saga
	pending map[model.GameID]*model.PendingAction

	nextGame   model.GameID
	nextPlayer model.PlayerID
	nextCard   model.CardID
	nextSecret model.SecretID
	nextSet    model.SetID
}

var _ model.Store = (*Store)(nil)

// New creates an empty store.
func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		logger:  logger,
		games:   make(map[model.GameID]*model.Game),
		players: make(map[model.PlayerID]*model.Player),
		cards:   make(map[model.CardID]*model.Card),
		secrets: make(map[model.SecretID]*model.Secret),
		sagas:   make(map[model.GameID]model.Saga),
		pending: make(map[model.GameID]*model.PendingAction),
	}
}

// AddGame inserts a game and returns its id. A zero ID is assigned.
func (s *Store) AddGame(g model.Game) model.GameID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == 0 {
		s.nextGame++
		g.ID = s.nextGame
	} else if g.ID > s.nextGame {
		s.nextGame = g.ID
	}
	if g.Action.State == "" {
		g.Action.State = model.StateNone
	}
	s.games[g.ID] = copyGame(&g)
	return g.ID
}

// AddPlayer inserts a player and returns its id. A zero ID is assigned.
func (s *Store) AddPlayer(p model.Player) model.PlayerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		s.nextPlayer++
		p.ID = s.nextPlayer
	} else if p.ID > s.nextPlayer {
		s.nextPlayer = p.ID
	}
	cp := p
	s.players[p.ID] = &cp
	return p.ID
}

// AddCard inserts a card and returns its id. A zero ID is assigned.
func (s *Store) AddCard(c model.Card) model.CardID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		s.nextCard++
		c.ID = s.nextCard
	} else if c.ID > s.nextCard {
		s.nextCard = c.ID
	}
	if c.Set != nil && *c.Set > s.nextSet {
		s.nextSet = *c.Set
	}
	s.cards[c.ID] = copyCard(&c)
	return c.ID
}

// AddSecret inserts a secret and returns its id. A zero ID is assigned.
func (s *Store) AddSecret(sec model.Secret) model.SecretID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sec.ID == 0 {
		s.nextSecret++
		sec.ID = s.nextSecret
	} else if sec.ID > s.nextSecret {
		s.nextSecret = sec.ID
	}
	cp := sec
	s.secrets[sec.ID] = &cp
	return sec.ID
}

// Game returns a game by id.
func (s *Store) Game(_ context.Context, id model.GameID) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	if !ok {
		return nil, notFound(apperrors.CodeGameNotFound, "game", int64(id))
	}
	return copyGame(g), nil
}

// Players returns the players of a game sorted by turn order.
func (s *Store) Players(_ context.Context, game model.GameID) ([]model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.games[game]; !ok {
		return nil, notFound(apperrors.CodeGameNotFound, "game", int64(game))
	}
	var out []model.Player
	for _, p := range s.players {
		if p.GameID == game {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TurnOrder != out[j].TurnOrder {
			return out[i].TurnOrder < out[j].TurnOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Player returns a player by id.
func (s *Store) Player(_ context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return nil, notFound(apperrors.CodePlayerNotFound, "player", int64(id))
	}
	cp := *p
	return &cp, nil
}

// Card returns a card by id.
func (s *Store) Card(_ context.Context, id model.CardID) (*model.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cards[id]
	if !ok {
		return nil, notFound(apperrors.CodeCardNotFound, "card", int64(id))
	}
	return copyCard(c), nil
}

// Cards returns the cards matching filter sorted by id.
func (s *Store) Cards(_ context.Context, filter model.CardFilter) ([]model.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Card
	for _, c := range s.cards {
		if matchCard(c, filter) {
			out = append(out, *copyCard(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Secret returns a secret by id.
func (s *Store) Secret(_ context.Context, id model.SecretID) (*model.Secret, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sec, ok := s.secrets[id]
	if !ok {
		return nil, notFound(apperrors.CodeSecretNotFound, "secret", int64(id))
	}
	cp := *sec
	return &cp, nil
}

// Secrets returns the secrets matching filter sorted by id.
func (s *Store) Secrets(_ context.Context, filter model.SecretFilter) ([]model.Secret, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Secret
	for _, sec := range s.secrets {
		if filter.GameID != 0 && sec.GameID != filter.GameID {
			continue
		}
		if filter.Owner != nil && sec.Owner != *filter.Owner {
			continue
		}
		if filter.Revealed != nil && sec.Revealed != *filter.Revealed {
			continue
		}
		out = append(out, *sec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetCards returns the cards of a set sorted by id.
func (s *Store) SetCards(_ context.Context, id model.SetID) ([]model.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.setCardsLocked(id)
	if len(out) == 0 {
		return nil, notFound(apperrors.CodeSetNotFound, "set", int64(id))
	}
	result := make([]model.Card, len(out))
	for i, c := range out {
		result[i] = *copyCard(c)
	}
	return result, nil
}

// Saga returns the active saga of a game, or nil.
func (s *Store) Saga(_ context.Context, game model.GameID) (model.Saga, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.games[game]; !ok {
		return nil, notFound(apperrors.CodeGameNotFound, "game", int64(game))
	}
	saga, ok := s.sagas[game]
	if !ok {
		return nil, nil
	}
	cp, err := model.CloneSaga(saga)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCorruptState, "copy saga", err)
	}
	return cp, nil
}

// PendingAction returns the pending action of a game, or nil.
func (s *Store) PendingAction(_ context.Context, game model.GameID) (*model.PendingAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.games[game]; !ok {
		return nil, notFound(apperrors.CodeGameNotFound, "game", int64(game))
	}
	return s.pending[game].Clone(), nil
}

// MoveCard relocates a card. Deck and discard moves without a position go
// on top of the pile.
func (s *Store) MoveCard(_ context.Context, id model.CardID, to model.Placement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[id]
	if !ok {
		return notFound(apperrors.CodeCardNotFound, "card", int64(id))
	}
	s.placeLocked(c, to)
	s.logger.Debug("card moved",
		zap.Int64("card_id", int64(id)),
		zap.String("location", string(to.Location)),
	)
	return nil
}

// CreateSet groups cards into a new set owned by owner.
func (s *Store) CreateSet(_ context.Context, game model.GameID, owner model.PlayerID, cards []model.CardID) (model.SetID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range cards {
		if _, ok := s.cards[id]; !ok {
			return 0, notFound(apperrors.CodeCardNotFound, "card", int64(id))
		}
	}
	s.nextSet++
	set := s.nextSet
	for _, id := range cards {
		s.placeLocked(s.cards[id], model.ToSet(owner, set))
	}
	return set, nil
}

// TransferSet gives every card of a set to another player.
func (s *Store) TransferSet(_ context.Context, id model.SetID, to model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cards := s.setCardsLocked(id)
	if len(cards) == 0 {
		return notFound(apperrors.CodeSetNotFound, "set", int64(id))
	}
	for _, c := range cards {
		c.Owner = model.Ptr(to)
	}
	return nil
}

// TransferSecret gives a secret to another player.
func (s *Store) TransferSecret(_ context.Context, id model.SecretID, to model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.secrets[id]
	if !ok {
		return notFound(apperrors.CodeSecretNotFound, "secret", int64(id))
	}
	sec.Owner = to
	return nil
}

// SetSecretRevealed turns a secret face-up or face-down.
func (s *Store) SetSecretRevealed(_ context.Context, id model.SecretID, revealed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.secrets[id]
	if !ok {
		return notFound(apperrors.CodeSecretNotFound, "secret", int64(id))
	}
	sec.Revealed = revealed
	return nil
}

// SetSocialDisgrace sets or clears a player's penalty flag.
func (s *Store) SetSocialDisgrace(_ context.Context, player model.PlayerID, disgraced bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[player]
	if !ok {
		return notFound(apperrors.CodePlayerNotFound, "player", int64(player))
	}
	p.SocialDisgrace = disgraced
	return nil
}

// SetActionState replaces the action state of a game.
func (s *Store) SetActionState(_ context.Context, game model.GameID, state model.ActionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[game]
	if !ok {
		return notFound(apperrors.CodeGameNotFound, "game", int64(game))
	}
	g.Action = copyActionState(state)
	return nil
}

// SaveSaga stores the active saga of a game.
func (s *Store) SaveSaga(_ context.Context, game model.GameID, saga model.Saga) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[game]; !ok {
		return notFound(apperrors.CodeGameNotFound, "game", int64(game))
	}
	cp, err := model.CloneSaga(saga)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStoreWriteFailed, "save saga", err)
	}
	s.sagas[game] = cp
	return nil
}

// ClearSaga removes the active saga of a game.
func (s *Store) ClearSaga(_ context.Context, game model.GameID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sagas, game)
	return nil
}

// CreatePendingAction stores a new pending action. A game holds at most one.
func (s *Store) CreatePendingAction(_ context.Context, action *model.PendingAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[action.GameID]; !ok {
		return notFound(apperrors.CodeGameNotFound, "game", int64(action.GameID))
	}
	if _, exists := s.pending[action.GameID]; exists {
		return apperrors.New(apperrors.CodeGameBlocked,
			fmt.Sprintf("game %d already has a pending action", action.GameID))
	}
	s.pending[action.GameID] = action.Clone()
	return nil
}

// IncrementResponses records a pass from responder.
func (s *Store) IncrementResponses(_ context.Context, game model.GameID, responder model.PlayerID) (*model.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[game]
	if !ok {
		return nil, noPending(game)
	}
	p.ResponsesCount++
	p.Responded = append(p.Responded, responder)
	return p.Clone(), nil
}

// RecordInterrupt registers an interrupt from player and restarts the round.
func (s *Store) RecordInterrupt(_ context.Context, game model.GameID, player model.PlayerID) (*model.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[game]
	if !ok {
		return nil, noPending(game)
	}
	p.NSFCount++
	p.ResponsesCount = 0
	p.Responded = nil
	p.LastActionPlayerID = player
	return p.Clone(), nil
}

// DeletePendingAction removes the pending action of a game.
func (s *Store) DeletePendingAction(_ context.Context, game model.GameID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[game]; !ok {
		return noPending(game)
	}
	delete(s.pending, game)
	return nil
}

// FinishGame marks a game as concluded.
func (s *Store) FinishGame(_ context.Context, game model.GameID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[game]
	if !ok {
		return notFound(apperrors.CodeGameNotFound, "game", int64(game))
	}
	g.Finished = true
	return nil
}

func (s *Store) placeLocked(c *model.Card, to model.Placement) {
	c.Location = to.Location
	c.Owner = nil
	c.Set = nil
	c.Position = nil

	switch to.Location {
	case model.LocationHand:
		c.Owner = clonePtr(to.Owner)
	case model.LocationSet:
		c.Owner = clonePtr(to.Owner)
		c.Set = clonePtr(to.Set)
	case model.LocationDeck, model.LocationDiscard:
		if to.Position != nil {
			c.Position = clonePtr(to.Position)
		} else {
			c.Position = model.Ptr(s.topPositionLocked(c.GameID, to.Location) + 1)
		}
	}
}

func (s *Store) topPositionLocked(game model.GameID, loc model.Location) int {
	top := 0
	for _, c := range s.cards {
		if c.GameID == game && c.Location == loc && c.Position != nil && *c.Position > top {
			top = *c.Position
		}
	}
	return top
}

func (s *Store) setCardsLocked(id model.SetID) []*model.Card {
	var out []*model.Card
	for _, c := range s.cards {
		if c.Location == model.LocationSet && c.Set != nil && *c.Set == id {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b *model.Card) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func matchCard(c *model.Card, f model.CardFilter) bool {
	if f.GameID != 0 && c.GameID != f.GameID {
		return false
	}
	if f.Location != "" && c.Location != f.Location {
		return false
	}
	if f.Kind != "" && c.Kind != f.Kind {
		return false
	}
	if f.Owner != nil && (c.Owner == nil || *c.Owner != *f.Owner) {
		return false
	}
	if f.Set != nil && (c.Set == nil || *c.Set != *f.Set) {
		return false
	}
	return true
}

func notFound(code apperrors.Code, entity string, id int64) error {
	return apperrors.WithMetadata(code, fmt.Sprintf("%s %d not found", entity, id),
		map[string]string{"entity": entity, "id": fmt.Sprint(id)})
}

func noPending(game model.GameID) error {
	return apperrors.New(apperrors.CodeWrongActionState,
		fmt.Sprintf("game %d has no pending action", game))
}

func copyGame(g *model.Game) *model.Game {
	cp := *g
	cp.Action = copyActionState(g.Action)
	return &cp
}

func copyActionState(a model.ActionState) model.ActionState {
	return model.ActionState{
		State:          a.State,
		PromptedPlayer: clonePtr(a.PromptedPlayer),
		Initiator:      clonePtr(a.Initiator),
	}
}

func copyCard(c *model.Card) *model.Card {
	cp := *c
	cp.Owner = clonePtr(c.Owner)
	cp.Set = clonePtr(c.Set)
	cp.Position = clonePtr(c.Position)
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
