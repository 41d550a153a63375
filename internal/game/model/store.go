package model

import "context"

// CardFilter narrows a card query. Zero fields are ignored.
type CardFilter struct {
	GameID   GameID
	Location Location
	Owner    *PlayerID
	Set      *SetID
	Kind     CardKind
}

// SecretFilter narrows a secret query. Zero fields are ignored.
type SecretFilter struct {
	GameID   GameID
	Owner    *PlayerID
	Revealed *bool
}

// Placement is the destination of a card move. Moving to the deck or the
// discard pile with a nil Position puts the card on top of that pile.
type Placement struct {
	Location Location
	Owner    *PlayerID
	Set      *SetID
	Position *int
}

// ToHand places a card in a player's hand.
func ToHand(player PlayerID) Placement {
	return Placement{Location: LocationHand, Owner: Ptr(player)}
}

// ToDiscard places a card on top of the discard pile.
func ToDiscard() Placement {
	return Placement{Location: LocationDiscard}
}

// ToDeckTop places a card on top of the draw pile.
func ToDeckTop() Placement {
	return Placement{Location: LocationDeck}
}

// ToSet places a card in an existing set owned by player.
func ToSet(player PlayerID, set SetID) Placement {
	return Placement{Location: LocationSet, Owner: Ptr(player), Set: Ptr(set)}
}

// Removed takes a card out of the game.
func Removed() Placement {
	return Placement{Location: LocationRemoved}
}

// Reader is the query side of the persistence collaborator.
type Reader interface {
	Game(ctx context.Context, id GameID) (*Game, error)
	// Players returns the participants sorted by turn order.
	Players(ctx context.Context, game GameID) ([]Player, error)
	Player(ctx context.Context, id PlayerID) (*Player, error)
	Card(ctx context.Context, id CardID) (*Card, error)
	Cards(ctx context.Context, filter CardFilter) ([]Card, error)
	Secret(ctx context.Context, id SecretID) (*Secret, error)
	Secrets(ctx context.Context, filter SecretFilter) ([]Secret, error)
	SetCards(ctx context.Context, id SetID) ([]Card, error)
	// Saga returns nil without error when no saga is active.
	Saga(ctx context.Context, game GameID) (Saga, error)
	// PendingAction returns nil without error when no play is pending.
	PendingAction(ctx context.Context, game GameID) (*PendingAction, error)
}

// Writer is the command side of the persistence collaborator.
type Writer interface {
	MoveCard(ctx context.Context, id CardID, to Placement) error
	CreateSet(ctx context.Context, game GameID, owner PlayerID, cards []CardID) (SetID, error)
	TransferSet(ctx context.Context, id SetID, to PlayerID) error
	TransferSecret(ctx context.Context, id SecretID, to PlayerID) error
	SetSecretRevealed(ctx context.Context, id SecretID, revealed bool) error
	SetSocialDisgrace(ctx context.Context, player PlayerID, disgraced bool) error
	SetActionState(ctx context.Context, game GameID, state ActionState) error
	SaveSaga(ctx context.Context, game GameID, saga Saga) error
	ClearSaga(ctx context.Context, game GameID) error
	CreatePendingAction(ctx context.Context, action *PendingAction) error
	// IncrementResponses records a pass and returns the updated action.
	IncrementResponses(ctx context.Context, game GameID, responder PlayerID) (*PendingAction, error)
	// RecordInterrupt bumps the interrupt counter, resets the round and makes
	// player the last aggressor.
	RecordInterrupt(ctx context.Context, game GameID, player PlayerID) (*PendingAction, error)
	DeletePendingAction(ctx context.Context, game GameID) error
	FinishGame(ctx context.Context, game GameID) error
}

// Store is the full persistence collaborator.
type Store interface {
	Reader
	Writer
}
