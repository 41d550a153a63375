// Package model holds the persisted entities of a game, the per-game action
// state machine and the collaborator interfaces the rule engine is written
// against.
package model

import "slices"

// Identifiers are plain integers assigned by the store.
type (
	GameID   int64
	PlayerID int64
	CardID   int64
	SecretID int64
	SetID    int64
)

// Location describes where a card currently lives.
type Location string

const (
	LocationDeck    Location = "DECK"
	LocationHand    Location = "HAND"
	LocationDiscard Location = "DISCARD"
	LocationSet     Location = "SET"
	LocationRemoved Location = "REMOVED"
)

// Card is a concrete card instance.
type Card struct {
	ID       CardID
	GameID   GameID
	Kind     CardKind
	Location Location
	Owner    *PlayerID // hand or set owner
	Set      *SetID
	Position *int // sequence inside deck or discard pile; nil sorts as oldest
}

// OwnedBy reports whether the card is in the given player's hand.
func (c Card) OwnedBy(player PlayerID) bool {
	return c.Location == LocationHand && c.Owner != nil && *c.Owner == player
}

// SecretKind is the role printed on a secret card.
type SecretKind string

const (
	SecretMurderer   SecretKind = "MURDERER"
	SecretAccomplice SecretKind = "ACCOMPLICE"
	SecretRegular    SecretKind = "REGULAR"
)

// Secret is a secret card held face-down (or revealed) by a player.
type Secret struct {
	ID       SecretID
	GameID   GameID
	Owner    PlayerID
	Kind     SecretKind
	Revealed bool
}

// Player is a participant of a game.
type Player struct {
	ID             PlayerID
	GameID         GameID
	Name           string
	TurnOrder      int
	SocialDisgrace bool
}

// State is the input a game is currently blocked on.
type State string

const (
	StateNone                          State = "NONE"
	StatePendingNSF                    State = "PENDING_NSF"
	StateAwaitingRevealForChoice       State = "AWAITING_REVEAL_FOR_CHOICE"
	StateAwaitingRevealForSteal        State = "AWAITING_REVEAL_FOR_STEAL"
	StateAwaitingSelectionForCard      State = "AWAITING_SELECTION_FOR_CARD"
	StateAwaitingVotes                 State = "AWAITING_VOTES"
	StateAwaitingCardDonations         State = "AWAITING_CARD_DONATIONS"
	StateAwaitingSelectionForCardTrade State = "AWAITING_SELECTION_FOR_CARD_TRADE"
	StateAwaitingTargetsForEffect      State = "AWAITING_TARGETS_FOR_EFFECT"
)

// IsSaga reports whether the state is backed by a saga rather than a pending action.
func (s State) IsSaga() bool {
	return s != StateNone && s != StatePendingNSF && s != ""
}

// ActionState is the single source of truth for what a game waits on.
type ActionState struct {
	State          State
	PromptedPlayer *PlayerID
	Initiator      *PlayerID
}

// Idle reports whether nothing is in flight.
func (a ActionState) Idle() bool {
	return a.State == StateNone || a.State == ""
}

// Game is the aggregate the action state hangs off.
type Game struct {
	ID          GameID
	CurrentTurn PlayerID
	Finished    bool
	Action      ActionState
}

// FlowStatus is the result contract of any effect invocation.
type FlowStatus string

const (
	FlowContinue FlowStatus = "CONTINUE"
	FlowPaused   FlowStatus = "PAUSED"
	FlowEnded    FlowStatus = "ENDED"
)

// Direction is the rotation used by a card donation.
type Direction string

const (
	DirectionLeft  Direction = "LEFT"
	DirectionRight Direction = "RIGHT"
)

// Valid reports whether the direction is one of the known values.
func (d Direction) Valid() bool {
	return d == DirectionLeft || d == DirectionRight
}

// Targets are the optional targets of a play.
type Targets struct {
	Player    *PlayerID `json:"player,omitempty"`
	Secret    *SecretID `json:"secret,omitempty"`
	Card      *CardID   `json:"card,omitempty"`
	Set       *SetID    `json:"set,omitempty"`
	Recipient *PlayerID `json:"recipient,omitempty"`
	Direction Direction `json:"direction,omitempty"`
}

// PendingActionKind describes what a pending action will do on resolution.
type PendingActionKind string

const (
	PendingPlayCards PendingActionKind = "PLAY_CARDS"
)

// PendingAction is the single in-flight cancellable play of a game.
type PendingAction struct {
	ID                 string
	GameID             GameID
	PlayerID           PlayerID
	Kind               PendingActionKind
	CardIDs            []CardID
	Targets            Targets
	ResponsesCount     int
	NSFCount           int
	LastActionPlayerID PlayerID
	Responded          []PlayerID // responders since the last interrupt
}

// HasResponded reports whether the player already answered in the current round.
func (p *PendingAction) HasResponded(player PlayerID) bool {
	return slices.Contains(p.Responded, player)
}

// Cancelled reports whether an odd number of interrupts was played.
func (p *PendingAction) Cancelled() bool {
	return p.NSFCount%2 == 1
}

// Clone returns a deep copy.
func (p *PendingAction) Clone() *PendingAction {
	if p == nil {
		return nil
	}
	cp := *p
	cp.CardIDs = slices.Clone(p.CardIDs)
	cp.Responded = slices.Clone(p.Responded)
	return &cp
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
