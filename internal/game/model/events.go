package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType indicates the category of a pushed notification.
type EventType string

const (
	// Interrupt window
	EventPlayPending     EventType = "PLAY_PENDING"
	EventPlayResolved    EventType = "PLAY_RESOLVED"
	EventPlayCancelled   EventType = "PLAY_CANCELLED"
	EventPlayRejected    EventType = "PLAY_REJECTED" // to the actor, with the error code
	EventInterruptPlayed EventType = "INTERRUPT_PLAYED"
	EventResponsePassed  EventType = "RESPONSE_PASSED"

	// Secrets
	EventSecretRevealed  EventType = "SECRET_REVEALED"
	EventSecretShown     EventType = "SECRET_SHOWN" // private reveal
	EventSecretHidden    EventType = "SECRET_HIDDEN"
	EventSecretStolen    EventType = "SECRET_STOLEN"
	EventRevealRequested EventType = "REVEAL_REQUESTED"
	EventSocialDisgrace  EventType = "SOCIAL_DISGRACE_CHANGED"

	// Sets
	EventSetCreated EventType = "SET_CREATED"
	EventSetStolen  EventType = "SET_STOLEN"

	// Sagas
	EventVoteStarted            EventType = "VOTE_STARTED"
	EventVoteCast               EventType = "VOTE_CAST"
	EventVoteEnded              EventType = "VOTE_ENDED"
	EventDonationRequested      EventType = "DONATION_REQUESTED"
	EventDonationSubmitted      EventType = "DONATION_SUBMITTED"
	EventTradeRequested         EventType = "TRADE_REQUESTED"
	EventTradeCompleted         EventType = "TRADE_COMPLETED"
	EventCardSelectionRequested EventType = "CARD_SELECTION_REQUESTED"
	EventTargetsRequested       EventType = "TARGETS_REQUESTED"

	// Piles and hands
	EventHandUpdated    EventType = "HAND_UPDATED"
	EventCardsDiscarded EventType = "CARDS_DISCARDED"
	EventDeckUpdated    EventType = "DECK_UPDATED"

	// Game lifecycle
	EventGameEnded EventType = "GAME_ENDED"
)

// Event is a fire-and-forget notification pushed to players.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	GameID    GameID         `json:"game_id"`
	PlayerID  *PlayerID      `json:"player_id,omitempty"` // acting player, if any
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent creates an event with common fields populated.
func NewEvent(eventType EventType, game GameID, actor *PlayerID, data map[string]any) Event {
	if data == nil {
		data = make(map[string]any)
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		GameID:    game,
		PlayerID:  actor,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// Notifier pushes events to a game's participants. Implementations must not
// block the caller on delivery.
type Notifier interface {
	Broadcast(ctx context.Context, game GameID, event Event)
	Send(ctx context.Context, game GameID, player PlayerID, event Event)
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) Broadcast(context.Context, GameID, Event)      {}
func (NopNotifier) Send(context.Context, GameID, PlayerID, Event) {}
