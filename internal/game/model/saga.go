package model

import (
	"encoding/json"
	"fmt"
)

// SagaType discriminates the multi-step procedures a game can be blocked on.
type SagaType string

const (
	SagaPointYourSuspicions SagaType = "point_your_suspicions"
	SagaDeadCardFolly       SagaType = "dead_card_folly"
	SagaCardTrade           SagaType = "card_trade"
	SagaRevealSecret        SagaType = "reveal_secret"
	SagaLookIntoTheAshes    SagaType = "look_into_the_ashes"
	SagaChainedEffect       SagaType = "chained_effect"
)

// Saga is the closed set of per-game procedures. Each variant knows the
// action state it belongs to.
type Saga interface {
	Type() SagaType
	State() State
	sealed()
}

// VoteSaga collects one ballot per eligible voter. A nil ballot abstains.
type VoteSaga struct {
	Initiator PlayerID               `json:"initiator"`
	Voters    []PlayerID             `json:"voters"`
	Votes     map[PlayerID]*PlayerID `json:"votes"`
}

func (VoteSaga) Type() SagaType { return SagaPointYourSuspicions }
func (VoteSaga) State() State   { return StateAwaitingVotes }
func (VoteSaga) sealed()        {}

// DonationSaga collects one card per donor and rotates them in Direction.
type DonationSaga struct {
	Initiator PlayerID            `json:"initiator"`
	Direction Direction           `json:"direction"`
	Donors    []PlayerID          `json:"donors"`
	Choices   map[PlayerID]CardID `json:"choices"`
}

func (DonationSaga) Type() SagaType { return SagaDeadCardFolly }
func (DonationSaga) State() State   { return StateAwaitingCardDonations }
func (DonationSaga) sealed()        {}

// TradeSaga waits for Target to pick a card in exchange for OfferedCard.
type TradeSaga struct {
	Initiator   PlayerID `json:"initiator"`
	Target      PlayerID `json:"target"`
	OfferedCard CardID   `json:"offered_card"`
}

func (TradeSaga) Type() SagaType { return SagaCardTrade }
func (TradeSaga) State() State   { return StateAwaitingSelectionForCardTrade }
func (TradeSaga) sealed()        {}

// RevealMode selects what happens to the secret the prompted player picks.
type RevealMode string

const (
	// RevealChoice turns the chosen secret face-up for everyone.
	RevealChoice RevealMode = "choice"
	// RevealSteal reveals the secret, then moves it face-down to the initiator.
	RevealSteal RevealMode = "steal"
	// RevealPrivate shows the secret to the initiator only.
	RevealPrivate RevealMode = "private"
)

// RevealSaga waits for Target to pick one of their own secrets.
type RevealSaga struct {
	Mode      RevealMode `json:"mode"`
	Initiator PlayerID   `json:"initiator"`
	Target    PlayerID   `json:"target"`
	// Deferred system plays run once the reveal completes.
	Deferred []DeferredPlay `json:"deferred,omitempty"`
}

// DeferredPlay is a system play queued behind the active prompt.
type DeferredPlay struct {
	PlayerID PlayerID `json:"player_id"`
	CardIDs  []CardID `json:"card_ids"`
	Targets  Targets  `json:"targets"`
}

func (RevealSaga) Type() SagaType { return SagaRevealSecret }
func (s RevealSaga) State() State {
	if s.Mode == RevealSteal {
		return StateAwaitingRevealForSteal
	}
	return StateAwaitingRevealForChoice
}
func (RevealSaga) sealed() {}

// CardSelectionSaga waits for Chooser to take one of Options into hand.
type CardSelectionSaga struct {
	Chooser PlayerID `json:"chooser"`
	Options []CardID `json:"options"`
}

func (CardSelectionSaga) Type() SagaType { return SagaLookIntoTheAshes }
func (CardSelectionSaga) State() State   { return StateAwaitingSelectionForCard }
func (CardSelectionSaga) sealed()        {}

// ChainTargetSaga parks a re-triggered effect until its actor supplies targets.
type ChainTargetSaga struct {
	Initiator PlayerID `json:"initiator"`
	CardIDs   []CardID `json:"card_ids"`
	Targets   Targets  `json:"targets"`
}

func (ChainTargetSaga) Type() SagaType { return SagaChainedEffect }
func (ChainTargetSaga) State() State   { return StateAwaitingTargetsForEffect }
func (ChainTargetSaga) sealed()        {}

type sagaEnvelope struct {
	Type SagaType        `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodeSaga serializes a saga into a {type,data} envelope.
func EncodeSaga(s Saga) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("encode saga: nil saga")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode saga %s: %w", s.Type(), err)
	}
	return json.Marshal(sagaEnvelope{Type: s.Type(), Data: data})
}

// DecodeSaga parses an envelope produced by EncodeSaga.
func DecodeSaga(raw []byte) (Saga, error) {
	var env sagaEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode saga envelope: %w", err)
	}

	var (
		s   Saga
		err error
	)
	switch env.Type {
	case SagaPointYourSuspicions:
		var v VoteSaga
		err = json.Unmarshal(env.Data, &v)
		s = v
	case SagaDeadCardFolly:
		var v DonationSaga
		err = json.Unmarshal(env.Data, &v)
		s = v
	case SagaCardTrade:
		var v TradeSaga
		err = json.Unmarshal(env.Data, &v)
		s = v
	case SagaRevealSecret:
		var v RevealSaga
		err = json.Unmarshal(env.Data, &v)
		s = v
	case SagaLookIntoTheAshes:
		var v CardSelectionSaga
		err = json.Unmarshal(env.Data, &v)
		s = v
	case SagaChainedEffect:
		var v ChainTargetSaga
		err = json.Unmarshal(env.Data, &v)
		s = v
	default:
		return nil, fmt.Errorf("decode saga: unknown type %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode saga %s: %w", env.Type, err)
	}
	return s, nil
}

// CloneSaga returns a deep copy by round-tripping through the envelope.
func CloneSaga(s Saga) (Saga, error) {
	if s == nil {
		return nil, nil
	}
	raw, err := EncodeSaga(s)
	if err != nil {
		return nil, err
	}
	return DecodeSaga(raw)
}
