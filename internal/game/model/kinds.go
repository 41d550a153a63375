package model

import (
	"sort"
	"strconv"
	"strings"
)

// CardKind identifies a card's rules identity.
type CardKind string

const (
	// Detectives, playable in sets
	KindHerculePoirot     CardKind = "HERCULE_POIROT"
	KindMissMarple        CardKind = "MISS_MARPLE"
	KindMrSatterthwaite   CardKind = "MR_SATTERTHWAITE"
	KindParkerPyne        CardKind = "PARKER_PYNE"
	KindLadyEileenBrent   CardKind = "LADY_EILEEN_BRENT"
	KindTommyBeresford    CardKind = "TOMMY_BERESFORD"
	KindTuppenceBeresford CardKind = "TUPPENCE_BERESFORD"
	KindHarleyQuin        CardKind = "HARLEY_QUIN" // wildcard
	KindAriadneOliver     CardKind = "ARIADNE_OLIVER"

	// Interrupt
	KindNotSoFast CardKind = "NOT_SO_FAST"

	// Devious traps, triggered on whoever receives them
	KindBlackmailed   CardKind = "BLACKMAILED"
	KindSocialFauxPas CardKind = "SOCIAL_FAUX_PAS"

	// One-shot events
	KindCardsOffTheTable        CardKind = "CARDS_OFF_THE_TABLE"
	KindAnotherVictim           CardKind = "ANOTHER_VICTIM"
	KindDeadCardFolly           CardKind = "DEAD_CARD_FOLLY"
	KindLookIntoTheAshes        CardKind = "LOOK_INTO_THE_ASHES"
	KindCardTrade               CardKind = "CARD_TRADE"
	KindAndThenThereWasOneMore  CardKind = "AND_THEN_THERE_WAS_ONE_MORE"
	KindDelayTheMurderersEscape CardKind = "DELAY_THE_MURDERERS_ESCAPE"
	KindEarlyTrainToPaddington  CardKind = "EARLY_TRAIN_TO_PADDINGTON"
	KindPointYourSuspicions     CardKind = "POINT_YOUR_SUSPICIONS"

	// Terminal
	KindMurdererEscapes CardKind = "MURDERER_ESCAPES"
)

var detectiveKinds = map[CardKind]bool{
	KindHerculePoirot:     true,
	KindMissMarple:        true,
	KindMrSatterthwaite:   true,
	KindParkerPyne:        true,
	KindLadyEileenBrent:   true,
	KindTommyBeresford:    true,
	KindTuppenceBeresford: true,
	KindHarleyQuin:        true,
	KindAriadneOliver:     true,
}

var eventKinds = map[CardKind]bool{
	KindCardsOffTheTable:        true,
	KindAnotherVictim:           true,
	KindDeadCardFolly:           true,
	KindLookIntoTheAshes:        true,
	KindCardTrade:               true,
	KindAndThenThereWasOneMore:  true,
	KindDelayTheMurderersEscape: true,
	KindEarlyTrainToPaddington:  true,
	KindPointYourSuspicions:     true,
}

// IsDetective reports whether the kind can be part of a detective set.
func (k CardKind) IsDetective() bool {
	return detectiveKinds[k]
}

// IsDevious reports whether the kind is a trap triggered on hand-over.
func (k CardKind) IsDevious() bool {
	return k == KindBlackmailed || k == KindSocialFauxPas
}

// IsEvent reports whether the kind is a one-shot event.
func (k CardKind) IsEvent() bool {
	return eventKinds[k]
}

// Combo is a multiset of card kinds.
type Combo map[CardKind]int

// ComboOf builds a multiset from a list of kinds.
func ComboOf(kinds ...CardKind) Combo {
	c := make(Combo, len(kinds))
	for _, k := range kinds {
		c[k]++
	}
	return c
}

// Size returns the total number of cards in the multiset.
func (c Combo) Size() int {
	n := 0
	for _, count := range c {
		n += count
	}
	return n
}

// Covers reports whether c holds at least as many of each kind as pattern.
func (c Combo) Covers(pattern Combo) bool {
	for kind, required := range pattern {
		if c[kind] < required {
			return false
		}
	}
	return true
}

// String renders the multiset in a stable order, e.g. "HERCULE_POIROT:2,HARLEY_QUIN:1".
func (c Combo) String() string {
	kinds := make([]string, 0, len(c))
	for k := range c {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	var b strings.Builder
	for i, k := range kinds {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(c[CardKind(k)]))
	}
	return b.String()
}
