package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
	apperrors "github.com/deathcards/deathcards-server-go/internal/platform/errors"
)

// openTestStore connects to DEATHCARDS_TEST_DATABASE_URL or skips.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("DEATHCARDS_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("DEATHCARDS_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, url, 4, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Migrate(ctx))
	return s
}

func seedGame(t *testing.T, s *Store) (model.GameID, model.PlayerID, model.PlayerID) {
	t.Helper()
	ctx := context.Background()
	game, err := s.AddGame(ctx, model.Game{})
	require.NoError(t, err)
	alice, err := s.AddPlayer(ctx, model.Player{GameID: game, Name: "alice", TurnOrder: 1})
	require.NoError(t, err)
	bob, err := s.AddPlayer(ctx, model.Player{GameID: game, Name: "bob", TurnOrder: 2})
	require.NoError(t, err)
	return game, alice, bob
}

func TestMoveCardStacksOnTopOfPile(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	game, alice, _ := seedGame(t, s)

	_, err := s.AddCard(ctx, model.Card{GameID: game, Kind: model.KindHerculePoirot, Location: model.LocationDiscard, Position: model.Ptr(4)})
	require.NoError(t, err)
	card, err := s.AddCard(ctx, model.Card{GameID: game, Kind: model.KindMissMarple, Location: model.LocationHand, Owner: model.Ptr(alice)})
	require.NoError(t, err)

	require.NoError(t, s.MoveCard(ctx, card, model.ToDiscard()))
	got, err := s.Card(ctx, card)
	require.NoError(t, err)
	assert.Equal(t, model.LocationDiscard, got.Location)
	assert.Nil(t, got.Owner)
	require.NotNil(t, got.Position)
	assert.Equal(t, 5, *got.Position)

	discard, err := s.Cards(ctx, model.CardFilter{GameID: game, Location: model.LocationDiscard})
	require.NoError(t, err)
	assert.Len(t, discard, 2)

	err = s.MoveCard(ctx, card+1000, model.ToDiscard())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCardNotFound))
}

func TestSetsAndSecrets(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	game, alice, bob := seedGame(t, s)

	c1, err := s.AddCard(ctx, model.Card{GameID: game, Kind: model.KindParkerPyne, Location: model.LocationHand, Owner: model.Ptr(alice)})
	require.NoError(t, err)
	c2, err := s.AddCard(ctx, model.Card{GameID: game, Kind: model.KindParkerPyne, Location: model.LocationHand, Owner: model.Ptr(alice)})
	require.NoError(t, err)

	set, err := s.CreateSet(ctx, game, alice, []model.CardID{c1, c2})
	require.NoError(t, err)
	require.NoError(t, s.TransferSet(ctx, set, bob))
	cards, err := s.SetCards(ctx, set)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	for _, c := range cards {
		assert.Equal(t, bob, *c.Owner)
	}

	sec, err := s.AddSecret(ctx, model.Secret{GameID: game, Owner: alice, Kind: model.SecretRegular})
	require.NoError(t, err)
	require.NoError(t, s.SetSecretRevealed(ctx, sec, true))
	require.NoError(t, s.TransferSecret(ctx, sec, bob))

	revealed, err := s.Secrets(ctx, model.SecretFilter{GameID: game, Owner: model.Ptr(bob), Revealed: model.Ptr(true)})
	require.NoError(t, err)
	require.Len(t, revealed, 1)
	assert.Equal(t, sec, revealed[0].ID)
}

func TestSagaAndPendingAction(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	game, alice, bob := seedGame(t, s)

	saga := model.VoteSaga{Initiator: alice, Voters: []model.PlayerID{alice, bob}}
	require.NoError(t, s.SaveSaga(ctx, game, saga))
	got, err := s.Saga(ctx, game)
	require.NoError(t, err)
	assert.Equal(t, model.StateAwaitingVotes, got.State())

	require.NoError(t, s.ClearSaga(ctx, game))
	got, err = s.Saga(ctx, game)
	require.NoError(t, err)
	assert.Nil(t, got)

	pending := &model.PendingAction{
		ID: "p1", GameID: game, PlayerID: alice, Kind: model.PendingPlayCards,
		CardIDs: []model.CardID{7}, LastActionPlayerID: alice,
	}
	require.NoError(t, s.CreatePendingAction(ctx, pending))
	err = s.CreatePendingAction(ctx, pending)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeGameBlocked))

	p, err := s.IncrementResponses(ctx, game, bob)
	require.NoError(t, err)
	assert.Equal(t, 1, p.ResponsesCount)
	assert.True(t, p.HasResponded(bob))

	p, err = s.RecordInterrupt(ctx, game, bob)
	require.NoError(t, err)
	assert.Equal(t, 1, p.NSFCount)
	assert.Equal(t, 0, p.ResponsesCount)
	assert.Empty(t, p.Responded)
	assert.True(t, p.Cancelled())

	require.NoError(t, s.DeletePendingAction(ctx, game))
	p, err = s.PendingAction(ctx, game)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestMissingRowsMapToNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Game(ctx, -1)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeGameNotFound))
	_, err = s.Player(ctx, -1)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePlayerNotFound))
	_, err = s.Secret(ctx, -1)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSecretNotFound))
	err = s.SetActionState(ctx, -1, model.ActionState{State: model.StateNone})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeGameNotFound))
}
