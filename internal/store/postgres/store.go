// Package postgres persists games in PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/deathcards/deathcards-server-go/internal/game/model"
	apperrors "github.com/deathcards/deathcards-server-go/internal/platform/errors"
)

//go:embed schema.sql
var schema string

// Store implements model.Store over a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ model.Store = (*Store)(nil)

// Open connects to url and checks the connection. maxConns <= 0 keeps the
// pgx default.
func Open(ctx context.Context, url string, maxConns int32, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("database connection established", zap.Int32("max_conns", cfg.MaxConns))
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the tables the store needs if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	s.logger.Debug("schema applied")
	return nil
}

// AddGame inserts a game and returns its id.
func (s *Store) AddGame(ctx context.Context, g model.Game) (model.GameID, error) {
	state := g.Action.State
	if state == "" {
		state = model.StateNone
	}
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO games (current_turn, finished, action_state, prompted_player, initiator)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		int64(g.CurrentTurn), g.Finished, string(state), idPtr(g.Action.PromptedPlayer), idPtr(g.Action.Initiator),
	).Scan(&id)
	if err != nil {
		return 0, writeErr("insert game", err)
	}
	return model.GameID(id), nil
}

// AddPlayer seats a player and returns its id.
func (s *Store) AddPlayer(ctx context.Context, p model.Player) (model.PlayerID, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO players (game_id, name, turn_order, social_disgrace)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		int64(p.GameID), p.Name, p.TurnOrder, p.SocialDisgrace,
	).Scan(&id)
	if err != nil {
		return 0, writeErr("insert player", err)
	}
	return model.PlayerID(id), nil
}

// AddCard inserts a card and returns its id.
func (s *Store) AddCard(ctx context.Context, c model.Card) (model.CardID, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO cards (game_id, kind, location, owner_id, set_id, position)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		int64(c.GameID), string(c.Kind), string(c.Location), idPtr(c.Owner), idPtr(c.Set), c.Position,
	).Scan(&id)
	if err != nil {
		return 0, writeErr("insert card", err)
	}
	return model.CardID(id), nil
}

// AddSecret deals a secret and returns its id.
func (s *Store) AddSecret(ctx context.Context, sec model.Secret) (model.SecretID, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO secrets (game_id, owner_id, kind, revealed)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		int64(sec.GameID), int64(sec.Owner), string(sec.Kind), sec.Revealed,
	).Scan(&id)
	if err != nil {
		return 0, writeErr("insert secret", err)
	}
	return model.SecretID(id), nil
}

// Game returns a game by id.
func (s *Store) Game(ctx context.Context, id model.GameID) (*model.Game, error) {
	var (
		g                   model.Game
		gameID, turn        int64
		state               string
		prompted, initiator *int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, current_turn, finished, action_state, prompted_player, initiator
		FROM games WHERE id = $1`, int64(id),
	).Scan(&gameID, &turn, &g.Finished, &state, &prompted, &initiator)
	if err != nil {
		return nil, readErr(apperrors.CodeGameNotFound, "game", int64(id), err)
	}
	g.ID = model.GameID(gameID)
	g.CurrentTurn = model.PlayerID(turn)
	g.Action = model.ActionState{
		State:          model.State(state),
		PromptedPlayer: toID[model.PlayerID](prompted),
		Initiator:      toID[model.PlayerID](initiator),
	}
	return &g, nil
}

// Players returns the players of a game sorted by turn order.
func (s *Store) Players(ctx context.Context, game model.GameID) ([]model.Player, error) {
	if err := s.gameExists(ctx, game); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, game_id, name, turn_order, social_disgrace
		FROM players WHERE game_id = $1 ORDER BY turn_order, id`, int64(game))
	if err != nil {
		return nil, queryErr("query players", err)
	}
	players, err := pgx.CollectRows(rows, scanPlayer)
	if err != nil {
		return nil, queryErr("scan players", err)
	}
	return players, nil
}

// Player returns a player by id.
func (s *Store) Player(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, game_id, name, turn_order, social_disgrace
		FROM players WHERE id = $1`, int64(id))
	if err != nil {
		return nil, queryErr("query player", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPlayer)
	if err != nil {
		return nil, readErr(apperrors.CodePlayerNotFound, "player", int64(id), err)
	}
	return &p, nil
}

func scanPlayer(row pgx.CollectableRow) (model.Player, error) {
	var (
		p          model.Player
		id, gameID int64
	)
	err := row.Scan(&id, &gameID, &p.Name, &p.TurnOrder, &p.SocialDisgrace)
	p.ID = model.PlayerID(id)
	p.GameID = model.GameID(gameID)
	return p, err
}

const cardColumns = `id, game_id, kind, location, owner_id, set_id, position`

// Card returns a card by id.
func (s *Store) Card(ctx context.Context, id model.CardID) (*model.Card, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = $1`, int64(id))
	if err != nil {
		return nil, queryErr("query card", err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCard)
	if err != nil {
		return nil, readErr(apperrors.CodeCardNotFound, "card", int64(id), err)
	}
	return &c, nil
}

// Cards returns the cards matching filter sorted by id.
func (s *Store) Cards(ctx context.Context, filter model.CardFilter) ([]model.Card, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.GameID != 0 {
		add("game_id = $%d", int64(filter.GameID))
	}
	if filter.Location != "" {
		add("location = $%d", string(filter.Location))
	}
	if filter.Kind != "" {
		add("kind = $%d", string(filter.Kind))
	}
	if filter.Owner != nil {
		add("owner_id = $%d", int64(*filter.Owner))
	}
	if filter.Set != nil {
		add("set_id = $%d", int64(*filter.Set))
	}

	query := `SELECT ` + cardColumns + ` FROM cards`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, queryErr("query cards", err)
	}
	cards, err := pgx.CollectRows(rows, scanCard)
	if err != nil {
		return nil, queryErr("scan cards", err)
	}
	return cards, nil
}

func scanCard(row pgx.CollectableRow) (model.Card, error) {
	var (
		c          model.Card
		id, gameID int64
		kind, loc  string
		owner, set *int64
	)
	err := row.Scan(&id, &gameID, &kind, &loc, &owner, &set, &c.Position)
	c.ID = model.CardID(id)
	c.GameID = model.GameID(gameID)
	c.Kind = model.CardKind(kind)
	c.Location = model.Location(loc)
	c.Owner = toID[model.PlayerID](owner)
	c.Set = toID[model.SetID](set)
	return c, err
}

// Secret returns a secret by id.
func (s *Store) Secret(ctx context.Context, id model.SecretID) (*model.Secret, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, game_id, owner_id, kind, revealed FROM secrets WHERE id = $1`, int64(id))
	if err != nil {
		return nil, queryErr("query secret", err)
	}
	sec, err := pgx.CollectExactlyOneRow(rows, scanSecret)
	if err != nil {
		return nil, readErr(apperrors.CodeSecretNotFound, "secret", int64(id), err)
	}
	return &sec, nil
}

// Secrets returns the secrets matching filter sorted by id.
func (s *Store) Secrets(ctx context.Context, filter model.SecretFilter) ([]model.Secret, error) {
	var owner *int64
	if filter.Owner != nil {
		owner = new(int64)
		*owner = int64(*filter.Owner)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, game_id, owner_id, kind, revealed FROM secrets
		WHERE ($1 = 0 OR game_id = $1)
		  AND ($2::BIGINT IS NULL OR owner_id = $2)
		  AND ($3::BOOLEAN IS NULL OR revealed = $3)
		ORDER BY id`,
		int64(filter.GameID), owner, filter.Revealed)
	if err != nil {
		return nil, queryErr("query secrets", err)
	}
	secrets, err := pgx.CollectRows(rows, scanSecret)
	if err != nil {
		return nil, queryErr("scan secrets", err)
	}
	return secrets, nil
}

func scanSecret(row pgx.CollectableRow) (model.Secret, error) {
	var (
		sec               model.Secret
		id, gameID, owner int64
		kind              string
	)
	err := row.Scan(&id, &gameID, &owner, &kind, &sec.Revealed)
	sec.ID = model.SecretID(id)
	sec.GameID = model.GameID(gameID)
	sec.Owner = model.PlayerID(owner)
	sec.Kind = model.SecretKind(kind)
	return sec, err
}

// SetCards returns the cards of a set sorted by id.
func (s *Store) SetCards(ctx context.Context, id model.SetID) ([]model.Card, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+cardColumns+` FROM cards
		WHERE set_id = $1 AND location = 'SET' ORDER BY id`, int64(id))
	if err != nil {
		return nil, queryErr("query set", err)
	}
	cards, err := pgx.CollectRows(rows, scanCard)
	if err != nil {
		return nil, queryErr("scan set", err)
	}
	if len(cards) == 0 {
		return nil, notFound(apperrors.CodeSetNotFound, "set", int64(id))
	}
	return cards, nil
}

// Saga returns the active saga of a game, or nil.
func (s *Store) Saga(ctx context.Context, game model.GameID) (model.Saga, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT saga FROM games WHERE id = $1`, int64(game)).Scan(&raw)
	if err != nil {
		return nil, readErr(apperrors.CodeGameNotFound, "game", int64(game), err)
	}
	if raw == nil {
		return nil, nil
	}
	saga, err := model.DecodeSaga(raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCorruptState, "decode saga", err)
	}
	return saga, nil
}

// PendingAction returns the pending action of a game, or nil.
func (s *Store) PendingAction(ctx context.Context, game model.GameID) (*model.PendingAction, error) {
	if err := s.gameExists(ctx, game); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT `+pendingColumns+` FROM pending_actions WHERE game_id = $1`, int64(game))
	if err != nil {
		return nil, queryErr("query pending action", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPending)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, queryErr("scan pending action", err)
	}
	return p, nil
}

const pendingColumns = `id, game_id, player_id, kind, card_ids, targets,
	responses_count, nsf_count, last_action_player_id, responded`

func scanPending(row pgx.CollectableRow) (*model.PendingAction, error) {
	var (
		p                    model.PendingAction
		gameID, player, last int64
		kind                 string
		cardIDs, responded   []int64
		targets              []byte
	)
	err := row.Scan(&p.ID, &gameID, &player, &kind, &cardIDs, &targets,
		&p.ResponsesCount, &p.NSFCount, &last, &responded)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(targets, &p.Targets); err != nil {
		return nil, fmt.Errorf("decode targets: %w", err)
	}
	p.GameID = model.GameID(gameID)
	p.PlayerID = model.PlayerID(player)
	p.Kind = model.PendingActionKind(kind)
	p.LastActionPlayerID = model.PlayerID(last)
	p.CardIDs = fromInt64s[model.CardID](cardIDs)
	p.Responded = fromInt64s[model.PlayerID](responded)
	return &p, nil
}

// MoveCard relocates a card. Deck and discard moves without a position go
// on top of the pile.
func (s *Store) MoveCard(ctx context.Context, id model.CardID, to model.Placement) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE cards AS c SET
			location = $2,
			owner_id = $3,
			set_id   = $4,
			position = CASE WHEN $2 IN ('DECK', 'DISCARD') THEN COALESCE($5::INTEGER, (
				SELECT COALESCE(MAX(p.position), 0) + 1 FROM cards p
				WHERE p.game_id = c.game_id AND p.location = $2
			)) END
		WHERE c.id = $1`,
		int64(id), string(to.Location), idPtr(to.Owner), idPtr(to.Set), to.Position)
	if err != nil {
		return writeErr("move card", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(apperrors.CodeCardNotFound, "card", int64(id))
	}
	s.logger.Debug("card moved",
		zap.Int64("card_id", int64(id)),
		zap.String("location", string(to.Location)),
	)
	return nil
}

// CreateSet groups cards into a new set owned by owner.
func (s *Store) CreateSet(ctx context.Context, game model.GameID, owner model.PlayerID, cards []model.CardID) (model.SetID, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, writeErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	var set int64
	if err := tx.QueryRow(ctx, `INSERT INTO card_sets (game_id) VALUES ($1) RETURNING id`, int64(game)).Scan(&set); err != nil {
		return 0, writeErr("insert set", err)
	}
	tag, err := tx.Exec(ctx, `
		UPDATE cards SET location = 'SET', owner_id = $1, set_id = $2, position = NULL
		WHERE id = ANY($3) AND game_id = $4`,
		int64(owner), set, toInt64s(cards), int64(game))
	if err != nil {
		return 0, writeErr("group cards", err)
	}
	if int(tag.RowsAffected()) != len(cards) {
		return 0, apperrors.New(apperrors.CodeCardNotFound,
			fmt.Sprintf("only %d of %d cards belong to game %d", tag.RowsAffected(), len(cards), game))
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, writeErr("commit set", err)
	}
	return model.SetID(set), nil
}

// TransferSet gives every card of a set to another player.
func (s *Store) TransferSet(ctx context.Context, id model.SetID, to model.PlayerID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE cards SET owner_id = $2 WHERE set_id = $1 AND location = 'SET'`, int64(id), int64(to))
	if err != nil {
		return writeErr("transfer set", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(apperrors.CodeSetNotFound, "set", int64(id))
	}
	return nil
}

// TransferSecret changes the owner of a secret.
func (s *Store) TransferSecret(ctx context.Context, id model.SecretID, to model.PlayerID) error {
	return s.execOne(ctx, apperrors.CodeSecretNotFound, "secret", int64(id),
		`UPDATE secrets SET owner_id = $2 WHERE id = $1`, int64(id), int64(to))
}

// SetSecretRevealed flips a secret face-up or face-down.
func (s *Store) SetSecretRevealed(ctx context.Context, id model.SecretID, revealed bool) error {
	return s.execOne(ctx, apperrors.CodeSecretNotFound, "secret", int64(id),
		`UPDATE secrets SET revealed = $2 WHERE id = $1`, int64(id), revealed)
}

// SetSocialDisgrace sets or clears a player's penalty flag.
func (s *Store) SetSocialDisgrace(ctx context.Context, player model.PlayerID, disgraced bool) error {
	return s.execOne(ctx, apperrors.CodePlayerNotFound, "player", int64(player),
		`UPDATE players SET social_disgrace = $2 WHERE id = $1`, int64(player), disgraced)
}

// SetActionState replaces what a game waits on.
func (s *Store) SetActionState(ctx context.Context, game model.GameID, state model.ActionState) error {
	return s.execOne(ctx, apperrors.CodeGameNotFound, "game", int64(game), `
		UPDATE games SET action_state = $2, prompted_player = $3, initiator = $4 WHERE id = $1`,
		int64(game), string(state.State), idPtr(state.PromptedPlayer), idPtr(state.Initiator))
}

// SaveSaga stores the active saga of a game.
func (s *Store) SaveSaga(ctx context.Context, game model.GameID, saga model.Saga) error {
	raw, err := model.EncodeSaga(saga)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStoreWriteFailed, "encode saga", err)
	}
	return s.execOne(ctx, apperrors.CodeGameNotFound, "game", int64(game),
		`UPDATE games SET saga = $2 WHERE id = $1`, int64(game), raw)
}

// ClearSaga removes the active saga of a game.
func (s *Store) ClearSaga(ctx context.Context, game model.GameID) error {
	return s.execOne(ctx, apperrors.CodeGameNotFound, "game", int64(game),
		`UPDATE games SET saga = NULL WHERE id = $1`, int64(game))
}

// CreatePendingAction stores a new pending action. A game holds at most one.
func (s *Store) CreatePendingAction(ctx context.Context, action *model.PendingAction) error {
	targets, err := json.Marshal(action.Targets)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStoreWriteFailed, "encode targets", err)
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO pending_actions (game_id, id, player_id, kind, card_ids, targets,
			responses_count, nsf_count, last_action_player_id, responded)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (game_id) DO NOTHING`,
		int64(action.GameID), action.ID, int64(action.PlayerID), string(action.Kind),
		toInt64s(action.CardIDs), targets, action.ResponsesCount, action.NSFCount,
		int64(action.LastActionPlayerID), toInt64s(action.Responded))
	if err != nil {
		return writeErr("insert pending action", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.CodeGameBlocked,
			fmt.Sprintf("game %d already has a pending action", action.GameID))
	}
	return nil
}

// IncrementResponses records a pass from responder.
func (s *Store) IncrementResponses(ctx context.Context, game model.GameID, responder model.PlayerID) (*model.PendingAction, error) {
	return s.updatePending(ctx, game, `
		UPDATE pending_actions SET
			responses_count = responses_count + 1,
			responded = array_append(responded, $2::BIGINT)
		WHERE game_id = $1 RETURNING `+pendingColumns, int64(game), int64(responder))
}

// RecordInterrupt registers an interrupt from player and restarts the round.
func (s *Store) RecordInterrupt(ctx context.Context, game model.GameID, player model.PlayerID) (*model.PendingAction, error) {
	return s.updatePending(ctx, game, `
		UPDATE pending_actions SET
			nsf_count = nsf_count + 1,
			responses_count = 0,
			responded = '{}',
			last_action_player_id = $2
		WHERE game_id = $1 RETURNING `+pendingColumns, int64(game), int64(player))
}

func (s *Store) updatePending(ctx context.Context, game model.GameID, query string, args ...any) (*model.PendingAction, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, writeErr("update pending action", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPending)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, noPending(game)
	}
	if err != nil {
		return nil, writeErr("update pending action", err)
	}
	return p, nil
}

// DeletePendingAction removes the pending action of a game.
func (s *Store) DeletePendingAction(ctx context.Context, game model.GameID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM pending_actions WHERE game_id = $1`, int64(game))
	if err != nil {
		return writeErr("delete pending action", err)
	}
	if tag.RowsAffected() == 0 {
		return noPending(game)
	}
	return nil
}

// FinishGame marks a game as concluded.
func (s *Store) FinishGame(ctx context.Context, game model.GameID) error {
	return s.execOne(ctx, apperrors.CodeGameNotFound, "game", int64(game),
		`UPDATE games SET finished = TRUE WHERE id = $1`, int64(game))
}

// execOne runs a single-row update and reports a missing row as not found.
func (s *Store) execOne(ctx context.Context, code apperrors.Code, entity string, id int64, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return writeErr("update "+entity, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(code, entity, id)
	}
	return nil
}

func (s *Store) gameExists(ctx context.Context, game model.GameID) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM games WHERE id = $1)`, int64(game)).Scan(&exists)
	if err != nil {
		return queryErr("query game", err)
	}
	if !exists {
		return notFound(apperrors.CodeGameNotFound, "game", int64(game))
	}
	return nil
}

func notFound(code apperrors.Code, entity string, id int64) error {
	return apperrors.WithMetadata(code, fmt.Sprintf("%s %d not found", entity, id),
		map[string]string{"entity": entity, "id": fmt.Sprint(id)})
}

func noPending(game model.GameID) error {
	return apperrors.New(apperrors.CodeWrongActionState,
		fmt.Sprintf("game %d has no pending action", game))
}

func readErr(code apperrors.Code, entity string, id int64, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound(code, entity, id)
	}
	return queryErr("load "+entity, err)
}

func queryErr(op string, err error) error {
	return apperrors.Wrap(apperrors.CodeCorruptState, op, err)
}

func writeErr(op string, err error) error {
	return apperrors.Wrap(apperrors.CodeStoreWriteFailed, op, err)
}

type id interface {
	~int64
}

func idPtr[T id](p *T) *int64 {
	if p == nil {
		return nil
	}
	v := int64(*p)
	return &v
}

func toID[T id](p *int64) *T {
	if p == nil {
		return nil
	}
	v := T(*p)
	return &v
}

func toInt64s[T id](ids []T) []int64 {
	out := make([]int64, len(ids))
	for i, v := range ids {
		out[i] = int64(v)
	}
	return out
}

func fromInt64s[T id](ids []int64) []T {
	out := make([]T, len(ids))
	for i, v := range ids {
		out[i] = T(v)
	}
	return out
}
