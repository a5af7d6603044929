package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Processing paths recorded on each turn.
const (
	PathClassifier = "classifier"
	PathFallback   = "fallback"
	PathRejected   = "rejected"
)

const defaultTranscriptLimit = 50

// Turn is one processed inbound message and the reply sent for it.
type Turn struct {
	ID         string    `json:"id"`
	TenantID   int64     `json:"tenant_id"`
	FromNumber string    `json:"from_number"`
	Message    string    `json:"message"`
	Intent     Intent    `json:"intent"`
	Reply      string    `json:"reply"`
	NextState  *State    `json:"next_state"`
	Path       string    `json:"path"`
	CreatedAt  time.Time `json:"created_at"`
}

// TranscriptRecorder receives every processed turn.
type TranscriptRecorder interface {
	Record(ctx context.Context, turn Turn) error
}

// TranscriptReader lists recorded turns for a conversation, newest first.
type TranscriptReader interface {
	List(ctx context.Context, key SessionKey, limit int) ([]Turn, error)
}

// PgxPool is the subset of pgxpool.Pool used by the transcript store.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresTranscriptStore writes turns into conversation_turns.
type PostgresTranscriptStore struct {
	pool PgxPool
}

func NewPostgresTranscriptStore(pool PgxPool) *PostgresTranscriptStore {
	if pool == nil {
		panic("conversation: pgx pool cannot be nil")
	}
	return &PostgresTranscriptStore{pool: pool}
}

func (s *PostgresTranscriptStore) Record(ctx context.Context, turn Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	var nextState *string
	if turn.NextState != nil {
		v := string(*turn.NextState)
		nextState = &v
	}

	const query = `
		INSERT INTO conversation_turns (id, tenant_id, from_number, message, intent, reply, next_state, path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := s.pool.Exec(ctx, query,
		turn.ID, turn.TenantID, turn.FromNumber, turn.Message,
		string(turn.Intent), turn.Reply, nextState, turn.Path, turn.CreatedAt,
	); err != nil {
		return fmt.Errorf("conversation: insert turn: %w", err)
	}
	return nil
}

func (s *PostgresTranscriptStore) List(ctx context.Context, key SessionKey, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = defaultTranscriptLimit
	}
	const query = `
		SELECT id, tenant_id, from_number, message, intent, reply, next_state, path, created_at
		FROM conversation_turns
		WHERE tenant_id = $1 AND from_number = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := s.pool.Query(ctx, query, key.TenantID, key.FromNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: list turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			t         Turn
			intent    string
			nextState *string
		)
		if err := rows.Scan(&t.ID, &t.TenantID, &t.FromNumber, &t.Message, &intent, &t.Reply, &nextState, &t.Path, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: scan turn: %w", err)
		}
		t.Intent = Intent(intent)
		if nextState != nil {
			st := State(*nextState)
			t.NextState = &st
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("conversation: list turns: %w", err)
	}
	return turns, nil
}
