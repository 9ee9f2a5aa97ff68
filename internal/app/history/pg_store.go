package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists the message log in the chat_messages table, one row per position.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a Store backed by pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Load implements Store.
func (s *PGStore) Load(ctx context.Context) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `SELECT payload FROM chat_messages ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("select chat messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("decode chat message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// Save implements Store. The table is rewritten inside one transaction, so a crash
// leaves either the previous or the new log, never a mix.
func (s *PGStore) Save(ctx context.Context, messages []Message) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM chat_messages`); err != nil {
			return fmt.Errorf("delete chat messages: %w", err)
		}

		if len(messages) == 0 {
			return nil
		}

		rows := make([][]any, 0, len(messages))
		for i, msg := range messages {
			raw, err := json.Marshal(msg)
			if err != nil {
				return fmt.Errorf("encode chat message %d: %w", i, err)
			}
			rows = append(rows, []any{int32(i), json.RawMessage(raw)})
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"chat_messages"},
			[]string{"position", "payload"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copy chat messages: %w", err)
		}
		return nil
	})
}
