package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Botflow/internal/domain"
)

// PostgresStore — Store в таблице conversation_states (схема в repo/schema.sql).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore создаёт хранилище поверх пула.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Load читает состояние диалога.
func (s *PostgresStore) Load(ctx context.Context, conversationID uuid.UUID) (domain.ConversationState, error) {
	const q = `
		SELECT current_node_id, variables, ended, version, updated_at
		FROM conversation_states
		WHERE conversation_id = $1
	`

	st := domain.NewConversationState(conversationID)
	err := s.pool.QueryRow(ctx, q, conversationID).
		Scan(&st.CurrentNodeID, &st.Variables, &st.Ended, &st.Version, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewConversationState(conversationID), nil
	}
	if err != nil {
		return st, fmt.Errorf("load state: %w", err)
	}
	if st.Variables == nil {
		st.Variables = map[string]string{}
	}

	return st, nil
}

// Save сохраняет состояние с проверкой версии.
func (s *PostgresStore) Save(ctx context.Context, st domain.ConversationState) (domain.ConversationState, error) {
	next := st.Clone()
	next.Version = st.Version + 1

	var err error
	if st.Version == 0 {
		const q = `
			INSERT INTO conversation_states
				(conversation_id, current_node_id, variables, ended, version, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (conversation_id) DO NOTHING
			RETURNING updated_at
		`
		err = s.pool.QueryRow(ctx, q,
			st.ConversationID, next.CurrentNodeID, next.Variables, next.Ended, next.Version,
		).Scan(&next.UpdatedAt)
	} else {
		const q = `
			UPDATE conversation_states
			SET current_node_id = $2, variables = $3, ended = $4, version = $5, updated_at = now()
			WHERE conversation_id = $1 AND version = $6
			RETURNING updated_at
		`
		err = s.pool.QueryRow(ctx, q,
			st.ConversationID, next.CurrentNodeID, next.Variables, next.Ended, next.Version, st.Version,
		).Scan(&next.UpdatedAt)
	}

	// Ни INSERT ... DO NOTHING, ни UPDATE с неверной версией не возвращают строк
	if errors.Is(err, pgx.ErrNoRows) {
		return st, ErrVersionConflict
	}
	if err != nil {
		return st, fmt.Errorf("save state: %w", err)
	}

	return next, nil
}
