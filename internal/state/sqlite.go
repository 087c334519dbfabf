package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/shaiso/Botflow/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversation_states (
    conversation_id TEXT PRIMARY KEY,
    current_node_id TEXT NOT NULL DEFAULT '',
    variables TEXT NOT NULL DEFAULT '{}',
    ended INTEGER NOT NULL DEFAULT 0,
    version INTEGER NOT NULL,
    updated_at TEXT NOT NULL
);
`

// SQLiteStore — Store в файле SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite открывает (или создаёт) базу по пути и применяет схему.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Один писатель: конкурирующие транзакции SQLite всё равно сериализует.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close закрывает базу.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load читает состояние диалога.
func (s *SQLiteStore) Load(ctx context.Context, conversationID uuid.UUID) (domain.ConversationState, error) {
	const q = `
		SELECT current_node_id, variables, ended, version, updated_at
		FROM conversation_states
		WHERE conversation_id = ?
	`

	st := domain.NewConversationState(conversationID)
	var vars, updatedAt string
	err := s.db.QueryRowContext(ctx, q, conversationID.String()).
		Scan(&st.CurrentNodeID, &vars, &st.Ended, &st.Version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("load state: %w", err)
	}

	if err := json.Unmarshal([]byte(vars), &st.Variables); err != nil {
		return st, fmt.Errorf("decode variables: %w", err)
	}
	if st.Variables == nil {
		st.Variables = map[string]string{}
	}
	st.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	return st, nil
}

// Save сохраняет состояние с проверкой версии.
func (s *SQLiteStore) Save(ctx context.Context, st domain.ConversationState) (domain.ConversationState, error) {
	vars, err := json.Marshal(nonNil(st.Variables))
	if err != nil {
		return st, fmt.Errorf("encode variables: %w", err)
	}

	next := st.Clone()
	next.Version = st.Version + 1
	next.UpdatedAt = time.Now().UTC()
	updatedAt := next.UpdatedAt.Format(time.RFC3339Nano)

	var res sql.Result
	if st.Version == 0 {
		const q = `
			INSERT INTO conversation_states
				(conversation_id, current_node_id, variables, ended, version, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (conversation_id) DO NOTHING
		`
		res, err = s.db.ExecContext(ctx, q,
			st.ConversationID.String(), next.CurrentNodeID, string(vars), next.Ended, next.Version, updatedAt)
	} else {
		const q = `
			UPDATE conversation_states
			SET current_node_id = ?, variables = ?, ended = ?, version = ?, updated_at = ?
			WHERE conversation_id = ? AND version = ?
		`
		res, err = s.db.ExecContext(ctx, q,
			next.CurrentNodeID, string(vars), next.Ended, next.Version, updatedAt,
			st.ConversationID.String(), st.Version)
	}
	if err != nil {
		return st, fmt.Errorf("save state: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return st, fmt.Errorf("save state: %w", err)
	}
	if n == 0 {
		return st, ErrVersionConflict
	}

	return next, nil
}

func nonNil(vars map[string]string) map[string]string {
	if vars == nil {
		return map[string]string{}
	}
	return vars
}
