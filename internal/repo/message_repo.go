package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Botflow/internal/domain"
)

// MessageRepo — журнал сообщений.
type MessageRepo struct {
	pool *pgxpool.Pool
}

// NewMessageRepo создаёт MessageRepo.
func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

const messageColumns = `id, conversation_id, direction, message_type, content, status,
	external_id, error_message, sent_by_bot, processed_at, created_at`

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	if err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.Direction,
		&m.Type,
		&m.Content,
		&m.Status,
		&m.ExternalID,
		&m.ErrorMessage,
		&m.SentByBot,
		&m.ProcessedAt,
		&m.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepo) insert(ctx context.Context, m *domain.Message) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		RETURNING created_at
	`,
		m.ID,
		m.ConversationID,
		m.Direction,
		m.Type,
		m.Content,
		m.Status,
		m.ExternalID,
		m.ErrorMessage,
		m.SentByBot,
		m.ProcessedAt,
	).Scan(&m.CreatedAt)
}

// CreateInbound сохраняет входящее сообщение клиента.
// Повтор с тем же внешним ID — ErrAlreadyExists.
func (r *MessageRepo) CreateInbound(ctx context.Context, m *domain.Message) error {
	m.Direction = domain.DirectionInbound
	if m.Status == "" {
		m.Status = domain.MessageStatusDelivered
	}

	err := r.insert(ctx, m)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert inbound message: %w", err)
	}
	return nil
}

// AppendOutbound записывает исходящее сообщение бота.
func (r *MessageRepo) AppendOutbound(ctx context.Context, m *domain.Message) error {
	if err := r.insert(ctx, m); err != nil {
		return fmt.Errorf("insert outbound message: %w", err)
	}
	return nil
}

// UpdateDelivery сохраняет статус доставки исходящего сообщения.
func (r *MessageRepo) UpdateDelivery(ctx context.Context, m *domain.Message) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET status = $2, external_id = $3, error_message = $4
		WHERE id = $1
	`, m.ID, m.Status, m.ExternalID, m.ErrorMessage)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID возвращает сообщение.
func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	m, err := scanMessage(r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// ListUnprocessedInbound возвращает входящие, ещё не обработанные ботом.
func (r *MessageRepo) ListUnprocessedInbound(ctx context.Context, limit int) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE direction = 'inbound' AND processed_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed inbound: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

// ListByConversation возвращает историю диалога в хронологическом порядке.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT * FROM (
			SELECT `+messageColumns+`
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversation messages: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

// Claim помечает входящее сообщение обработанным.
// Уже помеченное другим обработчиком — ErrInvalidState.
func (r *MessageRepo) Claim(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE messages SET processed_at = now()
		WHERE id = $1 AND direction = 'inbound' AND processed_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("claim message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// Release снимает пометку обработки, чтобы сообщение подобрал polling.
func (r *MessageRepo) Release(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `UPDATE messages SET processed_at = NULL WHERE id = $1`, id); err != nil {
		return fmt.Errorf("release message: %w", err)
	}
	return nil
}

func collectMessages(rows pgx.Rows) ([]domain.Message, error) {
	var msgs []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}
