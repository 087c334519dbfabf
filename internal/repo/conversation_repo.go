package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Botflow/internal/domain"
)

// ConversationRepo — репозиторий диалогов.
type ConversationRepo struct {
	pool *pgxpool.Pool
}

// NewConversationRepo создаёт ConversationRepo.
func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

// Телефон и имя клиента подтягиваются из customers.
const conversationSelect = `
	SELECT c.id, c.business_id, c.customer_id, cu.phone, cu.name, c.channel_number_id,
	       c.assigned_bot_id, c.assigned_agent_id, c.is_bot_active, c.status,
	       c.last_message_at, c.created_at
	FROM conversations c
	JOIN customers cu ON cu.id = c.customer_id
`

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := row.Scan(
		&c.ID,
		&c.BusinessID,
		&c.CustomerID,
		&c.CustomerPhone,
		&c.CustomerName,
		&c.ChannelNumberID,
		&c.AssignedBotID,
		&c.AssignedAgentID,
		&c.IsBotActive,
		&c.Status,
		&c.LastMessageAt,
		&c.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByID возвращает диалог.
func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	c, err := scanConversation(r.pool.QueryRow(ctx, conversationSelect+` WHERE c.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

// FindOrCreateOpen возвращает незакрытый диалог клиента на номере
// или открывает новый с включённым ботом.
func (r *ConversationRepo) FindOrCreateOpen(ctx context.Context, customer *domain.Customer, channelNumberID string) (*domain.Conversation, error) {
	query := conversationSelect + `
		WHERE c.business_id = $1 AND c.customer_id = $2 AND c.channel_number_id = $3
		  AND c.status <> 'closed'
		ORDER BY c.created_at DESC
		LIMIT 1
	`
	c, err := scanConversation(r.pool.QueryRow(ctx, query, customer.BusinessID, customer.ID, channelNumberID))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find open conversation: %w", err)
	}

	conv := &domain.Conversation{
		ID:              uuid.New(),
		BusinessID:      customer.BusinessID,
		CustomerID:      customer.ID,
		CustomerPhone:   customer.Phone,
		CustomerName:    customer.Name,
		ChannelNumberID: channelNumberID,
		IsBotActive:     true,
		Status:          domain.ConversationStatusOpen,
	}
	err = r.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, business_id, customer_id, channel_number_id, is_bot_active, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING created_at
	`, conv.ID, conv.BusinessID, conv.CustomerID, conv.ChannelNumberID, conv.IsBotActive, conv.Status).Scan(&conv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return conv, nil
}

// List возвращает последние диалоги бизнеса.
func (r *ConversationRepo) List(ctx context.Context, businessID uuid.UUID, limit int) ([]domain.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	query := conversationSelect + `
		WHERE c.business_id = $1
		ORDER BY COALESCE(c.last_message_at, c.created_at) DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, *c)
	}
	return convs, rows.Err()
}

// AssignBot назначает бота диалогу.
func (r *ConversationRepo) AssignBot(ctx context.Context, conversationID, botID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE conversations SET assigned_bot_id = $2 WHERE id = $1
	`, conversationID, botID)
	if err != nil {
		return fmt.Errorf("assign bot: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetBotActive включает или выключает бота в диалоге.
// Выключение снимает назначенного оператора, включение его не трогает.
func (r *ConversationRepo) SetBotActive(ctx context.Context, conversationID uuid.UUID, active bool) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE conversations
		SET is_bot_active = $2,
		    assigned_agent_id = CASE WHEN $2 THEN assigned_agent_id ELSE NULL END
		WHERE id = $1
	`, conversationID, active)
	if err != nil {
		return fmt.Errorf("set bot active: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Touch обновляет время последнего сообщения.
func (r *ConversationRepo) Touch(ctx context.Context, conversationID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE conversations SET last_message_at = now() WHERE id = $1`, conversationID)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}
