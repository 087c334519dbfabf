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

// BotRepo — репозиторий ботов.
type BotRepo struct {
	pool *pgxpool.Pool
}

// NewBotRepo создаёт BotRepo.
func NewBotRepo(pool *pgxpool.Pool) *BotRepo {
	return &BotRepo{pool: pool}
}

const botColumns = `id, business_id, channel_number_id, name, default_response, is_active, created_at, updated_at`

func scanBot(row pgx.Row) (*domain.Bot, error) {
	var b domain.Bot
	err := row.Scan(
		&b.ID,
		&b.BusinessID,
		&b.ChannelNumberID,
		&b.Name,
		&b.DefaultResponse,
		&b.IsActive,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create создаёт бота.
func (r *BotRepo) Create(ctx context.Context, bot *domain.Bot) error {
	query := `
		INSERT INTO bots (` + botColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		bot.ID,
		bot.BusinessID,
		bot.ChannelNumberID,
		bot.Name,
		bot.DefaultResponse,
		bot.IsActive,
	).Scan(&bot.CreatedAt, &bot.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert bot: %w", err)
	}
	return nil
}

// GetByID возвращает бота по ID.
func (r *BotRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bot, error) {
	query := `SELECT ` + botColumns + ` FROM bots WHERE id = $1`

	bot, err := scanBot(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bot by id: %w", err)
	}
	return bot, nil
}

// FindActive возвращает активного бота бизнеса на номере канала.
// При нескольких активных выбирается самый старый.
func (r *BotRepo) FindActive(ctx context.Context, businessID uuid.UUID, channelNumberID string) (*domain.Bot, error) {
	query := `
		SELECT ` + botColumns + `
		FROM bots
		WHERE business_id = $1 AND channel_number_id = $2 AND is_active
		ORDER BY created_at
		LIMIT 1
	`
	bot, err := scanBot(r.pool.QueryRow(ctx, query, businessID, channelNumberID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find active bot: %w", err)
	}
	return bot, nil
}

// List возвращает ботов бизнеса; uuid.Nil — всех.
func (r *BotRepo) List(ctx context.Context, businessID uuid.UUID) ([]domain.Bot, error) {
	query := `
		SELECT ` + botColumns + `
		FROM bots
		WHERE $1 = '00000000-0000-0000-0000-000000000000'::uuid OR business_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}
	defer rows.Close()

	var bots []domain.Bot
	for rows.Next() {
		bot, err := scanBot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bot: %w", err)
		}
		bots = append(bots, *bot)
	}
	return bots, rows.Err()
}

// Update обновляет имя, номер канала и ответ по умолчанию.
func (r *BotRepo) Update(ctx context.Context, bot *domain.Bot) error {
	query := `
		UPDATE bots
		SET name = $2, channel_number_id = $3, default_response = $4, is_active = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		bot.ID,
		bot.Name,
		bot.ChannelNumberID,
		bot.DefaultResponse,
		bot.IsActive,
	).Scan(&bot.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update bot: %w", err)
	}
	return nil
}

// Delete удаляет бота вместе с триггерами и сценариями.
func (r *BotRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM bots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete bot: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
