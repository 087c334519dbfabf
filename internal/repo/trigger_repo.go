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

// TriggerRepo — репозиторий триггеров бота.
type TriggerRepo struct {
	pool *pgxpool.Pool
}

// NewTriggerRepo создаёт TriggerRepo.
func NewTriggerRepo(pool *pgxpool.Pool) *TriggerRepo {
	return &TriggerRepo{pool: pool}
}

// Create создаёт триггер.
func (r *TriggerRepo) Create(ctx context.Context, t *domain.Trigger) error {
	query := `
		INSERT INTO bot_triggers (id, bot_id, keywords, response, priority, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query,
		t.ID,
		t.BotID,
		textArray(t.Keywords),
		t.Response,
		t.Priority,
		t.IsActive,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert trigger: %w", err)
	}
	return nil
}

// ListByBot возвращает все триггеры бота по приоритету.
// Неактивные включены: фильтрует вызывающий.
func (r *TriggerRepo) ListByBot(ctx context.Context, botID uuid.UUID) ([]domain.Trigger, error) {
	query := `
		SELECT id, bot_id, keywords, response, priority, is_active, created_at
		FROM bot_triggers
		WHERE bot_id = $1
		ORDER BY priority, created_at
	`
	rows, err := r.pool.Query(ctx, query, botID)
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	defer rows.Close()

	var triggers []domain.Trigger
	for rows.Next() {
		var t domain.Trigger
		if err := rows.Scan(
			&t.ID,
			&t.BotID,
			&t.Keywords,
			&t.Response,
			&t.Priority,
			&t.IsActive,
			&t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		triggers = append(triggers, t)
	}
	return triggers, rows.Err()
}

// Update обновляет триггер.
func (r *TriggerRepo) Update(ctx context.Context, t *domain.Trigger) error {
	query := `
		UPDATE bot_triggers
		SET keywords = $2, response = $3, priority = $4, is_active = $5
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, t.ID, textArray(t.Keywords), t.Response, t.Priority, t.IsActive)
	if err != nil {
		return fmt.Errorf("update trigger: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID возвращает триггер.
func (r *TriggerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Trigger, error) {
	query := `
		SELECT id, bot_id, keywords, response, priority, is_active, created_at
		FROM bot_triggers
		WHERE id = $1
	`
	var t domain.Trigger
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&t.ID,
		&t.BotID,
		&t.Keywords,
		&t.Response,
		&t.Priority,
		&t.IsActive,
		&t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trigger: %w", err)
	}
	return &t, nil
}

// Delete удаляет триггер.
func (r *TriggerRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM bot_triggers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete trigger: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// textArray заменяет nil на пустой массив: колонки TEXT[] объявлены NOT NULL.
func textArray(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
