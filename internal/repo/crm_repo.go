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

// CRMRepo — клиенты и сделки.
type CRMRepo struct {
	pool *pgxpool.Pool
}

// NewCRMRepo создаёт CRMRepo.
func NewCRMRepo(pool *pgxpool.Pool) *CRMRepo {
	return &CRMRepo{pool: pool}
}

// UpsertCustomer возвращает клиента бизнеса по телефону, создавая его при необходимости.
// Непустое имя обновляет сохранённое.
func (r *CRMRepo) UpsertCustomer(ctx context.Context, businessID uuid.UUID, phone, name string) (*domain.Customer, error) {
	query := `
		INSERT INTO customers (id, business_id, phone, name, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (business_id, phone) DO UPDATE
		SET name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE customers.name END
		RETURNING id, business_id, phone, name, custom_fields, tags, created_at
	`
	var c domain.Customer
	err := r.pool.QueryRow(ctx, query, uuid.New(), businessID, phone, name).Scan(
		&c.ID,
		&c.BusinessID,
		&c.Phone,
		&c.Name,
		&c.CustomFields,
		&c.Tags,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert customer: %w", err)
	}
	return &c, nil
}

// GetCustomer возвращает клиента.
func (r *CRMRepo) GetCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	var c domain.Customer
	err := r.pool.QueryRow(ctx, `
		SELECT id, business_id, phone, name, custom_fields, tags, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(
		&c.ID,
		&c.BusinessID,
		&c.Phone,
		&c.Name,
		&c.CustomFields,
		&c.Tags,
		&c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}

// WriteCustomerField записывает пользовательское поле клиента.
func (r *CRMRepo) WriteCustomerField(ctx context.Context, customerID uuid.UUID, field, value string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE customers
		SET custom_fields = jsonb_set(custom_fields, ARRAY[$2::text], to_jsonb($3::text), true)
		WHERE id = $1
	`, customerID, field, value)
	if err != nil {
		return fmt.Errorf("write customer field: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddCustomerTag добавляет тег, если его ещё нет.
func (r *CRMRepo) AddCustomerTag(ctx context.Context, customerID uuid.UUID, tag string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE customers
		SET tags = CASE WHEN $2 = ANY(tags) THEN tags ELSE array_append(tags, $2) END
		WHERE id = $1
	`, customerID, tag)
	if err != nil {
		return fmt.Errorf("add customer tag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateDeal создаёт сделку клиента в стадии new.
func (r *CRMRepo) CreateDeal(ctx context.Context, customerID uuid.UUID, title string) error {
	result, err := r.pool.Exec(ctx, `
		INSERT INTO deals (id, business_id, customer_id, title, stage, amount, created_at)
		SELECT $1, business_id, id, $3, $4, 0, now()
		FROM customers
		WHERE id = $2
	`, uuid.New(), customerID, title, domain.DealStageNew)
	if err != nil {
		return fmt.Errorf("create deal: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDeals возвращает сделки клиента.
func (r *CRMRepo) ListDeals(ctx context.Context, customerID uuid.UUID) ([]domain.Deal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, customer_id, title, stage, amount::float8, created_at
		FROM deals
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	defer rows.Close()

	var deals []domain.Deal
	for rows.Next() {
		var d domain.Deal
		if err := rows.Scan(&d.ID, &d.BusinessID, &d.CustomerID, &d.Title, &d.Stage, &d.Amount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}
