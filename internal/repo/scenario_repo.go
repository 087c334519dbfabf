package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Botflow/internal/domain"
)

// ScenarioRepo — репозиторий версий сценариев.
type ScenarioRepo struct {
	pool *pgxpool.Pool
}

// NewScenarioRepo создаёт ScenarioRepo.
func NewScenarioRepo(pool *pgxpool.Pool) *ScenarioRepo {
	return &ScenarioRepo{pool: pool}
}

const scenarioColumns = `id, bot_id, name, version, is_active, graph, created_at`

func scanScenario(row pgx.Row) (*domain.Scenario, error) {
	var s domain.Scenario
	var graph []byte
	if err := row.Scan(
		&s.ID,
		&s.BotID,
		&s.Name,
		&s.Version,
		&s.IsActive,
		&graph,
		&s.CreatedAt,
	); err != nil {
		return nil, err
	}
	s.Graph = json.RawMessage(graph)
	return &s, nil
}

// CreateVersion публикует новую версию сценария бота.
// Версия инкрементируется; если activate, прочие версии выключаются.
func (r *ScenarioRepo) CreateVersion(ctx context.Context, botID uuid.UUID, name string, graph json.RawMessage, activate bool) (*domain.Scenario, error) {
	var created *domain.Scenario

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// Блокируем бота: параллельные публикации получают разные версии.
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM bots WHERE id = $1 FOR UPDATE`, botID).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock bot: %w", err)
		}

		var next int
		if err := tx.QueryRow(ctx, `
			SELECT COALESCE(MAX(version), 0) + 1
			FROM bot_scenarios
			WHERE bot_id = $1
		`, botID).Scan(&next); err != nil {
			return fmt.Errorf("get next version: %w", err)
		}

		if activate {
			if _, err := tx.Exec(ctx, `UPDATE bot_scenarios SET is_active = false WHERE bot_id = $1`, botID); err != nil {
				return fmt.Errorf("deactivate versions: %w", err)
			}
		}

		created, err = scanScenario(tx.QueryRow(ctx, `
			INSERT INTO bot_scenarios (id, bot_id, name, version, is_active, graph, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			RETURNING `+scenarioColumns,
			uuid.New(), botID, name, next, activate, []byte(graph),
		))
		if err != nil {
			return fmt.Errorf("insert scenario: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetActive возвращает активный сценарий бота с максимальной версией.
func (r *ScenarioRepo) GetActive(ctx context.Context, botID uuid.UUID) (*domain.Scenario, error) {
	query := `
		SELECT ` + scenarioColumns + `
		FROM bot_scenarios
		WHERE bot_id = $1 AND is_active
		ORDER BY version DESC
		LIMIT 1
	`
	s, err := scanScenario(r.pool.QueryRow(ctx, query, botID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active scenario: %w", err)
	}
	return s, nil
}

// GetVersion возвращает конкретную версию.
func (r *ScenarioRepo) GetVersion(ctx context.Context, botID uuid.UUID, version int) (*domain.Scenario, error) {
	query := `SELECT ` + scenarioColumns + ` FROM bot_scenarios WHERE bot_id = $1 AND version = $2`

	s, err := scanScenario(r.pool.QueryRow(ctx, query, botID, version))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scenario version: %w", err)
	}
	return s, nil
}

// ListVersions возвращает версии сценария бота, новые первыми.
func (r *ScenarioRepo) ListVersions(ctx context.Context, botID uuid.UUID) ([]domain.Scenario, error) {
	query := `
		SELECT ` + scenarioColumns + `
		FROM bot_scenarios
		WHERE bot_id = $1
		ORDER BY version DESC
	`
	rows, err := r.pool.Query(ctx, query, botID)
	if err != nil {
		return nil, fmt.Errorf("list scenario versions: %w", err)
	}
	defer rows.Close()

	var scenarios []domain.Scenario
	for rows.Next() {
		s, err := scanScenario(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		scenarios = append(scenarios, *s)
	}
	return scenarios, rows.Err()
}

// Activate делает версию единственной активной.
func (r *ScenarioRepo) Activate(ctx context.Context, botID uuid.UUID, version int) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE bot_scenarios SET is_active = (version = $2) WHERE bot_id = $1
		`, botID, version)
		if err != nil {
			return fmt.Errorf("activate scenario: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrNotFound
		}

		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM bot_scenarios WHERE bot_id = $1 AND version = $2)
		`, botID, version).Scan(&exists); err != nil {
			return fmt.Errorf("check version: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return nil
	})
}
