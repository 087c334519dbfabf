package sandbox

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/repo"
)

// Catalog — боты, триггеры и сценарии в памяти.
type Catalog struct {
	mu        sync.Mutex
	bots      []domain.Bot
	triggers  []domain.Trigger
	scenarios []domain.Scenario
}

// NewCatalog создаёт пустой каталог.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// AddBot добавляет бота.
func (c *Catalog) AddBot(bot domain.Bot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bots = append(c.bots, bot)
}

// AddTrigger добавляет триггер.
func (c *Catalog) AddTrigger(t domain.Trigger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.triggers = append(c.triggers, t)
}

// AddScenario добавляет версию сценария.
func (c *Catalog) AddScenario(s domain.Scenario) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scenarios = append(c.scenarios, s)
}

// GetByID возвращает бота по ID.
func (c *Catalog) GetByID(_ context.Context, id uuid.UUID) (*domain.Bot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range c.bots {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, repo.ErrNotFound
}

// FindActive ищет активного бота бизнеса на номере канала.
func (c *Catalog) FindActive(_ context.Context, businessID uuid.UUID, channelNumberID string) (*domain.Bot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range c.bots {
		if b.IsActive && b.BusinessID == businessID && b.ChannelNumberID == channelNumberID {
			return &b, nil
		}
	}
	return nil, repo.ErrNotFound
}

// ListByBot возвращает триггеры бота в порядке добавления.
func (c *Catalog) ListByBot(_ context.Context, botID uuid.UUID) ([]domain.Trigger, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []domain.Trigger
	for _, t := range c.triggers {
		if t.BotID == botID {
			out = append(out, t)
		}
	}
	return out, nil
}

// GetActive возвращает активный сценарий бота с максимальной версией.
func (c *Catalog) GetActive(_ context.Context, botID uuid.UUID) (*domain.Scenario, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var best *domain.Scenario
	for i := range c.scenarios {
		s := c.scenarios[i]
		if s.BotID != botID || !s.IsActive {
			continue
		}
		if best == nil || s.Version > best.Version {
			best = &s
		}
	}
	if best == nil {
		return nil, repo.ErrNotFound
	}
	return best, nil
}
