package processor

import (
	"context"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/engine"
	"github.com/shaiso/Botflow/internal/executor"
)

// Bots — поиск ботов.
type Bots interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Bot, error)
	FindActive(ctx context.Context, businessID uuid.UUID, channelNumberID string) (*domain.Bot, error)
}

// Triggers — триггеры бота.
type Triggers interface {
	ListByBot(ctx context.Context, botID uuid.UUID) ([]domain.Trigger, error)
}

// Scenarios — активный сценарий бота.
type Scenarios interface {
	GetActive(ctx context.Context, botID uuid.UUID) (*domain.Scenario, error)
}

// Conversations — диалоги.
type Conversations interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	AssignBot(ctx context.Context, conversationID, botID uuid.UUID) error
}

// Inbox — очередь входящих сообщений в журнале.
type Inbox interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	ListUnprocessedInbound(ctx context.Context, limit int) ([]domain.Message, error)
	Claim(ctx context.Context, id uuid.UUID) error
	Release(ctx context.Context, id uuid.UUID) error
}

// FlowRunner выполняет сценарий.
type FlowRunner interface {
	Run(ctx context.Context, conv domain.Conversation, msg domain.IncomingMessage, graph *engine.Graph) (executor.Result, error)
}

var _ FlowRunner = (*executor.Executor)(nil)
