package api

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/mq"
	"github.com/shaiso/Botflow/internal/repo"
)

// Bots — хранилище ботов.
type Bots interface {
	Create(ctx context.Context, bot *domain.Bot) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Bot, error)
	List(ctx context.Context, businessID uuid.UUID) ([]domain.Bot, error)
	Update(ctx context.Context, bot *domain.Bot) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Triggers — хранилище триггеров.
type Triggers interface {
	Create(ctx context.Context, t *domain.Trigger) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Trigger, error)
	ListByBot(ctx context.Context, botID uuid.UUID) ([]domain.Trigger, error)
	Update(ctx context.Context, t *domain.Trigger) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Scenarios — версии сценариев.
type Scenarios interface {
	CreateVersion(ctx context.Context, botID uuid.UUID, name string, graph json.RawMessage, activate bool) (*domain.Scenario, error)
	GetActive(ctx context.Context, botID uuid.UUID) (*domain.Scenario, error)
	GetVersion(ctx context.Context, botID uuid.UUID, version int) (*domain.Scenario, error)
	ListVersions(ctx context.Context, botID uuid.UUID) ([]domain.Scenario, error)
	Activate(ctx context.Context, botID uuid.UUID, version int) error
}

// Conversations — диалоги.
type Conversations interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	FindOrCreateOpen(ctx context.Context, customer *domain.Customer, channelNumberID string) (*domain.Conversation, error)
	List(ctx context.Context, businessID uuid.UUID, limit int) ([]domain.Conversation, error)
	SetBotActive(ctx context.Context, conversationID uuid.UUID, active bool) error
	Touch(ctx context.Context, conversationID uuid.UUID) error
}

// Customers — клиенты и сделки CRM.
type Customers interface {
	UpsertCustomer(ctx context.Context, businessID uuid.UUID, phone, name string) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error)
	ListDeals(ctx context.Context, customerID uuid.UUID) ([]domain.Deal, error)
}

// Messages — журнал сообщений.
type Messages interface {
	CreateInbound(ctx context.Context, m *domain.Message) error
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]domain.Message, error)
}

// InboundPublisher сообщает процессору о новых входящих.
type InboundPublisher interface {
	PublishInbound(ctx context.Context, messageID, conversationID uuid.UUID) error
}

var (
	_ Bots             = (*repo.BotRepo)(nil)
	_ Triggers         = (*repo.TriggerRepo)(nil)
	_ Scenarios        = (*repo.ScenarioRepo)(nil)
	_ Conversations    = (*repo.ConversationRepo)(nil)
	_ Customers        = (*repo.CRMRepo)(nil)
	_ Messages         = (*repo.MessageRepo)(nil)
	_ InboundPublisher = (*mq.Publisher)(nil)
)
