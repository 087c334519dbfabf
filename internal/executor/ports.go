package executor

import (
	"context"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/outbound"
)

// CRM — операции над клиентом, доступные action узлам.
type CRM interface {
	WriteCustomerField(ctx context.Context, customerID uuid.UUID, field, value string) error
	CreateDeal(ctx context.Context, customerID uuid.UUID, title string) error
	AddCustomerTag(ctx context.Context, customerID uuid.UUID, tag string) error
}

// Conversations — управление флагом бота в диалоге.
type Conversations interface {
	SetBotActive(ctx context.Context, conversationID uuid.UUID, active bool) error
}

// Deliverer — доставка ответов клиенту.
type Deliverer interface {
	Deliver(ctx context.Context, conv domain.Conversation, replies ...outbound.Reply) (int, error)
}

var _ Deliverer = (*outbound.Dispatcher)(nil)
