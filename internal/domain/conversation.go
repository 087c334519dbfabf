package domain

import (
	"time"

	"github.com/google/uuid"
)

// Conversation — диалог клиента с бизнесом в канале.
type Conversation struct {
	ID         uuid.UUID `json:"id"`
	BusinessID uuid.UUID `json:"business_id"`
	CustomerID uuid.UUID `json:"customer_id"`

	// CustomerPhone — адрес клиента в канале (куда отправлять ответы).
	CustomerPhone string `json:"customer_phone"`

	// CustomerName — имя клиента, используется в названиях сделок.
	CustomerName string `json:"customer_name,omitempty"`

	// ChannelNumberID — номер бизнеса, через который идёт диалог.
	ChannelNumberID string `json:"channel_number_id"`

	// AssignedBotID — бот, обслуживающий диалог. nil — ещё не назначен.
	AssignedBotID *uuid.UUID `json:"assigned_bot_id,omitempty"`

	// AssignedAgentID — оператор, если диалог передан человеку.
	AssignedAgentID *uuid.UUID `json:"assigned_agent_id,omitempty"`

	// IsBotActive — false после передачи оператору или окончания сценария.
	// Проверяется до любой логики бота.
	IsBotActive bool `json:"is_bot_active"`

	Status        ConversationStatus `json:"status"`
	LastMessageAt *time.Time         `json:"last_message_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// HasBot проверяет, назначен ли диалогу бот.
func (c *Conversation) HasBot() bool {
	return c.AssignedBotID != nil
}
