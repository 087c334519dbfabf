package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Bot — автоматический агент бизнеса в мессенджере.
//
// Бот владеет триггерами (быстрые ответы по ключевым словам)
// и версиями сценария (flow graph). Активным считается
// сценарий с максимальной версией среди активных.
type Bot struct {
	ID         uuid.UUID `json:"id"`
	BusinessID uuid.UUID `json:"business_id"`

	// ChannelNumberID — идентификатор номера в канале (WhatsApp phone number id),
	// на который приходят сообщения клиентов.
	ChannelNumberID string `json:"channel_number_id"`

	Name string `json:"name"`

	// DefaultResponse — ответ, если ни триггер, ни сценарий не обработали сообщение.
	// Пустая строка — молчать и оставить сообщение оператору.
	DefaultResponse string `json:"default_response,omitempty"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasDefaultResponse проверяет, настроен ли ответ по умолчанию.
func (b *Bot) HasDefaultResponse() bool {
	return strings.TrimSpace(b.DefaultResponse) != ""
}
