package domain

import (
	"time"

	"github.com/google/uuid"
)

// IncomingMessage — нормализованное входящее сообщение.
//
// Разбор payload конкретного канала происходит до ядра:
// сюда попадает только текст и тип.
type IncomingMessage struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	Content        string      `json:"content"`
	Type           MessageType `json:"message_type"`
	ReceivedAt     time.Time   `json:"received_at"`
}

// ButtonOption — кнопка интерактивного сообщения.
type ButtonOption struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// MaxButtons — ограничение канала на количество кнопок.
const MaxButtons = 3

// Message — запись журнала сообщений диалога.
type Message struct {
	ID             uuid.UUID        `json:"id"`
	ConversationID uuid.UUID        `json:"conversation_id"`
	Direction      MessageDirection `json:"direction"`
	Type           MessageType      `json:"message_type"`
	Content        string           `json:"content"`
	Status         MessageStatus    `json:"status"`

	// ExternalID — идентификатор сообщения в канале (wamid).
	ExternalID string `json:"external_id,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`
	SentByBot    bool   `json:"sent_by_bot"`

	// ProcessedAt — когда входящее сообщение обработано ботом.
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewBotMessage создаёт исходящее сообщение бота в статусе pending.
func NewBotMessage(conversationID uuid.UUID, typ MessageType, content string) *Message {
	return &Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Direction:      DirectionOutbound,
		Type:           typ,
		Content:        content,
		Status:         MessageStatusPending,
		SentByBot:      true,
		CreatedAt:      time.Now(),
	}
}

// Incoming преобразует входящую запись журнала в IncomingMessage.
func (m *Message) Incoming() IncomingMessage {
	return IncomingMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Content:        m.Content,
		Type:           m.Type,
		ReceivedAt:     m.CreatedAt,
	}
}

// MarkSent фиксирует успешную отправку.
func (m *Message) MarkSent(externalID string) {
	m.Status = MessageStatusSent
	m.ExternalID = externalID
	m.ErrorMessage = ""
}

// MarkFailed фиксирует ошибку отправки.
func (m *Message) MarkFailed(err string) {
	m.Status = MessageStatusFailed
	m.ErrorMessage = err
}
