package domain

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// ConversationState — позиция диалога в сценарии и собранные переменные.
//
// Значение передаётся по копии: методы не меняют получателя,
// а возвращают новое состояние. Version используется хранилищем
// для оптимистической блокировки.
//
// Позиции:
//
//	NotStarted: CurrentNodeID == "" && !Ended
//	AtNode:     CurrentNodeID != ""
//	Ended:      CurrentNodeID == "" && Ended
type ConversationState struct {
	ConversationID uuid.UUID `json:"conversation_id"`

	// CurrentNodeID — текущий узел. Пусто — сценарий не начат или завершён.
	CurrentNodeID string `json:"current_node_id,omitempty"`

	// Variables — ответы на вопросы и прочие собранные значения.
	Variables map[string]string `json:"variables"`

	// Ended — сценарий дошёл до конца или передан оператору.
	Ended bool `json:"ended"`

	// Version — номер сохранённой версии. 0 — записи ещё нет.
	Version int64 `json:"version"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversationState создаёт пустое состояние диалога.
func NewConversationState(conversationID uuid.UUID) ConversationState {
	return ConversationState{
		ConversationID: conversationID,
		Variables:      map[string]string{},
	}
}

// IsStarted возвращает true, если диалог стоит на каком-то узле.
func (s ConversationState) IsStarted() bool {
	return s.CurrentNodeID != ""
}

// AtNode возвращает состояние, указывающее на узел nodeID.
func (s ConversationState) AtNode(nodeID string) ConversationState {
	next := s.Clone()
	next.CurrentNodeID = nodeID
	next.Ended = false
	return next
}

// End возвращает завершённое состояние. Переменные сохраняются.
func (s ConversationState) End() ConversationState {
	next := s.Clone()
	next.CurrentNodeID = ""
	next.Ended = true
	return next
}

// WithVariable возвращает состояние с установленной переменной.
func (s ConversationState) WithVariable(key, value string) ConversationState {
	next := s.Clone()
	next.Variables[key] = value
	return next
}

// Clone копирует состояние вместе с картой переменных.
func (s ConversationState) Clone() ConversationState {
	next := s
	next.Variables = make(map[string]string, len(s.Variables))
	maps.Copy(next.Variables, s.Variables)
	return next
}
