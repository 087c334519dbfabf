package processor

import "errors"

// Ошибки процессора.
var (
	// ErrMessageNotFound — входящее сообщение не найдено в журнале.
	ErrMessageNotFound = errors.New("inbound message not found")

	// ErrNotInbound — сообщение не является входящим.
	ErrNotInbound = errors.New("message is not inbound")

	// ErrConversationNotFound — диалог сообщения не найден.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrInvalidScenario — граф активного сценария не разбирается.
	ErrInvalidScenario = errors.New("invalid scenario graph")
)
