package domain

// ConversationStatus — статус диалога с клиентом.
type ConversationStatus string

const (
	// ConversationStatusOpen — диалог активен.
	ConversationStatusOpen ConversationStatus = "open"

	// ConversationStatusPending — ожидает ответа оператора.
	ConversationStatusPending ConversationStatus = "pending"

	// ConversationStatusClosed — диалог закрыт.
	ConversationStatusClosed ConversationStatus = "closed"
)

// MessageDirection — направление сообщения.
type MessageDirection string

const (
	// DirectionInbound — сообщение от клиента.
	DirectionInbound MessageDirection = "inbound"

	// DirectionOutbound — сообщение клиенту (от бота или оператора).
	DirectionOutbound MessageDirection = "outbound"
)

// MessageType — тип содержимого сообщения.
type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypeInteractive MessageType = "interactive"
	MessageTypeImage       MessageType = "image"
	MessageTypeDocument    MessageType = "document"
	MessageTypeAudio       MessageType = "audio"
	MessageTypeLocation    MessageType = "location"
)

// ParseMessageType парсит строку в MessageType.
// Неизвестные значения считаются текстом.
func ParseMessageType(s string) MessageType {
	switch MessageType(s) {
	case MessageTypeInteractive, MessageTypeImage, MessageTypeDocument,
		MessageTypeAudio, MessageTypeLocation:
		return MessageType(s)
	default:
		return MessageTypeText
	}
}

// MessageStatus — статус доставки исходящего сообщения.
//
// Жизненный цикл:
//
//	pending → sent → delivered → read
//	        ↘ failed
type MessageStatus string

const (
	// MessageStatusPending — сообщение записано, отправка ещё не выполнена.
	MessageStatusPending MessageStatus = "pending"

	// MessageStatusSent — канал принял сообщение.
	MessageStatusSent MessageStatus = "sent"

	// MessageStatusDelivered — доставлено получателю.
	MessageStatusDelivered MessageStatus = "delivered"

	// MessageStatusRead — прочитано получателем.
	MessageStatusRead MessageStatus = "read"

	// MessageStatusFailed — отправка не удалась.
	MessageStatusFailed MessageStatus = "failed"
)

// IsTerminal возвращает true, если статус больше не изменится нашей стороной.
func (s MessageStatus) IsTerminal() bool {
	switch s {
	case MessageStatusFailed, MessageStatusRead:
		return true
	default:
		return false
	}
}
