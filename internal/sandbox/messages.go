package sandbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/repo"
)

// Messages — журнал сообщений в памяти.
type Messages struct {
	mu   sync.Mutex
	msgs []domain.Message
}

// NewMessages создаёт пустой журнал.
func NewMessages() *Messages {
	return &Messages{}
}

// AppendOutbound добавляет исходящее сообщение.
func (m *Messages) AppendOutbound(_ context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, *msg)
	return nil
}

// UpdateDelivery обновляет статус доставки.
func (m *Messages) UpdateDelivery(_ context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.msgs {
		if m.msgs[i].ID == msg.ID {
			m.msgs[i].Status = msg.Status
			m.msgs[i].ExternalID = msg.ExternalID
			m.msgs[i].ErrorMessage = msg.ErrorMessage
			return nil
		}
	}
	return repo.ErrNotFound
}

// AddInbound сохраняет входящее сообщение клиента.
func (m *Messages) AddInbound(conversationID uuid.UUID, content string) domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Direction:      domain.DirectionInbound,
		Type:           domain.MessageTypeText,
		Content:        content,
		Status:         domain.MessageStatusDelivered,
		CreatedAt:      time.Now(),
	}
	m.msgs = append(m.msgs, msg)
	return msg
}

// GetByID возвращает сообщение.
func (m *Messages) GetByID(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range m.msgs {
		if msg.ID == id {
			return &msg, nil
		}
	}
	return nil, repo.ErrNotFound
}

// ListUnprocessedInbound возвращает необработанные входящие в порядке поступления.
func (m *Messages) ListUnprocessedInbound(_ context.Context, limit int) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Message
	for _, msg := range m.msgs {
		if len(out) == limit {
			break
		}
		if msg.Direction == domain.DirectionInbound && msg.ProcessedAt == nil {
			out = append(out, msg)
		}
	}
	return out, nil
}

// Claim помечает входящее сообщение обработанным.
// Уже помеченное — repo.ErrInvalidState.
func (m *Messages) Claim(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.msgs {
		if m.msgs[i].ID != id || m.msgs[i].Direction != domain.DirectionInbound {
			continue
		}
		if m.msgs[i].ProcessedAt != nil {
			return repo.ErrInvalidState
		}
		now := time.Now()
		m.msgs[i].ProcessedAt = &now
		return nil
	}
	return repo.ErrNotFound
}

// Release снимает пометку обработки.
func (m *Messages) Release(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.msgs {
		if m.msgs[i].ID == id {
			m.msgs[i].ProcessedAt = nil
			return nil
		}
	}
	return repo.ErrNotFound
}

// Outbound возвращает исходящие сообщения диалога в порядке записи.
func (m *Messages) Outbound(conversationID uuid.UUID) []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Message
	for _, msg := range m.msgs {
		if msg.ConversationID == conversationID && msg.Direction == domain.DirectionOutbound {
			out = append(out, msg)
		}
	}
	return out
}

// Texts возвращает тексты исходящих сообщений диалога.
func (m *Messages) Texts(conversationID uuid.UUID) []string {
	out := m.Outbound(conversationID)
	texts := make([]string, len(out))
	for i, msg := range out {
		texts[i] = msg.Content
	}
	return texts
}
