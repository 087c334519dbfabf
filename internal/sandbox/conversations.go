package sandbox

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/repo"
)

// Conversations — диалоги в памяти.
type Conversations struct {
	mu    sync.Mutex
	convs map[uuid.UUID]domain.Conversation
}

// NewConversations создаёт пустое хранилище диалогов.
func NewConversations() *Conversations {
	return &Conversations{convs: make(map[uuid.UUID]domain.Conversation)}
}

// Put сохраняет диалог.
func (c *Conversations) Put(conv domain.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.convs[conv.ID] = conv
}

// GetByID возвращает диалог.
func (c *Conversations) GetByID(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv, ok := c.convs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &conv, nil
}

// AssignBot назначает бота диалогу.
func (c *Conversations) AssignBot(_ context.Context, conversationID, botID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv, ok := c.convs[conversationID]
	if !ok {
		return repo.ErrNotFound
	}
	conv.AssignedBotID = &botID
	c.convs[conversationID] = conv
	return nil
}

// SetBotActive включает или выключает бота в диалоге.
// Выключение снимает назначенного оператора, как при передаче человеку.
func (c *Conversations) SetBotActive(_ context.Context, conversationID uuid.UUID, active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv, ok := c.convs[conversationID]
	if !ok {
		return repo.ErrNotFound
	}
	conv.IsBotActive = active
	if !active {
		conv.AssignedAgentID = nil
	}
	c.convs[conversationID] = conv
	return nil
}
