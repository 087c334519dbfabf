package state

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
)

// MemoryStore — Store в памяти процесса.
type MemoryStore struct {
	mu     sync.Mutex
	states map[uuid.UUID]domain.ConversationState
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[uuid.UUID]domain.ConversationState)}
}

// Load возвращает копию состояния.
func (s *MemoryStore) Load(_ context.Context, conversationID uuid.UUID) (domain.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[conversationID]
	if !ok {
		return domain.NewConversationState(conversationID), nil
	}
	return st.Clone(), nil
}

// Save сохраняет состояние с проверкой версии.
func (s *MemoryStore) Save(_ context.Context, st domain.ConversationState) (domain.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.states[st.ConversationID]
	stored := int64(0)
	if ok {
		stored = current.Version
	}
	if stored != st.Version {
		return st, ErrVersionConflict
	}

	next := st.Clone()
	next.Version = st.Version + 1
	next.UpdatedAt = time.Now()
	s.states[st.ConversationID] = next

	return next.Clone(), nil
}
