package state

import (
	"context"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
)

// Store — хранилище ConversationState.
//
// Load для диалога без записи возвращает пустое состояние с Version 0.
//
// Save записывает состояние, только если сохранённая версия равна st.Version
// (0 — записи ещё нет). Возвращает состояние с новой версией.
// При несовпадении — ErrVersionConflict.
type Store interface {
	Load(ctx context.Context, conversationID uuid.UUID) (domain.ConversationState, error)
	Save(ctx context.Context, st domain.ConversationState) (domain.ConversationState, error)
}
