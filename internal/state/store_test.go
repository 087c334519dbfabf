package state

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Botflow/internal/domain"
)

// runStoreContract проверяет общее поведение любой реализации Store.
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("load missing returns empty state", func(t *testing.T) {
		id := uuid.New()
		st, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, st.ConversationID)
		assert.Equal(t, int64(0), st.Version)
		assert.False(t, st.IsStarted())
		assert.False(t, st.Ended)
		assert.NotNil(t, st.Variables)
	})

	t.Run("save and load round trip", func(t *testing.T) {
		id := uuid.New()
		st := domain.NewConversationState(id).AtNode("q1").WithVariable("name", "Alice")

		saved, err := store.Save(ctx, st)
		require.NoError(t, err)
		assert.Equal(t, int64(1), saved.Version)

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "q1", loaded.CurrentNodeID)
		assert.Equal(t, "Alice", loaded.Variables["name"])
		assert.Equal(t, int64(1), loaded.Version)

		ended, err := store.Save(ctx, loaded.End())
		require.NoError(t, err)
		assert.Equal(t, int64(2), ended.Version)

		loaded, err = store.Load(ctx, id)
		require.NoError(t, err)
		assert.True(t, loaded.Ended)
		assert.Empty(t, loaded.CurrentNodeID)
		assert.Equal(t, "Alice", loaded.Variables["name"])
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		id := uuid.New()
		base, err := store.Load(ctx, id)
		require.NoError(t, err)

		_, err = store.Save(ctx, base.AtNode("a"))
		require.NoError(t, err)

		// Вторая запись от того же чтения
		_, err = store.Save(ctx, base.AtNode("b"))
		assert.ErrorIs(t, err, ErrVersionConflict)

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "a", loaded.CurrentNodeID)
	})

	t.Run("concurrent writers from one read: exactly one wins", func(t *testing.T) {
		id := uuid.New()
		base, err := store.Load(ctx, id)
		require.NoError(t, err)
		base, err = store.Save(ctx, base.AtNode("question"))
		require.NoError(t, err)

		var wins, conflicts atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := store.Save(ctx, base.AtNode("next").WithVariable("i", string(rune('a'+i))))
				switch {
				case err == nil:
					wins.Add(1)
				case assert.ErrorIs(t, err, ErrVersionConflict):
					conflicts.Add(1)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(7), conflicts.Load())

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(2), loaded.Version)
	})

	t.Run("loaded state is a copy", func(t *testing.T) {
		id := uuid.New()
		saved, err := store.Save(ctx, domain.NewConversationState(id).WithVariable("k", "v"))
		require.NoError(t, err)

		saved.Variables["k"] = "mutated"

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "v", loaded.Variables["k"])
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(t.TempDir() + "/state.db")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	runStoreContract(t, store)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := t.TempDir() + "/state.db"
	ctx := context.Background()
	id := uuid.New()

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	_, err = store.Save(ctx, domain.NewConversationState(id).AtNode("q").WithVariable("x", "1"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	st, err := reopened.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "q", st.CurrentNodeID)
	assert.Equal(t, "1", st.Variables["x"])
	assert.False(t, st.UpdatedAt.IsZero())
}
