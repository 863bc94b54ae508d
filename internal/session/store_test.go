package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenStore(context.Background(), filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingKeyReturnsNil", func(t *testing.T) {
		store := newTestStore(t)

		value, err := store.Get(ctx, KeyToken)

		assert.NoError(t, err)
		assert.Nil(t, value)
	})

	t.Run("SetGetRoundTrip", func(t *testing.T) {
		store := newTestStore(t)

		assert.NoError(t, store.Set(ctx, KeyToken, []byte("abc.def.ghi")))

		value, err := store.Get(ctx, KeyToken)
		assert.NoError(t, err)
		assert.Equal(t, []byte("abc.def.ghi"), value)
	})

	t.Run("SetOverwrites", func(t *testing.T) {
		store := newTestStore(t)

		assert.NoError(t, store.Set(ctx, KeyToken, []byte("old")))
		assert.NoError(t, store.Set(ctx, KeyToken, []byte("new")))

		value, err := store.Get(ctx, KeyToken)
		assert.NoError(t, err)
		assert.Equal(t, []byte("new"), value)
	})

	t.Run("Delete", func(t *testing.T) {
		store := newTestStore(t)

		assert.NoError(t, store.Set(ctx, KeyToken, []byte("abc")))
		assert.NoError(t, store.Delete(ctx, KeyToken))

		value, err := store.Get(ctx, KeyToken)
		assert.NoError(t, err)
		assert.Nil(t, value)

		// Deleting an absent key is not an error.
		assert.NoError(t, store.Delete(ctx, KeyToken))
	})

	t.Run("Clear", func(t *testing.T) {
		store := newTestStore(t)

		assert.NoError(t, store.Set(ctx, KeyToken, []byte("abc")))
		assert.NoError(t, store.Set(ctx, KeyUser, []byte(`{"id":"u1"}`)))
		assert.NoError(t, store.Clear(ctx))

		for _, key := range []string{KeyToken, KeyUser} {
			value, err := store.Get(ctx, key)
			assert.NoError(t, err)
			assert.Nil(t, value)
		}
	})

	t.Run("SurvivesReopen", func(t *testing.T) {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "session.db")

		store, err := OpenStore(ctx, path)
		require.NoError(t, err)
		assert.NoError(t, store.Set(ctx, KeyToken, []byte("abc")))
		assert.NoError(t, store.Close())

		reopened, err := OpenStore(ctx, path)
		require.NoError(t, err)
		defer reopened.Close()

		value, err := reopened.Get(ctx, KeyToken)
		assert.NoError(t, err)
		assert.Equal(t, []byte("abc"), value)
	})
}
