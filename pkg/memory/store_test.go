package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T, dbPath string, provider EmbeddingProvider) *Store {
	t.Helper()
	store, err := NewStore(Config{
		DBPath:            dbPath,
		Logger:            zerolog.Nop(),
		EmbeddingProvider: provider,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewStore_InvalidConfig(t *testing.T) {
	_, err := NewStore(Config{EmbeddingProvider: newKeywordEmbeddingProvider("a")})
	assert.Error(t, err)

	_, err = NewStore(Config{DBPath: filepath.Join(t.TempDir(), "m.db")})
	assert.Error(t, err)
}

func TestMemorizeAndRecall(t *testing.T) {
	ctx := context.Background()
	provider := newKeywordEmbeddingProvider("cat", "dog", "sun")
	store := createTestStore(t, filepath.Join(t.TempDir(), "data", "memory.db"), provider)

	entries, err := store.Memorize(ctx, "The cat sleeps on the mat. A dog barks at the mailman. The sun is bright today.")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "The cat sleeps on the mat.", entries[0].Text)
	assert.Len(t, entries[0].ID, 36)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
	assert.False(t, entries[0].CreatedAt.IsZero())

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	results, err := store.Recall(ctx, "where is the dog?", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A dog barks at the mailman.", results[0].Text)
	assert.Equal(t, entries[1].ID, results[0].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.InDelta(t, 1.0, results[0].Score, 0.05)
}

func TestRecallEmptyStore(t *testing.T) {
	store := createTestStore(t, filepath.Join(t.TempDir(), "memory.db"), newKeywordEmbeddingProvider("cat"))

	results, err := store.Recall(context.Background(), "cat", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRecallEmptyQuery(t *testing.T) {
	store := createTestStore(t, filepath.Join(t.TempDir(), "memory.db"), newKeywordEmbeddingProvider("cat"))

	_, err := store.Recall(context.Background(), "  ", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestMemorizeNothing(t *testing.T) {
	store := createTestStore(t, filepath.Join(t.TempDir(), "memory.db"), newKeywordEmbeddingProvider("cat"))

	_, err := store.Memorize(context.Background(), " \n ")
	assert.ErrorIs(t, err, ErrNothingToMemorize)
}

func TestMemorizeUsesEmbeddingCache(t *testing.T) {
	ctx := context.Background()
	provider := newKeywordEmbeddingProvider("cat", "dog")
	store := createTestStore(t, filepath.Join(t.TempDir(), "memory.db"), provider)

	_, err := store.Memorize(ctx, "The cat naps.")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)

	_, err = store.Memorize(ctx, "The cat naps.")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStoreReopenKeepsDimension(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "memory.db")

	first, err := NewStore(Config{DBPath: dbPath, Logger: zerolog.Nop(), EmbeddingProvider: newKeywordEmbeddingProvider("cat", "dog")})
	require.NoError(t, err)
	_, err = first.Memorize(ctx, "The cat sleeps. The dog barks.")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	reopened := createTestStore(t, dbPath, newKeywordEmbeddingProvider("cat", "dog"))
	results, err := reopened.Recall(ctx, "cat", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "The cat sleeps.", results[0].Text)

	mismatched := createTestStore(t, dbPath, newKeywordEmbeddingProvider("cat", "dog", "sun", "rain"))
	_, err = mismatched.Memorize(ctx, "Rain falls.")
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = mismatched.Recall(ctx, "rain", 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
