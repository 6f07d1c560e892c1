package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/lendflow/pkg/adapters/sqlite"
	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/knowledge"
	"github.com/aretw0/lendflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "nested", "lendflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, openDB(t).Sessions())
}

func TestStore_Overwrite(t *testing.T) {
	store := openDB(t).Sessions()
	ctx := context.Background()

	s := domain.NewSession("s1")
	require.NoError(t, store.Save(ctx, "s1", s))
	s.Stage = domain.StageSanction
	require.NoError(t, store.Save(ctx, "s1", s))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageSanction, loaded.Stage)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
}

func TestKnowledge(t *testing.T) {
	kb := openDB(t).Knowledge()
	ctx := context.Background()

	added, err := kb.Seed(ctx, knowledge.Seed())
	require.NoError(t, err)
	assert.Equal(t, 7, added)

	added, err = kb.Seed(ctx, knowledge.Seed())
	require.NoError(t, err)
	assert.Zero(t, added, "seeding twice is a no-op")

	t.Run("Search", func(t *testing.T) {
		hits, err := kb.Search(ctx, "interest rates for credit score 750", 2)
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, "interest_1", hits[0].ID)
		assert.Equal(t, "interest_rates", hits[0].Metadata[knowledge.MetaCategory])
		assert.LessOrEqual(t, len(hits), 2)
	})

	t.Run("Put generates ulid", func(t *testing.T) {
		id, err := kb.Put(ctx, knowledge.Document{Content: "Top-up loans are available after 12 EMIs."})
		require.NoError(t, err)
		assert.Len(t, id, 26)

		n, err := kb.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 8, n)

		hits, err := kb.Search(ctx, "top-up", 3)
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, id, hits[0].ID)
		assert.Equal(t, 1.0, hits[0].Relevance)

		require.NoError(t, kb.Delete(ctx, id))
		n, _ = kb.Count(ctx)
		assert.Equal(t, 7, n)
	})

	t.Run("Empty query", func(t *testing.T) {
		hits, err := kb.Search(ctx, "the", 3)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}
