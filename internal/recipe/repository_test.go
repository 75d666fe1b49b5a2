package recipe

import (
	"context"
	"path/filepath"
	"testing"

	"chefitup/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "recipes.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db.SQL)
	imported := newTestRecipe("imported-1", "Page Soup", "French", 5, 20)

	require.NoError(t, repo.Save(ctx, imported, "https://example.com/soup"))
	imported.Title = "Page Soup v2"
	require.NoError(t, repo.Save(ctx, imported, "https://example.com/soup"))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Page Soup v2", list[0].Title)

	store := testStore(t)
	added, err := repo.LoadInto(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.True(t, store.Exists("imported-1"))

	added, err = repo.LoadInto(ctx, store)
	require.NoError(t, err)
	assert.Zero(t, added)
}
