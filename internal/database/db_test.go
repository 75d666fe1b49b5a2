package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")

	db, err := NewDB(path, nil)
	require.NoError(t, err)

	for _, table := range []string{"meal_plans", "shopping_lists", "execution_metrics", "recipes"} {
		var name string
		err := db.SQL.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
	require.NoError(t, db.Close())

	t.Run("ReopenIsIdempotent", func(t *testing.T) {
		db, err := NewDB(path, nil)
		require.NoError(t, err)
		assert.NoError(t, db.Close())
	})
}
