package recipe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbedded(t *testing.T) {
	s, err := LoadEmbedded()
	require.NoError(t, err)
	assert.Equal(t, 10, s.Len())

	r, err := s.Get("recipe-1")
	require.NoError(t, err)
	assert.Equal(t, "Vegetarian Pasta Primavera", r.Title)
	assert.Equal(t, 4, r.Servings)
	assert.Equal(t, 35, r.TotalTime())
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()

	single := `{"id":"s1","title":"Soup","prep_time":5,"cook_time":10,"servings":2,"difficulty":"easy",
		"ingredients":[{"id":"i1","name":"Water","quantity":"1","unit":"l","category":"Pantry"}],
		"instructions":["Boil."]}`
	many := `[{"id":"m1","title":"Salad","servings":1,"difficulty":"easy",
		"ingredients":[{"name":"Lettuce","quantity":"1","unit":"head"}],"instructions":["Toss."]}]`

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(single), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(many), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	s, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "s1"}, ids(s.List(Filter{})))

	t.Run("EmptyDir", func(t *testing.T) {
		_, err := LoadDir(t.TempDir())
		assert.Error(t, err)
	})

	t.Run("LoadFallsBackToEmbedded", func(t *testing.T) {
		s, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 10, s.Len())
	})
}
