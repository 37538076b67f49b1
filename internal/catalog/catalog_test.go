package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
)

func writeFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	info := "id,song,composer,illustrator\n" +
		"Glaciaxion.SunsetRay.0,Glaciaxion,SunsetRay,A\n" +
		"\"DESTRUCTION321.Normal1zer.0\",\"DESTRUCTION 3,2,1\",Normal1zer,B\n" +
		"Shadow.Iris.0,Shadow,Iris,C\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "info.csv"), []byte(info), 0o644))

	diff := "id\tEZ\tHD\tIN\tAT\n" +
		"Glaciaxion.SunsetRay.0\t1.5\t3.2\t6.8\t\n" +
		"DESTRUCTION321.Normal1zer.0\t4.5\t8.0\t12.7\t14.9\n" +
		"Shadow.Iris.0\t2.0\t5.5\t9.1\t\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "difficulty.csv"), []byte(diff), 0o644))

	nick := "glacia:\n  - Glaciaxion.SunsetRay.0\nd321:\n  - DESTRUCTION321.Normal1zer.0\nombre:\n  - Shadow.Iris.0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nicklist.yaml"), []byte(nick), 0o644))

	return dir
}

func loadFixture(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load(writeFixtures(t))
	require.NoError(t, err)
	return c
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "destruction 3,2,1", Normalize("  DESTRUCTION   3,2,1 "))
	assert.Equal(t, "", Normalize("   "))
}

func TestLoad(t *testing.T) {
	c := loadFixture(t)
	assert.Equal(t, 3, c.Len())

	s, ok := c.Lookup("Glaciaxion.SunsetRay.0")
	require.True(t, ok)
	assert.Equal(t, "Glaciaxion", s.Name)
	require.NotNil(t, s.Constants.IN)
	assert.InDelta(t, 6.8, *s.Constants.IN, 1e-9)
	assert.Nil(t, s.Constants.AT)

	_, ok = c.Lookup("inconnu")
	assert.False(t, ok)

	all := c.All()
	require.Len(t, all, 3)
	assert.Equal(t, "DESTRUCTION321.Normal1zer.0", all[0].ID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
}

func TestSearchRanking(t *testing.T) {
	c := loadFixture(t)

	t.Run("id exact", func(t *testing.T) {
		page, _, err := c.Search("Shadow.Iris.0", SearchOptions{Limit: 10})
		require.NoError(t, err)
		require.NotEmpty(t, page.Items)
		assert.Equal(t, "Shadow.Iris.0", page.Items[0].ID)
	})

	t.Run("nom insensible a la casse", func(t *testing.T) {
		page, _, err := c.Search("glaciaxion", SearchOptions{Limit: 10})
		require.NoError(t, err)
		require.NotEmpty(t, page.Items)
		assert.Equal(t, "Glaciaxion.SunsetRay.0", page.Items[0].ID)
	})

	t.Run("alias", func(t *testing.T) {
		page, _, err := c.Search("d321", SearchOptions{Limit: 10})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "DESTRUCTION321.Normal1zer.0", page.Items[0].ID)
	})

	t.Run("sous chaine", func(t *testing.T) {
		page, _, err := c.Search("shad", SearchOptions{Limit: 10})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "Shadow.Iris.0", page.Items[0].ID)
	})

	t.Run("requete vide", func(t *testing.T) {
		page, _, err := c.Search("  ", SearchOptions{Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.Zero(t, page.Total)
	})
}

func TestSearchPagination(t *testing.T) {
	c := loadFixture(t)

	// "a" apparaît dans les trois identifiants
	first, _, err := c.Search("a", SearchOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Total)
	require.Len(t, first.Items, 2)
	require.NotNil(t, first.NextOffset)
	assert.Equal(t, 2, *first.NextOffset)

	second, _, err := c.Search("a", SearchOptions{Limit: 2, Offset: *first.NextOffset})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Nil(t, second.NextOffset)

	empty, _, err := c.Search("a", SearchOptions{Limit: 2, Offset: 50})
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
}

func TestSearchValidation(t *testing.T) {
	c := loadFixture(t)

	_, _, err := c.Search("x", SearchOptions{Limit: 0})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.From(err).Kind)

	_, _, err = c.Search("x", SearchOptions{Limit: MaxSearchLimit + 1})
	require.Error(t, err)

	_, _, err = c.Search("x", SearchOptions{Limit: 10, Offset: -1})
	require.Error(t, err)
}

func TestSearchUnique(t *testing.T) {
	c := loadFixture(t)

	t.Run("resultat unique", func(t *testing.T) {
		_, song, err := c.Search("glacia", SearchOptions{Unique: true, Limit: 1})
		require.NoError(t, err)
		require.NotNil(t, song)
		assert.Equal(t, "Glaciaxion.SunsetRay.0", song.ID)
	})

	t.Run("aucun resultat", func(t *testing.T) {
		_, _, err := c.Search("zzz", SearchOptions{Unique: true, Limit: 1})
		require.Error(t, err)
		assert.Equal(t, apperr.KindNotFound, apperr.From(err).Kind)
	})

	t.Run("ambigu avec candidats", func(t *testing.T) {
		_, _, err := c.Search("a", SearchOptions{Unique: true, Limit: 1})
		require.Error(t, err)
		ae := apperr.From(err)
		assert.Equal(t, apperr.KindAmbiguous, ae.Kind)
		assert.Equal(t, "SEARCH_NOT_UNIQUE", ae.Code())
		assert.Equal(t, 3, ae.Extra["candidatesTotal"])
		candidates, ok := ae.Extra["candidates"].([]Candidate)
		require.True(t, ok)
		assert.Len(t, candidates, 3)
	})
}
