package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sczr0/Next-Phi-Backend/internal/catalog"
	"github.com/Sczr0/Next-Phi-Backend/internal/config"
	"github.com/Sczr0/Next-Phi-Backend/internal/stats"
	"github.com/Sczr0/Next-Phi-Backend/internal/utils"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "info.csv"), []byte(
		"id,song,composer,illustrator\n"+
			"Glaciaxion.SunsetRay.0,Glaciaxion,SunsetRay,A\n"+
			"Shadow.Iris.0,Shadow,Iris,B\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "difficulty.csv"), []byte(
		"id\tEZ\tHD\tIN\tAT\n"+
			"Glaciaxion.SunsetRay.0\t1.5\t3.2\t6.8\t\n"+
			"Shadow.Iris.0\t2.0\t5.5\t9.1\t\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nicklist.yaml"), []byte(
		"glacia:\n  - Glaciaxion.SunsetRay.0\n"), 0o644))

	c, err := catalog.Load(dir)
	require.NoError(t, err)
	return c
}

func testStore(t *testing.T, lb config.LeaderboardConfig) *stats.Store {
	t.Helper()
	s, err := stats.Open(config.StatsConfig{SQLitePath: ":memory:", Timezone: "UTC"}, lb)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func initApp(t *testing.T, mutate func(*App)) {
	t.Helper()
	cfg := &config.Config{}
	cfg.API.Prefix = "/api/v2"
	cfg.Stats.UserHashSalt = "sel-de-test"
	a := &App{Cfg: cfg, Catalog: testCatalog(t)}
	if mutate != nil {
		mutate(a)
	}
	Init(a)
}

func problemOf(t *testing.T, w *httptest.ResponseRecorder) utils.ProblemDetails {
	t.Helper()
	var p utils.ProblemDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

func TestHealthCheck(t *testing.T) {
	initApp(t, nil)
	w := httptest.NewRecorder()
	HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, ServiceName, body["service"])
}

func TestSearchSongs(t *testing.T) {
	initApp(t, nil)

	t.Run("requete absente", func(t *testing.T) {
		w := httptest.NewRecorder()
		SearchSongs(w, httptest.NewRequest(http.MethodGet, "/songs/search", nil))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("page de resultats", func(t *testing.T) {
		w := httptest.NewRecorder()
		SearchSongs(w, httptest.NewRequest(http.MethodGet, "/songs/search?q=shadow", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var page catalog.SearchPage
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		require.Len(t, page.Items, 1)
		assert.Equal(t, "Shadow.Iris.0", page.Items[0].ID)
	})

	t.Run("mode unique", func(t *testing.T) {
		w := httptest.NewRecorder()
		SearchSongs(w, httptest.NewRequest(http.MethodGet, "/songs/search?q=glacia&unique=true", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Glaciaxion.SunsetRay.0")
	})

	t.Run("unique ambigu", func(t *testing.T) {
		w := httptest.NewRecorder()
		SearchSongs(w, httptest.NewRequest(http.MethodGet, "/songs/search?q=a&unique=true", nil))
		assert.Equal(t, http.StatusConflict, w.Code)
		p := problemOf(t, w)
		assert.Equal(t, "SEARCH_NOT_UNIQUE", p.Code)
		assert.NotEmpty(t, p.Extra["candidates"])
	})

	t.Run("introuvable", func(t *testing.T) {
		w := httptest.NewRecorder()
		SearchSongs(w, httptest.NewRequest(http.MethodGet, "/songs/search?q=zzz&unique=1", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestLeaderboardTopDisabled(t *testing.T) {
	initApp(t, nil)
	w := httptest.NewRecorder()
	LeaderboardTop(w, httptest.NewRequest(http.MethodGet, "/leaderboard/rks/top", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLeaderboardFlow(t *testing.T) {
	lb := config.LeaderboardConfig{
		Enabled: true, AllowPublic: true,
		DefaultShowRksComp: true, DefaultShowBest3: true, DefaultShowAp3: true,
		ShadowThreshold: 1.0, ReviewThreshold: 0.5,
	}
	var store *stats.Store
	initApp(t, func(a *App) {
		store = testStore(t, lb)
		a.Cfg.Leaderboard = lb
		a.Store = store
	})

	body := `{"sessionToken":"jeton-de-session-suffisant"}`

	t.Run("me inconnu", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/leaderboard/rks/me", strings.NewReader(body))
		LeaderboardMe(w, r)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("profil puis top", func(t *testing.T) {
		// L'utilisateur entre au classement via une soumission directe
		out, err := store.SubmitRks(httptest.NewRequest(http.MethodPost, "/", nil).Context(), stats.SubmissionInput{
			UserHash: "abcdef0123456789", TotalRks: 14.0, ChartCount: 40, BestK: 27,
		})
		require.NoError(t, err)
		require.NotNil(t, out)
		yes := true
		_, err = store.UpdateProfile(httptest.NewRequest(http.MethodPost, "/", nil).Context(),
			"abcdef0123456789", stats.ProfileUpdate{IsPublic: &yes})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		LeaderboardTop(w, httptest.NewRequest(http.MethodGet, "/leaderboard/rks/top?limit=10", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "abcdef****")
	})

	t.Run("limite invalide", func(t *testing.T) {
		w := httptest.NewRecorder()
		LeaderboardTop(w, httptest.NewRequest(http.MethodGet, "/leaderboard/rks/top?limit=abc", nil))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("corps invalide", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/leaderboard/rks/me", strings.NewReader("{"))
		LeaderboardMe(w, r)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestRksHistoryStoreDisabled(t *testing.T) {
	initApp(t, nil)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/rks/history", strings.NewReader(`{"sessionToken":"x"}`))
	RksHistory(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
