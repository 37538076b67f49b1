package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
)

func TestResolveRange(t *testing.T) {
	s := newTestStore(t)

	t.Run("bornes explicites", func(t *testing.T) {
		r, err := s.ResolveRange("2026-03-01", "2026-03-07", "")
		require.NoError(t, err)
		assert.Equal(t, "2026-03-01", r.Start.Format("2006-01-02"))
		assert.Equal(t, "2026-03-07", r.End.Format("2006-01-02"))
		assert.Len(t, r.days(), 7)
	})

	t.Run("defaut sept jours glissants", func(t *testing.T) {
		r, err := s.ResolveRange("", "", "")
		require.NoError(t, err)
		assert.Len(t, r.days(), 7)
		assert.Equal(t, time.Now().In(s.loc).Format("2006-01-02"), r.End.Format("2006-01-02"))
	})

	t.Run("fuseau explicite", func(t *testing.T) {
		r, err := s.ResolveRange("2026-03-01", "2026-03-01", "Asia/Tokyo")
		require.NoError(t, err)
		assert.Equal(t, "Asia/Tokyo", r.Loc.String())
		assert.Equal(t, "+540 minutes", r.tzModifier())
	})

	t.Run("fuseau inconnu", func(t *testing.T) {
		_, err := s.ResolveRange("", "", "Mars/Olympus")
		require.Error(t, err)
		ae := apperr.From(err)
		assert.Equal(t, apperr.KindValidation, ae.Kind)
		require.Len(t, ae.Fields, 1)
		assert.Equal(t, "tz", ae.Fields[0].Field)
	})

	t.Run("date invalide", func(t *testing.T) {
		_, err := s.ResolveRange("01/03/2026", "", "")
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.From(err).Kind)
	})

	t.Run("fin avant debut", func(t *testing.T) {
		_, err := s.ResolveRange("2026-03-07", "2026-03-01", "")
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.From(err).Kind)
	})

	t.Run("fenetre trop large", func(t *testing.T) {
		_, err := s.ResolveRange("2024-01-01", "2026-01-01", "")
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.From(err).Kind)
	})
}

func TestDateRangeBoundsUTC(t *testing.T) {
	s := newTestStore(t)
	r, err := s.ResolveRange("2026-03-01", "2026-03-02", "")
	require.NoError(t, err)

	startS, endS := r.boundsUTC()
	assert.Equal(t, "2026-03-01T00:00:00Z", startS)
	// Borne haute exclusive: lendemain du dernier jour
	assert.Equal(t, "2026-03-03T00:00:00Z", endS)
	assert.Equal(t, "+0 minutes", r.tzModifier())
}

func seedEvents(t *testing.T, s *Store) {
	t.Helper()
	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	day3 := time.Date(2026, 3, 3, 18, 30, 0, 0, time.UTC)
	require.NoError(t, s.insertEvents([]models.Event{
		{OccurredAt: day1, Route: "/api/v2/save", Feature: "save", Method: "POST", Status: 200, DurationMs: 120, UserHash: "u1"},
		{OccurredAt: day1.Add(time.Hour), Route: "/api/v2/save", Feature: "save", Method: "POST", Status: 422, DurationMs: 40, UserHash: "u2"},
		{OccurredAt: day1.Add(2 * time.Hour), Route: "/api/v2/image/bn", Feature: "image", Method: "POST", Status: 200, DurationMs: 800, UserHash: "u1"},
		{OccurredAt: day3, Route: "/api/v2/save", Feature: "save", Method: "POST", Status: 200, DurationMs: 60, UserHash: "u3"},
		{OccurredAt: day3.Add(time.Minute), Route: "/health", Method: "GET", Status: 200, DurationMs: 1},
	}))
}

func TestQueryDaily(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEvents(t, s)

	r, err := s.ResolveRange("2026-03-01", "2026-03-03", "")
	require.NoError(t, err)

	rows, err := s.QueryDaily(ctx, r, "save", "", "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2026-03-01", rows[0].Date)
	assert.EqualValues(t, 2, rows[0].Count)
	assert.EqualValues(t, 1, rows[0].ErrCount)
	assert.Equal(t, "2026-03-03", rows[1].Date)
	assert.EqualValues(t, 1, rows[1].Count)

	rows, err = s.QueryDaily(ctx, r, "", "/api/v2/image/bn", "POST")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 1, rows[0].Count)
}

func TestQueryDailyDAUZeroFill(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEvents(t, s)

	r, err := s.ResolveRange("2026-03-01", "2026-03-03", "")
	require.NoError(t, err)

	rows, err := s.QueryDailyDAU(ctx, r)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.EqualValues(t, 2, rows[0].DAU)
	// Jour sans trafic présent avec zéro
	assert.Equal(t, "2026-03-02", rows[1].Date)
	assert.Zero(t, rows[1].DAU)
	// L'événement /health sans user_hash ne compte pas
	assert.EqualValues(t, 1, rows[2].DAU)
}

func TestQueryDailyFeatures(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEvents(t, s)

	r, err := s.ResolveRange("2026-03-01", "2026-03-01", "")
	require.NoError(t, err)

	rows, err := s.QueryDailyFeatures(ctx, r)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "image", rows[0].Feature)
	assert.EqualValues(t, 1, rows[0].UniqueUsers)
	assert.Equal(t, "save", rows[1].Feature)
	assert.EqualValues(t, 2, rows[1].Count)
	assert.EqualValues(t, 2, rows[1].UniqueUsers)
}

func TestQueryDailyHTTP(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEvents(t, s)

	r, err := s.ResolveRange("2026-03-01", "2026-03-03", "")
	require.NoError(t, err)

	rows, err := s.QueryDailyHTTP(ctx, r)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.EqualValues(t, 3, rows[0].Total)
	assert.EqualValues(t, 1, rows[0].ErrCount)
	assert.InDelta(t, 1.0/3.0, rows[0].ErrRate, 1e-9)
	assert.Zero(t, rows[1].Total)
	assert.Zero(t, rows[1].ErrRate)
	assert.EqualValues(t, 2, rows[2].Total)
}

func TestQueryLatency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEvents(t, s)

	r, err := s.ResolveRange("2026-03-01", "2026-03-03", "")
	require.NoError(t, err)

	t.Run("par jour et route", func(t *testing.T) {
		rows, err := s.QueryLatency(ctx, r, BucketDay, LatencyDims{ByRoute: true})
		require.NoError(t, err)
		require.NotEmpty(t, rows)
		var save LatencyRow
		for _, row := range rows {
			if row.Bucket == "2026-03-01" && row.Route == "/api/v2/save" {
				save = row
			}
		}
		assert.EqualValues(t, 2, save.Count)
		assert.EqualValues(t, 40, save.MinMs)
		assert.EqualValues(t, 120, save.MaxMs)
		assert.InDelta(t, 80.0, save.AvgMs, 1e-9)
	})

	t.Run("bucket mensuel", func(t *testing.T) {
		rows, err := s.QueryLatency(ctx, r, BucketMonth, LatencyDims{})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "2026-03-01", rows[0].Bucket)
		assert.EqualValues(t, 5, rows[0].Count)
	})

	t.Run("bucket inconnu", func(t *testing.T) {
		_, err := s.QueryLatency(ctx, r, "hour", LatencyDims{})
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.From(err).Kind)
	})
}

func TestQuerySummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.insertEvents([]models.Event{
		{OccurredAt: now, Route: "/api/v2/save", Feature: "save", Method: "POST", Status: 200, DurationMs: 50, UserHash: "u1"},
		{OccurredAt: now, Route: "/api/v2/save", Feature: "save", Method: "POST", Status: 200, DurationMs: 55, UserHash: "u2"},
		{OccurredAt: now.AddDate(0, 0, -3), Route: "/api/v2/image/bn", Feature: "image", Method: "POST", Status: 200, DurationMs: 900, UserHash: "u1"},
	}))
	submit(t, s, "joueur-resume", 13.0)

	sum, err := s.QuerySummary(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, sum.TotalEvents)
	assert.EqualValues(t, 2, sum.EventsToday)
	assert.EqualValues(t, 2, sum.DAUToday)
	assert.EqualValues(t, 1, sum.LeaderboardUsers)
	require.NotEmpty(t, sum.TopRoutes)
	assert.Equal(t, "/api/v2/save", sum.TopRoutes[0].Route)
	assert.EqualValues(t, 2, sum.TopRoutes[0].Count)
}
