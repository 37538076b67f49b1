package stats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
)

func submitSuspicious(t *testing.T, s *Store, userHash string) {
	t.Helper()
	// acc hors bornes + rks au-dessus du plafond: 0.8, en file de revue
	// sans franchir le masquage
	_, err := s.SubmitRks(context.Background(), SubmissionInput{
		UserHash:        userHash,
		TotalRks:        18.0,
		PlausibleMaxRks: 17.0,
		AccOutOfRange:   true,
		ChartCount:      40,
		BestK:           27,
	})
	require.NoError(t, err)
}

func TestQuerySuspicious(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	submit(t, s, "sain", 13.0)
	submitSuspicious(t, s, "douteux")

	entries, err := s.QuerySuspicious(ctx, 50)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "douteux", entries[0].UserHash)
	assert.GreaterOrEqual(t, entries[0].Suspicion, 0.5)
	assert.False(t, entries[0].IsHidden)
	// Aucune décision prise: statut implicite
	assert.Equal(t, ModerationPending, entries[0].Status)
}

func TestResolveUserStatuses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	submitSuspicious(t, s, "cible")
	makePublic(t, s, "cible")

	require.NoError(t, s.ResolveUser(ctx, "cible", ModerationShadow, "saut suspect", "admin"))
	me, err := s.QueryMe(ctx, "cible")
	require.NoError(t, err)
	assert.True(t, me.IsHidden)

	// Masqué = toujours listé côté admin, avec la dernière décision
	entries, err := s.QuerySuspicious(ctx, 50)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsHidden)
	assert.Equal(t, ModerationShadow, entries[0].Status)

	// approved lève le masquage et vide la file
	require.NoError(t, s.ResolveUser(ctx, "cible", ModerationApproved, "", "admin"))
	me, err = s.QueryMe(ctx, "cible")
	require.NoError(t, err)
	assert.False(t, me.IsHidden)

	entries, err = s.QuerySuspicious(ctx, 50)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResolveUserBannedAndRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	submit(t, s, "banni", 13.0)
	require.NoError(t, s.ResolveUser(ctx, "banni", ModerationBanned, "multi-compte", "admin"))
	me, err := s.QueryMe(ctx, "banni")
	require.NoError(t, err)
	assert.True(t, me.IsHidden)

	submit(t, s, "refuse", 12.0)
	require.NoError(t, s.ResolveUser(ctx, "refuse", ModerationRejected, "", "admin"))
	me, err = s.QueryMe(ctx, "refuse")
	require.NoError(t, err)
	assert.True(t, me.IsHidden)
}

func TestResolveUserPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	submitSuspicious(t, s, "en-attente")
	require.NoError(t, s.ResolveUser(ctx, "en-attente", ModerationPending, "à revoir", "admin"))

	// pending ne touche pas la ligne: toujours en file, jamais masqué
	me, err := s.QueryMe(ctx, "en-attente")
	require.NoError(t, err)
	assert.False(t, me.IsHidden)

	entries, err := s.QuerySuspicious(ctx, 50)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ModerationPending, entries[0].Status)
}

func TestModerationHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	submitSuspicious(t, s, "cible")
	require.NoError(t, s.ResolveUser(ctx, "cible", ModerationShadow, "saut suspect", "admin"))
	require.NoError(t, s.ResolveUser(ctx, "cible", ModerationApproved, "faux positif", "admin"))

	flags, err := s.ModerationHistory(ctx, "cible", 10)
	require.NoError(t, err)
	require.Len(t, flags, 2)
	assert.Equal(t, ModerationApproved, flags[0].Status)
	assert.Equal(t, "faux positif", flags[0].Reason)
	assert.Equal(t, ModerationShadow, flags[1].Status)
	assert.False(t, flags[0].CreatedAt.IsZero())
}

func TestResolveUserErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	submit(t, s, "present", 13.0)

	err := s.ResolveUser(ctx, "present", "hide", "", "admin")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.From(err).Kind)

	err = s.ResolveUser(ctx, "absent", ModerationShadow, "", "admin")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.From(err).Kind)

	err = s.ResolveUser(ctx, "absent", ModerationPending, "", "admin")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.From(err).Kind)
}

func TestForceAliasReassigns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	submit(t, s, "detenteur", 13.0)
	require.NoError(t, s.PutAlias(ctx, "detenteur", "Pseudo"))

	submit(t, s, "nouveau", 14.0)
	require.NoError(t, s.ForceAlias(ctx, "nouveau", "Pseudo"))

	p, err := s.getProfile(ctx, "nouveau")
	require.NoError(t, err)
	assert.Equal(t, "Pseudo", p.Alias)

	old, err := s.getProfile(ctx, "detenteur")
	require.NoError(t, err)
	assert.Empty(t, old.Alias)
}
