package stats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
)

func TestValidateAlias(t *testing.T) {
	tests := []struct {
		name    string
		alias   string
		wantErr bool
	}{
		{"latin simple", "Player_01", false},
		{"sinogrammes", "测试玩家", false},
		{"kana", "プレイヤー", false},
		{"hangul", "플레이어", false},
		{"ponctuation autorisee", "a.b-c_d", false},
		{"trop court", "a", true},
		{"trop long", "abcdefghijklmnopqrstu", true},
		{"espace interdit", "a b", true},
		{"emoji interdit", "ab💡", true},
		{"reserve admin", "admin", true},
		{"reserve insensible casse", "AdMiN", true},
		{"reserve root", "root", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAlias(tt.alias)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperr.KindValidation, apperr.From(err).Kind)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPutAliasIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutAlias(ctx, "joueur-x", "MonAlias"))
	require.NoError(t, s.PutAlias(ctx, "joueur-x", "MonAlias"))

	p, err := s.getProfile(ctx, "joueur-x")
	require.NoError(t, err)
	assert.Equal(t, "MonAlias", p.Alias)
}

func TestPutAliasConflictCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutAlias(ctx, "joueur-x", "MonAlias"))
	err := s.PutAlias(ctx, "joueur-y", "monalias")
	require.Error(t, err)
	ae := apperr.From(err)
	assert.Equal(t, apperr.KindConflict, ae.Kind)
	assert.Equal(t, "ALIAS_TAKEN", ae.Code())
}

func TestPutAliasReplace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutAlias(ctx, "joueur-x", "Premier"))
	require.NoError(t, s.PutAlias(ctx, "joueur-x", "Second"))

	p, err := s.getProfile(ctx, "joueur-x")
	require.NoError(t, err)
	assert.Equal(t, "Second", p.Alias)

	// L'ancien alias redevient disponible
	require.NoError(t, s.PutAlias(ctx, "joueur-y", "Premier"))
}

func TestUpdateProfileTogglesOnlyProvided(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	no := false
	p, err := s.UpdateProfile(ctx, "joueur-z", ProfileUpdate{ShowBestTop3: &no})
	require.NoError(t, err)
	assert.False(t, p.ShowBestTop3)
	// Les autres bascules gardent leur valeur par défaut
	assert.True(t, p.ShowRksComposition)
	assert.True(t, p.ShowApTop3)
}
