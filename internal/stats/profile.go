package stats

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
)

// aliasPattern borne les alias publics: latin, chiffres, ponctuation
// simple et sinogrammes/kana/hangul, 2 à 20 points de code.
var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9._\-\p{Han}\p{Hiragana}\p{Katakana}\x{30FC}\p{Hangul}]{2,20}$`)

var reservedAliases = []string{"admin", "system", "null", "undefined", "root"}

// ValidateAlias vérifie le motif et la liste réservée.
func ValidateAlias(alias string) error {
	if !aliasPattern.MatchString(alias) {
		return apperr.New(apperr.KindValidation, "alias does not match allowed pattern").
			WithField("alias", "INVALID_FORMAT", "2-20 chars, letters, digits, . _ - or CJK")
	}
	for _, r := range reservedAliases {
		if strings.EqualFold(alias, r) {
			return apperr.New(apperr.KindValidation, "alias is reserved").
				WithField("alias", "RESERVED", "this alias cannot be claimed")
		}
	}
	return nil
}

// ensureProfileLocked crée la ligne de profil d'un joueur si absente, avec
// les réglages de visibilité par défaut de la configuration.
func (s *Store) ensureProfileLocked(ctx context.Context, tx *sqlx.Tx, userHash, userKind, nowS string) error {
	b := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO user_profile
		 (user_hash, is_public, show_rks_composition, show_best_top3, show_ap_top3, user_kind, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?)
		 ON CONFLICT(user_hash) DO UPDATE SET
		   user_kind = COALESCE(excluded.user_kind, user_profile.user_kind)`,
		userHash, 0,
		b(s.lb.DefaultShowRksComp), b(s.lb.DefaultShowBest3), b(s.lb.DefaultShowAp3),
		nullable(userKind), nowS, nowS)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "ensure user profile", err)
	}
	return nil
}

// PutAlias pose l'alias public d'un joueur. Idempotent quand le joueur
// repose son alias courant; unicité insensible à la casse.
func (s *Store) PutAlias(ctx context.Context, userHash, alias string) error {
	alias = strings.TrimSpace(alias)
	if err := ValidateAlias(alias); err != nil {
		return err
	}
	nowS := nowRFC3339()

	var holder string
	err := s.db.GetContext(ctx, &holder,
		`SELECT user_hash FROM user_profile WHERE alias = ? COLLATE NOCASE`, alias)
	switch {
	case err == nil && holder == userHash:
		return nil
	case err == nil:
		return apperr.New(apperr.KindConflict, "alias already claimed").WithCode("ALIAS_TAKEN")
	case !errors.Is(err, sql.ErrNoRows):
		return apperr.Wrap(apperr.KindInternal, "check alias holder", err)
	}

	b := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_profile
		 (user_hash, alias, is_public, show_rks_composition, show_best_top3, show_ap_top3, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?)
		 ON CONFLICT(user_hash) DO UPDATE SET
		   alias = excluded.alias,
		   updated_at = excluded.updated_at`,
		userHash, alias, 0,
		b(s.lb.DefaultShowRksComp), b(s.lb.DefaultShowBest3), b(s.lb.DefaultShowAp3),
		nowS, nowS)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return apperr.New(apperr.KindConflict, "alias already claimed").WithCode("ALIAS_TAKEN")
		}
		return apperr.Wrap(apperr.KindInternal, "put alias", err)
	}
	return nil
}

// ProfileUpdate porte les bascules de visibilité d'un profil; les champs
// nil sont laissés tels quels.
type ProfileUpdate struct {
	IsPublic           *bool `json:"isPublic"`
	ShowRksComposition *bool `json:"showRksComposition"`
	ShowBestTop3       *bool `json:"showBestTop3"`
	ShowApTop3         *bool `json:"showApTop3"`
}

// UpdateProfile applique les bascules de visibilité du joueur.
func (s *Store) UpdateProfile(ctx context.Context, userHash string, upd ProfileUpdate) (*models.UserProfile, error) {
	nowS := nowRFC3339()
	b := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "begin profile tx", err)
	}
	defer tx.Rollback()

	if err := s.ensureProfileLocked(ctx, tx, userHash, "", nowS); err != nil {
		return nil, err
	}

	set := []string{"updated_at = ?"}
	args := []interface{}{nowS}
	if upd.IsPublic != nil {
		set = append(set, "is_public = ?")
		args = append(args, b(*upd.IsPublic))
	}
	if upd.ShowRksComposition != nil {
		set = append(set, "show_rks_composition = ?")
		args = append(args, b(*upd.ShowRksComposition))
	}
	if upd.ShowBestTop3 != nil {
		set = append(set, "show_best_top3 = ?")
		args = append(args, b(*upd.ShowBestTop3))
	}
	if upd.ShowApTop3 != nil {
		set = append(set, "show_ap_top3 = ?")
		args = append(args, b(*upd.ShowApTop3))
	}
	args = append(args, userHash)
	if _, err := tx.ExecContext(ctx,
		`UPDATE user_profile SET `+strings.Join(set, ", ")+` WHERE user_hash = ?`,
		args...); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "update profile", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "commit profile tx", err)
	}

	return s.getProfile(ctx, userHash)
}

func (s *Store) getProfile(ctx context.Context, userHash string) (*models.UserProfile, error) {
	row := s.db.QueryRowxContext(ctx,
		`SELECT user_hash, COALESCE(alias, ''), show_rks_composition, show_best_top3, show_ap_top3, updated_at
		 FROM user_profile WHERE user_hash = ?`, userHash)
	var p models.UserProfile
	var showComp, showBest, showAP int
	var updatedS string
	if err := row.Scan(&p.UserHash, &p.Alias, &showComp, &showBest, &showAP, &updatedS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "profile not found")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "read profile", err)
	}
	p.ShowRksComposition = showComp == 1
	p.ShowBestTop3 = showBest == 1
	p.ShowApTop3 = showAP == 1
	p.UpdatedAt = parseTimeOrZero(updatedS)
	return &p, nil
}
