package stats

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
)

// Statuts de modération d'un joueur. pending est l'état implicite tant
// qu'aucune décision n'a été journalisée.
const (
	ModerationPending  = "pending"
	ModerationApproved = "approved"
	ModerationRejected = "rejected"
	ModerationShadow   = "shadow"
	ModerationBanned   = "banned"
)

// QuerySuspicious liste les entrées en file de revue: score au-dessus du
// seuil de revue ou déjà masquées.
func (s *Store) QuerySuspicious(ctx context.Context, limit int) ([]models.ModerationEntry, error) {
	if limit <= 0 || limit > maxTopLimit {
		limit = 50
	}
	review := s.lb.ReviewThreshold
	if review <= 0 {
		review = 0.5
	}

	rows, err := s.db.QueryxContext(ctx,
		`SELECT lb.user_hash, COALESCE(p.alias, ''), lb.total_rks,
		        lb.suspicion_score, lb.is_hidden, lb.updated_at,
		        COALESCE((SELECT mf.status FROM moderation_flags mf
		                  WHERE mf.user_hash = lb.user_hash
		                  ORDER BY mf.id DESC LIMIT 1), 'pending')
		 FROM leaderboard_rks lb
		 LEFT JOIN user_profile p ON p.user_hash = lb.user_hash
		 WHERE lb.suspicion_score >= ? OR lb.is_hidden = 1
		 ORDER BY lb.suspicion_score DESC, lb.updated_at DESC
		 LIMIT ?`, review, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "query suspicious", err)
	}
	defer rows.Close()

	out := []models.ModerationEntry{}
	for rows.Next() {
		var e models.ModerationEntry
		var hidden int
		var updatedS string
		if err := rows.Scan(&e.UserHash, &e.Alias, &e.RKS, &e.Suspicion, &hidden, &updatedS, &e.Status); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan suspicious row", err)
		}
		e.IsHidden = hidden == 1
		e.UpdatedAt = parseTimeOrZero(updatedS)
		out = append(out, e)
	}
	return out, nil
}

// ResolveUser applique une décision de modération et la journalise dans
// moderation_flags. approved lève le masquage et remet le score de
// suspicion à zéro; shadow, banned et rejected masquent la ligne; pending
// remet la décision en file sans toucher au classement.
func (s *Store) ResolveUser(ctx context.Context, userHash, status, reason, admin string) error {
	status = strings.ToLower(strings.TrimSpace(status))
	nowS := nowRFC3339()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "begin moderation tx", err)
	}
	defer tx.Rollback()

	var stmt string
	switch status {
	case ModerationApproved:
		stmt = `UPDATE leaderboard_rks SET is_hidden = 0, suspicion_score = 0 WHERE user_hash = ?`
	case ModerationShadow, ModerationBanned, ModerationRejected:
		stmt = `UPDATE leaderboard_rks SET is_hidden = 1 WHERE user_hash = ?`
	case ModerationPending:
		stmt = ""
	default:
		return apperr.Newf(apperr.KindValidation, "unknown moderation status %q", status).
			WithField("status", "UNSUPPORTED", "must be one of pending, approved, rejected, shadow, banned")
	}

	if stmt == "" {
		var one int
		if err := tx.GetContext(ctx, &one,
			`SELECT 1 FROM leaderboard_rks WHERE user_hash = ?`, userHash); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.New(apperr.KindNotFound, "no leaderboard entry for user")
			}
			return apperr.Wrap(apperr.KindInternal, "check leaderboard entry", err)
		}
	} else {
		res, err := tx.ExecContext(ctx, stmt, userHash)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "apply moderation", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.New(apperr.KindNotFound, "no leaderboard entry for user")
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO moderation_flags (user_hash, status, reason, admin, created_at)
		 VALUES (?,?,?,?,?)`,
		userHash, status, nullable(reason), nullable(admin), nowS); err != nil {
		return apperr.Wrap(apperr.KindInternal, "record moderation flag", err)
	}
	return errWrap(tx.Commit(), "commit moderation tx")
}

// ModerationHistory retourne les décisions journalisées pour un joueur,
// la plus récente en tête.
func (s *Store) ModerationHistory(ctx context.Context, userHash string, limit int) ([]models.ModerationFlag, error) {
	if limit <= 0 || limit > maxTopLimit {
		limit = 20
	}
	rows, err := s.db.QueryxContext(ctx,
		`SELECT id, user_hash, status, COALESCE(reason,''), COALESCE(admin,''), created_at
		 FROM moderation_flags WHERE user_hash = ? ORDER BY id DESC LIMIT ?`,
		userHash, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "query moderation history", err)
	}
	defer rows.Close()

	out := []models.ModerationFlag{}
	for rows.Next() {
		var f models.ModerationFlag
		var createdS string
		if err := rows.Scan(&f.ID, &f.UserHash, &f.Status, &f.Reason, &f.Admin, &createdS); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan moderation flag", err)
		}
		f.CreatedAt = parseTimeOrZero(createdS)
		out = append(out, f)
	}
	return out, nil
}

// ForceAlias assigne un alias d'autorité, en le reprenant atomiquement à
// son détenteur précédent.
func (s *Store) ForceAlias(ctx context.Context, userHash, alias string) error {
	alias = strings.TrimSpace(alias)
	if err := ValidateAlias(alias); err != nil {
		return err
	}
	nowS := nowRFC3339()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "begin force-alias tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE user_profile SET alias = NULL, updated_at = ?
		 WHERE alias = ? COLLATE NOCASE AND user_hash <> ?`,
		nowS, alias, userHash); err != nil {
		return apperr.Wrap(apperr.KindInternal, "release alias", err)
	}

	if err := s.ensureProfileLocked(ctx, tx, userHash, "", nowS); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE user_profile SET alias = ?, updated_at = ? WHERE user_hash = ?`,
		alias, nowS, userHash); err != nil {
		return apperr.Wrap(apperr.KindInternal, "assign alias", err)
	}
	return errWrap(tx.Commit(), "commit force-alias tx")
}

func errWrap(err error, op string) error {
	if err == nil {
		return nil
	}
	return apperr.Wrap(apperr.KindInternal, op, err)
}
