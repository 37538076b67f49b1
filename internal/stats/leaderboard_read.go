package stats

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
)

const (
	maxTopLimit     = 200
	maxTopLimitLite = 1000
)

// TopQuery paramètre la lecture du haut du classement. Les curseurs after*
// reprennent les valeurs nextAfter* de la page précédente; AfterUser étant
// masqué, la reprise à score et date égaux compare le préfixe du hash.
type TopQuery struct {
	Limit        int
	Offset       int
	Lite         bool
	AfterScore   *float64
	AfterUpdated string
	AfterUser    string
}

// TopItem est une ligne de la page du classement.
type TopItem struct {
	Rank      int                  `json:"rank"`
	UserHash  string               `json:"userHash"`
	Alias     string               `json:"alias,omitempty"`
	Rks       float64              `json:"rks"`
	UpdatedAt string               `json:"updatedAt"`
	BestTop3  []models.BestRecord  `json:"bestTop3,omitempty"`
	APTop3    []models.BestRecord  `json:"apTop3,omitempty"`
}

// TopPage est la réponse paginée du classement, avec curseurs masqués.
type TopPage struct {
	Items            []TopItem `json:"items"`
	Total            int64     `json:"total"`
	NextAfterScore   *float64  `json:"nextAfterScore,omitempty"`
	NextAfterUpdated string    `json:"nextAfterUpdated,omitempty"`
	NextAfterUser    string    `json:"nextAfterUser,omitempty"`
}

// maskUserHash tronque un identifiant pour les curseurs et vues publiques.
func maskUserHash(h string) string {
	if len(h) <= 6 {
		return h + "****"
	}
	return h[:6] + "****"
}

// unmaskCursor retire le suffixe de masquage d'un curseur client.
func unmaskCursor(c string) string {
	return strings.TrimSuffix(c, "****")
}

// visibleWhere est le prédicat des lignes qui apparaissent publiquement.
const visibleWhere = `lb.is_hidden = 0 AND p.is_public = 1`

// QueryTop lit une page du classement, ordonnée par
// (total_rks DESC, updated_at ASC, user_hash ASC).
func (s *Store) QueryTop(ctx context.Context, q TopQuery) (*TopPage, error) {
	maxLimit := maxTopLimit
	if q.Lite {
		maxLimit = maxTopLimitLite
	}
	if q.Limit <= 0 {
		q.Limit = 20
	} else if q.Limit > maxLimit {
		return nil, apperr.Newf(apperr.KindValidation, "limit above maximum %d", maxLimit).
			WithField("limit", "OUT_OF_RANGE", "limit exceeds maximum")
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	page := &TopPage{Items: []TopItem{}}
	if err := s.db.GetContext(ctx, &page.Total,
		`SELECT COUNT(1) FROM leaderboard_rks lb
		 JOIN user_profile p ON p.user_hash = lb.user_hash
		 WHERE `+visibleWhere); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "count leaderboard", err)
	}

	base := `SELECT lb.user_hash, lb.total_rks, lb.updated_at, COALESCE(p.alias, ''),
	                d.best_top3_json, d.ap_top3_json
	         FROM leaderboard_rks lb
	         JOIN user_profile p ON p.user_hash = lb.user_hash
	         LEFT JOIN leaderboard_details d ON d.user_hash = lb.user_hash
	         WHERE ` + visibleWhere
	args := []interface{}{}

	seek := q.AfterScore != nil
	if seek {
		base += ` AND (lb.total_rks < ?
		          OR (lb.total_rks = ? AND lb.updated_at > ?)
		          OR (lb.total_rks = ? AND lb.updated_at = ? AND substr(lb.user_hash, 1, ?) > ?))`
		afterUser := unmaskCursor(q.AfterUser)
		args = append(args, *q.AfterScore, *q.AfterScore, q.AfterUpdated,
			*q.AfterScore, q.AfterUpdated, len(afterUser), afterUser)
	}
	base += ` ORDER BY lb.total_rks DESC, lb.updated_at ASC, lb.user_hash ASC LIMIT ?`
	args = append(args, q.Limit)
	if !seek {
		base += ` OFFSET ?`
		args = append(args, q.Offset)
	}

	rows, err := s.db.QueryxContext(ctx, base, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "query leaderboard top", err)
	}
	defer rows.Close()

	startRank := q.Offset + 1
	for rows.Next() {
		var it TopItem
		var bestJSON, apJSON sql.NullString
		if err := rows.Scan(&it.UserHash, &it.Rks, &it.UpdatedAt, &it.Alias,
			&bestJSON, &apJSON); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan leaderboard row", err)
		}
		if !q.Lite {
			it.BestTop3 = unmarshalRecords(bestJSON)
			it.APTop3 = unmarshalRecords(apJSON)
		}
		page.Items = append(page.Items, it)
	}

	if seek && len(page.Items) > 0 {
		rank, err := s.rankOf(ctx, page.Items[0].Rks, page.Items[0].UpdatedAt, page.Items[0].UserHash)
		if err != nil {
			return nil, err
		}
		startRank = rank
	}
	for i := range page.Items {
		page.Items[i].Rank = startRank + i
	}

	if len(page.Items) == q.Limit {
		last := page.Items[len(page.Items)-1]
		score := last.Rks
		page.NextAfterScore = &score
		page.NextAfterUpdated = last.UpdatedAt
		page.NextAfterUser = maskUserHash(last.UserHash)
	}

	for i := range page.Items {
		page.Items[i].UserHash = maskUserHash(page.Items[i].UserHash)
	}
	return page, nil
}

// rankOf calcule la position stable d'une ligne dans l'ordre du classement.
func (s *Store) rankOf(ctx context.Context, rks float64, updatedAt, userHash string) (int, error) {
	var before int
	err := s.db.GetContext(ctx, &before,
		`SELECT COUNT(1) FROM leaderboard_rks lb
		 JOIN user_profile p ON p.user_hash = lb.user_hash
		 WHERE `+visibleWhere+` AND (lb.total_rks > ?
		    OR (lb.total_rks = ? AND lb.updated_at < ?)
		    OR (lb.total_rks = ? AND lb.updated_at = ? AND lb.user_hash < ?))`,
		rks, rks, updatedAt, rks, updatedAt, userHash)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "rank of row", err)
	}
	return before + 1, nil
}

// QueryByRank retourne la tranche [startRank, endRank] du classement.
func (s *Store) QueryByRank(ctx context.Context, startRank, endRank int) (*TopPage, error) {
	if startRank <= 0 {
		startRank = 1
	}
	if endRank < startRank {
		return nil, apperr.New(apperr.KindValidation, "endRank below startRank").
			WithField("endRank", "OUT_OF_RANGE", "must be >= startRank")
	}
	if endRank-startRank+1 > maxTopLimit {
		return nil, apperr.Newf(apperr.KindValidation, "range above maximum %d", maxTopLimit).
			WithField("endRank", "OUT_OF_RANGE", "range too wide")
	}
	return s.QueryTop(ctx, TopQuery{Limit: endRank - startRank + 1, Offset: startRank - 1})
}

// MeResult est la position compétitive du joueur appelant.
type MeResult struct {
	UserHash   string  `json:"userHash"`
	Alias      string  `json:"alias,omitempty"`
	Rks        float64 `json:"rks"`
	Rank       int64   `json:"rank"`
	Total      int64   `json:"total"`
	Percentile float64 `json:"percentile"`
	IsHidden   bool    `json:"isHidden"`
	UpdatedAt  string  `json:"updatedAt"`
}

// QueryMe retourne le rang compétitif du joueur:
// rank = 1 + nombre de lignes au score strictement supérieur.
func (s *Store) QueryMe(ctx context.Context, userHash string) (*MeResult, error) {
	out := &MeResult{UserHash: maskUserHash(userHash)}
	var hidden int
	row := s.db.QueryRowxContext(ctx,
		`SELECT lb.total_rks, lb.is_hidden, lb.updated_at, COALESCE(p.alias, '')
		 FROM leaderboard_rks lb
		 LEFT JOIN user_profile p ON p.user_hash = lb.user_hash
		 WHERE lb.user_hash = ?`, userHash)
	if err := row.Scan(&out.Rks, &hidden, &out.UpdatedAt, &out.Alias); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "no leaderboard entry for user")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "read own entry", err)
	}
	out.IsHidden = hidden == 1

	var greater int64
	if err := s.db.GetContext(ctx, &greater,
		`SELECT COUNT(1) FROM leaderboard_rks WHERE is_hidden = 0 AND total_rks > ?`,
		out.Rks); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "competitive rank", err)
	}
	if err := s.db.GetContext(ctx, &out.Total,
		`SELECT COUNT(1) FROM leaderboard_rks WHERE is_hidden = 0`); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "leaderboard size", err)
	}

	out.Rank = greater + 1
	if out.Total > 0 {
		out.Percentile = 100 * (1 - float64(out.Rank-1)/float64(out.Total))
	}
	return out, nil
}

// PublicProfile est la vue publique d'un joueur, filtrée par ses réglages
// de visibilité.
type PublicProfile struct {
	Alias          string              `json:"alias"`
	Rks            float64             `json:"rks"`
	Rank           int64               `json:"rank"`
	UpdatedAt      string              `json:"updatedAt"`
	RksComposition []models.BestRecord `json:"rksComposition,omitempty"`
	BestTop3       []models.BestRecord `json:"bestTop3,omitempty"`
	APTop3         []models.BestRecord `json:"apTop3,omitempty"`
}

// QueryPublicProfile retourne le profil public d'un alias, 404 si le
// profil est privé, masqué ou inconnu.
func (s *Store) QueryPublicProfile(ctx context.Context, alias string) (*PublicProfile, error) {
	row := s.db.QueryRowxContext(ctx,
		`SELECT p.user_hash, COALESCE(p.alias, ''), p.show_rks_composition, p.show_best_top3, p.show_ap_top3,
		        lb.total_rks, lb.updated_at
		 FROM user_profile p
		 JOIN leaderboard_rks lb ON lb.user_hash = p.user_hash
		 WHERE p.alias = ? COLLATE NOCASE AND p.is_public = 1 AND lb.is_hidden = 0`, alias)

	var userHash string
	var showComp, showBest, showAP int
	out := &PublicProfile{Alias: alias}
	if err := row.Scan(&userHash, &out.Alias, &showComp, &showBest, &showAP,
		&out.Rks, &out.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "public profile not found")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "read public profile", err)
	}

	var greater int64
	if err := s.db.GetContext(ctx, &greater,
		`SELECT COUNT(1) FROM leaderboard_rks WHERE is_hidden = 0 AND total_rks > ?`,
		out.Rks); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "public profile rank", err)
	}
	out.Rank = greater + 1

	if showComp == 1 || showBest == 1 || showAP == 1 {
		var compJSON, bestJSON, apJSON sql.NullString
		err := s.db.QueryRowxContext(ctx,
			`SELECT rks_composition_json, best_top3_json, ap_top3_json
			 FROM leaderboard_details WHERE user_hash = ?`, userHash).
			Scan(&compJSON, &bestJSON, &apJSON)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.Wrap(apperr.KindInternal, "read profile details", err)
		}
		if showComp == 1 {
			out.RksComposition = unmarshalRecords(compJSON)
		}
		if showBest == 1 {
			out.BestTop3 = unmarshalRecords(bestJSON)
		}
		if showAP == 1 {
			out.APTop3 = unmarshalRecords(apJSON)
		}
	}
	return out, nil
}

func unmarshalRecords(raw sql.NullString) []models.BestRecord {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var out []models.BestRecord
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil
	}
	return out
}

// nowRFC3339 retourne l'horodatage UTC courant au format des colonnes.
func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func parseTimeOrZero(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
