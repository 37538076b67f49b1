package stats

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
)

// SubmissionInput décrit une soumission de sauvegarde réussie à verser au
// classement.
type SubmissionInput struct {
	UserHash        string
	TotalRks        float64
	UserKind        string
	Route           string
	ClientIPHash    string
	AccOutOfRange   bool
	ChartCount      int
	APCount         int
	BestK           int
	PlausibleMaxRks float64
	OfficialToken   bool
	Best            []models.BestRecord
	AP              []models.BestRecord
	Composition     []models.BestRecord
}

// SubmissionOutcome résume l'effet d'une soumission sur le classement.
type SubmissionOutcome struct {
	Suspicion float64
	Hidden    bool
	RksJump   float64
}

// SubmitRks exécute le chemin d'écriture du classement: score de
// suspicion, trace de soumission, upsert monotone de l'entrée et des
// détails textuels, le tout dans une transaction.
func (s *Store) SubmitRks(ctx context.Context, in SubmissionInput) (*SubmissionOutcome, error) {
	now := time.Now().UTC()
	nowS := now.Format(time.RFC3339)

	var prevRks float64
	var prevUpdated time.Time
	hasPrev := false
	row := s.db.QueryRowxContext(ctx,
		`SELECT total_rks, updated_at FROM leaderboard_rks WHERE user_hash = ?`, in.UserHash)
	var updatedS string
	if err := row.Scan(&prevRks, &updatedS); err == nil {
		hasPrev = true
		prevUpdated, _ = time.Parse(time.RFC3339, updatedS)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.KindInternal, "read previous rks", err)
	}

	var subsLastMinute int
	if err := s.db.GetContext(ctx, &subsLastMinute,
		`SELECT COUNT(1) FROM save_submissions WHERE user_hash = ? AND created_at >= ?`,
		in.UserHash, now.Add(-time.Minute).Format(time.RFC3339)); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "count recent submissions", err)
	}

	var distinctIPs int
	if err := s.db.GetContext(ctx, &distinctIPs,
		`SELECT COUNT(DISTINCT client_ip_hash) FROM save_submissions
		 WHERE user_hash = ? AND created_at >= ? AND client_ip_hash IS NOT NULL`,
		in.UserHash, now.Add(-jumpWindow).Format(time.RFC3339)); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "count submission ips", err)
	}
	if in.ClientIPHash != "" {
		distinctIPs++
	}

	topDecile, err := s.topDecileRks(ctx)
	if err != nil {
		return nil, err
	}

	score, hide := scoreSuspicion(suspicionSignals{
		TotalRks:        in.TotalRks,
		PrevRks:         prevRks,
		PrevUpdatedAt:   prevUpdated,
		HasPrev:         hasPrev,
		Now:             now,
		AccOutOfRange:   in.AccOutOfRange,
		PlausibleMaxRks: in.PlausibleMaxRks,
		ChartCount:      in.ChartCount,
		APCount:         in.APCount,
		BestK:           in.BestK,
		SubsLastMinute:  subsLastMinute + 1,
		DistinctIPs10m:  distinctIPs,
		TopDecileRks:    topDecile,
		OfficialToken:   in.OfficialToken,
	}, s.lb.ShadowThreshold)

	jump := in.TotalRks - prevRks
	if jump < 0 {
		jump = -jump
	}
	if !hasPrev {
		jump = 0
	}

	detailsJSON, _ := json.Marshal(map[string]interface{}{
		"chartCount": in.ChartCount,
		"apCount":    in.APCount,
	})
	compJSON := marshalRecords(in.Composition)
	bestJSON := marshalRecords(in.Best)
	apJSON := marshalRecords(in.AP)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "begin leaderboard tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO save_submissions
		 (user_hash, total_rks, rks_jump, route, client_ip_hash, details_json, suspicion_score, created_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		in.UserHash, in.TotalRks, jump, in.Route, nullable(in.ClientIPHash),
		string(detailsJSON), score, nowS); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "insert submission", err)
	}

	hiddenI := 0
	if hide {
		hiddenI = 1
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO leaderboard_rks
		 (user_hash, total_rks, user_kind, suspicion_score, is_hidden, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?)
		 ON CONFLICT(user_hash) DO UPDATE SET
		   total_rks = CASE WHEN excluded.total_rks > leaderboard_rks.total_rks
		               THEN excluded.total_rks ELSE leaderboard_rks.total_rks END,
		   updated_at = CASE WHEN excluded.total_rks > leaderboard_rks.total_rks
		                THEN excluded.updated_at ELSE leaderboard_rks.updated_at END,
		   user_kind = COALESCE(excluded.user_kind, leaderboard_rks.user_kind),
		   suspicion_score = excluded.suspicion_score,
		   is_hidden = CASE WHEN leaderboard_rks.is_hidden=1 OR excluded.is_hidden=1 THEN 1 ELSE 0 END`,
		in.UserHash, in.TotalRks, nullable(in.UserKind), score, hiddenI, nowS, nowS); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "upsert leaderboard entry", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO leaderboard_details
		 (user_hash, rks_composition_json, best_top3_json, ap_top3_json, updated_at)
		 VALUES (?,?,?,?,?)
		 ON CONFLICT(user_hash) DO UPDATE SET
		   rks_composition_json = COALESCE(excluded.rks_composition_json, leaderboard_details.rks_composition_json),
		   best_top3_json = COALESCE(excluded.best_top3_json, leaderboard_details.best_top3_json),
		   ap_top3_json = COALESCE(excluded.ap_top3_json, leaderboard_details.ap_top3_json),
		   updated_at = excluded.updated_at`,
		in.UserHash, compJSON, bestJSON, apJSON, nowS); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "upsert leaderboard details", err)
	}

	if err := s.ensureProfileLocked(ctx, tx, in.UserHash, in.UserKind, nowS); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "commit leaderboard tx", err)
	}
	return &SubmissionOutcome{Suspicion: score, Hidden: hide, RksJump: jump}, nil
}

func marshalRecords(records []models.BestRecord) interface{} {
	if len(records) == 0 {
		return nil
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return nil
	}
	return string(raw)
}

// topDecileRks retourne le total_rks du premier décile visible, 0 si le
// classement est trop petit pour être significatif.
func (s *Store) topDecileRks(ctx context.Context) (float64, error) {
	var total int
	if err := s.db.GetContext(ctx, &total,
		`SELECT COUNT(1) FROM leaderboard_rks WHERE is_hidden = 0`); err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "count leaderboard", err)
	}
	if total < 10 {
		return 0, nil
	}
	offset := total / 10
	var rks float64
	err := s.db.GetContext(ctx, &rks,
		`SELECT total_rks FROM leaderboard_rks WHERE is_hidden = 0
		 ORDER BY total_rks DESC LIMIT 1 OFFSET ?`, offset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "top decile rks", err)
	}
	return rks, nil
}

// RksHistory retourne l'historique paginé des soumissions d'un joueur.
type RksHistory struct {
	Items      []RksHistoryItem `json:"items"`
	Total      int64            `json:"total"`
	CurrentRks float64          `json:"currentRks"`
	PeakRks    float64          `json:"peakRks"`
}

// RksHistoryItem est une ligne de l'historique RKS.
type RksHistoryItem struct {
	Rks       float64 `json:"rks"`
	RksJump   float64 `json:"rksJump"`
	CreatedAt string  `json:"createdAt"`
}

// QueryRksHistory retourne l'historique (ordre antéchronologique), le
// RKS courant et le pic historique.
func (s *Store) QueryRksHistory(ctx context.Context, userHash string, limit, offset int64) (*RksHistory, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	out := &RksHistory{Items: []RksHistoryItem{}}
	if err := s.db.GetContext(ctx, &out.Total,
		`SELECT COUNT(1) FROM save_submissions WHERE user_hash = ?`, userHash); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "count rks history", err)
	}

	rows, err := s.db.QueryxContext(ctx,
		`SELECT total_rks, COALESCE(rks_jump, 0), created_at FROM save_submissions
		 WHERE user_hash = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		userHash, limit, offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "query rks history", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it RksHistoryItem
		if err := rows.Scan(&it.Rks, &it.RksJump, &it.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan rks history", err)
		}
		out.Items = append(out.Items, it)
	}

	if err := s.db.GetContext(ctx, &out.CurrentRks,
		`SELECT COALESCE(total_rks, 0) FROM leaderboard_rks WHERE user_hash = ?`,
		userHash); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.KindInternal, "current rks", err)
	}
	if err := s.db.GetContext(ctx, &out.PeakRks,
		`SELECT COALESCE(MAX(total_rks), 0) FROM save_submissions WHERE user_hash = ?`,
		userHash); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "peak rks", err)
	}
	return out, nil
}
