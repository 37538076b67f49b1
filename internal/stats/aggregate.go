package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
)

const maxQueryWindowDays = 370

// DateRange est une fenêtre de jours interprétée dans un fuseau donné.
type DateRange struct {
	Start time.Time
	End   time.Time
	Loc   *time.Location
}

// ResolveRange valide start/end (YYYY-MM-DD) et le fuseau demandé, avec
// repli sur le fuseau configuré du magasin.
func (s *Store) ResolveRange(startS, endS, tz string) (*DateRange, error) {
	loc := s.loc
	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, apperr.Newf(apperr.KindValidation, "unknown timezone %q", tz).
				WithField("tz", "INVALID_FORMAT", "must be an IANA timezone name")
		}
		loc = l
	}

	parse := func(v, field string) (time.Time, error) {
		t, err := time.ParseInLocation("2006-01-02", v, loc)
		if err != nil {
			return time.Time{}, apperr.Newf(apperr.KindValidation, "invalid date %q", v).
				WithField(field, "INVALID_FORMAT", "expected YYYY-MM-DD")
		}
		return t, nil
	}

	now := time.Now().In(loc)
	start := now.AddDate(0, 0, -6)
	end := now
	var err error
	if startS != "" {
		if start, err = parse(startS, "start"); err != nil {
			return nil, err
		}
	}
	if endS != "" {
		if end, err = parse(endS, "end"); err != nil {
			return nil, err
		}
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)

	if end.Before(start) {
		return nil, apperr.New(apperr.KindValidation, "end before start").
			WithField("end", "OUT_OF_RANGE", "end must not precede start")
	}
	if end.Sub(start) > maxQueryWindowDays*24*time.Hour {
		return nil, apperr.Newf(apperr.KindValidation, "window above %d days", maxQueryWindowDays).
			WithField("end", "OUT_OF_RANGE", "date window too wide")
	}
	return &DateRange{Start: start, End: end, Loc: loc}, nil
}

// boundsUTC retourne la fenêtre [start, end+1j) en RFC3339 UTC.
func (r *DateRange) boundsUTC() (string, string) {
	return r.Start.UTC().Format(time.RFC3339),
		r.End.AddDate(0, 0, 1).UTC().Format(time.RFC3339)
}

// tzModifier retourne le modificateur sqlite décalant ts_utc vers le
// fuseau de la fenêtre. L'offset est figé au début de fenêtre.
func (r *DateRange) tzModifier() string {
	_, offset := r.Start.Zone()
	return fmt.Sprintf("%+d minutes", offset/60)
}

// days énumère les jours de la fenêtre au format YYYY-MM-DD.
func (r *DateRange) days() []string {
	var out []string
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format("2006-01-02"))
	}
	return out
}

// DailyRow est une ligne d'agrégat journalier par route et méthode.
type DailyRow struct {
	Date     string `json:"date"`
	Feature  string `json:"feature,omitempty"`
	Route    string `json:"route,omitempty"`
	Method   string `json:"method,omitempty"`
	Count    int64  `json:"count"`
	ErrCount int64  `json:"errCount"`
}

// QueryDaily agrège les événements par (jour, feature, route, méthode).
func (s *Store) QueryDaily(ctx context.Context, r *DateRange, feature, route, method string) ([]DailyRow, error) {
	startS, endS := r.boundsUTC()
	query := `SELECT date(ts_utc, ?) AS day, COALESCE(feature, ''), COALESCE(route, ''), COALESCE(method, ''),
	                 COUNT(1), SUM(CASE WHEN status >= 400 THEN 1 ELSE 0 END)
	          FROM events WHERE ts_utc >= ? AND ts_utc < ?`
	args := []interface{}{r.tzModifier(), startS, endS}
	if feature != "" {
		query += ` AND feature = ?`
		args = append(args, feature)
	}
	if route != "" {
		query += ` AND route = ?`
		args = append(args, route)
	}
	if method != "" {
		query += ` AND method = ?`
		args = append(args, method)
	}
	query += ` GROUP BY day, feature, route, method ORDER BY day ASC`

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "query daily stats", err)
	}
	defer rows.Close()

	out := []DailyRow{}
	for rows.Next() {
		var row DailyRow
		if err := rows.Scan(&row.Date, &row.Feature, &row.Route, &row.Method,
			&row.Count, &row.ErrCount); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan daily row", err)
		}
		out = append(out, row)
	}
	return out, nil
}

// DAURow est le nombre d'utilisateurs distincts d'un jour.
type DAURow struct {
	Date string `json:"date"`
	DAU  int64  `json:"dau"`
}

// QueryDailyDAU compte les user_hash distincts par jour, jours manquants
// remplis à zéro.
func (s *Store) QueryDailyDAU(ctx context.Context, r *DateRange) ([]DAURow, error) {
	startS, endS := r.boundsUTC()
	rows, err := s.db.QueryxContext(ctx,
		`SELECT date(ts_utc, ?) AS day, COUNT(DISTINCT user_hash)
		 FROM events WHERE ts_utc >= ? AND ts_utc < ? AND user_hash IS NOT NULL
		 GROUP BY day ORDER BY day ASC`,
		r.tzModifier(), startS, endS)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "query dau", err)
	}
	defer rows.Close()

	byDay := map[string]int64{}
	for rows.Next() {
		var day string
		var n int64
		if err := rows.Scan(&day, &n); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan dau row", err)
		}
		byDay[day] = n
	}

	out := []DAURow{}
	for _, day := range r.days() {
		out = append(out, DAURow{Date: day, DAU: byDay[day]})
	}
	return out, nil
}

// FeatureRow est l'usage journalier d'une feature.
type FeatureRow struct {
	Date        string `json:"date"`
	Feature     string `json:"feature"`
	Count       int64  `json:"count"`
	UniqueUsers int64  `json:"uniqueUsers"`
}

// QueryDailyFeatures agrège les volumes et utilisateurs uniques par
// (jour, feature).
func (s *Store) QueryDailyFeatures(ctx context.Context, r *DateRange) ([]FeatureRow, error) {
	startS, endS := r.boundsUTC()
	rows, err := s.db.QueryxContext(ctx,
		`SELECT date(ts_utc, ?) AS day, COALESCE(feature, ''), COUNT(1), COUNT(DISTINCT user_hash)
		 FROM events WHERE ts_utc >= ? AND ts_utc < ? AND feature IS NOT NULL
		 GROUP BY day, feature ORDER BY day ASC, feature ASC`,
		r.tzModifier(), startS, endS)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "query features", err)
	}
	defer rows.Close()

	out := []FeatureRow{}
	for rows.Next() {
		var row FeatureRow
		if err := rows.Scan(&row.Date, &row.Feature, &row.Count, &row.UniqueUsers); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan feature row", err)
		}
		out = append(out, row)
	}
	return out, nil
}

// HTTPRow est le volume HTTP d'un jour avec son taux d'erreur.
type HTTPRow struct {
	Date     string  `json:"date"`
	Total    int64   `json:"total"`
	ErrCount int64   `json:"errCount"`
	ErrRate  float64 `json:"errRate"`
}

// QueryDailyHTTP agrège le trafic par jour, jours manquants à zéro.
func (s *Store) QueryDailyHTTP(ctx context.Context, r *DateRange) ([]HTTPRow, error) {
	startS, endS := r.boundsUTC()
	rows, err := s.db.QueryxContext(ctx,
		`SELECT date(ts_utc, ?) AS day, COUNT(1), SUM(CASE WHEN status >= 400 THEN 1 ELSE 0 END)
		 FROM events WHERE ts_utc >= ? AND ts_utc < ?
		 GROUP BY day ORDER BY day ASC`,
		r.tzModifier(), startS, endS)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "query daily http", err)
	}
	defer rows.Close()

	byDay := map[string]HTTPRow{}
	for rows.Next() {
		var row HTTPRow
		if err := rows.Scan(&row.Date, &row.Total, &row.ErrCount); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan http row", err)
		}
		byDay[row.Date] = row
	}

	out := []HTTPRow{}
	for _, day := range r.days() {
		row := byDay[day]
		row.Date = day
		if row.Total > 0 {
			row.ErrRate = float64(row.ErrCount) / float64(row.Total)
		}
		out = append(out, row)
	}
	return out, nil
}

// Granularités de bucket des latences.
const (
	BucketDay   = "day"
	BucketWeek  = "week"
	BucketMonth = "month"
)

// LatencyRow est un agrégat de latence par bucket et dimensions.
type LatencyRow struct {
	Bucket  string  `json:"bucket"`
	Route   string  `json:"route,omitempty"`
	Method  string  `json:"method,omitempty"`
	Feature string  `json:"feature,omitempty"`
	Count   int64   `json:"count"`
	MinMs   int64   `json:"minMs"`
	MaxMs   int64   `json:"maxMs"`
	AvgMs   float64 `json:"avgMs"`
}

// LatencyDims choisit les dimensions de regroupement de QueryLatency.
type LatencyDims struct {
	ByRoute   bool
	ByMethod  bool
	ByFeature bool
}

// QueryLatency agrège count/min/max/avg de duration_ms par bucket
// temporel, regroupé selon les dimensions demandées.
func (s *Store) QueryLatency(ctx context.Context, r *DateRange, bucket string, dims LatencyDims) ([]LatencyRow, error) {
	var bucketExpr string
	mod := r.tzModifier()
	switch bucket {
	case "", BucketDay:
		bucketExpr = `date(ts_utc, ?)`
	case BucketWeek:
		// Lundi de la semaine du jour local.
		bucketExpr = `date(ts_utc, ?, '-6 days', 'weekday 1')`
	case BucketMonth:
		bucketExpr = `strftime('%Y-%m-01', ts_utc, ?)`
	default:
		return nil, apperr.Newf(apperr.KindValidation, "unknown bucket %q", bucket).
			WithField("bucket", "UNSUPPORTED", "must be one of day, week, month")
	}

	sel := []string{bucketExpr + " AS bucket"}
	group := []string{"bucket"}
	if dims.ByRoute {
		sel = append(sel, "COALESCE(route, '')")
		group = append(group, "route")
	}
	if dims.ByMethod {
		sel = append(sel, "COALESCE(method, '')")
		group = append(group, "method")
	}
	if dims.ByFeature {
		sel = append(sel, "COALESCE(feature, '')")
		group = append(group, "feature")
	}
	sel = append(sel,
		"COUNT(1)", "MIN(duration_ms)", "MAX(duration_ms)", "AVG(duration_ms)")

	startS, endS := r.boundsUTC()
	query := `SELECT ` + strings.Join(sel, ", ") +
		` FROM events WHERE ts_utc >= ? AND ts_utc < ? AND duration_ms IS NOT NULL
		  GROUP BY ` + strings.Join(group, ", ") + ` ORDER BY bucket ASC`

	rows, err := s.db.QueryxContext(ctx, query, mod, startS, endS)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "query latency", err)
	}
	defer rows.Close()

	out := []LatencyRow{}
	for rows.Next() {
		var row LatencyRow
		dest := []interface{}{&row.Bucket}
		if dims.ByRoute {
			dest = append(dest, &row.Route)
		}
		if dims.ByMethod {
			dest = append(dest, &row.Method)
		}
		if dims.ByFeature {
			dest = append(dest, &row.Feature)
		}
		dest = append(dest, &row.Count, &row.MinMs, &row.MaxMs, &row.AvgMs)
		if err := rows.Scan(dest...); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan latency row", err)
		}
		out = append(out, row)
	}
	return out, nil
}

// Summary est la vue d'ensemble de /stats/summary.
type Summary struct {
	TotalEvents      int64      `json:"totalEvents"`
	EventsToday      int64      `json:"eventsToday"`
	DAUToday         int64      `json:"dauToday"`
	LeaderboardUsers int64      `json:"leaderboardUsers"`
	TopRoutes        []RouteUse `json:"topRoutes"`
}

// RouteUse est le volume d'une route dans le résumé.
type RouteUse struct {
	Route string `json:"route"`
	Count int64  `json:"count"`
}

// QuerySummary assemble la vue d'ensemble depuis les événements du jour
// courant (depuis minuit dans le fuseau du magasin) plus les totaux.
func (s *Store) QuerySummary(ctx context.Context) (*Summary, error) {
	out := &Summary{TopRoutes: []RouteUse{}}
	if err := s.db.GetContext(ctx, &out.TotalEvents,
		`SELECT COUNT(1) FROM events`); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "count events", err)
	}

	dayStart := time.Now().In(s.loc)
	dayStart = time.Date(dayStart.Year(), dayStart.Month(), dayStart.Day(), 0, 0, 0, 0, s.loc)
	sinceS := dayStart.UTC().Format(time.RFC3339)

	if err := s.db.GetContext(ctx, &out.EventsToday,
		`SELECT COUNT(1) FROM events WHERE ts_utc >= ?`, sinceS); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "count today", err)
	}
	if err := s.db.GetContext(ctx, &out.DAUToday,
		`SELECT COUNT(DISTINCT user_hash) FROM events WHERE ts_utc >= ? AND user_hash IS NOT NULL`,
		sinceS); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "count dau today", err)
	}
	if err := s.db.GetContext(ctx, &out.LeaderboardUsers,
		`SELECT COUNT(1) FROM leaderboard_rks`); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "count leaderboard users", err)
	}

	rows, err := s.db.QueryxContext(ctx,
		`SELECT COALESCE(route, ''), COUNT(1) AS n FROM events WHERE ts_utc >= ?
		 GROUP BY route ORDER BY n DESC LIMIT 10`, sinceS)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "top routes", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r RouteUse
		if err := rows.Scan(&r.Route, &r.Count); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "scan top route", err)
		}
		out.TopRoutes = append(out.TopRoutes, r)
	}
	return out, nil
}
