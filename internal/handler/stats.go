package handler

import (
	"net/http"
	"time"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/stats"
	"github.com/Sczr0/Next-Phi-Backend/internal/utils"
)

// statsRange résout la fenêtre start/end/tz de la query string.
func statsRange(r *http.Request) (*stats.DateRange, error) {
	q := r.URL.Query()
	return app.Store.ResolveRange(q.Get("start"), q.Get("end"), q.Get("tz"))
}

// StatsSummary retourne les compteurs globaux du service.
func StatsSummary(w http.ResponseWriter, r *http.Request) {
	if err := requireStore(); err != nil {
		utils.Problem(w, r, err)
		return
	}
	summary, err := app.Store.QuerySummary(r.Context())
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	utils.Success(w, summary)
}

// StatsDaily agrège le trafic par jour local, filtrable par feature, route
// et méthode.
func StatsDaily(w http.ResponseWriter, r *http.Request) {
	if err := requireStore(); err != nil {
		utils.Problem(w, r, err)
		return
	}
	rng, err := statsRange(r)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	q := r.URL.Query()
	rows, err := app.Store.QueryDaily(r.Context(), rng, q.Get("feature"), q.Get("route"), q.Get("method"))
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	utils.Success(w, map[string]interface{}{"items": rows})
}

// StatsDailyDAU retourne les utilisateurs actifs par jour, jours vides
// inclus.
func StatsDailyDAU(w http.ResponseWriter, r *http.Request) {
	if err := requireStore(); err != nil {
		utils.Problem(w, r, err)
		return
	}
	rng, err := statsRange(r)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	rows, err := app.Store.QueryDailyDAU(r.Context(), rng)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	utils.Success(w, map[string]interface{}{"items": rows})
}

// StatsDailyFeatures ventile l'usage quotidien par feature.
func StatsDailyFeatures(w http.ResponseWriter, r *http.Request) {
	if err := requireStore(); err != nil {
		utils.Problem(w, r, err)
		return
	}
	rng, err := statsRange(r)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	rows, err := app.Store.QueryDailyFeatures(r.Context(), rng)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	utils.Success(w, map[string]interface{}{"items": rows})
}

// StatsDailyHTTP retourne volumes et taux d'erreur HTTP par jour.
func StatsDailyHTTP(w http.ResponseWriter, r *http.Request) {
	if err := requireStore(); err != nil {
		utils.Problem(w, r, err)
		return
	}
	rng, err := statsRange(r)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	rows, err := app.Store.QueryDailyHTTP(r.Context(), rng)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	utils.Success(w, map[string]interface{}{"items": rows})
}

// StatsLatency agrège les latences par seau jour, semaine ou mois, avec
// dimensions optionnelles.
func StatsLatency(w http.ResponseWriter, r *http.Request) {
	if err := requireStore(); err != nil {
		utils.Problem(w, r, err)
		return
	}
	rng, err := statsRange(r)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	q := r.URL.Query()
	rows, err := app.Store.QueryLatency(r.Context(), rng, q.Get("bucket"), stats.LatencyDims{
		ByRoute:   utils.QueryBool(r, "byRoute", false),
		ByMethod:  utils.QueryBool(r, "byMethod", false),
		ByFeature: utils.QueryBool(r, "byFeature", false),
	})
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	utils.Success(w, map[string]interface{}{"items": rows})
}

// StatsArchiveNow déclenche l'archivage Parquet d'un jour donné, la veille
// par défaut.
func StatsArchiveNow(w http.ResponseWriter, r *http.Request) {
	if err := requireStore(); err != nil {
		utils.Problem(w, r, err)
		return
	}
	if app.Archiver == nil {
		utils.Problem(w, r, apperr.New(apperr.KindNotFound, "archiving disabled"))
		return
	}

	loc := app.Store.Location()
	day := time.Now().In(loc).AddDate(0, 0, -1)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			utils.Problem(w, r, apperr.New(apperr.KindValidation, "invalid date").
				WithField("date", "INVALID_FORMAT", "expected YYYY-MM-DD"))
			return
		}
		day = parsed
	}

	path, count, err := app.Archiver.ArchiveDay(r.Context(), day)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	utils.Success(w, map[string]interface{}{
		"date":   day.Format("2006-01-02"),
		"events": count,
		"file":   path,
	})
}
