package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/config"
	"github.com/Sczr0/Next-Phi-Backend/internal/handler"
	"github.com/Sczr0/Next-Phi-Backend/internal/logger"
	"github.com/Sczr0/Next-Phi-Backend/internal/middleware"
	"github.com/Sczr0/Next-Phi-Backend/internal/stats"
	"github.com/Sczr0/Next-Phi-Backend/internal/utils"
)

// SetupRouter monte toutes les routes sous le préfixe d'API configuré.
// /health et la racine restent hors préfixe.
func SetupRouter(cfg *config.Config, recorder *stats.Recorder) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Recover)
	r.Use(middleware.CORS)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(recorder, cfg.Stats.UserHashSalt))

	// Root - API documentation
	r.HandleFunc("/", handler.RootHandler).Methods(http.MethodGet)
	r.HandleFunc("/docs", handler.Docs).Methods(http.MethodGet)
	r.HandleFunc("/api-docs/openapi.json", handler.OpenAPISpec).Methods(http.MethodGet)
	r.HandleFunc("/health", handler.HealthCheck).Methods(http.MethodGet)

	prefix := cfg.API.Prefix
	if prefix == "" {
		prefix = "/api/v2"
	}
	apiRoutes := r.PathPrefix(prefix).Subrouter()

	// Auth
	apiRoutes.HandleFunc("/auth/qrcode", handler.CreateQRCode).Methods(http.MethodPost)
	apiRoutes.HandleFunc("/auth/qrcode/{qrId}/status", handler.QRCodeStatus).Methods(http.MethodGet)
	apiRoutes.HandleFunc("/auth/user-id", handler.UserID).Methods(http.MethodPost)

	// Save
	apiRoutes.HandleFunc("/save", handler.Save).Methods(http.MethodPost)

	// RKS
	apiRoutes.HandleFunc("/rks/history", handler.RksHistory).Methods(http.MethodPost)

	// Images
	apiRoutes.HandleFunc("/image/bn", handler.ImageBN).Methods(http.MethodPost)
	apiRoutes.HandleFunc("/image/song", handler.ImageSong).Methods(http.MethodPost)
	apiRoutes.HandleFunc("/image/bn/user", handler.ImageBNUser).Methods(http.MethodPost)

	// Songs
	apiRoutes.HandleFunc("/songs/search", handler.SearchSongs).Methods(http.MethodGet)

	// Leaderboard
	apiRoutes.HandleFunc("/leaderboard/rks/top", handler.LeaderboardTop).Methods(http.MethodGet)
	apiRoutes.HandleFunc("/leaderboard/rks/by-rank", handler.LeaderboardByRank).Methods(http.MethodGet)
	apiRoutes.HandleFunc("/leaderboard/rks/me", handler.LeaderboardMe).Methods(http.MethodPost)
	apiRoutes.HandleFunc("/leaderboard/alias", handler.PutAlias).Methods(http.MethodPut)
	apiRoutes.HandleFunc("/leaderboard/profile", handler.PutProfile).Methods(http.MethodPut)
	apiRoutes.HandleFunc("/public/profile/{alias}", handler.PublicProfile).Methods(http.MethodGet)

	// Stats
	apiRoutes.HandleFunc("/stats/summary", handler.StatsSummary).Methods(http.MethodGet)
	apiRoutes.HandleFunc("/stats/daily", handler.StatsDaily).Methods(http.MethodGet)
	apiRoutes.HandleFunc("/stats/daily/dau", handler.StatsDailyDAU).Methods(http.MethodGet)
	apiRoutes.HandleFunc("/stats/daily/features", handler.StatsDailyFeatures).Methods(http.MethodGet)
	apiRoutes.HandleFunc("/stats/daily/http", handler.StatsDailyHTTP).Methods(http.MethodGet)
	apiRoutes.HandleFunc("/stats/latency", handler.StatsLatency).Methods(http.MethodGet)
	apiRoutes.Handle("/stats/archive/now",
		middleware.AdminAuth(cfg.Leaderboard.AdminTokens)(http.HandlerFunc(handler.StatsArchiveNow))).
		Methods(http.MethodPost)

	// Admin
	adminRoutes := apiRoutes.PathPrefix("/admin").Subrouter()
	adminRoutes.Use(middleware.AdminAuth(cfg.Leaderboard.AdminTokens))
	adminRoutes.HandleFunc("/leaderboard/suspicious", handler.AdminSuspicious).Methods(http.MethodGet)
	adminRoutes.HandleFunc("/leaderboard/resolve", handler.AdminResolve).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/leaderboard/alias/force", handler.AdminForceAlias).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Warning("404 Not Found: %s %s", r.Method, r.URL.Path)
		utils.Problem(w, r, apperr.Newf(apperr.KindNotFound, "no route for %s %s", r.Method, r.URL.Path))
	})

	return r
}
