package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/Sczr0/Next-Phi-Backend/internal/identity"
	"github.com/Sczr0/Next-Phi-Backend/internal/logger"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
	"github.com/Sczr0/Next-Phi-Backend/internal/stats"
	"github.com/Sczr0/Next-Phi-Backend/internal/utils"
)

// responseWriter wrapper pour capturer le status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// featureOf classe une route dans sa feature de télémétrie.
func featureOf(route string) string {
	switch {
	case strings.Contains(route, "/auth/"):
		return "auth"
	case strings.HasSuffix(route, "/save"):
		return "save"
	case strings.Contains(route, "/leaderboard") || strings.Contains(route, "/public/profile"):
		return "leaderboard"
	case strings.Contains(route, "/rks/"):
		return "rks"
	case strings.Contains(route, "/image/"):
		return "image_render"
	case strings.Contains(route, "/songs/"):
		return "song"
	case strings.Contains(route, "/stats/"):
		return "stats"
	case strings.Contains(route, "/admin/"):
		return "admin"
	}
	return "other"
}

// clientIP extrait l'adresse du client, X-Forwarded-For en tête.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Logger journalise chaque requête et pousse l'événement de télémétrie
// vers le recorder (non bloquant, abandonné si la file est pleine).
func Logger(recorder *stats.Recorder, userHashSalt string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			logger.Request(r.Method, r.URL.Path, wrapped.statusCode, duration)

			if recorder == nil {
				return
			}
			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}

			var ipHash string
			if userHashSalt != "" {
				if h, err := identity.Hash(userHashSalt, clientIP(r)); err == nil {
					ipHash = h
				}
			}

			recorder.Record(models.Event{
				OccurredAt:   start,
				Route:        route,
				Feature:      featureOf(route),
				Method:       r.Method,
				Status:       wrapped.statusCode,
				DurationMs:   duration.Milliseconds(),
				UserHash:     utils.UserHashFromContext(r.Context()),
				ClientIPHash: ipHash,
				RequestID:    utils.RequestIDFromContext(r.Context()),
			})
		})
	}
}
