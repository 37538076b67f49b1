package middleware

import (
	"net/http"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/logger"
	"github.com/Sczr0/Next-Phi-Backend/internal/utils"
)

// Recover convertit une panique de handler en réponse 500 au lieu de
// faire tomber le processus.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panique sur %s %s: %v", r.Method, r.URL.Path, rec)
				utils.Problem(w, r, apperr.Newf(apperr.KindInternal, "panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
