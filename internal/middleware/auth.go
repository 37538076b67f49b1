package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/utils"
)

const adminTokenHeader = "X-Admin-Token"

// AdminAuth protège les routes d'administration: le jeton X-Admin-Token
// doit correspondre à l'un des jetons configurés, comparé en temps
// constant.
func AdminAuth(tokens []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(adminTokenHeader)
			if provided == "" || len(tokens) == 0 {
				utils.Problem(w, r, apperr.New(apperr.KindAuth, "missing admin token"))
				return
			}
			ok := false
			for _, t := range tokens {
				if subtle.ConstantTimeCompare([]byte(provided), []byte(t)) == 1 {
					ok = true
				}
			}
			if !ok {
				utils.Problem(w, r, apperr.New(apperr.KindAuth, "invalid admin token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
