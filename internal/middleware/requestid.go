package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Sczr0/Next-Phi-Backend/internal/utils"
)

const requestIDHeader = "X-Request-Id"

// RequestID attache un identifiant à chaque requête: celui du client s'il
// en fournit un, sinon un UUID neuf, toujours renvoyé en en-tête.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := utils.WithRequestID(r.Context(), id)
		ctx = utils.WithUserHashSlot(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
