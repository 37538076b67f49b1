package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
)

// Context keys
type contextKey string

const (
	requestIDContextKey = contextKey("requestId")
	userHashContextKey  = contextKey("userHash")
)

// userHashSlot permet aux handlers de remonter le hash utilisateur vers
// le middleware de télémétrie, qui écrit l'événement après la réponse.
type userHashSlot struct{ value string }

// WithUserHashSlot prépare le réceptacle du hash utilisateur.
func WithUserHashSlot(ctx context.Context) context.Context {
	return context.WithValue(ctx, userHashContextKey, &userHashSlot{})
}

// SetUserHash renseigne le hash utilisateur de la requête courante.
func SetUserHash(ctx context.Context, h string) {
	if slot, ok := ctx.Value(userHashContextKey).(*userHashSlot); ok {
		slot.value = h
	}
}

// UserHashFromContext récupère le hash posé par le handler (vide sinon).
func UserHashFromContext(ctx context.Context) string {
	if slot, ok := ctx.Value(userHashContextKey).(*userHashSlot); ok {
		return slot.value
	}
	return ""
}

// WithRequestID attache l'identifiant de requête au contexte.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// RequestIDFromContext récupère l'identifiant de requête (vide si absent).
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// DecodeJSON décode le corps JSON de la requête dans dest.
func DecodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dest); err != nil {
		return apperr.Wrap(apperr.KindValidation, "invalid JSON body", err)
	}
	return nil
}

// QueryInt lit un paramètre entier avec valeur par défaut.
func QueryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Newf(apperr.KindValidation, "invalid %s", name).
			WithField(name, "NOT_A_NUMBER", "must be an integer")
	}
	return v, nil
}

// QueryBool lit un paramètre booléen avec valeur par défaut.
func QueryBool(r *http.Request, name string, def bool) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	return raw == "true" || raw == "1"
}

// QueryFloat lit un paramètre flottant avec valeur par défaut.
func QueryFloat(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperr.Newf(apperr.KindValidation, "invalid %s", name).
			WithField(name, "NOT_A_NUMBER", "must be a number")
	}
	return v, nil
}
