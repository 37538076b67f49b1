package utils

import (
	"encoding/json"
	"net/http"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/logger"
)

// ProblemDetails est l'enveloppe RFC7807 renvoyée pour toute réponse non-2xx.
type ProblemDetails struct {
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Status    int                    `json:"status"`
	Code      string                 `json:"code"`
	Detail    string                 `json:"detail,omitempty"`
	RequestID string                 `json:"requestId,omitempty"`
	Errors    []apperr.FieldError    `json:"errors,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// JSON écrit un payload JSON avec le statut donné.
func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// Success écrit le payload tel quel en 200.
func Success(w http.ResponseWriter, payload interface{}) {
	JSON(w, http.StatusOK, payload)
}

// Problem convertit une erreur en réponse application/problem+json.
func Problem(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperr.From(err)
	if ae.Kind == apperr.KindInternal {
		logger.Error("internal: %v", err)
	}

	body := ProblemDetails{
		Type:      "about:blank",
		Title:     ae.Title(),
		Status:    ae.Status(),
		Code:      ae.Code(),
		Detail:    ae.Detail,
		RequestID: RequestIDFromContext(r.Context()),
		Errors:    ae.Fields,
		Extra:     ae.Extra,
	}
	// Le détail des erreurs internes ne doit pas fuiter vers le client
	if ae.Kind == apperr.KindInternal {
		body.Detail = "internal server error"
	} else if ae.Kind == apperr.KindImageRender {
		body.Detail = "image rendering failed"
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(ae.Status())
	json.NewEncoder(w).Encode(body)
}
