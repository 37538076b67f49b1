package handler

import (
	"net/http"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/identity"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
	"github.com/Sczr0/Next-Phi-Backend/internal/utils"
)

type rksHistoryRequest struct {
	models.UnifiedSaveRequest
	Limit  int64 `json:"limit,omitempty"`
	Offset int64 `json:"offset,omitempty"`
}

// RksHistory retourne l'historique des versements RKS du joueur identifié
// par ses credentials.
func RksHistory(w http.ResponseWriter, r *http.Request) {
	if app.Store == nil {
		utils.Problem(w, r, apperr.New(apperr.KindNotFound, "statistics storage disabled"))
		return
	}

	var req rksHistoryRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Problem(w, r, err)
		return
	}
	userHash, _, err := identity.HashRequest(app.Cfg.Stats.UserHashSalt, &req.UnifiedSaveRequest)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	utils.SetUserHash(r.Context(), userHash)

	history, err := app.Store.QueryRksHistory(r.Context(), userHash, req.Limit, req.Offset)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	utils.Success(w, history)
}
