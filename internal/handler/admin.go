package handler

import (
	"net/http"
	"strings"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/utils"
)

// requireStore vérifie que le magasin de télémétrie est actif.
func requireStore() error {
	if app.Store == nil {
		return apperr.New(apperr.KindNotFound, "statistics storage disabled")
	}
	return nil
}

// adminName identifie l'opérateur dans le journal de modération depuis le
// préfixe de son jeton.
func adminName(r *http.Request) string {
	token := r.Header.Get("X-Admin-Token")
	if len(token) > 8 {
		token = token[:8]
	}
	return "token:" + token
}

// AdminSuspicious liste les joueurs dont le score de suspicion dépasse le
// seuil de revue, plus les lignes déjà masquées.
func AdminSuspicious(w http.ResponseWriter, r *http.Request) {
	if err := requireStore(); err != nil {
		utils.Problem(w, r, err)
		return
	}
	limit, err := utils.QueryInt(r, "limit", 50)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	entries, err := app.Store.QuerySuspicious(r.Context(), limit)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	utils.Success(w, map[string]interface{}{"items": entries, "count": len(entries)})
}

type resolveRequest struct {
	UserHash string `json:"userHash"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

// AdminResolve pose le statut de modération d'un joueur: pending, approved,
// rejected, shadow ou banned. Chaque décision est journalisée.
func AdminResolve(w http.ResponseWriter, r *http.Request) {
	if err := requireStore(); err != nil {
		utils.Problem(w, r, err)
		return
	}
	var req resolveRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Problem(w, r, err)
		return
	}
	if req.UserHash == "" {
		utils.Problem(w, r, apperr.New(apperr.KindValidation, "missing userHash").
			WithField("userHash", "MISSING", "field required"))
		return
	}
	status := strings.ToLower(req.Status)
	if err := app.Store.ResolveUser(r.Context(), req.UserHash, status, req.Reason, adminName(r)); err != nil {
		utils.Problem(w, r, err)
		return
	}
	utils.Success(w, map[string]string{"userHash": req.UserHash, "status": status})
}

type forceAliasRequest struct {
	UserHash string `json:"userHash"`
	Alias    string `json:"alias"`
}

// AdminForceAlias réassigne un alias d'autorité, en le libérant de son
// détenteur actuel si besoin.
func AdminForceAlias(w http.ResponseWriter, r *http.Request) {
	if err := requireStore(); err != nil {
		utils.Problem(w, r, err)
		return
	}
	var req forceAliasRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Problem(w, r, err)
		return
	}
	if req.UserHash == "" {
		utils.Problem(w, r, apperr.New(apperr.KindValidation, "missing userHash").
			WithField("userHash", "MISSING", "field required"))
		return
	}
	if err := app.Store.ForceAlias(r.Context(), req.UserHash, strings.TrimSpace(req.Alias)); err != nil {
		utils.Problem(w, r, err)
		return
	}
	utils.Success(w, map[string]string{"userHash": req.UserHash, "alias": req.Alias})
}
