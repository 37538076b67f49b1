package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/identity"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
	"github.com/Sczr0/Next-Phi-Backend/internal/stats"
	"github.com/Sczr0/Next-Phi-Backend/internal/utils"
)

// requireLeaderboard vérifie que le classement est actif et retourne le
// magasin, ou une erreur NotFound.
func requireLeaderboard() (*stats.Store, error) {
	if app.Store == nil || !app.Cfg.Leaderboard.Enabled {
		return nil, apperr.New(apperr.KindNotFound, "leaderboard disabled")
	}
	return app.Store, nil
}

// identifyRequest hache les credentials du corps et pose le hash pour la
// télémétrie.
func identifyRequest(r *http.Request) (string, error) {
	var req models.UnifiedSaveRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		return "", err
	}
	userHash, _, err := identity.HashRequest(app.Cfg.Stats.UserHashSalt, &req)
	if err != nil {
		return "", err
	}
	utils.SetUserHash(r.Context(), userHash)
	return userHash, nil
}

// LeaderboardTop sert la page haute du classement. La pagination seek via
// afterScore/afterUpdated/afterUser est préférée à offset sur les grandes
// profondeurs.
func LeaderboardTop(w http.ResponseWriter, r *http.Request) {
	store, err := requireLeaderboard()
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	if !app.Cfg.Leaderboard.AllowPublic {
		utils.Problem(w, r, apperr.New(apperr.KindNotFound, "leaderboard not public"))
		return
	}

	q := stats.TopQuery{Lite: utils.QueryBool(r, "lite", false)}
	if q.Limit, err = utils.QueryInt(r, "limit", 20); err != nil {
		utils.Problem(w, r, err)
		return
	}
	if q.Offset, err = utils.QueryInt(r, "offset", 0); err != nil {
		utils.Problem(w, r, err)
		return
	}
	if raw := r.URL.Query().Get("afterScore"); raw != "" {
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			utils.Problem(w, r, apperr.New(apperr.KindValidation, "invalid afterScore").
				WithField("afterScore", "INVALID_VALUE", "must be a number"))
			return
		}
		q.AfterScore = &score
	}
	q.AfterUpdated = r.URL.Query().Get("afterUpdated")
	q.AfterUser = r.URL.Query().Get("afterUser")

	page, err := store.QueryTop(r.Context(), q)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	utils.Success(w, page)
}

// LeaderboardByRank sert une tranche [start,end] du classement, bornée à
// 200 lignes.
func LeaderboardByRank(w http.ResponseWriter, r *http.Request) {
	store, err := requireLeaderboard()
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	if !app.Cfg.Leaderboard.AllowPublic {
		utils.Problem(w, r, apperr.New(apperr.KindNotFound, "leaderboard not public"))
		return
	}

	start, err := utils.QueryInt(r, "start", 1)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	end, err := utils.QueryInt(r, "end", start+19)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}

	page, err := store.QueryByRank(r.Context(), start, end)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	utils.Success(w, page)
}

// LeaderboardMe retourne la position du joueur identifié par ses
// credentials, y compris quand sa ligne est masquée.
func LeaderboardMe(w http.ResponseWriter, r *http.Request) {
	store, err := requireLeaderboard()
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	userHash, err := identifyRequest(r)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}

	me, err := store.QueryMe(r.Context(), userHash)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	utils.Success(w, me)
}

type aliasRequest struct {
	models.UnifiedSaveRequest
	Alias string `json:"alias"`
}

// PutAlias pose ou remplace l'alias public du joueur. L'unicité est
// insensible à la casse et la repose du même alias est idempotente.
func PutAlias(w http.ResponseWriter, r *http.Request) {
	store, err := requireLeaderboard()
	if err != nil {
		utils.Problem(w, r, err)
		return
	}

	var req aliasRequest
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

	if err := store.PutAlias(r.Context(), userHash, strings.TrimSpace(req.Alias)); err != nil {
		utils.Problem(w, r, err)
		return
	}
	utils.Success(w, map[string]string{"alias": strings.TrimSpace(req.Alias)})
}

type profileRequest struct {
	models.UnifiedSaveRequest
	IsPublic           *bool `json:"isPublic,omitempty"`
	ShowRksComposition *bool `json:"showRksComposition,omitempty"`
	ShowBestTop3       *bool `json:"showBestTop3,omitempty"`
	ShowApTop3         *bool `json:"showApTop3,omitempty"`
}

// PutProfile met à jour les interrupteurs de visibilité du profil. Seuls
// les champs présents dans le corps changent.
func PutProfile(w http.ResponseWriter, r *http.Request) {
	store, err := requireLeaderboard()
	if err != nil {
		utils.Problem(w, r, err)
		return
	}

	var req profileRequest
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

	profile, err := store.UpdateProfile(r.Context(), userHash, stats.ProfileUpdate{
		IsPublic:           req.IsPublic,
		ShowRksComposition: req.ShowRksComposition,
		ShowBestTop3:       req.ShowBestTop3,
		ShowApTop3:         req.ShowApTop3,
	})
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	utils.Success(w, profile)
}

// PublicProfile sert la vue publique d'un joueur par alias. Les profils
// privés ou masqués sont indistinguables d'un alias inconnu.
func PublicProfile(w http.ResponseWriter, r *http.Request) {
	store, err := requireLeaderboard()
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	if !app.Cfg.Leaderboard.AllowPublic {
		utils.Problem(w, r, apperr.New(apperr.KindNotFound, "leaderboard not public"))
		return
	}

	alias := mux.Vars(r)["alias"]
	if alias == "" {
		utils.Problem(w, r, apperr.New(apperr.KindValidation, "missing alias").
			WithField("alias", "MISSING", "path parameter required"))
		return
	}

	profile, err := store.QueryPublicProfile(r.Context(), alias)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	utils.Success(w, profile)
}
