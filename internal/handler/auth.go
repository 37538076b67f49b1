package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/identity"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
	"github.com/Sczr0/Next-Phi-Backend/internal/utils"
)

type qrCreateRequest struct {
	Version string `json:"version,omitempty"`
}

// CreateQRCode démarre un login TapTap par device-code et retourne le QR
// à présenter au joueur.
func CreateQRCode(w http.ResponseWriter, r *http.Request) {
	var req qrCreateRequest
	if r.ContentLength > 0 {
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.Problem(w, r, err)
			return
		}
	}
	resp, err := app.Auth.StartQRFlow(r.Context(), req.Version)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	utils.Success(w, resp)
}

// QRCodeStatus interroge l'état d'un login en cours. Les états terminaux
// Expired et Error ne sont rapportés qu'une fois.
func QRCodeStatus(w http.ResponseWriter, r *http.Request) {
	qrID := mux.Vars(r)["qrId"]
	if qrID == "" {
		utils.Problem(w, r, apperr.New(apperr.KindValidation, "missing qrId").
			WithField("qrId", "MISSING", "path parameter required"))
		return
	}
	resp, err := app.Auth.PollQRStatus(r.Context(), qrID)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	utils.Success(w, resp)
}

// UserID dérive l'identifiant stable haché d'un jeu de credentials.
func UserID(w http.ResponseWriter, r *http.Request) {
	var req models.UnifiedSaveRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Problem(w, r, err)
		return
	}
	userHash, kind, err := identity.HashRequest(app.Cfg.Stats.UserHashSalt, &req)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	utils.SetUserHash(r.Context(), userHash)
	utils.Success(w, map[string]string{
		"userId":   userHash,
		"userKind": kind,
	})
}
