package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
)

// Kinds d'identifiants stables, par priorité décroissante.
const (
	KindSessionToken      = "sessionToken"
	KindAPIUserID         = "apiUserId"
	KindExternalSession   = "externalSessionToken"
	KindPlatform          = "platform"
)

// StableID extrait l'identifiant stable d'une requête unifiée, par ordre
// de priorité: sessionToken officiel, apiUserId, sessiontoken externe puis
// le couple platform:platformId.
func StableID(req *models.UnifiedSaveRequest) (id, kind string, err error) {
	if req != nil {
		if req.SessionToken != "" {
			return req.SessionToken, KindSessionToken, nil
		}
		if e := req.External; e != nil {
			if e.APIUserID != "" {
				return e.APIUserID, KindAPIUserID, nil
			}
			if e.Sessiontoken != "" {
				return e.Sessiontoken, KindExternalSession, nil
			}
			if e.Platform != "" && e.PlatformID != "" {
				return e.Platform + ":" + e.PlatformID, KindPlatform, nil
			}
		}
	}
	return "", "", apperr.New(apperr.KindInvalidCredentials, "no usable identity in request")
}

// Hash calcule l'identifiant anonymisé: hex des 16 premiers octets de
// HMAC-SHA256(salt, stableId). Sans sel configuré, aucun hachage n'est
// produit.
func Hash(salt, stableID string) (string, error) {
	if salt == "" {
		return "", apperr.New(apperr.KindInternal, "user hash salt is not configured")
	}
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(stableID))
	return hex.EncodeToString(mac.Sum(nil)[:16]), nil
}

// HashRequest combine StableID et Hash pour une requête unifiée.
func HashRequest(salt string, req *models.UnifiedSaveRequest) (userHash, kind string, err error) {
	id, kind, err := StableID(req)
	if err != nil {
		return "", "", err
	}
	h, err := Hash(salt, id)
	if err != nil {
		return "", "", err
	}
	return h, kind, nil
}
