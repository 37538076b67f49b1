package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Sczr0/Next-Phi-Backend/internal/identity"
	"github.com/Sczr0/Next-Phi-Backend/internal/logger"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
	"github.com/Sczr0/Next-Phi-Backend/internal/rks"
	"github.com/Sczr0/Next-Phi-Backend/internal/saveprovider"
	"github.com/Sczr0/Next-Phi-Backend/internal/stats"
	"github.com/Sczr0/Next-Phi-Backend/internal/utils"
)

type saveResponse struct {
	Data *models.ParsedSave `json:"data"`
	Rks  *rksOverview       `json:"rks,omitempty"`
}

type rksOverview struct {
	PlayerRks        float64             `json:"playerRks"`
	PlayerRksRounded float64             `json:"playerRksRounded"`
	BestMean         float64             `json:"bestMean"`
	ChartCount       int                 `json:"chartCount"`
	Best             []models.BestRecord `json:"best"`
	APTop3           []models.BestRecord `json:"apTop3"`
	PushAdvice       []rks.PushAdvice    `json:"pushAdvice,omitempty"`
}

// fetchSave valide les credentials, récupère et parse la sauvegarde, et
// pose le hash utilisateur pour la télémétrie.
func fetchSave(r *http.Request, req *models.UnifiedSaveRequest) (*models.ParsedSave, string, string, error) {
	if err := saveprovider.ValidateRequest(req); err != nil {
		return nil, "", "", err
	}

	userHash, userKind := "", ""
	if salt := app.Cfg.Stats.UserHashSalt; salt != "" {
		if h, k, err := identity.HashRequest(salt, req); err == nil {
			userHash, userKind = h, k
			utils.SetUserHash(r.Context(), h)
		}
	}

	save, err := app.Provider.GetParsedSave(r.Context(), req, app.Cfg.TapTap.DefaultVersion)
	if err != nil {
		return nil, "", "", err
	}
	return save, userHash, userKind, nil
}

// Save récupère et déchiffre la sauvegarde cloud; calculateRks=true joint
// la vue RKS et verse le résultat au classement.
func Save(w http.ResponseWriter, r *http.Request) {
	var req models.UnifiedSaveRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Problem(w, r, err)
		return
	}

	save, userHash, userKind, err := fetchSave(r, &req)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}

	resp := saveResponse{Data: save}
	if utils.QueryBool(r, "calculateRks", false) {
		records := rks.CollectRecords(save, app.Catalog)
		result := rks.Compute(records, rks.DefaultBestK)
		resp.Rks = &rksOverview{
			PlayerRks:        result.PlayerRks,
			PlayerRksRounded: result.PlayerRksRounded,
			BestMean:         result.BestMean,
			ChartCount:       result.ChartCount,
			Best:             result.Best,
			APTop3:           result.APTop3,
			PushAdvice:       rks.Advise(records, result),
		}
		submitLeaderboard(r, userHash, userKind, req.SessionToken != "", records, result)
	}
	utils.Success(w, resp)
}

// submitLeaderboard verse un calcul RKS réussi au classement. Un échec du
// magasin est journalisé sans faire échouer la requête.
func submitLeaderboard(r *http.Request, userHash, userKind string, official bool, records []models.BestRecord, result *rks.Result) {
	if app.Store == nil || userHash == "" || !app.Cfg.Leaderboard.Enabled {
		return
	}

	accOut := false
	for _, rec := range records {
		if rec.Accuracy < 70.0 || rec.Accuracy > 100.0 {
			accOut = true
			break
		}
	}
	apCount := 0
	for _, rec := range records {
		if rks.IsAP(rec.Accuracy) {
			apCount++
		}
	}

	route := r.URL.Path
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := app.Store.SubmitRks(ctx, stats.SubmissionInput{
		UserHash:        userHash,
		TotalRks:        result.PlayerRks,
		UserKind:        userKind,
		Route:           route,
		AccOutOfRange:   accOut,
		ChartCount:      result.ChartCount,
		APCount:         apCount,
		BestK:           rks.DefaultBestK,
		PlausibleMaxRks: maxPlausibleRks(),
		OfficialToken:   official,
		Best:            topN(result.Best, 3),
		AP:              result.APTop3,
		Composition:     result.Best,
	})
	if err != nil {
		logger.Warning("versement classement pour %s: %v", userHash, err)
	}
}

func topN(records []models.BestRecord, n int) []models.BestRecord {
	if len(records) <= n {
		return records
	}
	return records[:n]
}

// maxPlausibleRks borne le RKS atteignable depuis les constantes du
// catalogue: un acc parfait rapporte exactement la constante du chart.
func maxPlausibleRks() float64 {
	max := 0.0
	for _, song := range app.Catalog.All() {
		for d := 0; d < models.DifficultyCount; d++ {
			if c := song.Constants.Get(models.Difficulty(d)); c != nil && *c > max {
				max = *c
			}
		}
	}
	return max
}
