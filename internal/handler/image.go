package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/catalog"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
	"github.com/Sczr0/Next-Phi-Backend/internal/render"
	"github.com/Sczr0/Next-Phi-Backend/internal/rks"
	"github.com/Sczr0/Next-Phi-Backend/internal/utils"
)

const defaultBestN = 27

// imageQuery extrait les options de rendu communes de la query string.
func imageQuery(r *http.Request, kind string) (render.Options, error) {
	opts := render.Options{Kind: kind}

	format, err := render.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		return opts, err
	}
	opts.Format = format

	width, err := utils.QueryInt(r, "width", render.DefaultWidth)
	if err != nil {
		return opts, err
	}
	if width < 100 || width > 4000 {
		return opts, apperr.New(apperr.KindValidation, "invalid width").
			WithField("width", "OUT_OF_RANGE", "must be in [100,4000]")
	}
	opts.Width = width

	quality, err := utils.QueryInt(r, "webpQuality", render.DefaultWebPQuality)
	if err != nil {
		return opts, err
	}
	if quality < 1 || quality > 100 {
		return opts, apperr.New(apperr.KindValidation, "invalid webpQuality").
			WithField("webpQuality", "OUT_OF_RANGE", "must be in [1,100]")
	}
	opts.WebPQuality = quality
	opts.WebPLossless = utils.QueryBool(r, "webpLossless", false)
	opts.EmbedImages = utils.QueryBool(r, "embedImages", true)

	opts.TemplateID = render.SanitizeTemplateID(r.URL.Query().Get("template"))

	return opts, nil
}

func writeImage(w http.ResponseWriter, rendered *render.Rendered) {
	w.Header().Set("Content-Type", rendered.ContentType)
	if rendered.CacheHit {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(rendered.Bytes)
}

// playerName extrait le pseudonyme de la sauvegarde, "Player" à défaut.
func playerName(save *models.ParsedSave) string {
	if save.User != nil {
		if v, ok := save.User["nickname"].(string); ok && v != "" {
			return v
		}
	}
	return "Player"
}

// ImageBN rend l'image BestN depuis la sauvegarde cloud du joueur.
func ImageBN(w http.ResponseWriter, r *http.Request) {
	opts, err := imageQuery(r, render.KindBN)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	n, err := utils.QueryInt(r, "n", defaultBestN)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	if n < 1 || n > 99 {
		utils.Problem(w, r, apperr.New(apperr.KindValidation, "invalid n").
			WithField("n", "OUT_OF_RANGE", "must be in [1,99]"))
		return
	}
	opts.N = n

	var req models.UnifiedSaveRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Problem(w, r, err)
		return
	}
	save, userHash, _, err := fetchSave(r, &req)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}

	records := rks.CollectRecords(save, app.Catalog)
	result := rks.Compute(records, n)

	opts.UserHash = userHash
	opts.SaveUpdatedAt = save.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z")

	rendered, err := app.Renderer.RenderBN(r.Context(), playerName(save), result, opts)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	writeImage(w, rendered)
}

// ImageSong rend l'image d'un chart unique depuis la sauvegarde du joueur.
// Le morceau est désigné par ?q= et doit se résoudre de façon unique.
func ImageSong(w http.ResponseWriter, r *http.Request) {
	opts, err := imageQuery(r, render.KindSong)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		utils.Problem(w, r, apperr.New(apperr.KindValidation, "missing song query").
			WithField("q", "MISSING", "query parameter required"))
		return
	}
	_, song, err := app.Catalog.Search(query, catalog.SearchOptions{Unique: true, Limit: 1})
	if err != nil {
		utils.Problem(w, r, err)
		return
	}

	var req models.UnifiedSaveRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Problem(w, r, err)
		return
	}
	save, userHash, _, err := fetchSave(r, &req)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}

	var records []models.BestRecord
	for _, rec := range rks.CollectRecords(save, app.Catalog) {
		if rec.SongID == song.ID {
			records = append(records, rec)
		}
	}

	opts.SongID = song.ID
	opts.UserHash = userHash
	opts.SaveUpdatedAt = save.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z")

	rendered, err := app.Renderer.RenderSong(r.Context(), song, records, opts)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	writeImage(w, rendered)
}

type userScore struct {
	Song       string   `json:"song"`
	Difficulty string   `json:"difficulty"`
	Acc        float64  `json:"acc"`
	Score      *float64 `json:"score,omitempty"`
}

type userImageRequest struct {
	Scores         []userScore `json:"scores"`
	PlayerName     string      `json:"playerName,omitempty"`
	UnlockPassword string      `json:"unlockPassword,omitempty"`
	N              int         `json:"n,omitempty"`
}

// resolveUserScores résout chaque score déclaré contre le catalogue. Une
// requête ambiguë est une erreur; un chart sans constante est ignoré.
func resolveUserScores(scores []userScore) ([]models.BestRecord, error) {
	records := make([]models.BestRecord, 0, len(scores))
	for i, sc := range scores {
		diff, ok := models.ParseDifficulty(sc.Difficulty)
		if !ok {
			return nil, apperr.Newf(apperr.KindValidation, "invalid difficulty %q", sc.Difficulty).
				WithField(fmt.Sprintf("scores[%d].difficulty", i), "INVALID_VALUE", "must be one of EZ, HD, IN, AT")
		}
		if sc.Acc < 0 || sc.Acc > 100 {
			return nil, apperr.New(apperr.KindValidation, "invalid accuracy").
				WithField(fmt.Sprintf("scores[%d].acc", i), "OUT_OF_RANGE", "must be in [0,100]")
		}
		_, song, err := app.Catalog.Search(sc.Song, catalog.SearchOptions{Unique: true, Limit: 1})
		if err != nil {
			return nil, err
		}
		c := song.Constants.Get(diff)
		if c == nil {
			continue
		}
		score := 0.0
		if sc.Score != nil {
			score = *sc.Score
		}
		records = append(records, models.BestRecord{
			SongID:     song.ID,
			SongName:   song.Name,
			Difficulty: diff,
			Constant:   *c,
			Score:      score,
			Accuracy:   sc.Acc,
			RKS:        rks.ChartRks(sc.Acc, *c),
			IsPhi:      rks.IsAP(sc.Acc),
		})
	}
	return records, nil
}

// userScoresDigest dérive une empreinte stable du jeu de scores déclaré,
// pour que deux envois identiques partagent la même entrée de cache.
func userScoresDigest(records []models.BestRecord, name string) string {
	lines := make([]string, 0, len(records)+1)
	lines = append(lines, name)
	for _, rec := range records {
		lines = append(lines, fmt.Sprintf("%s|%d|%.4f|%.0f", rec.SongID, rec.Difficulty, rec.Accuracy, rec.Score))
	}
	sort.Strings(lines[1:])
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:16])
}

// ImageBNUser rend une image BestN depuis des scores auto-déclarés, sans
// sauvegarde cloud. Le rendu porte le filigrane self-reported sauf mot de
// passe de déverrouillage valide.
func ImageBNUser(w http.ResponseWriter, r *http.Request) {
	opts, err := imageQuery(r, render.KindBN)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}

	var req userImageRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.Problem(w, r, err)
		return
	}
	if len(req.Scores) == 0 {
		utils.Problem(w, r, apperr.New(apperr.KindValidation, "no scores provided").
			WithField("scores", "MISSING", "at least one score required"))
		return
	}
	maxScores := app.Cfg.Image.MaxUserScores
	if maxScores <= 0 {
		maxScores = 100
	}
	if len(req.Scores) > maxScores {
		utils.Problem(w, r, apperr.New(apperr.KindValidation, "too many scores").
			WithField("scores", "OUT_OF_RANGE", fmt.Sprintf("at most %d scores", maxScores)))
		return
	}

	n := req.N
	if n <= 0 {
		n = defaultBestN
	}
	if n > 99 {
		utils.Problem(w, r, apperr.New(apperr.KindValidation, "invalid n").
			WithField("n", "OUT_OF_RANGE", "must be in [1,99]"))
		return
	}
	opts.N = n

	records, err := resolveUserScores(req.Scores)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	result := rks.Compute(records, n)

	name := req.PlayerName
	if name == "" {
		name = "Player"
	}

	opts.UserHash = userScoresDigest(records, name)
	opts.SelfReported = true
	opts.UnlockPassword = req.UnlockPassword

	rendered, err := app.Renderer.RenderBN(r.Context(), name, result, opts)
	if err != nil {
		utils.Problem(w, r, err)
		return
	}
	writeImage(w, rendered)
}
