package render

import (
	"fmt"
	"strings"

	"github.com/Sczr0/Next-Phi-Backend/internal/models"
	"github.com/Sczr0/Next-Phi-Backend/internal/rks"
)

// escapeXML protège une valeur non fiable avant insertion dans le SVG.
func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}

// BNCard est la vue d'un chart dans l'image BestN. Les chaînes issues de
// l'utilisateur ou du catalogue ne sont exposées que pré-échappées.
type BNCard struct {
	Index           int     `json:"index"`
	SongNameXML     string  `json:"song_name_xml"`
	SongID          string  `json:"song_id"`
	Difficulty      string  `json:"difficulty"`
	Constant        float64 `json:"constant"`
	Score           float64 `json:"score"`
	Accuracy        float64 `json:"acc"`
	RKS             float64 `json:"rks"`
	IsFullCombo     bool    `json:"is_fc"`
	IsPhi           bool    `json:"is_phi"`
	IllustrationURL string  `json:"illustration_url"`
}

// BNContext est le contexte passé au template BestN.
type BNContext struct {
	PlayerNameXML string   `json:"player_name_xml"`
	PlayerRks     float64  `json:"player_rks"`
	GeneratedAt   string   `json:"generated_at"`
	FooterXML     string   `json:"footer_xml"`
	Best          []BNCard `json:"best"`
	APTop3        []BNCard `json:"ap_top3"`
	Layout        LayoutKnobs
	WatermarkXML  string `json:"watermark_inner_xml"`
}

// SongContext est le contexte du template de carte mono-chart.
type SongContext struct {
	SongNameXML     string   `json:"song_name_xml"`
	ComposerXML     string   `json:"composer_xml"`
	IllustratorXML  string   `json:"illustrator_xml"`
	SongID          string   `json:"song_id"`
	IllustrationURL string   `json:"illustration_url"`
	GeneratedAt     string   `json:"generated_at"`
	Records         []BNCard `json:"records"`
	Layout          LayoutKnobs
}

// buildCard convertit un record RKS en carte de template.
func buildCard(index int, r models.BestRecord, illustrationURL string) BNCard {
	return BNCard{
		Index:           index,
		SongNameXML:     escapeXML(r.SongName),
		SongID:          r.SongID,
		Difficulty:      r.Difficulty.String(),
		Constant:        r.Constant,
		Score:           r.Score,
		Accuracy:        r.Accuracy,
		RKS:             r.RKS,
		IsFullCombo:     r.IsFullCombo,
		IsPhi:           r.IsPhi,
		IllustrationURL: illustrationURL,
	}
}

// buildBNContext assemble le contexte BestN complet.
func buildBNContext(playerName string, result *rks.Result, knobs LayoutKnobs, illustrationURL func(songID string) string, generatedAt, watermarkXML string) *BNContext {
	ctx := &BNContext{
		PlayerNameXML: escapeXML(playerName),
		PlayerRks:     result.PlayerRksRounded,
		GeneratedAt:   generatedAt,
		FooterXML:     escapeXML(fmt.Sprintf("RKS %.4f", result.PlayerRks)),
		Layout:        knobs,
		WatermarkXML:  watermarkXML,
	}
	for i, r := range result.Best {
		ctx.Best = append(ctx.Best, buildCard(i+1, r, illustrationURL(r.SongID)))
	}
	for i, r := range result.APTop3 {
		ctx.APTop3 = append(ctx.APTop3, buildCard(i+1, r, illustrationURL(r.SongID)))
	}
	return ctx
}
