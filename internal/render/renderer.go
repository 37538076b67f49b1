package render

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"
	"golang.org/x/sync/singleflight"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/config"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
	"github.com/Sczr0/Next-Phi-Backend/internal/rks"
)

// KindBN et KindSong sont les deux familles de templates supportées.
const (
	KindBN   = "bn"
	KindSong = "song"
)

// Options décrit une demande de rendu complète. UserHash et SaveUpdatedAt
// participent à l'empreinte de cache: deux joueurs ou deux versions de
// sauvegarde ne partagent jamais un rendu.
type Options struct {
	Kind           string
	TemplateID     string
	Format         Format
	Width          int
	WebPQuality    int
	WebPLossless   bool
	EmbedImages    bool
	N              int
	SongID         string
	UserHash       string
	SaveUpdatedAt  string
	SelfReported   bool
	UnlockPassword string
}

// Rendered est le résultat d'un rendu, servi depuis le cache ou produit.
type Rendered struct {
	Bytes       []byte
	ContentType string
	CacheHit    bool
}

// Renderer orchestre templates, cache, filigrane et rastérisation.
type Renderer struct {
	store         *TemplateStore
	cache         *ByteCache
	raster        *Rasterizer
	watermarker   *Watermarker
	illustrations *Illustrations
	flight        singleflight.Group
	cacheEnabled  bool
	webpQuality   int
}

// NewRenderer assemble le pipeline de rendu depuis la configuration.
func NewRenderer(imageCfg config.ImageConfig, wmCfg config.WatermarkConfig, illustrationFolder string) *Renderer {
	maxBytes := imageCfg.CacheMaxBytes
	if maxBytes <= 0 {
		maxBytes = 100 << 20
	}
	return &Renderer{
		store: NewTemplateStore(imageCfg.TemplateDir),
		cache: NewByteCache(maxBytes,
			time.Duration(imageCfg.CacheTTLSecs)*time.Second,
			time.Duration(imageCfg.CacheTTISecs)*time.Second),
		raster:        NewRasterizer(imageCfg.MaxParallel, imageCfg.OptimizeSpeed),
		watermarker:   NewWatermarker(wmCfg),
		illustrations: NewIllustrations(illustrationFolder, imageCfg.PublicBaseURL),
		cacheEnabled:  imageCfg.CacheEnabled,
		webpQuality:   DefaultWebPQuality,
	}
}

// normalize complète les options avec les défauts et force les contraintes
// propres au format (un SVG ne peut pas embarquer d'images locales).
func (r *Renderer) normalize(opts *Options) {
	opts.TemplateID = SanitizeTemplateID(opts.TemplateID)
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.WebPQuality <= 0 {
		opts.WebPQuality = r.webpQuality
	}
	if opts.Format == FormatSVG {
		opts.EmbedImages = false
	}
}

// fingerprint calcule la clé de cache sur le tuple complet de la demande.
func fingerprint(opts Options, watermarked bool) string {
	parts := []string{
		opts.Kind,
		opts.TemplateID,
		opts.UserHash,
		opts.SaveUpdatedAt,
		strconv.Itoa(opts.N),
		opts.SongID,
		string(opts.Format),
		strconv.Itoa(opts.Width),
		strconv.Itoa(opts.WebPQuality),
		strconv.FormatBool(opts.WebPLossless),
		strconv.FormatBool(opts.EmbedImages),
		strconv.FormatBool(watermarked),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// render exécute un rendu complet: template, rastérisation, cache. Les
// demandes concurrentes partageant la même empreinte ne produisent qu'un
// seul rendu.
func (r *Renderer) render(ctx context.Context, opts Options, watermarked bool, templateCtx func(LayoutKnobs) pongo2.Context) (*Rendered, error) {
	key := fingerprint(opts, watermarked)
	if r.cacheEnabled {
		if data, contentType, ok := r.cache.Get(key); ok {
			return &Rendered{Bytes: data, ContentType: contentType, CacheHit: true}, nil
		}
	}

	out, err, _ := r.flight.Do(key, func() (interface{}, error) {
		if r.cacheEnabled {
			if data, contentType, ok := r.cache.Get(key); ok {
				return &Rendered{Bytes: data, ContentType: contentType, CacheHit: true}, nil
			}
		}

		tpl, knobs, err := r.store.Resolve(opts.Kind, opts.TemplateID)
		if err != nil {
			return nil, err
		}
		svgText, err := tpl.Execute(templateCtx(knobs))
		if err != nil {
			return nil, apperr.Wrap(apperr.KindImageRender, "execute template", err)
		}

		data, err := r.raster.Encode(ctx, svgText, EncodeOptions{
			Format:       opts.Format,
			Width:        opts.Width,
			WebPQuality:  opts.WebPQuality,
			WebPLossless: opts.WebPLossless,
		})
		if err != nil {
			return nil, err
		}

		rendered := &Rendered{Bytes: data, ContentType: opts.Format.ContentType()}
		if r.cacheEnabled {
			r.cache.Put(key, data, rendered.ContentType)
		}
		return rendered, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(*Rendered), nil
}

// watermarkFor retourne le fragment de filigrane à injecter pour une
// demande auto-déclarée, vide si le mot de passe la déverrouille.
func (r *Renderer) watermarkFor(opts Options) string {
	if !opts.SelfReported {
		return ""
	}
	if r.watermarker.Unlocked(opts.UnlockPassword) {
		return ""
	}
	return r.watermarker.Fragment(opts.Width)
}

// RenderBN produit l'image BestN d'un résultat RKS.
func (r *Renderer) RenderBN(ctx context.Context, playerName string, result *rks.Result, opts Options) (*Rendered, error) {
	opts.Kind = KindBN
	r.normalize(&opts)

	watermarkXML := r.watermarkFor(opts)
	generatedAt := time.Now().UTC().Format(time.RFC3339)

	return r.render(ctx, opts, watermarkXML != "", func(knobs LayoutKnobs) pongo2.Context {
		bn := buildBNContext(playerName, result, knobs, func(songID string) string {
			return r.illustrations.Resolve(songID, opts.EmbedImages)
		}, generatedAt, watermarkXML)
		return pongo2.Context{
			"player_name_xml":     bn.PlayerNameXML,
			"player_rks":          bn.PlayerRks,
			"generated_at":        bn.GeneratedAt,
			"footer_xml":          bn.FooterXML,
			"best":                bn.Best,
			"ap_top3":             bn.APTop3,
			"layout":              bn.Layout,
			"n":                   opts.N,
			"watermark_inner_xml": bn.WatermarkXML,
		}
	})
}

// RenderSong produit la carte mono-chart d'une chanson du catalogue.
func (r *Renderer) RenderSong(ctx context.Context, song *models.Song, records []models.BestRecord, opts Options) (*Rendered, error) {
	opts.Kind = KindSong
	opts.SongID = song.ID
	r.normalize(&opts)

	generatedAt := time.Now().UTC().Format(time.RFC3339)

	return r.render(ctx, opts, false, func(knobs LayoutKnobs) pongo2.Context {
		cards := make([]BNCard, 0, len(records))
		for i, rec := range records {
			cards = append(cards, buildCard(i+1, rec, r.illustrations.Resolve(rec.SongID, opts.EmbedImages)))
		}
		return pongo2.Context{
			"song_name_xml":    escapeXML(song.Name),
			"composer_xml":     escapeXML(song.Composer),
			"illustrator_xml":  escapeXML(song.Illustrator),
			"song_id":          song.ID,
			"illustration_url": r.illustrations.Resolve(song.ID, opts.EmbedImages),
			"generated_at":     generatedAt,
			"records":          cards,
			"layout":           knobs,
		}
	})
}

// CacheStats expose l'état du cache de rendu pour la supervision.
func (r *Renderer) CacheStats() (entries int, sizeBytes int64) {
	return r.cache.Len(), r.cache.SizeBytes()
}
