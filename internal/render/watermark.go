package render

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Sczr0/Next-Phi-Backend/internal/config"
)

// Watermarker décide du filigrane des images BestN auto-déclarées.
type Watermarker struct {
	cfg config.WatermarkConfig
	now func() time.Time
}

// NewWatermarker construit le watermarker sur la configuration.
func NewWatermarker(cfg config.WatermarkConfig) *Watermarker {
	return &Watermarker{cfg: cfg, now: time.Now}
}

// DynamicCode calcule le code de déverrouillage courant:
// hex(SHA-256(salt || fenêtre || secret)) tronqué à la longueur configurée.
func (w *Watermarker) DynamicCode() string {
	ttl := w.cfg.DynamicTTLSecs
	if ttl <= 0 {
		ttl = 3600
	}
	window := w.now().Unix() / ttl
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s%d%s", w.cfg.DynamicSalt, window, w.cfg.DynamicSecret)))
	code := hex.EncodeToString(sum[:])
	length := w.cfg.DynamicLength
	if length < 4 {
		length = 4
	} else if length > len(code) {
		length = len(code)
	}
	return code[:length]
}

// Unlocked vérifie si le mot de passe fourni lève le filigrane, contre la
// valeur statique puis le code dynamique.
func (w *Watermarker) Unlocked(password string) bool {
	if password == "" {
		return false
	}
	if w.cfg.UnlockStatic != "" &&
		subtle.ConstantTimeCompare([]byte(password), []byte(w.cfg.UnlockStatic)) == 1 {
		return true
	}
	if w.cfg.UnlockDynamic &&
		subtle.ConstantTimeCompare([]byte(password), []byte(w.DynamicCode())) == 1 {
		return true
	}
	return false
}

// Fragment construit le fragment SVG de filigrane que le renderer injecte
// lui-même (badge visible et pixel discret selon la configuration).
func (w *Watermarker) Fragment(width int) string {
	out := ""
	if w.cfg.ExplicitBadge {
		out += fmt.Sprintf(
			`<g opacity="0.55"><rect x="%d" y="8" rx="4" width="150" height="26" fill="#000000" opacity="0.4"/>`+
				`<text x="%d" y="26" font-size="14" fill="#ffffff">user reported</text></g>`,
			width-166, width-156)
	}
	if w.cfg.ImplicitPixel {
		out += `<rect x="0" y="0" width="1" height="1" fill="#010101" opacity="0.01"/>`
	}
	return out
}
