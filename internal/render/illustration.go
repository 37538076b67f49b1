package render

import (
	"encoding/base64"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sczr0/Next-Phi-Backend/internal/logger"
)

// Illustrations résout l'illustration d'un chart soit en URL publique,
// soit en data-URI embarqué selon le mode demandé.
type Illustrations struct {
	folder        string
	publicBaseURL string
}

// NewIllustrations construit le résolveur sur le dossier local et la base
// publique configurés.
func NewIllustrations(folder, publicBaseURL string) *Illustrations {
	return &Illustrations{
		folder:        folder,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// localPath retourne le chemin disque de l'illustration d'un chart, vide si
// aucun fichier connu n'existe.
func (il *Illustrations) localPath(songID string) string {
	if il.folder == "" {
		return ""
	}
	base := filepath.Base(songID)
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".webp"} {
		p := filepath.Join(il.folder, base+ext)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// PublicURL retourne l'URL publique de l'illustration d'un chart, vide si
// l'illustration est absente ou qu'aucune base publique n'est configurée.
func (il *Illustrations) PublicURL(songID string) string {
	if il.publicBaseURL == "" {
		return ""
	}
	p := il.localPath(songID)
	if p == "" {
		return ""
	}
	return il.publicBaseURL + "/" + url.PathEscape(filepath.Base(p))
}

func mimeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	}
	return "image/png"
}

// DataURI retourne l'illustration encodée en data-URI base64, vide si le
// fichier est absent ou illisible.
func (il *Illustrations) DataURI(songID string) string {
	p := il.localPath(songID)
	if p == "" {
		return ""
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		logger.Warning("illustration %s illisible: %v", p, err)
		return ""
	}
	return "data:" + mimeForExt(filepath.Ext(p)) + ";base64," + base64.StdEncoding.EncodeToString(raw)
}

// Resolve retourne la référence d'illustration selon le mode: data-URI si
// embed, sinon URL publique.
func (il *Illustrations) Resolve(songID string, embed bool) string {
	if embed {
		if uri := il.DataURI(songID); uri != "" {
			return uri
		}
	}
	return il.PublicURL(songID)
}
