package render

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
)

// templateIDPattern borne les identifiants de template acceptés.
var templateIDPattern = regexp.MustCompile(`^[A-Za-z0-9._\-]{1,64}$`)

// DefaultTemplateID est le template retenu quand l'identifiant demandé est
// absent ou invalide.
const DefaultTemplateID = "default"

// SanitizeTemplateID rabat tout identifiant hors motif sur le défaut.
func SanitizeTemplateID(id string) string {
	if id == "" || !templateIDPattern.MatchString(id) {
		return DefaultTemplateID
	}
	return id
}

// LayoutKnobs porte les réglages de mise en page optionnels d'un template.
type LayoutKnobs struct {
	Columns          int `json:"columns"`
	CardGap          int `json:"cardGap"`
	MaxSongNameWidth int `json:"maxSongNameWidth"`
	MaxLines         int `json:"maxLines"`
}

// DefaultLayoutKnobs sont les réglages retenus sans fichier sibling.
var DefaultLayoutKnobs = LayoutKnobs{
	Columns:          3,
	CardGap:          24,
	MaxSongNameWidth: 220,
	MaxLines:         2,
}

type parsedTemplate struct {
	tpl   *pongo2.Template
	knobs LayoutKnobs
	mtime int64
	size  int64
}

// TemplateStore résout et met en cache les templates SVG parsés, invalidés
// quand (mtime, taille) du fichier change.
type TemplateStore struct {
	dir   string
	mu    sync.Mutex
	cache map[string]*parsedTemplate
}

// NewTemplateStore construit le magasin de templates sur un répertoire.
func NewTemplateStore(dir string) *TemplateStore {
	return &TemplateStore{dir: dir, cache: make(map[string]*parsedTemplate)}
}

// Resolve retourne le template parsé d'un kind/id, avec repli sur le
// template default du même kind.
func (s *TemplateStore) Resolve(kind, id string) (*pongo2.Template, LayoutKnobs, error) {
	id = SanitizeTemplateID(id)
	tpl, knobs, err := s.load(kind, id)
	if err != nil && id != DefaultTemplateID {
		tpl, knobs, err = s.load(kind, DefaultTemplateID)
	}
	if err != nil {
		return nil, LayoutKnobs{}, apperr.Wrap(apperr.KindImageRender, "resolve template "+kind+"/"+id, err)
	}
	return tpl, knobs, nil
}

func (s *TemplateStore) load(kind, id string) (*pongo2.Template, LayoutKnobs, error) {
	path := filepath.Join(s.dir, kind, id+".svg.jinja")
	info, err := os.Stat(path)
	if err != nil {
		return nil, LayoutKnobs{}, err
	}

	s.mu.Lock()
	cached, ok := s.cache[path]
	s.mu.Unlock()
	if ok && cached.mtime == info.ModTime().UnixNano() && cached.size == info.Size() {
		return cached.tpl, cached.knobs, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, LayoutKnobs{}, err
	}
	tpl, err := pongo2.FromBytes(raw)
	if err != nil {
		return nil, LayoutKnobs{}, err
	}

	knobs := DefaultLayoutKnobs
	knobsPath := filepath.Join(s.dir, kind, id+".json")
	if kraw, err := os.ReadFile(knobsPath); err == nil {
		var loaded LayoutKnobs
		if json.Unmarshal(kraw, &loaded) == nil {
			if loaded.Columns > 0 {
				knobs.Columns = loaded.Columns
			}
			if loaded.CardGap > 0 {
				knobs.CardGap = loaded.CardGap
			}
			if loaded.MaxSongNameWidth > 0 {
				knobs.MaxSongNameWidth = loaded.MaxSongNameWidth
			}
			if loaded.MaxLines > 0 {
				knobs.MaxLines = loaded.MaxLines
			}
		}
	}

	s.mu.Lock()
	s.cache[path] = &parsedTemplate{
		tpl:   tpl,
		knobs: knobs,
		mtime: info.ModTime().UnixNano(),
		size:  info.Size(),
	}
	s.mu.Unlock()
	return tpl, knobs, nil
}
