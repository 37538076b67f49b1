package catalog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
)

// Catalog indexe le catalogue de morceaux en mémoire, figé après Load.
type Catalog struct {
	byID    map[string]*models.Song
	byName  map[string][]*models.Song
	byAlias map[string][]*models.Song
	ordered []*models.Song
}

// Normalize abaisse la casse et compacte les espaces pour l'indexation.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Load construit le catalogue depuis info.csv, difficulty.csv et
// nicklist.yaml situés dans infoPath.
func Load(infoPath string) (*Catalog, error) {
	constants, err := loadConstants(filepath.Join(infoPath, "difficulty.csv"))
	if err != nil {
		return nil, err
	}

	songs, err := loadInfo(filepath.Join(infoPath, "info.csv"), constants)
	if err != nil {
		return nil, err
	}

	aliases, err := loadAliases(filepath.Join(infoPath, "nicklist.yaml"))
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		byID:    make(map[string]*models.Song, len(songs)),
		byName:  make(map[string][]*models.Song),
		byAlias: make(map[string][]*models.Song),
	}
	for _, s := range songs {
		c.byID[s.ID] = s
		key := Normalize(s.Name)
		c.byName[key] = append(c.byName[key], s)
	}
	for alias, ids := range aliases {
		key := Normalize(alias)
		for _, id := range ids {
			if s, ok := c.byID[id]; ok {
				c.byAlias[key] = append(c.byAlias[key], s)
			}
		}
	}

	c.ordered = make([]*models.Song, 0, len(c.byID))
	for _, s := range c.byID {
		c.ordered = append(c.ordered, s)
	}
	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i].ID < c.ordered[j].ID })
	for _, bucket := range c.byName {
		sortByID(bucket)
	}
	for _, bucket := range c.byAlias {
		sortByID(bucket)
	}

	return c, nil
}

func sortByID(songs []*models.Song) {
	sort.Slice(songs, func(i, j int) bool { return songs[i].ID < songs[j].ID })
}

// Len retourne le nombre de morceaux chargés.
func (c *Catalog) Len() int { return len(c.ordered) }

// Lookup retrouve un morceau par identifiant exact.
func (c *Catalog) Lookup(id string) (*models.Song, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// All retourne les morceaux triés par identifiant.
func (c *Catalog) All() []*models.Song { return c.ordered }

func headerIndex(headers []string, name string) (int, bool) {
	for i, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i, true
		}
	}
	return 0, false
}

func parseOptFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("parse constant %q: %w", s, err)
	}
	return &v, nil
}

func get(record []string, idx int) string {
	if idx < len(record) {
		return record[idx]
	}
	return ""
}

// loadConstants lit difficulty.csv (séparé par tabulations, colonnes id,
// EZ, HD, IN, AT insensibles à la casse).
func loadConstants(path string) (map[string]models.ChartConstants, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open difficulty.csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read difficulty.csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("difficulty.csv: empty file")
	}

	headers := rows[0]
	idIdx, ok := headerIndex(headers, "id")
	if !ok {
		return nil, fmt.Errorf("difficulty.csv: missing column id")
	}
	var diffIdx [models.DifficultyCount]int
	for d := models.Difficulty(0); int(d) < models.DifficultyCount; d++ {
		idx, ok := headerIndex(headers, d.String())
		if !ok {
			return nil, fmt.Errorf("difficulty.csv: missing column %s", d)
		}
		diffIdx[d] = idx
	}

	out := make(map[string]models.ChartConstants, len(rows)-1)
	for _, row := range rows[1:] {
		id := strings.TrimSpace(get(row, idIdx))
		if id == "" {
			continue
		}
		var cc models.ChartConstants
		ez, err := parseOptFloat(get(row, diffIdx[models.DifficultyEZ]))
		if err != nil {
			return nil, fmt.Errorf("difficulty.csv %s: %w", id, err)
		}
		hd, err := parseOptFloat(get(row, diffIdx[models.DifficultyHD]))
		if err != nil {
			return nil, fmt.Errorf("difficulty.csv %s: %w", id, err)
		}
		in, err := parseOptFloat(get(row, diffIdx[models.DifficultyIN]))
		if err != nil {
			return nil, fmt.Errorf("difficulty.csv %s: %w", id, err)
		}
		at, err := parseOptFloat(get(row, diffIdx[models.DifficultyAT]))
		if err != nil {
			return nil, fmt.Errorf("difficulty.csv %s: %w", id, err)
		}
		cc.EZ, cc.HD, cc.IN, cc.AT = ez, hd, in, at
		out[id] = cc
	}
	return out, nil
}

// loadInfo lit info.csv (id, song/name, composer, illustrator) et fusionne
// les constantes de chart par identifiant.
func loadInfo(path string, constants map[string]models.ChartConstants) ([]*models.Song, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open info.csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read info.csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("info.csv: empty file")
	}

	headers := rows[0]
	idIdx, ok := headerIndex(headers, "id")
	if !ok {
		return nil, fmt.Errorf("info.csv: missing column id")
	}
	nameIdx, ok := headerIndex(headers, "song")
	if !ok {
		nameIdx, ok = headerIndex(headers, "name")
		if !ok {
			return nil, fmt.Errorf("info.csv: missing column song/name")
		}
	}
	composerIdx, ok := headerIndex(headers, "composer")
	if !ok {
		return nil, fmt.Errorf("info.csv: missing column composer")
	}
	illustratorIdx, ok := headerIndex(headers, "illustrator")
	if !ok {
		return nil, fmt.Errorf("info.csv: missing column illustrator")
	}

	songs := make([]*models.Song, 0, len(rows)-1)
	for _, row := range rows[1:] {
		id := strings.TrimSpace(get(row, idIdx))
		if id == "" {
			continue
		}
		songs = append(songs, &models.Song{
			ID:          id,
			Name:        strings.TrimSpace(get(row, nameIdx)),
			Composer:    strings.TrimSpace(get(row, composerIdx)),
			Illustrator: strings.TrimSpace(get(row, illustratorIdx)),
			Constants:   constants[id],
		})
	}
	return songs, nil
}

// loadAliases lit nicklist.yaml (alias -> liste d'identifiants).
func loadAliases(path string) (map[string][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open nicklist.yaml: %w", err)
	}
	var aliases map[string][]string
	if err := yaml.Unmarshal(raw, &aliases); err != nil {
		return nil, fmt.Errorf("parse nicklist.yaml: %w", err)
	}
	return aliases, nil
}

// SearchOptions paramètre une recherche dans le catalogue.
type SearchOptions struct {
	Unique bool
	Limit  int
	Offset int
}

// SearchPage est une page de résultats de recherche.
type SearchPage struct {
	Items      []*models.Song `json:"items"`
	Total      int            `json:"total"`
	NextOffset *int           `json:"nextOffset,omitempty"`
}

// Candidate est l'aperçu renvoyé quand une recherche unique est ambiguë.
type Candidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MaxSearchLimit borne la taille d'une page de recherche.
const MaxSearchLimit = 100

// ambiguousPreview borne le nombre de candidats exposés en cas d'ambiguïté.
const ambiguousPreview = 8

// rank ordonne les résultats: id exact, puis nom exact, puis alias exact,
// puis sous-chaîne insensible à la casse.
func (c *Catalog) rank(query string) []*models.Song {
	norm := Normalize(query)
	if norm == "" {
		return nil
	}

	seen := make(map[string]bool)
	var out []*models.Song
	add := func(songs []*models.Song) {
		for _, s := range songs {
			if !seen[s.ID] {
				seen[s.ID] = true
				out = append(out, s)
			}
		}
	}

	if s, ok := c.byID[query]; ok {
		add([]*models.Song{s})
	}
	add(c.byName[norm])
	add(c.byAlias[norm])

	var sub []*models.Song
	for _, s := range c.ordered {
		if seen[s.ID] {
			continue
		}
		if strings.Contains(strings.ToLower(s.ID), norm) ||
			strings.Contains(Normalize(s.Name), norm) {
			sub = append(sub, s)
		}
	}
	add(sub)

	return out
}

// Search exécute une recherche paginée. En mode unique, zéro résultat est
// une erreur NotFound et plusieurs résultats une erreur Ambiguous portant
// un aperçu borné des candidats.
func (c *Catalog) Search(query string, opts SearchOptions) (*SearchPage, *models.Song, error) {
	if opts.Limit <= 0 || opts.Limit > MaxSearchLimit {
		return nil, nil, apperr.Newf(apperr.KindValidation, "invalid limit").
			WithField("limit", "OUT_OF_RANGE", fmt.Sprintf("must be in [1,%d]", MaxSearchLimit))
	}
	if opts.Offset < 0 {
		return nil, nil, apperr.Newf(apperr.KindValidation, "invalid offset").
			WithField("offset", "OUT_OF_RANGE", "must be >= 0")
	}

	matches := c.rank(query)

	if opts.Unique {
		switch len(matches) {
		case 0:
			return nil, nil, apperr.Newf(apperr.KindNotFound, "no song matches %q", query)
		case 1:
			return nil, matches[0], nil
		default:
			preview := make([]Candidate, 0, ambiguousPreview)
			for _, s := range matches {
				if len(preview) == ambiguousPreview {
					break
				}
				preview = append(preview, Candidate{ID: s.ID, Name: s.Name})
			}
			return nil, nil, apperr.Newf(apperr.KindAmbiguous, "query %q matches %d songs", query, len(matches)).
				WithField("q", "AMBIGUOUS", "query matches multiple songs").
				WithExtra("candidates", preview).
				WithExtra("candidatesTotal", len(matches))
		}
	}

	page := &SearchPage{Total: len(matches)}
	if opts.Offset < len(matches) {
		end := opts.Offset + opts.Limit
		if end > len(matches) {
			end = len(matches)
		}
		page.Items = matches[opts.Offset:end]
		if end < len(matches) {
			next := end
			page.NextOffset = &next
		}
	} else {
		page.Items = []*models.Song{}
	}
	return page, nil, nil
}
