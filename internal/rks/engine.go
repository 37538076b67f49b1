package rks

import (
	"container/heap"
	"math"
	"sort"

	"github.com/Sczr0/Next-Phi-Backend/internal/catalog"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
)

// DefaultBestK est la taille par défaut de la sélection Best.
const DefaultBestK = 27

// apTopCount est le nombre de charts AP retenus en plus du Best.
const apTopCount = 3

// ChartRks calcule le RKS d'un chart: nul sous 70% de précision, sinon
// ((acc-55)/45)² multiplié par la constante.
func ChartRks(acc, constant float64) float64 {
	if acc < 70 {
		return 0
	}
	base := (acc - 55) / 45
	return base * base * constant
}

// IsAP qualifie un record all-perfect.
func IsAP(acc float64) bool { return acc == 100.0 }

// better ordonne deux records du meilleur au moins bon: rks décroissant puis
// acc décroissante, score décroissant, songId croissant, difficulté
// croissante. L'ordre total garantit une sélection stable.
func better(a, b *models.BestRecord) bool {
	if a.RKS != b.RKS {
		return a.RKS > b.RKS
	}
	if a.Accuracy != b.Accuracy {
		return a.Accuracy > b.Accuracy
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.SongID != b.SongID {
		return a.SongID < b.SongID
	}
	return a.Difficulty < b.Difficulty
}

// bottomHeap est un tas borné gardant les K meilleurs records; la racine
// est le moins bon d'entre eux.
type bottomHeap []*models.BestRecord

func (h bottomHeap) Len() int            { return len(h) }
func (h bottomHeap) Less(i, j int) bool  { return better(h[j], h[i]) }
func (h bottomHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *bottomHeap) Push(x interface{}) { *h = append(*h, x.(*models.BestRecord)) }
func (h *bottomHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// topK maintient au plus k records dans un tas borné sans jamais trier
// l'ensemble complet.
type topK struct {
	k    int
	heap bottomHeap
}

func newTopK(k int) *topK { return &topK{k: k} }

func (t *topK) offer(r *models.BestRecord) {
	if t.k <= 0 {
		return
	}
	if len(t.heap) < t.k {
		heap.Push(&t.heap, r)
		return
	}
	if better(r, t.heap[0]) {
		t.heap[0] = r
		heap.Fix(&t.heap, 0)
	}
}

// sorted extrait le contenu du tas du meilleur au moins bon.
func (t *topK) sorted() []*models.BestRecord {
	out := make([]*models.BestRecord, len(t.heap))
	copy(out, t.heap)
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out
}

// Result est la vue RKS complète d'un joueur.
type Result struct {
	PlayerRks        float64              `json:"playerRks"`
	PlayerRksRounded float64              `json:"playerRksRounded"`
	Best             []models.BestRecord  `json:"best"`
	APTop3           []models.BestRecord  `json:"apTop3"`
	BestMean         float64              `json:"bestMean"`
	ChartCount       int                  `json:"chartCount"`
}

// CollectRecords croise la sauvegarde et le catalogue: seuls les couples
// (morceau, difficulté) avec record présent et constante connue comptent.
func CollectRecords(save *models.ParsedSave, cat *catalog.Catalog) []models.BestRecord {
	var out []models.BestRecord
	for songID, slots := range save.GameRecord {
		song, ok := cat.Lookup(songID)
		if !ok {
			continue
		}
		for d := 0; d < models.DifficultyCount; d++ {
			rec := slots[d]
			if rec == nil {
				continue
			}
			constant := song.Constants.Get(models.Difficulty(d))
			if constant == nil {
				continue
			}
			out = append(out, models.BestRecord{
				SongID:      songID,
				SongName:    song.Name,
				Difficulty:  models.Difficulty(d),
				Constant:    *constant,
				Score:       rec.Score,
				Accuracy:    rec.Accuracy,
				RKS:         ChartRks(rec.Accuracy, *constant),
				IsFullCombo: rec.IsFullCombo,
				IsPhi:       rec.IsPhi,
			})
		}
	}
	return out
}

// Compute sélectionne Best-K et AP-Top-3 puis calcule le RKS joueur comme
// moyenne des K+3 valeurs, multiplicité comprise.
func Compute(records []models.BestRecord, k int) *Result {
	if k <= 0 {
		k = DefaultBestK
	}

	best := newTopK(k)
	ap := newTopK(apTopCount)
	for i := range records {
		best.offer(&records[i])
		if IsAP(records[i].Accuracy) {
			ap.offer(&records[i])
		}
	}

	bestSorted := best.sorted()
	apSorted := ap.sorted()

	sum := 0.0
	for _, r := range bestSorted {
		sum += r.RKS
	}
	bestMean := 0.0
	if len(bestSorted) > 0 {
		bestMean = sum / float64(len(bestSorted))
	}
	for _, r := range apSorted {
		sum += r.RKS
	}
	playerRks := sum / float64(k+apTopCount)

	res := &Result{
		PlayerRks:        playerRks,
		PlayerRksRounded: math.Round(playerRks*100) / 100,
		Best:             deref(bestSorted),
		APTop3:           deref(apSorted),
		BestMean:         bestMean,
		ChartCount:       len(records),
	}
	return res
}

func deref(in []*models.BestRecord) []models.BestRecord {
	out := make([]models.BestRecord, len(in))
	for i, r := range in {
		out[i] = *r
	}
	return out
}

// pushAccIterations borne la dichotomie de PushAcc.
const (
	pushAccPrecision  = 1e-7
	pushAccIterations = 50
)

// PushAcc calcule la précision minimale qui porterait le RKS d'un chart
// au-dessus de target, par dichotomie sur [70,100]. Retourne nil quand
// même 100% ne suffirait pas.
func PushAcc(constant, target float64) *float64 {
	if constant <= 0 {
		return nil
	}
	if ChartRks(100, constant) < target {
		return nil
	}
	if ChartRks(70, constant) >= target {
		v := 70.0
		return &v
	}

	lo, hi := 70.0, 100.0
	for i := 0; i < pushAccIterations && hi-lo > pushAccPrecision; i++ {
		mid := (lo + hi) / 2
		if ChartRks(mid, constant) >= target {
			hi = mid
		} else {
			lo = mid
		}
	}
	return &hi
}

// PushAdvice associe un chart à la précision qui le ferait entrer dans le
// Best-K courant.
type PushAdvice struct {
	SongID     string            `json:"songId"`
	SongName   string            `json:"songName"`
	Difficulty models.Difficulty `json:"difficulty"`
	Constant   float64           `json:"constant"`
	CurrentAcc float64           `json:"currentAcc"`
	TargetAcc  float64           `json:"targetAcc"`
}

// Advise liste, pour chaque chart hors Best-K et non AP, la précision
// minimale qui dépasserait la valeur du K-ième record.
func Advise(records []models.BestRecord, result *Result) []PushAdvice {
	if len(result.Best) == 0 {
		return nil
	}
	threshold := result.Best[len(result.Best)-1].RKS

	inBest := make(map[string]bool, len(result.Best))
	for _, r := range result.Best {
		inBest[r.SongID+"#"+r.Difficulty.String()] = true
	}

	var out []PushAdvice
	for _, r := range records {
		if IsAP(r.Accuracy) || inBest[r.SongID+"#"+r.Difficulty.String()] {
			continue
		}
		target := PushAcc(r.Constant, threshold)
		if target == nil {
			continue
		}
		out = append(out, PushAdvice{
			SongID:     r.SongID,
			SongName:   r.SongName,
			Difficulty: r.Difficulty,
			Constant:   r.Constant,
			CurrentAcc: r.Accuracy,
			TargetAcc:  *target,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TargetAcc != out[j].TargetAcc {
			return out[i].TargetAcc < out[j].TargetAcc
		}
		if out[i].SongID != out[j].SongID {
			return out[i].SongID < out[j].SongID
		}
		return out[i].Difficulty < out[j].Difficulty
	})
	return out
}
