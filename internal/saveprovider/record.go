package saveprovider

import (
	"github.com/Sczr0/Next-Phi-Backend/internal/logger"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
)

// flags des records binaires
const (
	flagFullCombo = 1 << 0
	flagPhi       = 1 << 1
)

// ParseGameRecord décode le blob gameRecord déchiffré. Le premier octet est
// le préfixe de version de l'entrée et n'est pas parsé. Le reste est une
// suite de tuples (songId préfixé, longueur varshort, payload). Un payload
// dont la structure ne tient pas dans les octets restants est ignoré avec
// le morceau correspondant; le parse global n'échoue pas pour autant.
func ParseGameRecord(data []byte) (map[string][models.DifficultyCount]*models.Record, error) {
	if len(data) == 0 {
		return nil, nil
	}
	r := newByteReader(data[1:])

	out := make(map[string][models.DifficultyCount]*models.Record)
	for r.remain() > 0 {
		songID, err := r.readString(0)
		if err != nil {
			break
		}
		payloadLen, err := r.readVarshort()
		if err != nil {
			break
		}
		if r.remain() < payloadLen {
			logger.Debug("gameRecord: payload tronqué pour %s, entrée ignorée", songID)
			break
		}
		payload := r.data[r.off : r.off+payloadLen]
		r.off += payloadLen

		records, ok := parseSongPayload(payload)
		if !ok {
			logger.Debug("gameRecord: payload invalide pour %s, morceau ignoré", songID)
			continue
		}
		out[songID] = records
	}
	return out, nil
}

// parseSongPayload décode le payload d'un morceau: un bitmap de difficultés
// puis, par niveau présent, un record compact (score u32le, acc f32le,
// flags u8). Les octets excédentaires sont tolérés.
func parseSongPayload(payload []byte) ([models.DifficultyCount]*models.Record, bool) {
	var records [models.DifficultyCount]*models.Record

	pr := newByteReader(payload)
	bitmap, err := pr.readU8()
	if err != nil {
		return records, false
	}
	for d := 0; d < models.DifficultyCount; d++ {
		if (bitmap>>d)&1 == 0 {
			continue
		}
		score, err := pr.readU32LE()
		if err != nil {
			return records, false
		}
		acc, err := pr.readF32LE()
		if err != nil {
			return records, false
		}
		flags, err := pr.readU8()
		if err != nil {
			return records, false
		}
		records[d] = &models.Record{
			Score:       float64(score),
			Accuracy:    float64(acc),
			IsFullCombo: flags&flagFullCombo != 0,
			IsPhi:       flags&flagPhi != 0,
		}
	}
	return records, true
}
