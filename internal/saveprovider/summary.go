package saveprovider

import (
	"encoding/base64"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
)

// ParseSummary décode le résumé base64 attaché à la sauvegarde cloud:
// version, rang de mode défi, score de classement, version du jeu, avatar
// puis douze compteurs de progression.
func ParseSummary(b64 string) (*models.SaveSummary, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindMetadata, "decode summary base64", err)
	}
	r := newByteReader(raw)

	s := &models.SaveSummary{}
	if s.SaveVersion, err = r.readU8(); err != nil {
		return nil, apperr.Wrap(apperr.KindMetadata, "summary saveVersion", err)
	}
	if s.ChallengeModeRank, err = r.readU16LE(); err != nil {
		return nil, apperr.Wrap(apperr.KindMetadata, "summary challengeModeRank", err)
	}
	if s.RankingScore, err = r.readF32LE(); err != nil {
		return nil, apperr.Wrap(apperr.KindMetadata, "summary rankingScore", err)
	}
	if s.GameVersion, err = r.readU8(); err != nil {
		return nil, apperr.Wrap(apperr.KindMetadata, "summary gameVersion", err)
	}
	if s.Avatar, err = r.readString(0); err != nil {
		return nil, apperr.Wrap(apperr.KindMetadata, "summary avatar", err)
	}
	for i := range s.Progress {
		if s.Progress[i], err = r.readU16LE(); err != nil {
			return nil, apperr.Wrap(apperr.KindMetadata, "summary progress", err)
		}
	}
	return s, nil
}
