package saveprovider

import (
	"context"
	"time"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/logger"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
)

// Provider orchestre la chaîne complète: credentials, fetch, téléchargement,
// déchiffrement puis extraction structurée.
type Provider struct {
	client *Client
	key    []byte
	iv     []byte
}

// NewProvider construit le provider avec le matériel AES configuré.
func NewProvider(client *Client, key, iv []byte) *Provider {
	return &Provider{client: client, key: key, iv: iv}
}

// ValidateRequest vérifie qu'exactement une voie d'identification valide
// est fournie.
func ValidateRequest(req *models.UnifiedSaveRequest) error {
	if req == nil || (req.SessionToken == "" && req.External == nil) {
		return apperr.New(apperr.KindMissingField, "sessionToken or externalCredentials is required")
	}
	if req.SessionToken != "" && req.External != nil {
		return apperr.New(apperr.KindInvalidCredentials, "provide either sessionToken or externalCredentials, not both")
	}
	if req.SessionToken == "" && !req.HasCredentials() {
		return apperr.New(apperr.KindInvalidCredentials,
			"externalCredentials requires one of: platform + platformId, sessiontoken, apiUserId")
	}
	return nil
}

// Fetch interroge le fournisseur adapté aux credentials de la requête.
func (p *Provider) Fetch(ctx context.Context, req *models.UnifiedSaveRequest, version string) (*FetchResult, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if req.SessionToken != "" {
		return p.client.FetchOfficial(ctx, req.SessionToken, version)
	}
	return p.client.FetchExternal(ctx, req.External)
}

// GetParsedSave exécute la chaîne complète et retourne la sauvegarde
// structurée.
func (p *Provider) GetParsedSave(ctx context.Context, req *models.UnifiedSaveRequest, version string) (*models.ParsedSave, error) {
	fetched, err := p.Fetch(ctx, req, version)
	if err != nil {
		return nil, err
	}

	raw, err := p.client.Download(ctx, fetched.DownloadURL)
	if err != nil {
		return nil, err
	}

	save, err := p.Parse(raw)
	if err != nil {
		return nil, err
	}

	if fetched.SummaryB64 != "" {
		summary, err := ParseSummary(fetched.SummaryB64)
		if err != nil {
			logger.Warning("résumé de sauvegarde illisible: %v", err)
		} else {
			save.SummaryParsed = summary
		}
	}
	if fetched.UpdatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, fetched.UpdatedAt); err == nil {
			save.UpdatedAt = ts.UTC()
		}
	}
	return save, nil
}

// Parse déballe, déchiffre et décode un blob de sauvegarde téléchargé.
// Une entrée absente de l'archive produit simplement un champ nil; une
// entrée présente mais indéchiffrable est une erreur.
func (p *Provider) Parse(raw []byte) (*models.ParsedSave, error) {
	entries, err := ExtractEntries(Unwrap(raw))
	if err != nil {
		return nil, err
	}

	save := &models.ParsedSave{
		GameRecord: make(map[string][models.DifficultyCount]*models.Record),
	}

	if enc, ok := entries["gameRecord"]; ok {
		plain, err := DecryptEntry(enc, p.key, p.iv)
		if err != nil {
			return nil, err
		}
		records, err := ParseGameRecord(plain)
		if err != nil {
			return nil, err
		}
		save.GameRecord = records
	}
	if enc, ok := entries["gameKey"]; ok {
		plain, err := DecryptEntry(enc, p.key, p.iv)
		if err != nil {
			return nil, err
		}
		if save.GameKey, err = ParseGameKey(plain); err != nil {
			return nil, err
		}
	}
	if enc, ok := entries["gameProgress"]; ok {
		plain, err := DecryptEntry(enc, p.key, p.iv)
		if err != nil {
			return nil, err
		}
		if save.GameProgress, err = ParseGameProgress(plain); err != nil {
			return nil, err
		}
	}
	if enc, ok := entries["user"]; ok {
		plain, err := DecryptEntry(enc, p.key, p.iv)
		if err != nil {
			return nil, err
		}
		if save.User, err = ParseUser(plain); err != nil {
			return nil, err
		}
	}
	if enc, ok := entries["settings"]; ok {
		plain, err := DecryptEntry(enc, p.key, p.iv)
		if err != nil {
			return nil, err
		}
		if save.Settings, err = ParseSettings(plain); err != nil {
			return nil, err
		}
	}
	return save, nil
}
