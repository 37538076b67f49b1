package saveprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
	"github.com/Sczr0/Next-Phi-Backend/internal/taptap"
)

// externalAPIURL est le service tiers acceptant les credentials externes.
const externalAPIURL = "https://phib19.top:8080/get/cloud/saves"

// Client interroge les fournisseurs de sauvegardes cloud.
type Client struct {
	http           *http.Client
	defaultVersion string
}

// NewClient construit le client amont avec les délais standard.
func NewClient(defaultVersion string) *Client {
	return &Client{
		http:           taptap.NewHTTPClient(),
		defaultVersion: defaultVersion,
	}
}

// FetchResult est le fruit d'une requête de métadonnées de sauvegarde.
type FetchResult struct {
	DownloadURL string
	SummaryB64  string
	UpdatedAt   string
}

type saveInfoResponse struct {
	Results []saveInfoResult `json:"results"`
}

type saveInfoResult struct {
	ObjectID  string   `json:"objectId"`
	Summary   string   `json:"summary"`
	GameFile  gameFile `json:"gameFile"`
	UpdatedAt string   `json:"updatedAt"`
}

type gameFile struct {
	ObjectID string `json:"objectId"`
	URL      string `json:"url"`
}

// FetchOfficial récupère les métadonnées de sauvegarde via la session
// LeanCloud officielle.
func (c *Client) FetchOfficial(ctx context.Context, sessionToken, version string) (*FetchResult, error) {
	ep := taptap.Resolve(version, c.defaultVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.LeanCloudBaseURL+"/classes/_GameSave?limit=1", nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "build save info request", err)
	}
	req.Header.Set("X-LC-Id", ep.AppID)
	req.Header.Set("X-LC-Key", ep.AppKey)
	req.Header.Set("X-LC-Session", sessionToken)
	req.Header.Set("User-Agent", taptap.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, taptap.MapTransportError("fetch save info", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, apperr.New(apperr.KindAuth, "session token rejected by the save provider")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Newf(apperr.KindInvalidResponse, "save provider returned HTTP %d", resp.StatusCode)
	}

	var info saveInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, apperr.Wrap(apperr.KindJson, "decode save info response", err)
	}
	if len(info.Results) == 0 {
		return nil, apperr.New(apperr.KindMetadata, "no cloud save found for this account")
	}

	result := info.Results[0]
	url := result.GameFile.URL
	if !strings.HasPrefix(url, "http") {
		url = "https://" + url
	}
	return &FetchResult{
		DownloadURL: url,
		SummaryB64:  result.Summary,
		UpdatedAt:   result.UpdatedAt,
	}, nil
}

type externalRequest struct {
	Platform     string `json:"platform,omitempty"`
	PlatformID   string `json:"platform_id,omitempty"`
	Sessiontoken string `json:"sessiontoken,omitempty"`
	APIUserID    string `json:"api_user_id,omitempty"`
	APIToken     string `json:"api_token,omitempty"`
}

type externalResponse struct {
	Data externalData `json:"data"`
}

type externalData struct {
	SaveURL  string            `json:"saveUrl"`
	SaveInfo *externalSaveInfo `json:"saveInfo"`
	Summary  *externalSummary  `json:"summary"`
}

type externalSaveInfo struct {
	UpdatedAt  string            `json:"updatedAt"`
	ModifiedAt *leancloudDate    `json:"modifiedAt"`
	GameFile   *externalGameFile `json:"gameFile"`
}

type leancloudDate struct {
	Type string `json:"__type"`
	ISO  string `json:"iso"`
}

type externalGameFile struct {
	UpdatedAt string `json:"updatedAt"`
}

type externalSummary struct {
	UpdatedAt string `json:"updatedAt"`
}

// FetchExternal récupère l'URL de sauvegarde via l'API tierce acceptant
// des credentials externes. Le résumé n'est pas disponible par cette voie.
func (c *Client) FetchExternal(ctx context.Context, creds *models.ExternalCredentials) (*FetchResult, error) {
	body, err := json.Marshal(externalRequest{
		Platform:     creds.Platform,
		PlatformID:   creds.PlatformID,
		Sessiontoken: creds.Sessiontoken,
		APIUserID:    creds.APIUserID,
		APIToken:     creds.APIToken,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "encode external request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, externalAPIURL, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "build external request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, taptap.MapTransportError("fetch external save info", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Newf(apperr.KindInvalidResponse, "external save provider returned HTTP %d", resp.StatusCode)
	}

	var ext externalResponse
	if err := json.NewDecoder(resp.Body).Decode(&ext); err != nil {
		return nil, apperr.Wrap(apperr.KindJson, "decode external response", err)
	}
	if ext.Data.SaveURL == "" {
		return nil, apperr.New(apperr.KindInvalidResponse, "external save provider returned no save URL")
	}

	updatedAt := ""
	if info := ext.Data.SaveInfo; info != nil {
		updatedAt = info.UpdatedAt
		if updatedAt == "" && info.ModifiedAt != nil {
			updatedAt = info.ModifiedAt.ISO
		}
		if updatedAt == "" && info.GameFile != nil {
			updatedAt = info.GameFile.UpdatedAt
		}
	}
	if updatedAt == "" && ext.Data.Summary != nil {
		updatedAt = ext.Data.Summary.UpdatedAt
	}

	return &FetchResult{DownloadURL: ext.Data.SaveURL, UpdatedAt: updatedAt}, nil
}

// Download télécharge le blob de sauvegarde.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "build download request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, taptap.MapTransportError("download save", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Newf(apperr.KindInvalidResponse, "save download returned HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, taptap.MapTransportError("read save body", err)
	}
	return data, nil
}
