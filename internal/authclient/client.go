package authclient

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/taptap"
)

// userAgent attendu par les endpoints OAuth device-code.
const deviceUserAgent = "TapTapAndroidSDK/3.16.5"

// Client parle aux endpoints OAuth TapTap et au backend LeanCloud du jeu.
type Client struct {
	http           *http.Client
	defaultVersion string
}

// NewClient construit le client d'authentification amont.
func NewClient(defaultVersion string) *Client {
	return &Client{
		http:           taptap.NewHTTPClient(),
		defaultVersion: defaultVersion,
	}
}

// DeviceCode est la réponse du endpoint device-code.
type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	VerificationURL string `json:"verification_url"`
	UserCode        string `json:"user_code"`
	Interval        int    `json:"interval"`
	ExpiresIn       int    `json:"expires_in"`
	QRCodeURL       string `json:"qrcode_url"`
}

type upstreamEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type upstreamError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (*upstreamEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "build upstream request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", deviceUserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, taptap.MapTransportError("call login upstream", err)
	}
	defer resp.Body.Close()

	var envelope upstreamEnvelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&envelope)

	if resp.StatusCode != http.StatusOK && decodeErr != nil {
		return nil, apperr.Newf(apperr.KindNetwork, "login upstream returned HTTP %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, apperr.Wrap(apperr.KindInvalidResponse, "decode upstream response", decodeErr)
	}
	return &envelope, nil
}

// classifyBusinessError traduit un refus métier du upstream. Le corps
// amont n'est jamais recopié tel quel dans l'erreur.
func classifyBusinessError(data json.RawMessage) error {
	var ue upstreamError
	_ = json.Unmarshal(data, &ue)
	classifier := strings.ToLower(ue.Error + " " + ue.ErrorDescription + " " + ue.Msg)
	if strings.Contains(classifier, "authorization_pending") || strings.Contains(classifier, "slow_down") {
		return apperr.New(apperr.KindAuthPending, "authorization pending")
	}
	if strings.Contains(classifier, "authorization_waiting") {
		return apperr.New(apperr.KindAuthPending, "authorization scanned, waiting for confirmation")
	}
	if ue.Error != "" {
		return apperr.Newf(apperr.KindAuth, "login upstream refused: %s", ue.Error)
	}
	return apperr.New(apperr.KindAuth, "login upstream refused the request")
}

// RequestDeviceCode démarre le flux device-code pour une version donnée.
func (c *Client) RequestDeviceCode(ctx context.Context, deviceID, version string) (*DeviceCode, error) {
	ep := taptap.Resolve(version, c.defaultVersion)
	info, _ := json.Marshal(map[string]string{"device_id": deviceID})

	form := url.Values{}
	form.Set("client_id", ep.AppID)
	form.Set("response_type", "device_code")
	form.Set("scope", "basic_info")
	form.Set("version", "1.2.0")
	form.Set("platform", "unity")
	form.Set("info", string(info))

	envelope, err := c.postForm(ctx, ep.DeviceCodeURL, form)
	if err != nil {
		return nil, err
	}
	if !envelope.Success {
		return nil, classifyBusinessError(envelope.Data)
	}

	var dc DeviceCode
	if err := json.Unmarshal(envelope.Data, &dc); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidResponse, "decode device code", err)
	}
	if dc.DeviceCode == "" {
		return nil, apperr.New(apperr.KindInvalidResponse, "upstream returned no device code")
	}
	return &dc, nil
}

type accessToken struct {
	KID    string `json:"kid"`
	MacKey string `json:"mac_key"`
}

type accountInfo struct {
	OpenID  string `json:"openid"`
	UnionID string `json:"unionid"`
}

// PollToken tente l'échange du device code: AuthPending tant que le joueur
// n'a pas confirmé, puis un sessionToken LeanCloud une fois l'accès
// accordé.
func (c *Client) PollToken(ctx context.Context, deviceCode, deviceID, version string) (string, error) {
	ep := taptap.Resolve(version, c.defaultVersion)
	info, _ := json.Marshal(map[string]string{"device_id": deviceID})

	form := url.Values{}
	form.Set("grant_type", "device_token")
	form.Set("client_id", ep.AppID)
	form.Set("secret_type", "hmac-sha-1")
	form.Set("code", deviceCode)
	form.Set("version", "1.0")
	form.Set("platform", "unity")
	form.Set("info", string(info))

	envelope, err := c.postForm(ctx, ep.TokenURL, form)
	if err != nil {
		return "", err
	}
	if !envelope.Success {
		return "", classifyBusinessError(envelope.Data)
	}

	var token accessToken
	if err := json.Unmarshal(envelope.Data, &token); err != nil {
		return "", apperr.Wrap(apperr.KindInvalidResponse, "decode access token", err)
	}

	account, err := c.fetchAccount(ctx, ep, &token)
	if err != nil {
		return "", err
	}
	return c.loginLeanCloud(ctx, ep, &token, account)
}

func (c *Client) fetchAccount(ctx context.Context, ep taptap.Endpoints, token *accessToken) (*accountInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s?client_id=%s", ep.UserInfoURL, ep.AppID), nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "build account request", err)
	}
	req.Header.Set("User-Agent", deviceUserAgent)
	req.Header.Set("Authorization", macAuthorization(token, ep))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, taptap.MapTransportError("fetch account info", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Newf(apperr.KindNetwork, "account info returned HTTP %d", resp.StatusCode)
	}

	var envelope struct {
		Success bool        `json:"success"`
		Data    accountInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidResponse, "decode account info", err)
	}
	if !envelope.Success {
		return nil, apperr.New(apperr.KindAuth, "account info request refused")
	}
	return &envelope.Data, nil
}

// macAuthorization construit l'entête MAC hmac-sha-1 attendu par le
// endpoint d'informations de compte.
func macAuthorization(token *accessToken, ep taptap.Endpoints) string {
	ts := time.Now().Unix()
	nonce := rand.Uint32()

	input := fmt.Sprintf("%d\n%d\nGET\n/account/basic-info/v1?client_id=%s\n%s\n443\n\n",
		ts, nonce, ep.AppID, ep.UserInfoHost)

	mac := hmac.New(sha1.New, []byte(token.MacKey))
	mac.Write([]byte(input))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("MAC id=%q,ts=%q,nonce=%q,mac=%q",
		token.KID, fmt.Sprint(ts), fmt.Sprint(nonce), sig)
}

func (c *Client) loginLeanCloud(ctx context.Context, ep taptap.Endpoints, token *accessToken, account *accountInfo) (string, error) {
	authData := map[string]interface{}{
		"authData": map[string]interface{}{
			"taptap": map[string]interface{}{
				"kid":           token.KID,
				"access_token":  token.KID,
				"token_type":    "mac",
				"mac_key":       token.MacKey,
				"mac_algorithm": "hmac-sha-1",
				"openid":        account.OpenID,
				"unionid":       account.UnionID,
			},
		},
	}
	body, err := json.Marshal(authData)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "encode auth data", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.LeanCloudBaseURL+"/users", bytes.NewReader(body))
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "build user login request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", taptap.UserAgent)
	req.Header.Set("X-LC-Id", ep.AppID)
	req.Header.Set("X-LC-Key", ep.AppKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", taptap.MapTransportError("login game backend", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", apperr.Newf(apperr.KindAuth, "game backend login returned HTTP %d", resp.StatusCode)
	}

	var user struct {
		SessionToken string `json:"sessionToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", apperr.Wrap(apperr.KindInvalidResponse, "decode login response", err)
	}
	if user.SessionToken == "" {
		return "", apperr.New(apperr.KindInvalidResponse, "game backend returned no session token")
	}
	return user.SessionToken, nil
}
