package taptap

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
)

// UserAgent est l'agent attendu par les endpoints LeanCloud du jeu.
const UserAgent = "LeanCloud-CSharp-SDK/1.0.3"

// Endpoints regroupe les URLs amont d'une édition du jeu.
type Endpoints struct {
	Version          string
	DeviceCodeURL    string
	TokenURL         string
	UserInfoURL      string
	UserInfoHost     string
	LeanCloudBaseURL string
	AppID            string
	AppKey           string
}

var cnEndpoints = Endpoints{
	Version:          "cn",
	DeviceCodeURL:    "https://www.taptap.com/oauth2/v1/device/code",
	TokenURL:         "https://www.taptap.cn/oauth2/v1/token",
	UserInfoURL:      "https://open.tapapis.cn/account/basic-info/v1",
	UserInfoHost:     "open.tapapis.cn",
	LeanCloudBaseURL: "https://rak3ffdi.cloud.tds1.tapapis.cn/1.1",
	AppID:            "rAK3FfdieFob2Nn8Am",
	AppKey:           "Qr9AEqtuoSVS3zeD6iVbM4ZC0AtkJcQ89tywVyi0",
}

var globalEndpoints = Endpoints{
	Version:          "global",
	DeviceCodeURL:    "https://www.taptap.io/oauth2/v1/device/code",
	TokenURL:         "https://www.taptap.io/oauth2/v1/token",
	UserInfoURL:      "https://open.tapapis.io/account/basic-info/v1",
	UserInfoHost:     "open.tapapis.io",
	LeanCloudBaseURL: "https://rak3ffdi.cloud.tds1.tapapis.io/1.1",
	AppID:            "rAK3FfdieFob2Nn8Am",
	AppKey:           "Qr9AEqtuoSVS3zeD6iVbM4ZC0AtkJcQ89tywVyi0",
}

// Resolve retourne les endpoints d'une version, defaultVersion si la
// version demandée est vide ou inconnue.
func Resolve(version, defaultVersion string) Endpoints {
	switch version {
	case "global":
		return globalEndpoints
	case "cn":
		return cnEndpoints
	}
	if defaultVersion == "global" {
		return globalEndpoints
	}
	return cnEndpoints
}

// NewHTTPClient construit le client HTTP amont: 10s de connexion, 30s au
// total.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// MapTransportError classe une erreur de transport: expiration du délai
// total en Timeout, tout le reste en Network.
func MapTransportError(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return apperr.Wrap(apperr.KindTimeout, op, err)
	}
	return apperr.Wrap(apperr.KindNetwork, op, err)
}
