package authclient

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/logger"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
)

// Service porte le flux de connexion par QR code et la table des sessions.
type Service struct {
	client *Client
	store  *sessionStore
}

// NewService construit le service d'authentification.
func NewService(client *Client) *Service {
	return &Service{client: client, store: newSessionStore()}
}

// StartQRFlow demande un device code amont, génère le QR SVG et enregistre
// la session sous un identifiant serveur.
func (s *Service) StartQRFlow(ctx context.Context, version string) (*models.QRCreateResponse, error) {
	deviceID := uuid.NewString()
	dc, err := s.client.RequestDeviceCode(ctx, deviceID, version)
	if err != nil {
		return nil, err
	}

	verificationURL := dc.QRCodeURL
	if verificationURL == "" {
		verificationURL = dc.VerificationURL
	}
	qrBase64, err := renderQRCodeBase64(verificationURL)
	if err != nil {
		return nil, err
	}

	interval := time.Duration(dc.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	expiresIn := dc.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 300
	}

	qrID := uuid.NewString()
	s.store.put(qrID, &qrSession{
		state:      statePending,
		deviceCode: dc.DeviceCode,
		deviceID:   deviceID,
		version:    version,
		interval:   interval,
		nextPollAt: time.Now(),
		expiresAt:  time.Now().Add(time.Duration(expiresIn) * time.Second),
	})

	return &models.QRCreateResponse{
		QRID:            qrID,
		VerificationURL: verificationURL,
		QRCodeBase64:    qrBase64,
		ExpiresInSecs:   expiresIn,
		Version:         version,
	}, nil
}

// PollQRStatus traduit l'état amont d'une session QR. Les limites de
// cadence amont sont respectées via nextPollAt; une session expirée est
// retirée et signalée Expired une seule fois.
func (s *Service) PollQRStatus(ctx context.Context, qrID string) (*models.QRStatusResponse, error) {
	sess, existed, alive := s.store.get(qrID)
	if !existed {
		return nil, apperr.Newf(apperr.KindNotFound, "unknown qr session")
	}
	if !alive {
		return &models.QRStatusResponse{Status: models.QRStatusExpired}, nil
	}

	if sess.state == stateConfirmed {
		return &models.QRStatusResponse{
			Status:       models.QRStatusConfirmed,
			SessionToken: sess.sessionToken,
		}, nil
	}

	if wait := time.Until(sess.nextPollAt); wait > 0 {
		return s.currentStatus(sess, int(wait.Seconds())+1), nil
	}

	token, err := s.client.PollToken(ctx, sess.deviceCode, sess.deviceID, sess.version)
	sess.nextPollAt = time.Now().Add(sess.interval)

	switch {
	case err == nil:
		sess.state = stateConfirmed
		sess.sessionToken = token
		s.store.put(qrID, sess)
		return &models.QRStatusResponse{
			Status:       models.QRStatusConfirmed,
			SessionToken: token,
		}, nil
	case apperr.From(err).Kind == apperr.KindAuthPending:
		if apperr.From(err).Detail == "authorization scanned, waiting for confirmation" {
			sess.state = stateScanned
		}
		s.store.put(qrID, sess)
		return s.currentStatus(sess, int(sess.interval.Seconds())), nil
	case apperr.From(err).Kind == apperr.KindTimeout || apperr.From(err).Kind == apperr.KindNetwork:
		return nil, err
	default:
		s.store.remove(qrID)
		logger.Warning("flux QR %s refusé par l'amont", qrID)
		return &models.QRStatusResponse{Status: models.QRStatusError}, nil
	}
}

func (s *Service) currentStatus(sess *qrSession, retryAfter int) *models.QRStatusResponse {
	status := models.QRStatusPending
	if sess.state == stateScanned {
		status = models.QRStatusScanned
	}
	return &models.QRStatusResponse{Status: status, RetryAfter: retryAfter}
}

// RunSweeper balaie périodiquement les sessions expirées jusqu'à
// annulation du contexte.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.store.sweep(); n > 0 {
				logger.Debug("sessions QR expirées retirées: %d", n)
			}
		}
	}
}
