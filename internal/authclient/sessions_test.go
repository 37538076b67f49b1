package authclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreLifecycle(t *testing.T) {
	s := newSessionStore()

	s.put("qr-1", &qrSession{
		deviceCode: "code",
		expiresAt:  time.Now().Add(time.Minute),
	})

	sess, existed, alive := s.get("qr-1")
	require.True(t, existed)
	require.True(t, alive)
	assert.Equal(t, "code", sess.deviceCode)

	s.remove("qr-1")
	_, existed, _ = s.get("qr-1")
	assert.False(t, existed)
}

func TestSessionStoreExpiry(t *testing.T) {
	s := newSessionStore()
	s.put("qr-exp", &qrSession{expiresAt: time.Now().Add(-time.Second)})

	// Une session expirée est signalée puis retirée
	_, existed, alive := s.get("qr-exp")
	assert.True(t, existed)
	assert.False(t, alive)

	_, existed, _ = s.get("qr-exp")
	assert.False(t, existed)
}

func TestSessionStoreSweep(t *testing.T) {
	s := newSessionStore()
	s.put("vivante", &qrSession{expiresAt: time.Now().Add(time.Minute)})
	s.put("morte-1", &qrSession{expiresAt: time.Now().Add(-time.Minute)})
	s.put("morte-2", &qrSession{expiresAt: time.Now().Add(-time.Second)})

	assert.Equal(t, 2, s.sweep())
	assert.Equal(t, 0, s.sweep())

	_, existed, alive := s.get("vivante")
	assert.True(t, existed)
	assert.True(t, alive)
}
