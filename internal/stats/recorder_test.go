package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sczr0/Next-Phi-Backend/internal/models"
)

func TestRecorderFlushesOnShutdown(t *testing.T) {
	s := newTestStore(t)
	rec := NewRecorder(s)

	ctx, cancel := context.WithCancel(context.Background())
	go rec.Run(ctx)

	for i := 0; i < 5; i++ {
		assert.True(t, rec.Record(models.Event{
			Route: "/api/v2/save", Method: "POST", Status: 200, DurationMs: 10,
		}))
	}
	cancel()
	rec.Wait()

	var n int64
	require.NoError(t, s.db.Get(&n, `SELECT COUNT(1) FROM events`))
	assert.EqualValues(t, 5, n)
}

func TestRecorderFlushesOnInterval(t *testing.T) {
	s := newTestStore(t)
	s.cfg.FlushIntervalMs = 10
	rec := NewRecorder(s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	rec.Record(models.Event{Route: "/health", Method: "GET", Status: 200})

	require.Eventually(t, func() bool {
		var n int64
		if err := s.db.Get(&n, `SELECT COUNT(1) FROM events`); err != nil {
			return false
		}
		return n == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRecorderDropsWhenFull(t *testing.T) {
	s := newTestStore(t)
	rec := NewRecorder(s)
	// Pas de goroutine Run: la file se remplit puis refuse sans bloquer
	dropped := false
	for i := 0; i < recorderQueueDepth+1; i++ {
		if !rec.Record(models.Event{Route: "/health", Method: "GET", Status: 200}) {
			dropped = true
			break
		}
	}
	assert.True(t, dropped)
}
