package stats

import (
	"context"
	"time"

	"github.com/Sczr0/Next-Phi-Backend/internal/logger"
	"github.com/Sczr0/Next-Phi-Backend/internal/models"
)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = time.Second
	recorderQueueDepth   = 4096
)

// Recorder découple les handlers HTTP de l'écriture SQLite: les événements
// passent par un canal borné, l'envoi est non bloquant et les excédents
// sont abandonnés plutôt que de ralentir la requête.
type Recorder struct {
	store    *Store
	ch       chan models.Event
	batch    int
	interval time.Duration
	done     chan struct{}
}

// NewRecorder construit l'enregistreur sur le magasin.
func NewRecorder(store *Store) *Recorder {
	batch := store.cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	interval := time.Duration(store.cfg.FlushIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	return &Recorder{
		store:    store,
		ch:       make(chan models.Event, recorderQueueDepth),
		batch:    batch,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Record dépose un événement sans jamais bloquer l'appelant. Retourne
// false si la file est pleine et l'événement abandonné.
func (r *Recorder) Record(e models.Event) bool {
	select {
	case r.ch <- e:
		return true
	default:
		return false
	}
}

// Run draine la file en lots (taille ou intervalle, premier atteint)
// jusqu'à l'annulation du contexte, puis vide ce qui reste.
func (r *Recorder) Run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	pending := make([]models.Event, 0, r.batch)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := r.store.insertEvents(pending); err != nil {
			logger.Error("écriture des événements: %v", err)
		}
		pending = pending[:0]
	}

	for {
		select {
		case e := <-r.ch:
			pending = append(pending, e)
			if len(pending) >= r.batch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case e := <-r.ch:
					pending = append(pending, e)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Wait bloque jusqu'à l'arrêt complet du flusher.
func (r *Recorder) Wait() {
	<-r.done
}

// insertEvents insère un lot d'événements dans une transaction.
func (s *Store) insertEvents(events []models.Event) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO events
		(ts_utc, route, feature, method, status, duration_ms, user_hash, client_ip_hash, request_id)
		VALUES (?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		ts := e.OccurredAt
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := stmt.Exec(
			ts.UTC().Format(time.RFC3339),
			e.Route, e.Feature, e.Method, e.Status, e.DurationMs,
			nullable(e.UserHash), nullable(e.ClientIPHash), nullable(e.RequestID),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
