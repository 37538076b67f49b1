package stats

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/parquet-go/parquet-go/compress/snappy"
	"github.com/parquet-go/parquet-go/compress/zstd"
	"github.com/robfig/cron/v3"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/config"
	"github.com/Sczr0/Next-Phi-Backend/internal/logger"
)

// archiveRow est le schéma colonne des archives journalières.
type archiveRow struct {
	TsUTC        string `parquet:"ts_utc"`
	Route        string `parquet:"route"`
	Feature      string `parquet:"feature"`
	Method       string `parquet:"method"`
	Status       int32  `parquet:"status"`
	DurationMs   int64  `parquet:"duration_ms"`
	UserHash     string `parquet:"user_hash"`
	ClientIPHash string `parquet:"client_ip_hash"`
	RequestID    string `parquet:"request_id"`
}

// Archiver exporte chaque jour écoulé vers un fichier colonne partitionné
// par date, hors du chemin des requêtes.
type Archiver struct {
	store *Store
	cfg   config.ArchiveConfig
	cron  *cron.Cron
}

// NewArchiver construit l'archiveur sur le magasin.
func NewArchiver(store *Store, cfg config.ArchiveConfig) *Archiver {
	return &Archiver{store: store, cfg: cfg}
}

// codec retourne le codec de compression configuré et le suffixe de nom
// de fichier associé.
func (a *Archiver) codec() (compress.Codec, string) {
	switch strings.ToLower(a.cfg.Compress) {
	case "zstd":
		return &zstd.Codec{}, ".zst"
	case "snappy":
		return &snappy.Codec{}, ".snappy"
	}
	return nil, ""
}

// ArchiveDay exporte les événements d'un jour local vers
// {dir}/year=YYYY/month=MM/day=DD/events-{uuid}.parquet[.codec].
// Retourne le chemin écrit et le nombre de lignes, vide si le jour n'a
// aucun événement.
func (a *Archiver) ArchiveDay(ctx context.Context, day time.Time) (string, int, error) {
	if !a.cfg.Parquet {
		return "", 0, nil
	}
	loc := a.store.loc
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	startS := dayStart.UTC().Format(time.RFC3339)
	endS := dayStart.AddDate(0, 0, 1).UTC().Format(time.RFC3339)

	rows, err := a.store.db.QueryxContext(ctx,
		`SELECT ts_utc, COALESCE(route,''), COALESCE(feature,''), COALESCE(method,''),
		        COALESCE(status,0), COALESCE(duration_ms,0),
		        COALESCE(user_hash,''), COALESCE(client_ip_hash,''), COALESCE(request_id,'')
		 FROM events WHERE ts_utc >= ? AND ts_utc < ? ORDER BY ts_utc ASC`,
		startS, endS)
	if err != nil {
		return "", 0, apperr.Wrap(apperr.KindInternal, "read events for archive", err)
	}
	defer rows.Close()

	var batch []archiveRow
	for rows.Next() {
		var r archiveRow
		if err := rows.Scan(&r.TsUTC, &r.Route, &r.Feature, &r.Method,
			&r.Status, &r.DurationMs, &r.UserHash, &r.ClientIPHash, &r.RequestID); err != nil {
			return "", 0, apperr.Wrap(apperr.KindInternal, "scan archive row", err)
		}
		batch = append(batch, r)
	}
	if len(batch) == 0 {
		return "", 0, nil
	}

	dir := filepath.Join(a.cfg.Dir,
		fmt.Sprintf("year=%04d", dayStart.Year()),
		fmt.Sprintf("month=%02d", int(dayStart.Month())),
		fmt.Sprintf("day=%02d", dayStart.Day()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, apperr.Wrap(apperr.KindInternal, "create archive dir", err)
	}

	codec, suffix := a.codec()
	path := filepath.Join(dir, fmt.Sprintf("events-%s.parquet%s", uuid.NewString(), suffix))

	f, err := os.Create(path)
	if err != nil {
		return "", 0, apperr.Wrap(apperr.KindInternal, "create archive file", err)
	}

	var opts []parquet.WriterOption
	if codec != nil {
		opts = append(opts, parquet.Compression(codec))
	}
	w := parquet.NewGenericWriter[archiveRow](f, opts...)
	if _, err := w.Write(batch); err != nil {
		f.Close()
		os.Remove(path)
		return "", 0, apperr.Wrap(apperr.KindInternal, "write archive rows", err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return "", 0, apperr.Wrap(apperr.KindInternal, "finalize archive", err)
	}
	if err := f.Close(); err != nil {
		return "", 0, apperr.Wrap(apperr.KindInternal, "close archive file", err)
	}
	return path, len(batch), nil
}

// pruneHot supprime les événements plus vieux que la fenêtre de rétention
// chaude. Ne tourne qu'après un export réussi.
func (a *Archiver) pruneHot(ctx context.Context) (int64, error) {
	days := a.store.cfg.RetentionHotDays
	if days <= 0 {
		return 0, nil
	}
	cutoff := time.Now().In(a.store.loc).AddDate(0, 0, -days).UTC().Format(time.RFC3339)
	res, err := a.store.db.ExecContext(ctx, `DELETE FROM events WHERE ts_utc < ?`, cutoff)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "prune archived events", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Start programme l'export du jour précédent à l'heure locale configurée
// (HH:MM, défaut 03:00).
func (a *Archiver) Start(dailyAt string) error {
	if !a.cfg.Parquet {
		return nil
	}
	hour, minute := 3, 0
	if dailyAt != "" {
		if _, err := fmt.Sscanf(dailyAt, "%d:%d", &hour, &minute); err != nil {
			return apperr.Newf(apperr.KindValidation, "invalid daily_aggregate_time %q", dailyAt)
		}
	}

	a.cron = cron.New(cron.WithLocation(a.store.loc))
	_, err := a.cron.AddFunc(fmt.Sprintf("%d %d * * *", minute, hour), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		yesterday := time.Now().In(a.store.loc).AddDate(0, 0, -1)
		path, n, err := a.ArchiveDay(ctx, yesterday)
		if err != nil {
			logger.Error("archivage journalier: %v", err)
			return
		}
		if n > 0 {
			logger.Success("archive %s écrite (%d lignes)", path, n)
		}
		if pruned, err := a.pruneHot(ctx); err != nil {
			logger.Warning("purge des événements archivés: %v", err)
		} else if pruned > 0 {
			logger.Info("%d événements purgés de la fenêtre chaude", pruned)
		}
	})
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "schedule archiver", err)
	}
	a.cron.Start()
	return nil
}

// Stop arrête la planification et attend la fin d'un export en cours.
func (a *Archiver) Stop() {
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
}
