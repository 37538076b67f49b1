package stats

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Sczr0/Next-Phi-Backend/internal/apperr"
	"github.com/Sczr0/Next-Phi-Backend/internal/config"
	"github.com/Sczr0/Next-Phi-Backend/internal/logger"
)

// schema crée les tables du magasin à l'ouverture. Les colonnes textuelles
// de dates sont des RFC3339 UTC, comparables lexicographiquement.
const schema = `
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts_utc TEXT NOT NULL,
    route TEXT,
    feature TEXT,
    method TEXT,
    status INTEGER,
    duration_ms INTEGER,
    user_hash TEXT,
    client_ip_hash TEXT,
    request_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts_utc);
CREATE INDEX IF NOT EXISTS idx_events_feature_ts ON events(feature, ts_utc);
CREATE INDEX IF NOT EXISTS idx_events_route_ts ON events(route, ts_utc);

CREATE TABLE IF NOT EXISTS leaderboard_rks (
    user_hash TEXT PRIMARY KEY,
    total_rks REAL NOT NULL,
    user_kind TEXT,
    suspicion_score REAL NOT NULL DEFAULT 0.0,
    is_hidden INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_lb_rks_order ON leaderboard_rks(total_rks DESC, updated_at ASC, user_hash ASC);

CREATE TABLE IF NOT EXISTS user_profile (
    user_hash TEXT PRIMARY KEY,
    alias TEXT UNIQUE COLLATE NOCASE,
    is_public INTEGER NOT NULL DEFAULT 0,
    show_rks_composition INTEGER NOT NULL DEFAULT 1,
    show_best_top3 INTEGER NOT NULL DEFAULT 1,
    show_ap_top3 INTEGER NOT NULL DEFAULT 1,
    user_kind TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_profile_public ON user_profile(is_public);

CREATE TABLE IF NOT EXISTS save_submissions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_hash TEXT NOT NULL,
    total_rks REAL NOT NULL,
    rks_jump REAL,
    route TEXT,
    client_ip_hash TEXT,
    details_json TEXT,
    suspicion_score REAL NOT NULL DEFAULT 0.0,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_submissions_user ON save_submissions(user_hash, created_at DESC);

CREATE TABLE IF NOT EXISTS leaderboard_details (
    user_hash TEXT PRIMARY KEY,
    rks_composition_json TEXT,
    best_top3_json TEXT,
    ap_top3_json TEXT,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS moderation_flags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_hash TEXT NOT NULL,
    status TEXT NOT NULL,
    reason TEXT,
    admin TEXT,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_moderation_user ON moderation_flags(user_hash, created_at DESC);
`

// Store est le magasin SQLite partagé de la télémétrie et du classement.
type Store struct {
	db  *sqlx.DB
	cfg config.StatsConfig
	lb  config.LeaderboardConfig
	loc *time.Location
}

// Open ouvre (ou crée) la base, applique les pragmas et le schéma.
func Open(cfg config.StatsConfig, lb config.LeaderboardConfig) (*Store, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = "./resources/usage_stats.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "create stats dir", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	if cfg.SQLiteWAL {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "open stats db", err)
	}
	// modernc/sqlite sérialise les écritures; une seule connexion évite
	// les SQLITE_BUSY sous contention.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.KindInternal, "init stats schema", err)
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		if l, err := time.LoadLocation(cfg.Timezone); err == nil {
			loc = l
		} else {
			logger.Warning("fuseau %q inconnu, agrégats en UTC", cfg.Timezone)
		}
	}

	return &Store{db: db, cfg: cfg, lb: lb, loc: loc}, nil
}

// Close ferme la base sous-jacente.
func (s *Store) Close() error {
	return s.db.Close()
}

// Location retourne le fuseau par défaut des agrégats journaliers.
func (s *Store) Location() *time.Location {
	return s.loc
}

// Ping vérifie la disponibilité du magasin.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
