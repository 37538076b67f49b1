package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config est la configuration racine du service (config.yaml + variables APP_*).
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	API         APIConfig         `mapstructure:"api"`
	Resources   ResourcesConfig   `mapstructure:"resources"`
	Save        SaveConfig        `mapstructure:"save"`
	Image       ImageConfig       `mapstructure:"image"`
	Stats       StatsConfig       `mapstructure:"stats"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	Watermark   WatermarkConfig   `mapstructure:"watermark"`
	TapTap      TapTapConfig      `mapstructure:"taptap"`
	Shutdown    ShutdownConfig    `mapstructure:"shutdown"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type APIConfig struct {
	Prefix string `mapstructure:"prefix"`
}

type ResourcesConfig struct {
	BasePath           string `mapstructure:"base_path"`
	IllustrationRepo   string `mapstructure:"illustration_repo"`
	IllustrationFolder string `mapstructure:"illustration_folder"`
	InfoPath           string `mapstructure:"info_path"`
}

// SaveConfig porte le matériel cryptographique du pipeline de sauvegarde.
// Key et IV sont des blobs base64 de 16 octets; leur provenance est
// documentée hors dépôt.
type SaveConfig struct {
	Key string `mapstructure:"key"`
	IV  string `mapstructure:"iv"`
}

type ImageConfig struct {
	OptimizeSpeed bool   `mapstructure:"optimize_speed"`
	CacheEnabled  bool   `mapstructure:"cache_enabled"`
	CacheMaxBytes int64  `mapstructure:"cache_max_bytes"`
	CacheTTLSecs  int64  `mapstructure:"cache_ttl_secs"`
	CacheTTISecs  int64  `mapstructure:"cache_tti_secs"`
	MaxParallel   int    `mapstructure:"max_parallel"`
	MaxUserScores int    `mapstructure:"max_user_scores"`
	TemplateDir   string `mapstructure:"template_dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type StatsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Storage            string        `mapstructure:"storage"`
	SQLitePath         string        `mapstructure:"sqlite_path"`
	SQLiteWAL          bool          `mapstructure:"sqlite_wal"`
	BatchSize          int           `mapstructure:"batch_size"`
	FlushIntervalMs    int           `mapstructure:"flush_interval_ms"`
	RetentionHotDays   int           `mapstructure:"retention_hot_days"`
	UserHashSalt       string        `mapstructure:"user_hash_salt"`
	Timezone           string        `mapstructure:"timezone"`
	DailyAggregateTime string        `mapstructure:"daily_aggregate_time"`
	Archive            ArchiveConfig `mapstructure:"archive"`
}

type ArchiveConfig struct {
	Parquet  bool   `mapstructure:"parquet"`
	Dir      string `mapstructure:"dir"`
	Compress string `mapstructure:"compress"`
}

type LeaderboardConfig struct {
	Enabled            bool     `mapstructure:"enabled"`
	AllowPublic        bool     `mapstructure:"allow_public"`
	DefaultShowRksComp bool     `mapstructure:"default_show_rks_composition"`
	DefaultShowBest3   bool     `mapstructure:"default_show_best_top3"`
	DefaultShowAp3     bool     `mapstructure:"default_show_ap_top3"`
	AdminTokens        []string `mapstructure:"admin_tokens"`
	ShadowThreshold    float64  `mapstructure:"shadow_threshold"`
	ReviewThreshold    float64  `mapstructure:"review_threshold"`
}

type WatermarkConfig struct {
	ExplicitBadge  bool   `mapstructure:"explicit_badge"`
	ImplicitPixel  bool   `mapstructure:"implicit_pixel"`
	UnlockStatic   string `mapstructure:"unlock_static"`
	UnlockDynamic  bool   `mapstructure:"unlock_dynamic"`
	DynamicSalt    string `mapstructure:"dynamic_salt"`
	DynamicTTLSecs int64  `mapstructure:"dynamic_ttl_secs"`
	DynamicSecret  string `mapstructure:"dynamic_secret"`
	DynamicLength  int    `mapstructure:"dynamic_length"`
}

type TapTapConfig struct {
	DefaultVersion string `mapstructure:"default_version"`
}

type ShutdownConfig struct {
	TimeoutSecs    int            `mapstructure:"timeout_secs"`
	ForceQuit      bool           `mapstructure:"force_quit"`
	ForceDelaySecs int            `mapstructure:"force_delay_secs"`
	Watchdog       WatchdogConfig `mapstructure:"watchdog"`
}

type WatchdogConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	TimeoutSecs  int  `mapstructure:"timeout_secs"`
	IntervalSecs int  `mapstructure:"interval_secs"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("api.prefix", "/api/v2")

	v.SetDefault("resources.base_path", "./resources")
	v.SetDefault("resources.illustration_folder", "ill")
	v.SetDefault("resources.info_path", "./resources/info")

	v.SetDefault("image.optimize_speed", false)
	v.SetDefault("image.cache_enabled", true)
	v.SetDefault("image.cache_max_bytes", int64(100*1024*1024))
	v.SetDefault("image.cache_ttl_secs", int64(3600))
	v.SetDefault("image.cache_tti_secs", int64(900))
	v.SetDefault("image.max_parallel", 0)
	v.SetDefault("image.max_user_scores", 200)
	v.SetDefault("image.template_dir", "./templates")

	v.SetDefault("stats.enabled", true)
	v.SetDefault("stats.storage", "sqlite")
	v.SetDefault("stats.sqlite_path", "./resources/usage_stats.db")
	v.SetDefault("stats.sqlite_wal", true)
	v.SetDefault("stats.batch_size", 100)
	v.SetDefault("stats.flush_interval_ms", 1000)
	v.SetDefault("stats.retention_hot_days", 30)
	v.SetDefault("stats.timezone", "Asia/Shanghai")
	v.SetDefault("stats.daily_aggregate_time", "03:00")
	v.SetDefault("stats.archive.parquet", true)
	v.SetDefault("stats.archive.dir", "./resources/archive")
	v.SetDefault("stats.archive.compress", "zstd")

	v.SetDefault("leaderboard.enabled", true)
	v.SetDefault("leaderboard.allow_public", true)
	v.SetDefault("leaderboard.default_show_rks_composition", true)
	v.SetDefault("leaderboard.default_show_best_top3", true)
	v.SetDefault("leaderboard.default_show_ap_top3", true)
	v.SetDefault("leaderboard.shadow_threshold", 1.0)
	v.SetDefault("leaderboard.review_threshold", 0.5)

	v.SetDefault("watermark.explicit_badge", true)
	v.SetDefault("watermark.implicit_pixel", true)
	v.SetDefault("watermark.unlock_dynamic", false)
	v.SetDefault("watermark.dynamic_ttl_secs", int64(3600))
	v.SetDefault("watermark.dynamic_length", 8)

	v.SetDefault("taptap.default_version", "cn")

	v.SetDefault("shutdown.timeout_secs", 10)
	v.SetDefault("shutdown.force_quit", true)
	v.SetDefault("shutdown.force_delay_secs", 5)
	v.SetDefault("shutdown.watchdog.enabled", false)
	v.SetDefault("shutdown.watchdog.timeout_secs", 30)
	v.SetDefault("shutdown.watchdog.interval_secs", 10)
}

// Load charge config.yaml (chemin surchargeable via APP_CONFIG) puis applique
// les surcharges d'environnement préfixées APP_ avec _ comme séparateur.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	path := os.Getenv("APP_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Un fichier absent n'est pas fatal: defaults + env suffisent
		if _, ok := err.(*os.PathError); !ok {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Watermark.DynamicLength < 4 {
		cfg.Watermark.DynamicLength = 4
	} else if cfg.Watermark.DynamicLength > 64 {
		cfg.Watermark.DynamicLength = 64
	}
	if cfg.TapTap.DefaultVersion != "cn" && cfg.TapTap.DefaultVersion != "global" {
		cfg.TapTap.DefaultVersion = "cn"
	}

	return &cfg, nil
}

// SaveKey décode la clé AES-128 configurée (base64, 16 octets).
func (c *Config) SaveKey() ([]byte, error) {
	return decode16(c.Save.Key, defaultSaveKey)
}

// SaveIV décode le vecteur d'initialisation configuré (base64, 16 octets).
func (c *Config) SaveIV() ([]byte, error) {
	return decode16(c.Save.IV, defaultSaveIV)
}

func decode16(b64 string, fallback []byte) ([]byte, error) {
	if b64 == "" {
		out := make([]byte, 16)
		copy(out, fallback)
		return out, nil
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode key material: %w", err)
	}
	if len(raw) != 16 {
		return nil, fmt.Errorf("key material must be 16 bytes, got %d", len(raw))
	}
	return raw, nil
}

// Matériel par défaut compatible avec le client officiel; provenance
// documentée hors dépôt.
var defaultSaveKey = []byte{
	0xe8, 0x96, 0x9a, 0xd2, 0xa5, 0x40, 0x25, 0x9b,
	0x97, 0x91, 0x90, 0x8b, 0x88, 0xe6, 0xbf, 0x03,
}

var defaultSaveIV = []byte{
	0x2a, 0x4f, 0xf0, 0x8a, 0xc8, 0x0d, 0x63, 0x07,
	0x00, 0x57, 0xc5, 0x95, 0x18, 0xc8, 0x32, 0x53,
}
