// Package config loads and validates collector configuration via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Storage    StorageConfig    `mapstructure:"storage"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Sources    SourcesConfig    `mapstructure:"sources"`
	Importance ImportanceConfig `mapstructure:"importance"`
	Tagging    TaggingConfig    `mapstructure:"tagging"`
	Agendas    AgendasConfig    `mapstructure:"agendas"`
	Notices    NoticesConfig    `mapstructure:"notices"`
	Minutes    MinutesConfig    `mapstructure:"minutes"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Mirror     MirrorConfig     `mapstructure:"mirror"`
	DB         DBConfig         `mapstructure:"db"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// StorageConfig sets the output root for artifacts, snapshots and state.
type StorageConfig struct {
	OutDir string `mapstructure:"out_dir"`
}

// ArtifactsDir is where artifact JSON documents are written.
func (s StorageConfig) ArtifactsDir() string { return filepath.Join(s.OutDir, "artifacts") }

// SnapshotsDir is where raw snapshot bytes for the named source live.
func (s StorageConfig) SnapshotsDir(source string) string {
	return filepath.Join(s.OutDir, "snapshots", source)
}

// SnapshotsRoot is the parent of all per-source snapshot directories.
func (s StorageConfig) SnapshotsRoot() string { return filepath.Join(s.OutDir, "snapshots") }

// StateDir holds resumable collector state files.
func (s StorageConfig) StateDir() string { return filepath.Join(s.OutDir, "state") }

// MeetingsDir is where parsed meeting documents are written.
func (s StorageConfig) MeetingsDir() string { return filepath.Join(s.OutDir, "meetings") }

// HTTPConfig configures outbound HTTP behavior.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// Timeout converts the configured HTTP timeout into a duration.
func (h HTTPConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// SourcesConfig groups the configured collectors.
type SourcesConfig struct {
	Wayback WaybackConfig `mapstructure:"wayback"`
}

// WaybackConfig governs the archive backfill collector.
type WaybackConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	URLs             []string `mapstructure:"urls"`
	IncludeSubpaths  bool     `mapstructure:"include_subpaths"`
	RateLimitSeconds float64  `mapstructure:"rate_limit_seconds"`
	LimitPerRun      int      `mapstructure:"limit_per_run"`
	SeenRetention    int      `mapstructure:"seen_retention"`
	Tags             []string `mapstructure:"tags"`
}

// RateLimit converts the configured seconds into a duration.
func (w WaybackConfig) RateLimit() time.Duration {
	return time.Duration(w.RateLimitSeconds * float64(time.Second))
}

// ImportanceConfig lists URL keywords that mark high-impact sources.
type ImportanceConfig struct {
	HighImpactURLKeywords []string `mapstructure:"high_impact_url_keywords"`
}

// TaggingConfig governs the keyword issue tagger.
type TaggingConfig struct {
	Enabled        bool                `mapstructure:"enabled"`
	Rules          map[string][]string `mapstructure:"rules"`
	RulesFile      string              `mapstructure:"rules_file"`
	MinHitsDefault int                 `mapstructure:"min_hits_default"`
	MinHitsBroad   int                 `mapstructure:"min_hits_broad"`
	BroadTags      []string            `mapstructure:"broad_tags"`
	TagMinHits     map[string]int      `mapstructure:"tag_min_hits"`
}

// AgendasConfig governs the agenda/minutes document collector.
type AgendasConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	BaseURL  string   `mapstructure:"base_url"`
	Keywords []string `mapstructure:"keywords"`
	Tags     []string `mapstructure:"tags"`
}

// NoticesConfig governs the public notice search collector.
type NoticesConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	SearchURL string   `mapstructure:"search_url"`
	Query     string   `mapstructure:"query"`
	Tags      []string `mapstructure:"tags"`
}

// MinutesConfig names the governing body for parsed meetings.
type MinutesConfig struct {
	BodyID string `mapstructure:"body_id"`
}

// NotifyConfig holds Pub/Sub settings for change notifications.
type NotifyConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MirrorConfig holds the optional GCS mirror of emitted files.
type MirrorConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// DBConfig controls access to the Postgres artifact catalog.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// MetricsConfig toggles the /metrics listener during runs.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk and environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CIVIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.out_dir", "out")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent", "larue-civic-intel/1.0")
	v.SetDefault("sources.wayback.enabled", false)
	v.SetDefault("sources.wayback.include_subpaths", false)
	v.SetDefault("sources.wayback.rate_limit_seconds", 1.0)
	v.SetDefault("sources.wayback.limit_per_run", 200)
	v.SetDefault("sources.wayback.seen_retention", 10000)
	v.SetDefault("sources.wayback.tags", []string{"wayback", "history"})
	v.SetDefault("tagging.enabled", true)
	v.SetDefault("tagging.min_hits_default", 1)
	v.SetDefault("tagging.min_hits_broad", 2)
	v.SetDefault("tagging.broad_tags", []string{"tax", "budget", "policy"})
	v.SetDefault("agendas.keywords", []string{"agenda", "minutes"})
	v.SetDefault("agendas.tags", []string{"meeting", "fiscal_court"})
	v.SetDefault("notices.search_url", "https://www.kentuckypublicnotice.com/search/")
	v.SetDefault("notices.query", "LaRue County")
	v.SetDefault("notices.tags", []string{"public_notice", "larue", "ky"})
	v.SetDefault("minutes.body_id", "fiscal-court")
	v.SetDefault("db.table", "artifacts")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Storage.OutDir) == "" {
		return fmt.Errorf("storage.out_dir must be set")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("http.user_agent must be set")
	}
	if c.Sources.Wayback.RateLimitSeconds < 0 {
		return fmt.Errorf("sources.wayback.rate_limit_seconds must be >= 0")
	}
	if c.Sources.Wayback.LimitPerRun <= 0 {
		return fmt.Errorf("sources.wayback.limit_per_run must be > 0")
	}
	if c.Sources.Wayback.SeenRetention <= 0 {
		return fmt.Errorf("sources.wayback.seen_retention must be > 0")
	}
	if c.Tagging.MinHitsDefault <= 0 {
		return fmt.Errorf("tagging.min_hits_default must be > 0")
	}
	if c.Mirror.Enabled && c.Mirror.Bucket == "" {
		return fmt.Errorf("mirror.bucket must be set when mirror is enabled")
	}
	if c.Notify.Enabled && (c.Notify.ProjectID == "" || c.Notify.Topic == "") {
		return fmt.Errorf("notify.project_id and notify.topic must be set when notify is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr must be set when metrics are enabled")
	}
	if c.Agendas.Enabled && c.Agendas.BaseURL == "" {
		return fmt.Errorf("agendas.base_url must be set when agendas are enabled")
	}
	if c.Notices.Enabled && (c.Notices.SearchURL == "" || c.Notices.Query == "") {
		return fmt.Errorf("notices.search_url and notices.query must be set when notices are enabled")
	}
	return nil
}
