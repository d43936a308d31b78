package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laruecivic/civic-intel/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "out", cfg.Storage.OutDir)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout())
	assert.Equal(t, "larue-civic-intel/1.0", cfg.HTTP.UserAgent)
	assert.False(t, cfg.Sources.Wayback.Enabled)
	assert.Equal(t, time.Second, cfg.Sources.Wayback.RateLimit())
	assert.Equal(t, 200, cfg.Sources.Wayback.LimitPerRun)
	assert.Equal(t, 10000, cfg.Sources.Wayback.SeenRetention)
	assert.Equal(t, []string{"wayback", "history"}, cfg.Sources.Wayback.Tags)
	assert.True(t, cfg.Tagging.Enabled)
	assert.Equal(t, 1, cfg.Tagging.MinHitsDefault)
	assert.Equal(t, 2, cfg.Tagging.MinHitsBroad)
	assert.False(t, cfg.Notices.Enabled)
	assert.Equal(t, "https://www.kentuckypublicnotice.com/search/", cfg.Notices.SearchURL)
	assert.Equal(t, "LaRue County", cfg.Notices.Query)
	assert.Equal(t, []string{"public_notice", "larue", "ky"}, cfg.Notices.Tags)
	assert.Equal(t, "fiscal-court", cfg.Minutes.BodyID)
	assert.Equal(t, "artifacts", cfg.DB.Table)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "civic.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  out_dir: /var/lib/civic
http:
  timeout_seconds: 10
sources:
  wayback:
    enabled: true
    urls:
      - https://www.laruecounty.org/fiscal-court
    include_subpaths: true
    rate_limit_seconds: 2.5
    limit_per_run: 50
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/civic", cfg.Storage.OutDir)
	assert.Equal(t, 10*time.Second, cfg.HTTP.Timeout())
	assert.True(t, cfg.Sources.Wayback.Enabled)
	assert.Equal(t, []string{"https://www.laruecounty.org/fiscal-court"}, cfg.Sources.Wayback.URLs)
	assert.True(t, cfg.Sources.Wayback.IncludeSubpaths)
	assert.Equal(t, 2500*time.Millisecond, cfg.Sources.Wayback.RateLimit())
	assert.Equal(t, 50, cfg.Sources.Wayback.LimitPerRun)
	// Defaults survive partial files.
	assert.Equal(t, "larue-civic-intel/1.0", cfg.HTTP.UserAgent)
}

func TestStoragePathHelpers(t *testing.T) {
	t.Parallel()

	s := config.StorageConfig{OutDir: "out"}
	assert.Equal(t, filepath.Join("out", "artifacts"), s.ArtifactsDir())
	assert.Equal(t, filepath.Join("out", "snapshots", "wayback"), s.SnapshotsDir("wayback"))
	assert.Equal(t, filepath.Join("out", "snapshots"), s.SnapshotsRoot())
	assert.Equal(t, filepath.Join("out", "state"), s.StateDir())
	assert.Equal(t, filepath.Join("out", "meetings"), s.MeetingsDir())
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	base := func() config.Config {
		return config.Config{
			Storage: config.StorageConfig{OutDir: "out"},
			HTTP:    config.HTTPConfig{TimeoutSeconds: 30, UserAgent: "ua"},
			Sources: config.SourcesConfig{Wayback: config.WaybackConfig{
				RateLimitSeconds: 1,
				LimitPerRun:      200,
				SeenRetention:    10000,
			}},
			Tagging: config.TaggingConfig{MinHitsDefault: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"valid", func(c *config.Config) {}, ""},
		{"missing out_dir", func(c *config.Config) { c.Storage.OutDir = " " }, "storage.out_dir"},
		{"bad timeout", func(c *config.Config) { c.HTTP.TimeoutSeconds = 0 }, "http.timeout_seconds"},
		{"missing user agent", func(c *config.Config) { c.HTTP.UserAgent = "" }, "http.user_agent"},
		{"negative rate limit", func(c *config.Config) { c.Sources.Wayback.RateLimitSeconds = -1 }, "rate_limit_seconds"},
		{"zero limit per run", func(c *config.Config) { c.Sources.Wayback.LimitPerRun = 0 }, "limit_per_run"},
		{"zero retention", func(c *config.Config) { c.Sources.Wayback.SeenRetention = 0 }, "seen_retention"},
		{"mirror without bucket", func(c *config.Config) { c.Mirror.Enabled = true }, "mirror.bucket"},
		{"notify without topic", func(c *config.Config) {
			c.Notify.Enabled = true
			c.Notify.ProjectID = "p"
		}, "notify.project_id and notify.topic"},
		{"metrics without addr", func(c *config.Config) { c.Metrics.Enabled = true }, "metrics.addr"},
		{"agendas without base url", func(c *config.Config) { c.Agendas.Enabled = true }, "agendas.base_url"},
		{"notices without query", func(c *config.Config) {
			c.Notices.Enabled = true
			c.Notices.SearchURL = "https://www.kentuckypublicnotice.com/search/"
		}, "notices.search_url and notices.query"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
