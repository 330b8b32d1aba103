package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "OH", cfg.Site.Region)
	require.Equal(t, []string{"residential", "commercial"}, cfg.Site.AllowedCategories)
	require.Equal(t, 2*time.Second, cfg.Tracking.ThrottleWindow)
	require.Equal(t, 30*time.Minute, cfg.Tracking.Retention)
	require.Equal(t, 10*time.Minute, cfg.Tracking.CleanupInterval)
	require.Equal(t, "memory", cfg.Storage.Backend)
	require.False(t, cfg.TrackingActive())
	require.False(t, cfg.ConversionsConfigured())
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  request_timeout: 20s
app:
  environment: production
  service_name: leadsite-test
logging:
  development: false
site:
  base_url: https://hvac.example.com
  region: OH
  allowed_categories: [residential]
  sitemap_cache_seconds: 600
catalog:
  path: /etc/leadsite/catalog.yaml
tracking:
  throttle_window: 1500ms
  retention: 1h
  max_keys: 64
  workers: 8
relay:
  url: https://hvac.example.com/api/conversions
conversions:
  pixel_id: "123"
  access_token: token
sms:
  webhook_url: https://sms.example.com/hook
  to: "+13305550100"
storage:
  backend: gcs
  bucket: leadsite-sitemaps
ratelimit:
  rps: 5
  burst: 20
telemetry:
  otlp_endpoint: collector:4317
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 20*time.Second, cfg.Server.RequestTimeout)
	require.False(t, cfg.Logging.Development)
	require.Equal(t, []string{"residential"}, cfg.Site.AllowedCategories)
	require.Equal(t, 600, cfg.Site.SitemapCacheSeconds)
	require.Equal(t, "/etc/leadsite/catalog.yaml", cfg.Catalog.Path)
	require.Equal(t, 1500*time.Millisecond, cfg.Tracking.ThrottleWindow)
	require.Equal(t, time.Hour, cfg.Tracking.Retention)
	require.Equal(t, 64, cfg.Tracking.MaxKeys)
	require.Equal(t, 8, cfg.Tracking.Workers)
	require.Equal(t, "leadsite-sitemaps", cfg.Storage.Bucket)
	require.InDelta(t, 5.0, cfg.RateLimit.RPS, 1e-9)
	require.Equal(t, "collector:4317", cfg.Telemetry.OTLPEndpoint)
	require.True(t, cfg.TrackingActive())
	require.True(t, cfg.ConversionsConfigured())
	require.False(t, cfg.AnalyticsConfigured())
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestTrackingActiveOverride(t *testing.T) {
	t.Parallel()

	cfg := Config{App: AppConfig{Environment: "staging"}}
	require.False(t, cfg.TrackingActive())
	cfg.Tracking.Enabled = true
	require.True(t, cfg.TrackingActive())
	require.True(t, Config{App: AppConfig{Environment: "Production"}}.TrackingActive())
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	tests := map[string]func(*Config){
		"port":            func(c *Config) { c.Server.Port = 0 },
		"relative base":   func(c *Config) { c.Site.BaseURL = "/site" },
		"ftp base":        func(c *Config) { c.Site.BaseURL = "ftp://example.com" },
		"region length":   func(c *Config) { c.Site.Region = "OHIO" },
		"backend":         func(c *Config) { c.Storage.Backend = "s3" },
		"gcs bucket":      func(c *Config) { c.Storage.Backend = "gcs" },
		"sms recipient":   func(c *Config) { c.SMS.WebhookURL = "https://sms.example.com" },
		"window":          func(c *Config) { c.Tracking.ThrottleWindow = 0 },
		"short retention": func(c *Config) { c.Tracking.Retention = time.Second },
		"workers":         func(c *Config) { c.Tracking.Workers = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Site.AllowedCategories = append([]string(nil), base.Site.AllowedCategories...)
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
