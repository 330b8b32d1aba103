// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. LEADSITE_SERVER_PORT.
const EnvPrefix = "LEADSITE"

// EnvironmentProduction is the only environment where tracking is on by
// default.
const EnvironmentProduction = "production"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	App         AppConfig         `mapstructure:"app"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Site        SiteConfig        `mapstructure:"site"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Tracking    TrackingConfig    `mapstructure:"tracking"`
	Relay       RelayConfig       `mapstructure:"relay"`
	Conversions ConversionsConfig `mapstructure:"conversions"`
	Analytics   AnalyticsConfig   `mapstructure:"analytics"`
	SMS         SMSConfig         `mapstructure:"sms"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	Storage     StorageConfig     `mapstructure:"storage"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// AppConfig identifies the deployment.
type AppConfig struct {
	Environment string `mapstructure:"environment" validate:"required"`
	ServiceName string `mapstructure:"service_name" validate:"required"`
	Version     string `mapstructure:"version"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SiteConfig describes the public site the sitemap is generated for.
type SiteConfig struct {
	BaseURL             string   `mapstructure:"base_url" validate:"required,url"`
	Region              string   `mapstructure:"region" validate:"required,len=2"`
	RegionSuffix        string   `mapstructure:"region_suffix"`
	AllowedCategories   []string `mapstructure:"allowed_categories"`
	SitemapCacheSeconds int      `mapstructure:"sitemap_cache_seconds" validate:"gte=0"`
}

// CatalogConfig points at an optional YAML catalog; empty uses the built-in one.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// TrackingConfig tunes the event dispatcher.
type TrackingConfig struct {
	// Enabled forces tracking on outside production.
	Enabled         bool          `mapstructure:"enabled"`
	ThrottleWindow  time.Duration `mapstructure:"throttle_window" validate:"gt=0"`
	Retention       time.Duration `mapstructure:"retention" validate:"gt=0"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"gt=0"`
	MaxKeys         int           `mapstructure:"max_keys" validate:"gt=0"`
	SinkTimeout     time.Duration `mapstructure:"sink_timeout" validate:"gt=0"`
	BufferSize      int           `mapstructure:"buffer_size" validate:"gt=0"`
	Workers         int           `mapstructure:"workers" validate:"gt=0"`
	LogEvents       bool          `mapstructure:"log_events"`
}

// RelayConfig points the server-side relay sink at a conversions endpoint.
type RelayConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// ConversionsConfig holds the ad platform credentials used by the forwarder.
type ConversionsConfig struct {
	GraphURL      string `mapstructure:"graph_url" validate:"required,url"`
	PixelID       string `mapstructure:"pixel_id"`
	AccessToken   string `mapstructure:"access_token"`
	TestEventCode string `mapstructure:"test_event_code"`
}

// AnalyticsConfig holds the measurement protocol credentials.
type AnalyticsConfig struct {
	Endpoint      string `mapstructure:"endpoint" validate:"required,url"`
	MeasurementID string `mapstructure:"measurement_id"`
	APISecret     string `mapstructure:"api_secret"`
}

// SMSConfig configures lead notifications by text message.
type SMSConfig struct {
	WebhookURL string `mapstructure:"webhook_url" validate:"omitempty,url"`
	To         string `mapstructure:"to"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID  string `mapstructure:"project_id"`
	LeadsTopic string `mapstructure:"leads_topic" validate:"required"`
	PixelTopic string `mapstructure:"pixel_topic" validate:"required"`
}

// StorageConfig selects where published sitemaps are written.
type StorageConfig struct {
	Backend  string `mapstructure:"backend" validate:"oneof=memory local gcs"`
	Bucket   string `mapstructure:"bucket"`
	LocalDir string `mapstructure:"local_dir"`
	Prefix   string `mapstructure:"prefix"`
}

// RateLimitConfig bounds per-client POST rates on the API.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps" validate:"gte=0"`
	Burst   int     `mapstructure:"burst" validate:"gte=0"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Insecure     bool   `mapstructure:"insecure"`
}

var validate = validator.New()

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 15*time.Second)
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.service_name", "hvac-leadsite")
	v.SetDefault("app.version", "dev")
	v.SetDefault("logging.development", true)
	v.SetDefault("site.base_url", "http://localhost:8080")
	v.SetDefault("site.region", "OH")
	v.SetDefault("site.allowed_categories", []string{"residential", "commercial"})
	v.SetDefault("site.sitemap_cache_seconds", 3600)
	v.SetDefault("tracking.enabled", false)
	v.SetDefault("tracking.throttle_window", 2000*time.Millisecond)
	v.SetDefault("tracking.retention", 30*time.Minute)
	v.SetDefault("tracking.cleanup_interval", 10*time.Minute)
	v.SetDefault("tracking.max_keys", 512)
	v.SetDefault("tracking.sink_timeout", 5*time.Second)
	v.SetDefault("tracking.buffer_size", 1024)
	v.SetDefault("tracking.workers", 4)
	v.SetDefault("tracking.log_events", false)
	v.SetDefault("conversions.graph_url", "https://graph.facebook.com/v19.0")
	v.SetDefault("analytics.endpoint", "https://www.google-analytics.com/mp/collect")
	v.SetDefault("pubsub.leads_topic", "leads")
	v.SetDefault("pubsub.pixel_topic", "pixel-events")
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.local_dir", "data")
	v.SetDefault("storage.prefix", "sitemaps")
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.rps", 2.0)
	v.SetDefault("ratelimit.burst", 10)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	u, err := url.Parse(c.Site.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("site.base_url must be an absolute http(s) url")
	}
	if c.Storage.Backend == "gcs" && c.Storage.Bucket == "" {
		return errors.New("storage.bucket must be set when storage.backend is gcs")
	}
	if c.Storage.Backend == "local" && c.Storage.LocalDir == "" {
		return errors.New("storage.local_dir must be set when storage.backend is local")
	}
	if c.SMS.WebhookURL != "" && c.SMS.To == "" {
		return errors.New("sms.to must be set when sms.webhook_url is set")
	}
	if c.Tracking.Retention < c.Tracking.ThrottleWindow {
		return errors.New("tracking.retention must be >= tracking.throttle_window")
	}
	return nil
}

// TrackingActive reports whether conversion events are forwarded: always in
// production, elsewhere only when tracking.enabled is set.
func (c Config) TrackingActive() bool {
	return strings.EqualFold(c.App.Environment, EnvironmentProduction) || c.Tracking.Enabled
}

// ConversionsConfigured reports whether the forwarder has credentials.
func (c Config) ConversionsConfigured() bool {
	return c.Conversions.PixelID != "" && c.Conversions.AccessToken != ""
}

// AnalyticsConfigured reports whether the measurement protocol sink can run.
func (c Config) AnalyticsConfigured() bool {
	return c.Analytics.MeasurementID != "" && c.Analytics.APISecret != ""
}
