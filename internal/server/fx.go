// Package server provides the core application server and dependency injection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/hvac-leadsite/internal/api"
	"github.com/JakeFAU/hvac-leadsite/internal/catalog"
	"github.com/JakeFAU/hvac-leadsite/internal/clock/system"
	"github.com/JakeFAU/hvac-leadsite/internal/config"
	"github.com/JakeFAU/hvac-leadsite/internal/conversions"
	"github.com/JakeFAU/hvac-leadsite/internal/id/uuid"
	"github.com/JakeFAU/hvac-leadsite/internal/leads"
	"github.com/JakeFAU/hvac-leadsite/internal/logging"
	"github.com/JakeFAU/hvac-leadsite/internal/policy/ratelimit"
	"github.com/JakeFAU/hvac-leadsite/internal/publisher"
	memorypublisher "github.com/JakeFAU/hvac-leadsite/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/hvac-leadsite/internal/publisher/pubsub"
	"github.com/JakeFAU/hvac-leadsite/internal/sitemap"
	"github.com/JakeFAU/hvac-leadsite/internal/storage"
	gcsstorage "github.com/JakeFAU/hvac-leadsite/internal/storage/gcs"
	localstorage "github.com/JakeFAU/hvac-leadsite/internal/storage/local"
	memorystorage "github.com/JakeFAU/hvac-leadsite/internal/storage/memory"
	"github.com/JakeFAU/hvac-leadsite/internal/telemetry"
	"github.com/JakeFAU/hvac-leadsite/internal/tracking"
	"github.com/JakeFAU/hvac-leadsite/internal/tracking/sinks"
)

// App contains the application's dependencies.
type App struct {
	cfg            *config.Config
	logger         *zap.Logger
	clock          *system.Clock
	apiServer      *api.Server
	tracker        *tracking.Dispatcher
	limiter        *ratelimit.Limiter
	pubsub         *gcppublisher.Publisher
	catalog        catalog.Catalog
	sitemap        sitemap.Result
	closing        atomic.Bool
	tracerShutdown func(context.Context) error
	metricShutdown func(context.Context) error
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("creating application",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("environment", cfg.App.Environment),
		zap.Bool("tracking_active", cfg.TrackingActive()),
	)
	return &App{cfg: cfg, logger: logger, clock: system.New()}, nil
}

// Handler returns the HTTP handler; useful for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Sitemap returns the sitemap generated at start-up.
func (a *App) Sitemap() sitemap.Result {
	return a.sitemap
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go a.tracker.RunJanitor(ctx, a.cfg.Tracking.CleanupInterval, a.cfg.Tracking.Retention)
	go a.pruneLimiter(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")
	a.closing.Store(true)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

func (a *App) pruneLimiter(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Tracking.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.limiter.Prune(a.clock.Now().Add(-a.cfg.Tracking.Retention)); n > 0 {
				a.logger.Debug("rate limiter pruned", zap.Int("clients", n))
			}
		}
	}
}

// Close drains pending tracking deliveries and releases clients.
func (a *App) Close(ctx context.Context) error {
	a.closing.Store(true)
	var errs []error
	if a.tracker != nil {
		if err := a.tracker.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracking dispatcher close: %w", err))
		}
	}
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeObservability(ctx context.Context) {
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	if a.metricShutdown != nil {
		if err := a.metricShutdown(ctx); err != nil {
			a.logger.Warn("metric shutdown failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func (a *App) ready(context.Context) error {
	if a.closing.Load() {
		return errors.New("shutting down")
	}
	return nil
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.NewService(cfg.Logging.Development, cfg.App.ServiceName, cfg.App.Environment)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger is Build with a caller-supplied logger.
func BuildWithLogger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}

	tp, mp, err := telemetry.InitTelemetry(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	app.tracerShutdown = tp.Shutdown
	app.metricShutdown = mp.Shutdown

	app.logger.Info("building application dependencies")
	app.catalog, err = catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("catalog load failed: %w", err)
	}
	gen, err := NewGenerator(cfg, app.logger.Named("sitemap"))
	if err != nil {
		return nil, err
	}
	app.sitemap = GenerateSitemap(gen, app.catalog, app.clock.Now())

	pub, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}

	app.tracker, err = setupTracking(ctx, app, pub)
	if err != nil {
		return nil, err
	}

	leadService, err := leads.NewService(leads.Config{
		Publisher:  pub,
		Topic:      cfg.PubSub.LeadsTopic,
		Dispatcher: app.tracker,
		Clock:      app.clock,
		IDs:        uuid.New(),
		Logger:     app.logger.Named("leads"),
	})
	if err != nil {
		return nil, fmt.Errorf("lead service init failed: %w", err)
	}

	app.limiter = ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.RateLimit.RPS,
		DefaultBurst: cfg.RateLimit.Burst,
	})

	forwarder := conversions.NewClient(conversions.Config{
		GraphURL:      cfg.Conversions.GraphURL,
		PixelID:       cfg.Conversions.PixelID,
		AccessToken:   cfg.Conversions.AccessToken,
		TestEventCode: cfg.Conversions.TestEventCode,
	}, &http.Client{Timeout: cfg.Tracking.SinkTimeout}, app.logger.Named("conversions"))

	app.apiServer, err = api.NewServer(api.Deps{
		Config:      *cfg,
		Taxonomy:    app.catalog.Taxonomy,
		Directory:   catalog.NewDirectory(app.catalog.Locations, gen.Region()),
		Sitemap:     app.sitemap.Entries,
		Dispatcher:  app.tracker,
		Leads:       leadService,
		Conversions: forwarder,
		Limiter:     app.limiter,
		Ready:       app.ready,
		Logger:      app.logger.Named("api"),
	})
	if err != nil {
		return nil, fmt.Errorf("api init failed: %w", err)
	}
	return app, nil
}

// NewGenerator builds the sitemap generator from the site config.
func NewGenerator(cfg *config.Config, logger *zap.Logger) (*sitemap.Generator, error) {
	gen, err := sitemap.NewGenerator(sitemap.Config{
		BaseURL:           cfg.Site.BaseURL,
		Region:            cfg.Site.Region,
		RegionSuffix:      cfg.Site.RegionSuffix,
		AllowedCategories: cfg.Site.AllowedCategories,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("sitemap generator init failed: %w", err)
	}
	return gen, nil
}

// GenerateSitemap runs the generator and exports its statistics.
func GenerateSitemap(gen *sitemap.Generator, cat catalog.Catalog, asOf time.Time) sitemap.Result {
	res := gen.Generate(cat.Taxonomy, cat.Locations, asOf)
	byBucket := make(map[string]int, len(res.Stats.ByBucket))
	for b, n := range res.Stats.ByBucket {
		byBucket[string(b)] = n
	}
	telemetry.ObserveSitemap(byBucket, res.Stats.Excluded)
	return res
}

// OpenBlobStore returns the configured sitemap store and a function
// releasing it.
func OpenBlobStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.BlobStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Storage.Backend {
	case "gcs":
		logger.Info("using GCS storage backend", zap.String("bucket", cfg.Storage.Bucket))
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		store, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket:       cfg.Storage.Bucket,
			CacheControl: fmt.Sprintf("public, max-age=%d", cfg.Site.SitemapCacheSeconds),
		})
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		return store, store.Close, nil
	case "local":
		logger.Info("using local storage backend", zap.String("path", cfg.Storage.LocalDir))
		store, err := localstorage.New(localstorage.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			return nil, nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return store, noop, nil
	default:
		logger.Info("using in-memory storage backend")
		return memorystorage.NewBlobStore(), noop, nil
	}
}

func setupPublisher(ctx context.Context, app *App) (publisher.Publisher, error) {
	if app.cfg.PubSub.ProjectID == "" {
		app.logger.Warn("no Pub/Sub project configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	var err error
	app.pubsub, err = gcppublisher.Dial(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("leads_topic", app.cfg.PubSub.LeadsTopic),
		zap.String("pixel_topic", app.cfg.PubSub.PixelTopic),
	)
	return app.pubsub, nil
}

func setupTracking(ctx context.Context, app *App, pub publisher.Publisher) (*tracking.Dispatcher, error) {
	sinkList, err := buildSinks(app, pub)
	if err != nil {
		return nil, err
	}
	tc := app.cfg.Tracking
	d, err := tracking.NewDispatcher(tracking.Config{
		Enabled:        app.cfg.TrackingActive(),
		ThrottleWindow: tc.ThrottleWindow,
		MaxKeys:        tc.MaxKeys,
		SinkTimeout:    tc.SinkTimeout,
		BufferSize:     tc.BufferSize,
		Workers:        tc.Workers,
		BaseContext:    context.WithoutCancel(ctx),
		Clock:          app.clock,
		IDs:            uuid.New(),
		Logger:         app.logger.Named("tracking"),
	}, sinkList...)
	if err != nil {
		return nil, fmt.Errorf("tracking dispatcher init failed: %w", err)
	}
	app.logger.Info("tracking dispatcher initialized",
		zap.Bool("enabled", d.Enabled()),
		zap.Strings("sinks", d.SinkNames()),
		zap.Duration("throttle_window", tc.ThrottleWindow),
		zap.Int("workers", tc.Workers),
	)
	return d, nil
}

func buildSinks(app *App, pub publisher.Publisher) ([]tracking.Sink, error) {
	cfg := app.cfg
	client := &http.Client{Timeout: cfg.Tracking.SinkTimeout}
	var out []tracking.Sink

	if cfg.Relay.URL != "" {
		relay, err := sinks.NewRelay(cfg.Relay.URL, client)
		if err != nil {
			return nil, fmt.Errorf("relay sink: %w", err)
		}
		out = append(out, relay)
	}
	if cfg.AnalyticsConfigured() {
		analytics, err := sinks.NewAnalytics(sinks.AnalyticsConfig{
			Endpoint:      cfg.Analytics.Endpoint,
			MeasurementID: cfg.Analytics.MeasurementID,
			APISecret:     cfg.Analytics.APISecret,
		}, client)
		if err != nil {
			return nil, fmt.Errorf("analytics sink: %w", err)
		}
		out = append(out, analytics)
	}
	pixel, err := sinks.NewPixel(pub, cfg.PubSub.PixelTopic)
	if err != nil {
		return nil, fmt.Errorf("pixel sink: %w", err)
	}
	out = append(out, pixel)
	if cfg.SMS.WebhookURL != "" {
		sms, err := sinks.NewSMS(cfg.SMS.WebhookURL, cfg.SMS.To, client)
		if err != nil {
			return nil, fmt.Errorf("sms sink: %w", err)
		}
		out = append(out, sms)
	}
	if cfg.Tracking.LogEvents {
		out = append(out, sinks.NewLog(app.logger.Named("tracking_log")))
	}
	prom, err := sinks.NewPrometheus(nil)
	if err != nil {
		return nil, fmt.Errorf("prometheus sink: %w", err)
	}
	out = append(out, prom)
	return out, nil
}
