// Package main hosts the leadsite entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, sitemap, catalog and location endpoints plus the
//     POST endpoints for tracking events, lead forms and the conversions relay. Bodies are size-capped, decoded
//     strictly and validated before they reach the core packages.
//   - Sitemap: internal/sitemap expands the static service taxonomy and the eligible service areas into SEO URLs.
//     Generation is a pure pass over immutable input; the server renders it once at start-up and `leadsite sitemap`
//     prints or publishes the same document to the configured BlobStore (memory/local/GCS).
//   - Tracking: internal/tracking folds repeated conversion events per visitor session inside a throttle window and
//     fans accepted events out to sinks (conversions relay, analytics, pixel topic, SMS, log, Prometheus) through a
//     bounded buffer and a fixed worker pool. A failing sink never affects its siblings or the caller.
//   - Leads: internal/leads validates contact and scheduling forms, publishes each lead to the leads topic
//     (in-memory or Pub/Sub) and dispatches a tracking event keyed by the lead id.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging; Prometheus
//     metrics are served on /metrics; OpenTelemetry traces sink deliveries and exports over OTLP when configured.
//
// Operational notes:
//   - Tracking is active only when app.environment is production or tracking.enabled is set.
//   - Throttle state lives in memory per process. A janitor purges entries older than tracking.retention.
//   - POSTs under /api are rate limited per client IP; GET routes are not.
//   - The process reacts to SIGTERM by failing /readyz, draining the HTTP server and flushing queued deliveries.
//
// Quick checklist:
//   - Configure env vars: LEADSITE_SITE_BASE_URL, LEADSITE_APP_ENVIRONMENT, LEADSITE_CONVERSIONS_PIXEL_ID,
//     LEADSITE_CONVERSIONS_ACCESS_TOKEN, LEADSITE_PUBSUB_PROJECT_ID, storage (LEADSITE_STORAGE_*).
//   - Run locally: go run . serve --config config.yaml
//   - Publish the sitemap: go run . sitemap --publish
package main
