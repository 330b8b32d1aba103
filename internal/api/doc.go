// Package api hosts the HTTP server, middleware, and JSON handlers behind the
// lead site. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /sitemap.xml for crawlers.
//   - GET /api/catalog and /api/locations[/resolve] for page data.
//   - POST /api/track for browser tracking events.
//   - POST /api/leads/{contact,schedule} for form submissions.
//   - POST /api/conversions for the server-side conversions relay.
package api
