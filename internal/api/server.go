package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/JakeFAU/hvac-leadsite/internal/catalog"
	"github.com/JakeFAU/hvac-leadsite/internal/config"
	"github.com/JakeFAU/hvac-leadsite/internal/conversions"
	"github.com/JakeFAU/hvac-leadsite/internal/hash/sha256"
	"github.com/JakeFAU/hvac-leadsite/internal/leads"
	"github.com/JakeFAU/hvac-leadsite/internal/policy/ratelimit"
	"github.com/JakeFAU/hvac-leadsite/internal/sitemap"
	"github.com/JakeFAU/hvac-leadsite/internal/telemetry"
	"github.com/JakeFAU/hvac-leadsite/internal/tracking"
)

const (
	maxBodyBytes  = 64 << 10
	sessionHeader = "X-Session-ID"
	sessionCookie = "ls_sid"
)

// EventDispatcher accepts tracking events.
type EventDispatcher interface {
	Dispatch(ctx context.Context, session string, evt tracking.Event) bool
}

// LeadSubmitter accepts form submissions.
type LeadSubmitter interface {
	SubmitContact(ctx context.Context, req leads.Request, form leads.ContactForm) (string, error)
	SubmitSchedule(ctx context.Context, req leads.Request, form leads.ScheduleForm) (string, error)
}

// Forwarder relays server events to the conversions API.
type Forwarder interface {
	Configured() bool
	Forward(ctx context.Context, ev conversions.ServerEvent) (conversions.Response, error)
}

// Deps are the collaborators the Server routes to. Limiter and Ready are
// optional.
type Deps struct {
	Config      config.Config
	Taxonomy    catalog.Taxonomy
	Directory   *catalog.Directory
	Sitemap     []sitemap.Entry
	Dispatcher  EventDispatcher
	Leads       LeadSubmitter
	Conversions Forwarder
	Limiter     *ratelimit.Limiter
	Ready       func(context.Context) error
	Logger      *zap.Logger
}

// Server wires HTTP handlers to the tracking dispatcher and lead service.
type Server struct {
	router  chi.Router
	deps    Deps
	logger  *zap.Logger
	sitemap []byte
	etag    string
}

// NewServer renders the sitemap once and constructs a Server with
// middleware and routes.
func NewServer(deps Deps) (*Server, error) {
	if deps.Directory == nil {
		return nil, errors.New("location directory is required")
	}
	if deps.Dispatcher == nil || deps.Leads == nil || deps.Conversions == nil {
		return nil, errors.New("dispatcher, lead service and conversions forwarder are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var buf bytes.Buffer
	if err := sitemap.WriteXML(&buf, deps.Sitemap); err != nil {
		return nil, fmt.Errorf("render sitemap: %w", err)
	}
	digest, err := sha256.New().Hash(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("hash sitemap: %w", err)
	}
	s := &Server{
		deps:    deps,
		logger:  logger,
		sitemap: buf.Bytes(),
		etag:    strconv.Quote(digest[:32]),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(telemetry.Middleware)
	if d := deps.Config.Server.RequestTimeout; d > 0 {
		r.Use(timeoutMiddleware(d))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())
	r.Get("/sitemap.xml", s.sitemapXML)

	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", s.getCatalog)
		r.Get("/locations", s.listLocations)
		r.Get("/locations/resolve", s.resolveLocation)

		r.Group(func(r chi.Router) {
			if deps.Limiter != nil && deps.Config.RateLimit.Enabled {
				r.Use(rateLimitMiddleware(deps.Limiter, logger))
			}
			r.Post("/track", s.track)
			r.Post("/leads/contact", s.submitContact)
			r.Post("/leads/schedule", s.submitSchedule)
			r.Post("/conversions", s.forwardConversion)
		})
	})

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) sitemapXML(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Content-Type", sitemap.ContentType+"; charset=utf-8")
	h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", s.deps.Config.Site.SitemapCacheSeconds))
	h.Set("X-Robots-Tag", "noindex")
	h.Set("ETag", s.etag)
	if match := r.Header.Get("If-None-Match"); match != "" && strings.Contains(match, s.etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if _, err := w.Write(s.sitemap); err != nil {
		s.logger.Warn("sitemap write failed", zap.Error(err))
	}
}

func (s *Server) getCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Taxonomy)
}

func (s *Server) listLocations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"region":    s.deps.Directory.Region().Code,
		"locations": s.deps.Directory.All(),
	})
}

// resolveLocation answers ?q= by name or slug, or ?lat=&lon=[&max_km=] by
// distance.
func (s *Server) resolveLocation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if query := q.Get("q"); query != "" {
		loc, ok := s.deps.Directory.Resolve(query)
		if !ok {
			writeError(w, http.StatusNotFound, "location not served")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"location": loc})
		return
	}
	if q.Get("lat") == "" || q.Get("lon") == "" {
		writeError(w, http.StatusBadRequest, "q or lat and lon required")
		return
	}
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		writeError(w, http.StatusBadRequest, "invalid coordinates")
		return
	}
	maxKm := 0.0
	if raw := q.Get("max_km"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "invalid max_km")
			return
		}
		maxKm = v
	}
	loc, dist, ok := s.deps.Directory.Nearest(catalog.GeoPoint{Lat: lat, Lon: lon}, maxKm)
	if !ok {
		writeError(w, http.StatusNotFound, "location not served")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"location": loc, "distance_km": dist})
}

func (s *Server) track(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	evt, err := tracking.DecodeEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if evt.User.ClientIP == "" {
		evt.User.ClientIP = validIP(clientIP(r))
	}
	if evt.User.UserAgent == "" {
		evt.User.UserAgent = truncate(r.UserAgent(), 512)
	}
	if evt.SourceURL == "" {
		evt.SourceURL = absoluteURL(r.Referer())
	}
	accepted := s.deps.Dispatcher.Dispatch(r.Context(), sessionID(r), evt)
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": accepted})
}

func (s *Server) submitContact(w http.ResponseWriter, r *http.Request) {
	var form leads.ContactForm
	if !s.decodeForm(w, r, &form) {
		return
	}
	id, err := s.deps.Leads.SubmitContact(r.Context(), leadRequest(r), form)
	s.writeLeadResult(w, id, err)
}

func (s *Server) submitSchedule(w http.ResponseWriter, r *http.Request) {
	var form leads.ScheduleForm
	if !s.decodeForm(w, r, &form) {
		return
	}
	id, err := s.deps.Leads.SubmitSchedule(r.Context(), leadRequest(r), form)
	s.writeLeadResult(w, id, err)
}

func (s *Server) decodeForm(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func (s *Server) writeLeadResult(w http.ResponseWriter, id string, err error) {
	var formErr *leads.FormError
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"lead_id": id})
	case errors.As(err, &formErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid form", "fields": formErr.Fields})
	case errors.Is(err, leads.ErrInvalidForm):
		writeError(w, http.StatusBadRequest, "invalid form")
	default:
		s.logger.Error("lead submission failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "lead could not be recorded, please call us")
	}
}

func (s *Server) forwardConversion(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Conversions.Configured() {
		telemetry.ObserveConversionForward("unconfigured")
		writeError(w, http.StatusServiceUnavailable, "conversions api not configured")
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev, err := conversions.DecodeServerEvent(body)
	if err != nil {
		telemetry.ObserveConversionForward("invalid")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := s.deps.Conversions.Forward(r.Context(), ev)
	if err != nil {
		telemetry.ObserveConversionForward("error")
		writeError(w, http.StatusBadGateway, "conversions api request failed")
		return
	}
	telemetry.ObserveConversionForward("ok")
	writeJSON(w, http.StatusOK, resp)
}

// sessionID prefers the X-Session-ID header over the ls_sid cookie. An
// empty id shares one anonymous throttle table.
func sessionID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(sessionHeader)); id != "" {
		return truncate(id, 128)
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return truncate(c.Value, 128)
	}
	return ""
}

func leadRequest(r *http.Request) leads.Request {
	req := leads.Request{
		Session:   sessionID(r),
		SourceURL: absoluteURL(r.Referer()),
		ClientIP:  validIP(clientIP(r)),
		UserAgent: truncate(r.UserAgent(), 512),
	}
	if c, err := r.Cookie("_fbc"); err == nil {
		req.FBC = truncate(c.Value, 500)
	}
	if c, err := r.Cookie("_fbp"); err == nil {
		req.FBP = truncate(c.Value, 500)
	}
	if c, err := r.Cookie("_ga"); err == nil {
		req.ClientID = truncate(c.Value, 100)
	}
	return req
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.New("request body too large or unreadable")
	}
	return body, nil
}

func validIP(s string) string {
	if net.ParseIP(s) == nil {
		return ""
	}
	return s
}

// absoluteURL returns raw when it is an absolute http(s) URL short enough to
// report, else "".
func absoluteURL(raw string) string {
	if len(raw) > 2048 {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return raw
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
