package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/hvac-leadsite/internal/catalog"
	"github.com/JakeFAU/hvac-leadsite/internal/clock/fake"
	"github.com/JakeFAU/hvac-leadsite/internal/config"
	"github.com/JakeFAU/hvac-leadsite/internal/conversions"
	"github.com/JakeFAU/hvac-leadsite/internal/id/uuid"
	"github.com/JakeFAU/hvac-leadsite/internal/leads"
	"github.com/JakeFAU/hvac-leadsite/internal/policy/ratelimit"
	"github.com/JakeFAU/hvac-leadsite/internal/publisher/memory"
	"github.com/JakeFAU/hvac-leadsite/internal/sitemap"
	"github.com/JakeFAU/hvac-leadsite/internal/tracking"
)

var now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	server    *Server
	pub       *memory.Publisher
	delivered *atomic.Int32
}

type option func(*Deps)

func newHarness(t *testing.T, opts ...option) harness {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.RateLimit.Enabled = false

	clk := fake.New(now)
	var delivered atomic.Int32
	counter := tracking.SinkFunc{SinkName: "counter", Fn: func(context.Context, tracking.Envelope) error {
		delivered.Add(1)
		return nil
	}}
	disp, err := tracking.NewDispatcher(tracking.Config{Enabled: true, Clock: clk, IDs: uuid.New()}, counter)
	require.NoError(t, err)
	t.Cleanup(func() { _ = disp.Close(context.Background()) })

	pub := memory.New()
	svc, err := leads.NewService(leads.Config{Publisher: pub, Topic: "leads", Dispatcher: disp, Clock: clk, IDs: uuid.New()})
	require.NoError(t, err)

	cat := catalog.Default()
	gen, err := sitemap.NewGenerator(sitemap.Config{BaseURL: "https://hvac.example.com", Region: "OH"}, nil)
	require.NoError(t, err)
	res := gen.Generate(cat.Taxonomy, cat.Locations, now)

	deps := Deps{
		Config:      cfg,
		Taxonomy:    cat.Taxonomy,
		Directory:   catalog.NewDirectory(cat.Locations, gen.Region()),
		Sitemap:     res.Entries,
		Dispatcher:  disp,
		Leads:       svc,
		Conversions: conversions.NewClient(conversions.Config{GraphURL: cfg.Conversions.GraphURL}, nil, nil),
		Logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	server, err := NewServer(deps)
	require.NoError(t, err)
	return harness{server: server, pub: pub, delivered: &delivered}
}

func (h harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func post(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestNewServerRequiresDeps(t *testing.T) {
	t.Parallel()

	_, err := NewServer(Deps{})
	require.Error(t, err)
}

func TestProbes(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	notReady := newHarness(t, func(d *Deps) {
		d.Ready = func(context.Context) error { return errors.New("pubsub unreachable") }
	})
	require.Equal(t, http.StatusServiceUnavailable, notReady.do(httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)

	require.Equal(t, http.StatusOK, h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil)).Code)
}

func TestSitemapXML(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/sitemap.xml", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/xml; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	require.Equal(t, "noindex", rec.Header().Get("X-Robots-Tag"))
	require.Contains(t, rec.Body.String(), `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	require.Contains(t, rec.Body.String(), "<loc>https://hvac.example.com/locations/akron-oh</loc>")

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	req := httptest.NewRequest(http.MethodGet, "/sitemap.xml", nil)
	req.Header.Set("If-None-Match", etag)
	rec = h.do(req)
	require.Equal(t, http.StatusNotModified, rec.Code)
	require.Empty(t, rec.Body.Bytes())
}

func TestCatalogAndLocations(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	tax := decode[catalog.Taxonomy](t, h.do(httptest.NewRequest(http.MethodGet, "/api/catalog", nil)))
	require.Equal(t, "residential", tax.Categories[0].ID)

	list := decode[struct {
		Region    string             `json:"region"`
		Locations []catalog.Location `json:"locations"`
	}](t, h.do(httptest.NewRequest(http.MethodGet, "/api/locations", nil)))
	require.Equal(t, "OH", list.Region)
	require.Len(t, list.Locations, len(catalog.Default().Locations))

	type resolved struct {
		Location   catalog.Location `json:"location"`
		DistanceKm float64          `json:"distance_km"`
	}
	byName := decode[resolved](t, h.do(httptest.NewRequest(http.MethodGet, "/api/locations/resolve?q=Cuyahoga+Falls,+OH", nil)))
	require.Equal(t, "cuyahoga-falls-oh", byName.Location.ID)

	byPoint := decode[resolved](t, h.do(httptest.NewRequest(http.MethodGet, "/api/locations/resolve?lat=41.08&lon=-81.52", nil)))
	require.Equal(t, "akron-oh", byPoint.Location.ID)
	require.Less(t, byPoint.DistanceKm, 1.0)

	require.Equal(t, http.StatusNotFound, h.do(httptest.NewRequest(http.MethodGet, "/api/locations/resolve?q=columbus-ga", nil)).Code)
	require.Equal(t, http.StatusNotFound, h.do(httptest.NewRequest(http.MethodGet, "/api/locations/resolve?lat=33.9&lon=-84.5&max_km=50", nil)).Code)
	require.Equal(t, http.StatusBadRequest, h.do(httptest.NewRequest(http.MethodGet, "/api/locations/resolve", nil)).Code)
	require.Equal(t, http.StatusBadRequest, h.do(httptest.NewRequest(http.MethodGet, "/api/locations/resolve?lat=91&lon=0", nil)).Code)
}

func TestTrackThrottlesPerSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	body := `{"type":"phone_click","data":{"placement":"Header"}}`

	first := post("/api/track", body)
	first.Header.Set("X-Session-ID", "visitor-1")
	rec := h.do(first)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, map[string]bool{"accepted": true}, decode[map[string]bool](t, rec))

	again := post("/api/track", body)
	again.Header.Set("X-Session-ID", "visitor-1")
	require.Equal(t, map[string]bool{"accepted": false}, decode[map[string]bool](t, h.do(again)))

	other := post("/api/track", body)
	other.AddCookie(&http.Cookie{Name: "ls_sid", Value: "visitor-2"})
	require.Equal(t, map[string]bool{"accepted": true}, decode[map[string]bool](t, h.do(other)))
}

func TestTrackRejectsMalformedEvents(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	for _, body := range []string{
		`{"type":"purchase"}`,
		`{"type":"lead","data":{}}`,
		`not json`,
	} {
		require.Equal(t, http.StatusBadRequest, h.do(post("/api/track", body)).Code, body)
	}
	big := `{"type":"page_view","data":{"title":"` + strings.Repeat("x", maxBodyBytes) + `"}}`
	require.Equal(t, http.StatusBadRequest, h.do(post("/api/track", big)).Code)
}

func TestTrackWhenDisabled(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(d *Deps) {
		disp, err := tracking.NewDispatcher(tracking.Config{Clock: fake.New(now), IDs: uuid.New()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = disp.Close(context.Background()) })
		d.Dispatcher = disp
	})
	rec := h.do(post("/api/track", `{"type":"phone_click","data":{"placement":"Header"}}`))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, map[string]bool{"accepted": false}, decode[map[string]bool](t, rec))
}

func TestSubmitContact(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	req := post("/api/leads/contact", `{"name":"Jane Doe","email":"jane@example.com","phone":"330-555-0142","service":"furnace-repair"}`)
	req.Header.Set("Referer", "https://hvac.example.com/contact")
	req.AddCookie(&http.Cookie{Name: "_fbp", Value: "fb.1.1.2"})
	rec := h.do(req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decode[map[string]string](t, rec)["lead_id"]
	require.NotEmpty(t, id)

	records := h.pub.Topic("leads")
	require.Len(t, records, 1)
	record := records[0].(leads.Record)
	require.Equal(t, id, record.ID)
	require.Equal(t, "https://hvac.example.com/contact", record.SourceURL)
}

func TestSubmitScheduleValidation(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	rec := h.do(post("/api/leads/schedule", `{"name":"Jane","email":"jane@example.com","phone":"330-555-0142","service":"ac-tune-up","preferred_date":"2025-06-03","preferred_window":"night"}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	got := decode[struct {
		Fields []string `json:"fields"`
	}](t, rec)
	require.Equal(t, []string{"preferred_window"}, got.Fields)

	require.Equal(t, http.StatusBadRequest, h.do(post("/api/leads/schedule", `{"name":"Jane","coupon":"x"}`)).Code)
	require.Empty(t, h.pub.Messages())
}

func TestSubmitContactPublishFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.pub.SetError(errors.New("broker down"))
	rec := h.do(post("/api/leads/contact", `{"name":"Jane Doe","email":"jane@example.com","phone":"330-555-0142"}`))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestConversionsRelay(t *testing.T) {
	t.Parallel()

	event := `{"event_name":"Lead","event_time":1748768400,"action_source":"website","event_id":"lead-1","user_data":{"em":"jane@example.com"}}`

	unconfigured := newHarness(t)
	require.Equal(t, http.StatusServiceUnavailable, unconfigured.do(post("/api/conversions", event)).Code)

	var upstreamStatus atomic.Int32
	upstreamStatus.Store(http.StatusOK)
	var forwarded bytes.Buffer
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = forwarded.ReadFrom(r.Body)
		w.WriteHeader(int(upstreamStatus.Load()))
		_, _ = w.Write([]byte(`{"events_received":1}`))
	}))
	defer upstream.Close()

	h := newHarness(t, func(d *Deps) {
		d.Conversions = conversions.NewClient(conversions.Config{GraphURL: upstream.URL, PixelID: "1", AccessToken: "t"}, upstream.Client(), nil)
	})
	rec := h.do(post("/api/conversions", event))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, forwarded.String(), "jane@example.com")

	require.Equal(t, http.StatusBadRequest, h.do(post("/api/conversions", `{"event_name":""}`)).Code)

	upstreamStatus.Store(http.StatusBadRequest)
	require.Equal(t, http.StatusBadGateway, h.do(post("/api/conversions", event)).Code)
}

func TestRateLimitRejectsBurst(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(d *Deps) {
		d.Config.RateLimit.Enabled = true
		d.Limiter = ratelimit.New(ratelimit.Config{DefaultRPS: 0.001, DefaultBurst: 1})
	})
	body := `{"type":"page_view"}`
	require.Equal(t, http.StatusAccepted, h.do(post("/api/track", body)).Code)
	rec := h.do(post("/api/track", body))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Reads are never limited.
	require.Equal(t, http.StatusOK, h.do(httptest.NewRequest(http.MethodGet, "/api/catalog", nil)).Code)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	handler := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDPropagation(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "0190c5a2-7b8e-7c3d-9f00-000000000001")
	require.Equal(t, "0190c5a2-7b8e-7c3d-9f00-000000000001", h.do(req).Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "<script>")
	require.NotEqual(t, "<script>", h.do(req).Header().Get("X-Request-ID"))
}
