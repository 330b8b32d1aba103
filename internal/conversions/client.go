package conversions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/hvac-leadsite/internal/httpx"
)

var (
	// ErrNotConfigured means the pixel id or access token is missing.
	ErrNotConfigured = errors.New("conversions api is not configured")
	// ErrUpstream wraps any failure talking to the conversions API.
	ErrUpstream = errors.New("conversions api request failed")
)

// Config holds the API location and credentials.
type Config struct {
	GraphURL      string
	PixelID       string
	AccessToken   string
	TestEventCode string
}

// Client posts events to <GraphURL>/<PixelID>/events.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// Response is the API acknowledgement.
type Response struct {
	EventsReceived int    `json:"events_received"`
	FBTraceID      string `json:"fbtrace_id"`
}

type request struct {
	Data          []ServerEvent `json:"data"`
	TestEventCode string        `json:"test_event_code,omitempty"`
}

// NewClient builds a Client. A nil httpClient uses httpx.DefaultClient.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.GraphURL = strings.TrimRight(cfg.GraphURL, "/")
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.PixelID != "" && c.cfg.AccessToken != ""
}

// Forward hashes any raw PII in ev and sends it upstream.
func (c *Client) Forward(ctx context.Context, ev ServerEvent) (Response, error) {
	if !c.Configured() {
		return Response{}, ErrNotConfigured
	}
	if err := ev.Validate(); err != nil {
		return Response{}, err
	}
	ev.UserData = HashUserData(ev.UserData)

	endpoint := fmt.Sprintf("%s/%s/events?access_token=%s",
		c.cfg.GraphURL, url.PathEscape(c.cfg.PixelID), url.QueryEscape(c.cfg.AccessToken))
	body := request{Data: []ServerEvent{ev}, TestEventCode: c.cfg.TestEventCode}

	var resp Response
	if err := httpx.PostJSON(ctx, c.http, endpoint, body, &resp); err != nil {
		c.logger.Warn("conversions forward failed",
			zap.String("event_name", ev.EventName),
			zap.String("event_id", ev.EventID),
			zap.Error(err),
		)
		return Response{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	c.logger.Debug("conversions event forwarded",
		zap.String("event_name", ev.EventName),
		zap.String("event_id", ev.EventID),
		zap.Int("events_received", resp.EventsReceived),
	)
	return resp, nil
}
