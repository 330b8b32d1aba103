package sinks

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"

	"github.com/JakeFAU/hvac-leadsite/internal/httpx"
	"github.com/JakeFAU/hvac-leadsite/internal/tracking"
)

// AnalyticsConfig locates the measurement protocol endpoint.
type AnalyticsConfig struct {
	Endpoint      string
	MeasurementID string
	APISecret     string
}

// Analytics reports events through the analytics measurement protocol.
type Analytics struct {
	url    string
	client *http.Client
}

// AnalyticsEvent is one measurement protocol event.
type AnalyticsEvent struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

// AnalyticsRequest is the measurement protocol request body.
type AnalyticsRequest struct {
	ClientID string           `json:"client_id"`
	Events   []AnalyticsEvent `json:"events"`
}

// NewAnalytics validates cfg and builds the collect URL.
func NewAnalytics(cfg AnalyticsConfig, client *http.Client) (*Analytics, error) {
	if cfg.Endpoint == "" || cfg.MeasurementID == "" || cfg.APISecret == "" {
		return nil, errors.New("analytics endpoint, measurement id and api secret are required")
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse analytics endpoint: %w", err)
	}
	q := u.Query()
	q.Set("measurement_id", cfg.MeasurementID)
	q.Set("api_secret", cfg.APISecret)
	u.RawQuery = q.Encode()
	return &Analytics{url: u.String(), client: client}, nil
}

// Name implements tracking.Sink.
func (a *Analytics) Name() string { return "analytics" }

// Send implements tracking.Sink.
func (a *Analytics) Send(ctx context.Context, env tracking.Envelope) error {
	return httpx.PostJSON(ctx, a.client, a.url, AnalyticsBody(env), nil)
}

// AnalyticsBody builds the measurement protocol request for env. The client
// id falls back to the session and then the event id.
func AnalyticsBody(env tracking.Envelope) AnalyticsRequest {
	clientID := env.Event.User.ClientID
	if clientID == "" {
		clientID = env.Session
	}
	if clientID == "" {
		clientID = env.EventID
	}
	params := maps.Clone(env.Event.Payload.Params())
	if params == nil {
		params = make(map[string]any, 2)
	}
	params["event_id"] = env.EventID
	if env.Event.SourceURL != "" {
		params["page_location"] = env.Event.SourceURL
	}
	return AnalyticsRequest{
		ClientID: clientID,
		Events:   []AnalyticsEvent{{Name: string(env.Event.Type()), Params: params}},
	}
}
