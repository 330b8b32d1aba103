package sinks

import (
	"context"
	"errors"
	"net/http"

	"github.com/JakeFAU/hvac-leadsite/internal/conversions"
	"github.com/JakeFAU/hvac-leadsite/internal/httpx"
	"github.com/JakeFAU/hvac-leadsite/internal/tracking"
)

// Relay posts each envelope as a conversions server event to the relay
// endpoint. PII is hashed before the request is built.
type Relay struct {
	url    string
	client *http.Client
}

// NewRelay returns a Relay posting to url.
func NewRelay(url string, client *http.Client) (*Relay, error) {
	if url == "" {
		return nil, errors.New("relay url is required")
	}
	return &Relay{url: url, client: client}, nil
}

// Name implements tracking.Sink.
func (r *Relay) Name() string { return "relay" }

// Send implements tracking.Sink.
func (r *Relay) Send(ctx context.Context, env tracking.Envelope) error {
	return httpx.PostJSON(ctx, r.client, r.url, ServerEvent(env), nil)
}

// ServerEvent converts an envelope into the conversions API shape.
func ServerEvent(env tracking.Envelope) conversions.ServerEvent {
	name, _ := PlatformName(env.Event.Type())
	occurred := env.Event.OccurredAt
	if occurred.IsZero() {
		occurred = env.DispatchedAt
	}
	custom := env.Event.Payload.Params()
	if len(custom) == 0 {
		custom = nil
	}
	return conversions.ServerEvent{
		EventName:      name,
		EventTime:      occurred.Unix(),
		EventSourceURL: env.Event.SourceURL,
		ActionSource:   conversions.ActionSourceWebsite,
		EventID:        env.EventID,
		UserData:       env.Event.User.Hashed(),
		CustomData:     custom,
	}
}
