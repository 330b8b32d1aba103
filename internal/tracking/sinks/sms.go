package sinks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JakeFAU/hvac-leadsite/internal/httpx"
	"github.com/JakeFAU/hvac-leadsite/internal/tracking"
)

// SMS texts the office about new leads and booking requests through a
// webhook. Other event types are ignored.
type SMS struct {
	url    string
	to     string
	client *http.Client
}

type smsBody struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// NewSMS returns an SMS sink.
func NewSMS(webhookURL, to string, client *http.Client) (*SMS, error) {
	if webhookURL == "" || to == "" {
		return nil, errors.New("sms webhook url and recipient are required")
	}
	return &SMS{url: webhookURL, to: to, client: client}, nil
}

// Name implements tracking.Sink.
func (s *SMS) Name() string { return "sms" }

// Send implements tracking.Sink.
func (s *SMS) Send(ctx context.Context, env tracking.Envelope) error {
	text, ok := Message(env)
	if !ok {
		return nil
	}
	return httpx.PostJSON(ctx, s.client, s.url, smsBody{To: s.to, Body: text}, nil)
}

// Message renders the alert text for lead and schedule events; ok is false
// for every other type.
func Message(env tracking.Envelope) (text string, ok bool) {
	var b strings.Builder
	switch p := env.Event.Payload.(type) {
	case tracking.Lead:
		fmt.Fprintf(&b, "New lead from %s", p.FormName)
		writeDetail(&b, "service", p.Service)
		writeDetail(&b, "location", p.Location)
	case tracking.Schedule:
		fmt.Fprintf(&b, "New booking request from %s", p.FormName)
		writeDetail(&b, "service", p.Service)
		writeDetail(&b, "date", p.PreferredDate)
	default:
		return "", false
	}
	writeDetail(&b, "ref", env.EventID)
	return b.String(), true
}

func writeDetail(b *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(b, " | %s: %s", label, value)
	}
}
