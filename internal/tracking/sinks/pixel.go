package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/hvac-leadsite/internal/publisher"
	"github.com/JakeFAU/hvac-leadsite/internal/tracking"
)

// Pixel commands.
const (
	CommandTrack       = "track"
	CommandTrackCustom = "trackCustom"
)

// PixelCommand is the message tag gateways consume to fire the browser
// pixel. EventID matches the relay's so the platform de-duplicates.
type PixelCommand struct {
	Command string         `json:"command"`
	Event   string         `json:"event"`
	Params  map[string]any `json:"params,omitempty"`
	EventID string         `json:"event_id"`
	Session string         `json:"session,omitempty"`
}

// Pixel publishes one PixelCommand per envelope.
type Pixel struct {
	pub   publisher.Publisher
	topic string
}

// NewPixel returns a Pixel publishing to topic.
func NewPixel(pub publisher.Publisher, topic string) (*Pixel, error) {
	if pub == nil {
		return nil, errors.New("publisher is required")
	}
	if topic == "" {
		return nil, errors.New("pixel topic is required")
	}
	return &Pixel{pub: pub, topic: topic}, nil
}

// Name implements tracking.Sink.
func (p *Pixel) Name() string { return "pixel" }

// Send implements tracking.Sink.
func (p *Pixel) Send(ctx context.Context, env tracking.Envelope) error {
	if _, err := p.pub.Publish(ctx, p.topic, Command(env)); err != nil {
		return fmt.Errorf("publish pixel command: %w", err)
	}
	return nil
}

// Command converts env into a pixel command.
func Command(env tracking.Envelope) PixelCommand {
	name, standard := PlatformName(env.Event.Type())
	cmd := CommandTrackCustom
	if standard {
		cmd = CommandTrack
	}
	params := env.Event.Payload.Params()
	if len(params) == 0 {
		params = nil
	}
	return PixelCommand{
		Command: cmd,
		Event:   name,
		Params:  params,
		EventID: env.EventID,
		Session: env.Session,
	}
}
