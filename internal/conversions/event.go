// Package conversions forwards server-side conversion events to the ad
// platform's conversions API.
package conversions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"

	"github.com/JakeFAU/hvac-leadsite/internal/hash/sha256"
)

// ActionSourceWebsite marks events that happened on the site.
const ActionSourceWebsite = "website"

// ServerEvent is one conversions API event.
type ServerEvent struct {
	EventName      string            `json:"event_name" validate:"required,max=100"`
	EventTime      int64             `json:"event_time" validate:"gt=0"`
	EventSourceURL string            `json:"event_source_url,omitempty" validate:"omitempty,url"`
	ActionSource   string            `json:"action_source" validate:"required"`
	EventID        string            `json:"event_id,omitempty" validate:"max=200"`
	UserData       map[string]string `json:"user_data"`
	CustomData     map[string]any    `json:"custom_data,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var hasher = sha256.New()

// Validate checks the required fields.
func (e ServerEvent) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("invalid server event: %w", err)
	}
	return nil
}

// HashUserData returns a copy of data with every PII field replaced by the
// SHA-256 digest of its normalized value. Values that already are digests
// pass through lowercased; empty values are dropped.
func HashUserData(data map[string]string) map[string]string {
	out := make(map[string]string, len(data))
	for field, value := range data {
		if value == "" {
			continue
		}
		if sha256.IsPIIField(field) {
			if digest := hasher.HashPII(field, value); digest != "" {
				out[field] = digest
			}
			continue
		}
		out[field] = value
	}
	return out
}

// DecodeServerEvent parses a single relay event, rejecting unknown fields.
func DecodeServerEvent(data []byte) (ServerEvent, error) {
	var ev ServerEvent
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ev); err != nil {
		return ServerEvent{}, fmt.Errorf("decode server event: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return ServerEvent{}, errors.New("decode server event: trailing data")
	}
	if err := ev.Validate(); err != nil {
		return ServerEvent{}, err
	}
	return ev, nil
}
