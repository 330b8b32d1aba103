package tracking

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrUnknownEventType is returned by DecodeEvent for a type outside the
// supported set.
var ErrUnknownEventType = errors.New("unknown event type")

// wireEvent is the JSON body accepted by the track endpoint.
type wireEvent struct {
	Type       EventType       `json:"type"`
	UniqueID   string          `json:"unique_id,omitempty"`
	SourceURL  string          `json:"source_url,omitempty"`
	OccurredAt *time.Time      `json:"occurred_at,omitempty"`
	User       UserData        `json:"user_data"`
	Data       json.RawMessage `json:"data,omitempty"`
}

func newPayload(t EventType) (Payload, error) {
	switch t {
	case TypePageView:
		return &PageView{}, nil
	case TypeViewContent:
		return &ViewContent{}, nil
	case TypeLead:
		return &Lead{}, nil
	case TypeSchedule:
		return &Schedule{}, nil
	case TypePhoneClick:
		return &PhoneClick{}, nil
	case TypeFormStart:
		return &FormStart{}, nil
	case TypeFormComplete:
		return &FormComplete{}, nil
	case TypeFormAbandon:
		return &FormAbandon{}, nil
	case TypeLocationSearch:
		return &LocationSearch{}, nil
	case TypeScrollDepth, TypeTimeOnPage:
		return &Engagement{Kind: t}, nil
	case TypeCTAClick:
		return &CTAClick{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, t)
	}
}

// deref turns the pointer used for decoding back into the value type the
// rest of the package switches on.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *PageView:
		return *v
	case *ViewContent:
		return *v
	case *Lead:
		return *v
	case *Schedule:
		return *v
	case *PhoneClick:
		return *v
	case *FormStart:
		return *v
	case *FormComplete:
		return *v
	case *FormAbandon:
		return *v
	case *LocationSearch:
		return *v
	case *Engagement:
		return *v
	case *CTAClick:
		return *v
	}
	return p
}

// DecodeEvent parses and validates a JSON event. Unknown types, unknown
// fields and payloads that fail validation are rejected.
func DecodeEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := strictUnmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	p, err := newPayload(w.Type)
	if err != nil {
		return Event{}, err
	}
	body := w.Data
	if len(bytes.TrimSpace(body)) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		body = []byte("{}")
	}
	if err := strictUnmarshal(body, p); err != nil {
		return Event{}, fmt.Errorf("decode %s data: %w", w.Type, err)
	}
	evt := Event{
		Payload:   deref(p),
		UniqueID:  w.UniqueID,
		SourceURL: w.SourceURL,
		User:      w.User,
	}
	if w.OccurredAt != nil {
		evt.OccurredAt = w.OccurredAt.UTC()
	}
	if err := evt.Validate(); err != nil {
		return Event{}, err
	}
	return evt, nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after json value")
	}
	return nil
}
