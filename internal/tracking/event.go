// Package tracking de-duplicates, throttles and fans out conversion events to
// the configured analytics and advertising sinks.
package tracking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// EventType names a tracked user action.
type EventType string

// Supported event types.
const (
	TypePageView       EventType = "page_view"
	TypeViewContent    EventType = "view_content"
	TypeLead           EventType = "lead"
	TypeSchedule       EventType = "schedule"
	TypePhoneClick     EventType = "phone_click"
	TypeFormStart      EventType = "form_start"
	TypeFormComplete   EventType = "form_complete"
	TypeFormAbandon    EventType = "form_abandon"
	TypeLocationSearch EventType = "location_search"
	TypeScrollDepth    EventType = "scroll_depth"
	TypeTimeOnPage     EventType = "time_on_page"
	TypeCTAClick       EventType = "cta_click"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
}

// Payload is the closed set of typed event bodies. Every payload reports the
// type and content name the throttle key is derived from, and the flat
// parameters sinks forward as custom data.
type Payload interface {
	EventType() EventType
	ContentName() string
	Params() map[string]any
	payload()
}

// PageView records a page render.
type PageView struct {
	Path  string `json:"path,omitempty" validate:"omitempty,startswith=/,max=2048"`
	Title string `json:"title,omitempty" validate:"max=300"`
}

// ViewContent records a view of a service or location detail page.
type ViewContent struct {
	Name            string `json:"content_name" validate:"required,max=200"`
	ContentCategory string `json:"content_category,omitempty" validate:"max=100"`
	Service         string `json:"service,omitempty" validate:"max=100"`
	Location        string `json:"location,omitempty" validate:"max=100"`
}

// Lead records a submitted contact form.
type Lead struct {
	FormName string  `json:"form_name" validate:"required,max=100"`
	Service  string  `json:"service,omitempty" validate:"max=100"`
	Location string  `json:"location,omitempty" validate:"max=100"`
	Value    float64 `json:"value,omitempty" validate:"gte=0"`
	Currency string  `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
}

// Schedule records a submitted appointment request.
type Schedule struct {
	FormName      string  `json:"form_name" validate:"required,max=100"`
	Service       string  `json:"service,omitempty" validate:"max=100"`
	PreferredDate string  `json:"preferred_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Value         float64 `json:"value,omitempty" validate:"gte=0"`
	Currency      string  `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
}

// PhoneClick records a tap on a click-to-call link.
type PhoneClick struct {
	Placement string `json:"placement" validate:"required,max=100"`
	Phone     string `json:"phone,omitempty" validate:"max=32"`
}

// FormStart records the first interaction with a form.
type FormStart struct {
	FormName string `json:"form_name" validate:"required,max=100"`
}

// FormComplete records a form reaching its final step.
type FormComplete struct {
	FormName string `json:"form_name" validate:"required,max=100"`
}

// FormAbandon records a form left before submission.
type FormAbandon struct {
	FormName  string `json:"form_name" validate:"required,max=100"`
	LastField string `json:"last_field,omitempty" validate:"max=100"`
}

// LocationSearch records a service-area lookup.
type LocationSearch struct {
	Query            string `json:"query" validate:"required,max=200"`
	ResolvedLocation string `json:"resolved_location,omitempty" validate:"max=100"`
}

// Engagement records a scroll-depth or time-on-page milestone such as "50%"
// or "60s".
type Engagement struct {
	Kind      EventType `json:"-" validate:"oneof=scroll_depth time_on_page"`
	Milestone string    `json:"milestone" validate:"required,max=50"`
}

// CTAClick records a click on a call-to-action.
type CTAClick struct {
	Label       string `json:"label" validate:"required,max=100"`
	Destination string `json:"destination,omitempty" validate:"max=2048"`
}

func (PageView) EventType() EventType       { return TypePageView }
func (ViewContent) EventType() EventType    { return TypeViewContent }
func (Lead) EventType() EventType           { return TypeLead }
func (Schedule) EventType() EventType       { return TypeSchedule }
func (PhoneClick) EventType() EventType     { return TypePhoneClick }
func (FormStart) EventType() EventType      { return TypeFormStart }
func (FormComplete) EventType() EventType   { return TypeFormComplete }
func (FormAbandon) EventType() EventType    { return TypeFormAbandon }
func (LocationSearch) EventType() EventType { return TypeLocationSearch }
func (e Engagement) EventType() EventType   { return e.Kind }
func (CTAClick) EventType() EventType       { return TypeCTAClick }

func (p PageView) ContentName() string       { return p.Title }
func (p ViewContent) ContentName() string    { return p.Name }
func (p Lead) ContentName() string           { return p.FormName }
func (p Schedule) ContentName() string       { return p.FormName }
func (p PhoneClick) ContentName() string     { return p.Placement }
func (p FormStart) ContentName() string      { return p.FormName }
func (p FormComplete) ContentName() string   { return p.FormName }
func (p FormAbandon) ContentName() string    { return p.FormName }
func (p LocationSearch) ContentName() string { return p.Query }
func (p Engagement) ContentName() string     { return p.Milestone }
func (p CTAClick) ContentName() string       { return p.Label }

func (PageView) payload()       {}
func (ViewContent) payload()    {}
func (Lead) payload()           {}
func (Schedule) payload()       {}
func (PhoneClick) payload()     {}
func (FormStart) payload()      {}
func (FormComplete) payload()   {}
func (FormAbandon) payload()    {}
func (LocationSearch) payload() {}
func (Engagement) payload()     {}
func (CTAClick) payload()       {}

// Params returns the page path and title.
func (p PageView) Params() map[string]any {
	return params("page_path", p.Path, "page_title", p.Title)
}

// Params returns the content descriptors.
func (p ViewContent) Params() map[string]any {
	return params("content_name", p.Name, "content_category", p.ContentCategory,
		"service", p.Service, "location", p.Location)
}

// Params returns the form, service and monetary value.
func (p Lead) Params() map[string]any {
	out := params("content_name", p.FormName, "service", p.Service, "location", p.Location)
	addValue(out, p.Value, p.Currency)
	return out
}

// Params returns the form, service, requested date and monetary value.
func (p Schedule) Params() map[string]any {
	out := params("content_name", p.FormName, "service", p.Service, "preferred_date", p.PreferredDate)
	addValue(out, p.Value, p.Currency)
	return out
}

// Params returns the link placement.
func (p PhoneClick) Params() map[string]any {
	return params("content_name", p.Placement, "phone_number", p.Phone)
}

// Params returns the form name.
func (p FormStart) Params() map[string]any { return params("form_name", p.FormName) }

// Params returns the form name.
func (p FormComplete) Params() map[string]any { return params("form_name", p.FormName) }

// Params returns the form name and the last field touched.
func (p FormAbandon) Params() map[string]any {
	return params("form_name", p.FormName, "last_field", p.LastField)
}

// Params returns the search query and its resolution.
func (p LocationSearch) Params() map[string]any {
	return params("search_string", p.Query, "location", p.ResolvedLocation)
}

// Params returns the milestone label.
func (p Engagement) Params() map[string]any { return params("milestone", p.Milestone) }

// Params returns the label and destination.
func (p CTAClick) Params() map[string]any {
	return params("content_name", p.Label, "destination", p.Destination)
}

// params builds a map from alternating key/value pairs, skipping empty values.
func params(kv ...string) map[string]any {
	out := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			out[kv[i]] = kv[i+1]
		}
	}
	return out
}

func addValue(out map[string]any, value float64, currency string) {
	if value <= 0 {
		return
	}
	if currency == "" {
		currency = "USD"
	}
	out["value"] = value
	out["currency"] = currency
}

// Event is one tracked user action.
type Event struct {
	Payload Payload
	// UniqueID, when set, is used verbatim as the throttle key and as the
	// event id shared by every sink.
	UniqueID   string
	SourceURL  string
	User       UserData
	OccurredAt time.Time
}

// ErrNoPayload is returned by Validate for an event without a body.
var ErrNoPayload = errors.New("event payload is required")

// Type is shorthand for e.Payload.EventType().
func (e Event) Type() EventType {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.EventType()
}

// Validate checks the payload and the envelope fields.
func (e Event) Validate() error {
	if e.Payload == nil {
		return ErrNoPayload
	}
	if err := validate.Struct(e.Payload); err != nil {
		return fmt.Errorf("invalid %s payload: %w", e.Payload.EventType(), err)
	}
	if err := validate.Struct(e.User); err != nil {
		return fmt.Errorf("invalid user data: %w", err)
	}
	if e.SourceURL != "" {
		if err := validate.Var(e.SourceURL, "url,max=2048"); err != nil {
			return fmt.Errorf("invalid source url: %w", err)
		}
	}
	if len(e.UniqueID) > 200 || strings.TrimSpace(e.UniqueID) != e.UniqueID {
		return errors.New("unique id must be trimmed and at most 200 characters")
	}
	return nil
}
