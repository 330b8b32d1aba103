package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/hvac-leadsite/internal/logging"
	"github.com/JakeFAU/hvac-leadsite/internal/publisher"
	"github.com/JakeFAU/hvac-leadsite/internal/telemetry"
	"github.com/JakeFAU/hvac-leadsite/internal/tracking"
)

// Lead kinds.
const (
	KindContact  = "contact"
	KindSchedule = "schedule"
)

// Form names reported as the tracking content name.
const (
	ContactFormName  = "Contact Form"
	ScheduleFormName = "Schedule Form"
)

// Clock supplies submission timestamps.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces lead ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Dispatcher is the subset of tracking.Dispatcher the service needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, session string, evt tracking.Event) bool
}

// Request carries what the HTTP layer knows about the submitter.
type Request struct {
	Session   string
	SourceURL string
	ClientIP  string
	UserAgent string
	FBC       string
	FBP       string
	ClientID  string
}

// Record is the lead message published for the CRM.
type Record struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	SubmittedAt     time.Time `json:"submitted_at"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	Service         string    `json:"service,omitempty"`
	Location        string    `json:"location,omitempty"`
	Message         string    `json:"message,omitempty"`
	Address         string    `json:"address,omitempty"`
	Zip             string    `json:"zip,omitempty"`
	PreferredDate   string    `json:"preferred_date,omitempty"`
	PreferredWindow string    `json:"preferred_window,omitempty"`
	SourceURL       string    `json:"source_url,omitempty"`
	Session         string    `json:"session,omitempty"`
}

// Config wires a Service.
type Config struct {
	Publisher  publisher.Publisher
	Topic      string
	Dispatcher Dispatcher
	Clock      Clock
	IDs        IDGenerator
	Logger     *zap.Logger
}

// Service accepts form submissions.
type Service struct {
	pub        publisher.Publisher
	topic      string
	dispatcher Dispatcher
	clock      Clock
	ids        IDGenerator
	logger     *zap.Logger
}

// NewService validates cfg. Dispatcher may be nil, in which case no
// tracking event is reported.
func NewService(cfg Config) (*Service, error) {
	if cfg.Publisher == nil {
		return nil, errors.New("lead publisher is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("lead topic is required")
	}
	if cfg.Clock == nil || cfg.IDs == nil {
		return nil, errors.New("lead clock and id generator are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		pub:        cfg.Publisher,
		topic:      cfg.Topic,
		dispatcher: cfg.Dispatcher,
		clock:      cfg.Clock,
		ids:        cfg.IDs,
		logger:     logger,
	}, nil
}

// SubmitContact validates and publishes a contact form, returning the lead id.
func (s *Service) SubmitContact(ctx context.Context, req Request, form ContactForm) (string, error) {
	form = trimContact(form)
	if err := validateForm(form); err != nil {
		telemetry.ObserveLead(KindContact, "invalid")
		return "", err
	}
	rec := Record{
		Kind:     KindContact,
		Name:     form.Name,
		Email:    form.Email,
		Phone:    form.Phone,
		Service:  form.Service,
		Location: form.Location,
		Message:  form.Message,
	}
	payload := tracking.Lead{FormName: ContactFormName, Service: form.Service, Location: form.Location}
	return s.submit(ctx, req, rec, payload)
}

// SubmitSchedule validates and publishes a scheduling request, returning
// the lead id.
func (s *Service) SubmitSchedule(ctx context.Context, req Request, form ScheduleForm) (string, error) {
	form = trimSchedule(form)
	if err := validateForm(form); err != nil {
		telemetry.ObserveLead(KindSchedule, "invalid")
		return "", err
	}
	rec := Record{
		Kind:            KindSchedule,
		Name:            form.Name,
		Email:           form.Email,
		Phone:           form.Phone,
		Service:         form.Service,
		Location:        form.Location,
		Message:         form.Notes,
		Address:         form.Address,
		Zip:             form.Zip,
		PreferredDate:   form.PreferredDate,
		PreferredWindow: form.PreferredWindow,
	}
	payload := tracking.Schedule{FormName: ScheduleFormName, Service: form.Service, PreferredDate: form.PreferredDate}
	return s.submit(ctx, req, rec, payload)
}

func (s *Service) submit(ctx context.Context, req Request, rec Record, payload tracking.Payload) (string, error) {
	id, err := s.ids.NewID()
	if err != nil {
		telemetry.ObserveLead(rec.Kind, "error")
		return "", fmt.Errorf("generate lead id: %w", err)
	}
	rec.ID = id
	rec.SubmittedAt = s.clock.Now().UTC()
	rec.SourceURL = req.SourceURL
	rec.Session = req.Session

	logger := s.logger.With(
		zap.String("lead_id", id),
		zap.String("kind", rec.Kind),
		zap.String("email", logging.MaskEmail(rec.Email)),
		zap.String("phone", logging.MaskPhone(rec.Phone)),
	)
	if _, err := s.pub.Publish(ctx, s.topic, rec); err != nil {
		telemetry.ObserveLead(rec.Kind, "error")
		logger.Error("lead publish failed", zap.Error(err))
		return "", fmt.Errorf("publish lead: %w", err)
	}
	telemetry.ObserveLead(rec.Kind, "accepted")
	logger.Info("lead accepted", zap.String("service", rec.Service))

	if s.dispatcher != nil {
		evt := tracking.Event{
			Payload:    payload,
			UniqueID:   id,
			SourceURL:  req.SourceURL,
			OccurredAt: rec.SubmittedAt,
			User:       userData(rec, req),
		}
		if !s.dispatcher.Dispatch(ctx, req.Session, evt) {
			logger.Debug("lead conversion not dispatched")
		}
	}
	return id, nil
}

func userData(rec Record, req Request) tracking.UserData {
	first, last, _ := strings.Cut(rec.Name, " ")
	return tracking.UserData{
		Email:     rec.Email,
		Phone:     rec.Phone,
		FirstName: first,
		LastName:  strings.TrimSpace(last),
		Zip:       rec.Zip,
		ClientIP:  req.ClientIP,
		UserAgent: req.UserAgent,
		FBC:       req.FBC,
		FBP:       req.FBP,
		ClientID:  req.ClientID,
	}
}

func trimContact(f ContactForm) ContactForm {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Service = strings.TrimSpace(f.Service)
	f.Location = strings.TrimSpace(f.Location)
	f.Message = strings.TrimSpace(f.Message)
	return f
}

func trimSchedule(f ScheduleForm) ScheduleForm {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Address = strings.TrimSpace(f.Address)
	f.Zip = strings.TrimSpace(f.Zip)
	f.Service = strings.TrimSpace(f.Service)
	f.Location = strings.TrimSpace(f.Location)
	f.PreferredDate = strings.TrimSpace(f.PreferredDate)
	f.PreferredWindow = strings.ToLower(strings.TrimSpace(f.PreferredWindow))
	f.Notes = strings.TrimSpace(f.Notes)
	return f
}
