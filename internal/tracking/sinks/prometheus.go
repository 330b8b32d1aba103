package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/hvac-leadsite/internal/tracking"
)

// Prometheus counts delivered events per type and keeps the value of lead
// and booking events.
type Prometheus struct {
	events *prometheus.CounterVec
	value  *prometheus.CounterVec
}

// NewPrometheus registers the collectors against reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prometheus{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadsite_events_delivered_total",
			Help: "Tracking events accepted for delivery, by event type.",
		}, []string{"event_type"}),
		value: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadsite_conversion_value_total",
			Help: "Declared monetary value of conversion events, by event type and currency.",
		}, []string{"event_type", "currency"}),
	}
	var err error
	if p.events, err = register(reg, p.events); err != nil {
		return nil, err
	}
	if p.value, err = register(reg, p.value); err != nil {
		return nil, err
	}
	return p, nil
}

// register adds c to reg, reusing an identical collector registered by an
// earlier sink.
func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register tracking collector: %w", err)
	}
	return c, nil
}

// Name implements tracking.Sink.
func (p *Prometheus) Name() string { return "prometheus" }

// Send implements tracking.Sink.
func (p *Prometheus) Send(_ context.Context, env tracking.Envelope) error {
	eventType := string(env.Event.Type())
	p.events.WithLabelValues(eventType).Inc()
	params := env.Event.Payload.Params()
	if v, ok := params["value"].(float64); ok && v > 0 {
		currency, _ := params["currency"].(string)
		p.value.WithLabelValues(eventType, currency).Add(v)
	}
	return nil
}
