// Package alert decides when a subject's position warrants a safety warning.
package alert

import (
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/parent-watch/internal/geo"
)

// Alert is a raised warning: a subject is near a restricted zone that is
// closer than the zone the subject is expected to be at.
type Alert struct {
	ID             string    `json:"id"`
	Subject        string    `json:"subject"`
	Zone           string    `json:"zone"`
	DistanceMeters float64   `json:"distance_meters"`
	ExpectedZone   string    `json:"expected_zone"`
	RaisedAt       time.Time `json:"raised_at"`
}

// RoundedDistance returns the distance rounded to the nearest meter.
func (a Alert) RoundedDistance() int {
	return RoundMeters(a.DistanceMeters)
}

// State is the alert state of one subject.
type State struct {
	Active bool   `json:"active"`
	Alert  *Alert `json:"alert,omitempty"`
}

// Decision is the outcome of one evaluation.
type Decision struct {
	State State
	// Notify is true only when an alert became active or moved to a different
	// restricted zone.
	Notify bool
	// Cleared is true when a previously active alert was dropped.
	Cleared bool
}

// Policy evaluates proximity results into alert state transitions. It holds
// no per-subject state; callers own State and pass it back in.
type Policy struct {
	now   func() time.Time
	newID func() string
}

// Option configures a Policy.
type Option func(*Policy)

// WithClock overrides the time source used for RaisedAt.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) { p.now = now }
}

// WithIDGenerator overrides alert ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(p *Policy) { p.newID = fn }
}

// NewPolicy creates a Policy.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Evaluate applies the alert rules for one subject. An alert is active when
// the classified zone is restricted and strictly closer than the expected
// zone. Re-evaluating an unchanged condition keeps the previous alert ID,
// refreshes its distance and does not request a notification.
func (p *Policy) Evaluate(subject string, prox geo.Proximity, expected geo.Zone, expectedDist float64, prev State) Decision {
	if !triggers(prox, expectedDist) {
		return Decision{Cleared: prev.Active}
	}

	if prev.Active && prev.Alert != nil && prev.Alert.Zone == prox.Zone.Name {
		a := *prev.Alert
		a.DistanceMeters = prox.DistanceMeters
		return Decision{State: State{Active: true, Alert: &a}}
	}

	return Decision{
		State: State{
			Active: true,
			Alert: &Alert{
				ID:             p.newID(),
				Subject:        subject,
				Zone:           prox.Zone.Name,
				DistanceMeters: prox.DistanceMeters,
				ExpectedZone:   expected.Name,
				RaisedAt:       p.now(),
			},
		},
		Notify: true,
	}
}

func triggers(prox geo.Proximity, expectedDist float64) bool {
	if prox.Zone == nil || prox.Zone.Kind != geo.Restricted {
		return false
	}
	return prox.DistanceMeters < expectedDist
}
