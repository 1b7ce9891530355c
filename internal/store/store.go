// Package store persists alert history for the dashboard.
package store

import (
	"context"
	"time"

	"github.com/sells-group/parent-watch/internal/alert"
)

// AlertRecord is one raised alert and, once resolved, when it cleared.
type AlertRecord struct {
	ID             string     `json:"id"`
	Subject        string     `json:"subject"`
	Zone           string     `json:"zone"`
	ExpectedZone   string     `json:"expected_zone"`
	DistanceMeters float64    `json:"distance_meters"`
	Message        string     `json:"message"`
	RaisedAt       time.Time  `json:"raised_at"`
	ClearedAt      *time.Time `json:"cleared_at,omitempty"`
}

// Active reports whether the alert has not been cleared.
func (r AlertRecord) Active() bool {
	return r.ClearedAt == nil
}

// AlertFilter narrows ListAlerts.
type AlertFilter struct {
	Subject    string
	ActiveOnly bool
	Limit      int
}

const defaultListLimit = 100

// Store persists alert history. Raising an alert for a subject closes any
// alert still open for that subject.
type Store interface {
	RecordRaised(ctx context.Context, a alert.Alert, message string) error
	RecordCleared(ctx context.Context, subject string, at time.Time) error
	ListAlerts(ctx context.Context, filter AlertFilter) ([]AlertRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}
