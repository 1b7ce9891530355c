// Package notify delivers raised alerts to external channels.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/parent-watch/internal/alert"
)

// Notification is a formatted alert ready for delivery.
type Notification struct {
	ID      string      `json:"id"`
	Message string      `json:"message"`
	Alert   alert.Alert `json:"alert"`
}

// Sink delivers notifications. Implementations must be safe to call from
// the tracker goroutine while other goroutines read tracker state.
type Sink interface {
	Send(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification) error

// Send implements Sink.
func (f SinkFunc) Send(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// LogSink writes notifications to the global zap logger.
type LogSink struct{}

// Send implements Sink.
func (LogSink) Send(_ context.Context, n Notification) error {
	zap.L().Warn(n.Message,
		zap.String("alert_id", n.ID),
		zap.String("subject", n.Alert.Subject),
		zap.String("zone", n.Alert.Zone),
		zap.Int("distance_m", n.Alert.RoundedDistance()),
	)
	return nil
}

// Multi delivers to every sink and joins their errors.
type Multi []Sink

// Send implements Sink.
func (m Multi) Send(ctx context.Context, n Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
