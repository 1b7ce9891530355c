package tracker

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
)

// Metrics holds the tracker's Prometheus collectors.
type Metrics struct {
	Ticks          prometheus.Counter
	FeedErrors     *prometheus.CounterVec
	AlertsRaised   *prometheus.CounterVec
	AlertsCleared  *prometheus.CounterVec
	NotifyFailures *prometheus.CounterVec
	Stale          *prometheus.GaugeVec
	AlertActive    *prometheus.GaugeVec
}

// NewMetrics registers tracker metrics with reg, or the default registry
// when reg is nil. Collectors that are already registered are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parentwatch_ticks_total",
			Help: "Completed evaluation rounds.",
		}),
		FeedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parentwatch_feed_errors_total",
			Help: "Failed position fetches by subject.",
		}, []string{"subject"}),
		AlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parentwatch_alerts_raised_total",
			Help: "Alerts raised by subject and restricted zone.",
		}, []string{"subject", "zone"}),
		AlertsCleared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parentwatch_alerts_cleared_total",
			Help: "Alerts cleared by subject.",
		}, []string{"subject"}),
		NotifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parentwatch_notify_failures_total",
			Help: "Alert deliveries that failed by subject.",
		}, []string{"subject"}),
		Stale: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "parentwatch_subject_stale",
			Help: "1 when the subject's last position fetch failed.",
		}, []string{"subject"}),
		AlertActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "parentwatch_alert_active",
			Help: "1 while the subject has an active alert.",
		}, []string{"subject"}),
	}

	var err error
	if m.Ticks, err = register(reg, m.Ticks); err != nil {
		return nil, err
	}
	if m.FeedErrors, err = register(reg, m.FeedErrors); err != nil {
		return nil, err
	}
	if m.AlertsRaised, err = register(reg, m.AlertsRaised); err != nil {
		return nil, err
	}
	if m.AlertsCleared, err = register(reg, m.AlertsCleared); err != nil {
		return nil, err
	}
	if m.NotifyFailures, err = register(reg, m.NotifyFailures); err != nil {
		return nil, err
	}
	if m.Stale, err = register(reg, m.Stale); err != nil {
		return nil, err
	}
	if m.AlertActive, err = register(reg, m.AlertActive); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, eris.Wrap(err, "tracker: register metric")
	}
	return c, nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
