// Package tracker runs the polling loop that refreshes subject positions,
// classifies them against zones and raises alerts.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/parent-watch/internal/alert"
	"github.com/sells-group/parent-watch/internal/feed"
	"github.com/sells-group/parent-watch/internal/geo"
	"github.com/sells-group/parent-watch/internal/notify"
)

// DefaultInterval is the polling cadence of the simulated dashboard.
const DefaultInterval = 5 * time.Second

// ErrRunning is returned by Start when the loop is already running.
var ErrRunning = eris.New("tracker: already running")

// Subject is a tracked person and their last known position.
type Subject struct {
	Name     string         `json:"name"`
	Position geo.Coordinate `json:"position"`
}

// SubjectConfig names a subject and the zone it is expected to be at.
type SubjectConfig struct {
	Name         string
	ExpectedZone string
}

// Recorder persists alert history. Failures are logged, not fatal.
type Recorder interface {
	RecordRaised(ctx context.Context, a alert.Alert, message string) error
	RecordCleared(ctx context.Context, subject string, at time.Time) error
}

// Config tunes the harness.
type Config struct {
	Interval      time.Duration
	NotifyTimeout time.Duration
	Language      string
}

// SubjectStatus is a point-in-time view of one subject.
type SubjectStatus struct {
	Name           string          `json:"name"`
	ExpectedZone   string          `json:"expected_zone"`
	Position       *geo.Coordinate `json:"position,omitempty"`
	Status         string          `json:"status"`
	Zone           string          `json:"zone,omitempty"`
	DistanceMeters float64         `json:"distance_meters,omitempty"`
	Stale          bool            `json:"stale"`
	LastError      string          `json:"last_error,omitempty"`
	Alert          *alert.Alert    `json:"alert,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at,omitzero"`
}

type subjectState struct {
	subject     Subject
	expected    geo.Zone
	hasPosition bool
	stale       bool
	lastErr     string
	prox        geo.Proximity
	status      string
	alert       alert.State
	updatedAt   time.Time
}

// Harness owns subject state and evaluates it on a fixed cadence. Tick is
// synchronous; ticks never overlap.
type Harness struct {
	cfg        Config
	classifier *geo.Classifier
	feed       feed.Feed
	sink       notify.Sink
	policy     *alert.Policy
	format     *alert.Formatter
	clock      Clock
	recorder   Recorder
	metrics    *Metrics

	mu       sync.RWMutex
	subjects []*subjectState

	tickMu sync.Mutex

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Harness.
type Option func(*Harness)

// WithClock injects the clock used for ticks and timestamps.
func WithClock(c Clock) Option {
	return func(h *Harness) { h.clock = c }
}

// WithRecorder persists raised and cleared alerts.
func WithRecorder(r Recorder) Option {
	return func(h *Harness) { h.recorder = r }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(h *Harness) { h.metrics = m }
}

// WithPolicy replaces the alert policy.
func WithPolicy(p *alert.Policy) Option {
	return func(h *Harness) { h.policy = p }
}

// New builds a Harness. Every subject's expected zone must exist in the
// classifier.
func New(cfg Config, classifier *geo.Classifier, subjects []SubjectConfig, f feed.Feed, sink notify.Sink, opts ...Option) (*Harness, error) {
	if classifier == nil || f == nil || sink == nil {
		return nil, eris.New("tracker: classifier, feed and sink are required")
	}
	if len(subjects) == 0 {
		return nil, eris.New("tracker: no subjects configured")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}

	h := &Harness{
		cfg:        cfg,
		classifier: classifier,
		feed:       f,
		sink:       sink,
		format:     alert.NewFormatter(cfg.Language),
		clock:      SystemClock{},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.policy == nil {
		h.policy = alert.NewPolicy(alert.WithClock(h.clock.Now))
	}

	seen := make(map[string]bool, len(subjects))
	for _, sc := range subjects {
		if sc.Name == "" {
			return nil, eris.New("tracker: subject name is required")
		}
		if seen[sc.Name] {
			return nil, eris.Errorf("tracker: duplicate subject %q", sc.Name)
		}
		seen[sc.Name] = true

		expected, ok := classifier.Zone(sc.ExpectedZone)
		if !ok {
			return nil, eris.Errorf("tracker: subject %q expects unknown zone %q", sc.Name, sc.ExpectedZone)
		}
		h.subjects = append(h.subjects, &subjectState{
			subject:  Subject{Name: sc.Name},
			expected: expected,
			stale:    true,
			status:   h.format.Stale(),
		})
	}
	return h, nil
}

// Run ticks immediately, then once per interval, until ctx is cancelled or
// a finite feed has replayed every position.
func (h *Harness) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "tracker"))
	log.Info("starting tracker",
		zap.Duration("interval", h.cfg.Interval),
		zap.Int("subjects", len(h.subjects)),
	)

	h.Tick(ctx)
	if h.feedDone() {
		log.Info("feed exhausted, tracker stopped")
		return
	}

	ticker := h.clock.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("tracker stopped")
			return
		case <-ticker.C():
			h.Tick(ctx)
			if h.feedDone() {
				log.Info("feed exhausted, tracker stopped")
				return
			}
		}
	}
}

// Start runs the loop in the background. Call Stop to release it.
func (h *Harness) Start(ctx context.Context) error {
	h.runMu.Lock()
	defer h.runMu.Unlock()
	if h.done != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	h.cancel, h.done = cancel, done
	go func() {
		defer close(done)
		h.Run(ctx)
	}()
	return nil
}

// Stop cancels the loop and waits for any in-flight tick to finish. No tick
// runs after Stop returns. Stop is a no-op when the loop is not running.
func (h *Harness) Stop() {
	h.runMu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	h.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Tick evaluates every subject once, in configuration order.
func (h *Harness) Tick(ctx context.Context) {
	h.tickMu.Lock()
	defer h.tickMu.Unlock()

	for _, s := range h.subjects {
		if ctx.Err() != nil {
			return
		}
		h.evaluate(ctx, s)
	}
	if h.metrics != nil {
		h.metrics.Ticks.Inc()
	}
}

func (h *Harness) evaluate(ctx context.Context, s *subjectState) {
	name := s.subject.Name
	log := zap.L().With(zap.String("component", "tracker"), zap.String("subject", name))

	pos, err := h.feed.Position(ctx, name)
	now := h.clock.Now()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		h.markStale(s, err)
		log.Warn("position unavailable, keeping last known", zap.Error(err))
		return
	}

	prox := h.classifier.Classify(pos)
	expectedDist := geo.Distance(pos, s.expected.Center)

	h.mu.RLock()
	prev := s.alert
	h.mu.RUnlock()

	dec := h.policy.Evaluate(name, prox, s.expected, expectedDist, prev)

	h.mu.Lock()
	s.subject.Position = pos
	s.hasPosition = true
	s.stale = false
	s.lastErr = ""
	s.prox = prox
	s.status = h.format.Status(prox)
	s.alert = dec.State
	s.updatedAt = now
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.Stale.WithLabelValues(name).Set(0)
		h.metrics.AlertActive.WithLabelValues(name).Set(boolGauge(dec.State.Active))
	}

	log.Debug("evaluated position",
		zap.Float64("lat", pos.Latitude),
		zap.Float64("lng", pos.Longitude),
		zap.String("status", s.status),
		zap.Bool("alert", dec.State.Active),
	)

	switch {
	case dec.Notify:
		h.raise(ctx, log, *dec.State.Alert)
	case dec.Cleared:
		h.clear(ctx, log, name, now)
	}
}

func (h *Harness) markStale(s *subjectState, err error) {
	h.mu.Lock()
	s.stale = true
	s.lastErr = err.Error()
	s.status = h.format.Stale()
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.FeedErrors.WithLabelValues(s.subject.Name).Inc()
		h.metrics.Stale.WithLabelValues(s.subject.Name).Set(1)
	}
}

// raise delivers a newly active alert. The state transition is already
// committed; delivery and recording failures are only logged.
func (h *Harness) raise(ctx context.Context, log *zap.Logger, a alert.Alert) {
	msg := h.format.Message(a)
	log.Warn("alert raised",
		zap.String("alert_id", a.ID),
		zap.String("zone", a.Zone),
		zap.Int("distance_m", a.RoundedDistance()),
	)
	if h.metrics != nil {
		h.metrics.AlertsRaised.WithLabelValues(a.Subject, a.Zone).Inc()
	}

	if h.recorder != nil {
		if err := h.recorder.RecordRaised(ctx, a, msg); err != nil {
			log.Error("failed to record alert", zap.Error(err))
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, h.cfg.NotifyTimeout)
	defer cancel()
	if err := h.sink.Send(sendCtx, notify.Notification{ID: a.ID, Message: msg, Alert: a}); err != nil {
		log.Error("failed to deliver alert", zap.String("alert_id", a.ID), zap.Error(err))
		if h.metrics != nil {
			h.metrics.NotifyFailures.WithLabelValues(a.Subject).Inc()
		}
	}
}

func (h *Harness) clear(ctx context.Context, log *zap.Logger, subject string, at time.Time) {
	log.Info("alert cleared")
	if h.metrics != nil {
		h.metrics.AlertsCleared.WithLabelValues(subject).Inc()
	}
	if h.recorder != nil {
		if err := h.recorder.RecordCleared(ctx, subject, at); err != nil {
			log.Error("failed to record alert clear", zap.Error(err))
		}
	}
}

func (h *Harness) feedDone() bool {
	f, ok := h.feed.(feed.Finite)
	return ok && f.Done()
}

// Zones returns the configured zones.
func (h *Harness) Zones() []geo.Zone {
	return h.classifier.Zones()
}

// Snapshot returns the state of every subject in configuration order.
func (h *Harness) Snapshot() []SubjectStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]SubjectStatus, 0, len(h.subjects))
	for _, s := range h.subjects {
		out = append(out, s.view())
	}
	return out
}

// Subject returns the state of one subject.
func (h *Harness) Subject(name string) (SubjectStatus, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.subjects {
		if s.subject.Name == name {
			return s.view(), true
		}
	}
	return SubjectStatus{}, false
}

func (s *subjectState) view() SubjectStatus {
	v := SubjectStatus{
		Name:         s.subject.Name,
		ExpectedZone: s.expected.Name,
		Status:       s.status,
		Stale:        s.stale,
		LastError:    s.lastErr,
		UpdatedAt:    s.updatedAt,
	}
	if s.hasPosition {
		pos := s.subject.Position
		v.Position = &pos
	}
	if s.prox.Zone != nil {
		v.Zone = s.prox.Zone.Name
		v.DistanceMeters = s.prox.DistanceMeters
	}
	if s.alert.Active && s.alert.Alert != nil {
		a := *s.alert.Alert
		v.Alert = &a
	}
	return v
}
