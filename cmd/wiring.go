package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/parent-watch/internal/config"
	"github.com/sells-group/parent-watch/internal/feed"
	"github.com/sells-group/parent-watch/internal/geo"
	"github.com/sells-group/parent-watch/internal/notify"
	"github.com/sells-group/parent-watch/internal/resilience"
	"github.com/sells-group/parent-watch/internal/store"
	"github.com/sells-group/parent-watch/internal/tracker"
)

// trackerEnv bundles everything a running harness owns.
type trackerEnv struct {
	Harness  *tracker.Harness
	Store    store.Store
	Registry *prometheus.Registry
}

// Close releases the alert store.
func (e *trackerEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// initStore opens the configured alert history store. It returns nil when
// history is disabled.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch c.Store.Driver {
	case "":
		return nil, nil
	case "sqlite":
		st, err = store.NewSQLite(c.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func initFeed(c *config.Config) (feed.Feed, error) {
	switch c.Feed.Mode {
	case config.FeedScripted:
		paths := make(map[string][]geo.Coordinate, len(c.Subjects))
		for _, s := range c.Subjects {
			paths[s.Name] = s.Path
		}
		return feed.NewScriptedFeed(paths)
	case config.FeedHTTP:
		retry := resilience.DefaultRetryPolicy()
		if c.Feed.Retries > 0 {
			retry.Attempts = c.Feed.Retries
		}
		opts := []feed.Option{
			feed.WithToken(c.Feed.Token),
			feed.WithRetry(retry),
			feed.WithHTTPClient(&http.Client{Timeout: c.Feed.Timeout}),
		}
		if c.Feed.RPS > 0 {
			opts = append(opts, feed.WithRateLimit(c.Feed.RPS))
		}
		return feed.NewHTTPFeed(c.Feed.BaseURL, opts...), nil
	default:
		return nil, eris.Errorf("unsupported feed mode: %s", c.Feed.Mode)
	}
}

// initSink always logs warnings and also posts them when a webhook is set.
func initSink(c *config.Config) (notify.Sink, error) {
	sinks := notify.Multi{notify.LogSink{}}
	if c.Notify.WebhookURL == "" {
		return sinks, nil
	}

	retry := resilience.DefaultRetryPolicy()
	if c.Notify.Retries > 0 {
		retry.Attempts = c.Notify.Retries
	}
	wh, err := notify.NewWebhookSink(notify.WebhookConfig{
		URL:              c.Notify.WebhookURL,
		Authorization:    c.Notify.Authorization,
		Timeout:          c.Notify.Timeout,
		Retry:            retry,
		BreakerThreshold: c.Notify.BreakerThreshold,
		BreakerCooldown:  c.Notify.BreakerCooldown,
	})
	if err != nil {
		return nil, err
	}
	return append(sinks, wh), nil
}

// initTracker wires feed, sink, store and metrics into a harness.
func initTracker(ctx context.Context, c *config.Config) (*trackerEnv, error) {
	classifier, err := c.Classifier()
	if err != nil {
		return nil, err
	}
	f, err := initFeed(c)
	if err != nil {
		return nil, err
	}
	sink, err := initSink(c)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := tracker.NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}

	opts := []tracker.Option{tracker.WithMetrics(metrics)}
	if st != nil {
		opts = append(opts, tracker.WithRecorder(st))
	}

	subjects := make([]tracker.SubjectConfig, 0, len(c.Subjects))
	for _, s := range c.Subjects {
		subjects = append(subjects, tracker.SubjectConfig{Name: s.Name, ExpectedZone: s.ExpectedZone})
	}

	h, err := tracker.New(tracker.Config{
		Interval:      c.Tracker.Interval,
		NotifyTimeout: c.Tracker.NotifyTimeout,
		Language:      c.Tracker.Language,
	}, classifier, subjects, f, sink, opts...)
	if err != nil {
		if st != nil {
			st.Close() //nolint:errcheck
		}
		return nil, err
	}

	return &trackerEnv{Harness: h, Store: st, Registry: reg}, nil
}
