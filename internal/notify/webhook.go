package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/parent-watch/internal/resilience"
)

// WebhookConfig configures a WebhookSink.
type WebhookConfig struct {
	URL string
	// Authorization is sent verbatim in the Authorization header when set.
	Authorization string
	Timeout       time.Duration
	Retry         resilience.RetryPolicy
	// BreakerThreshold consecutive failed deliveries open the breaker for
	// BreakerCooldown.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// WebhookSink POSTs each notification as JSON. The message goes in the
// "prompt" field, which the chat warning endpoint expects.
type WebhookSink struct {
	cfg     WebhookConfig
	client  *http.Client
	breaker *resilience.Breaker
}

type webhookPayload struct {
	Prompt         string    `json:"prompt"`
	ID             string    `json:"id"`
	Subject        string    `json:"subject"`
	Zone           string    `json:"zone"`
	ExpectedZone   string    `json:"expected_zone"`
	DistanceMeters int       `json:"distance_meters"`
	RaisedAt       time.Time `json:"raised_at"`
}

// NewWebhookSink creates a WebhookSink.
func NewWebhookSink(cfg WebhookConfig) (*WebhookSink, error) {
	if cfg.URL == "" {
		return nil, eris.New("notify: webhook url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = resilience.RetryLogger("notify.webhook", "send")
	}
	return &WebhookSink{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: resilience.NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
	}, nil
}

// Send implements Sink.
func (w *WebhookSink) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(webhookPayload{
		Prompt:         n.Message,
		ID:             n.ID,
		Subject:        n.Alert.Subject,
		Zone:           n.Alert.Zone,
		ExpectedZone:   n.Alert.ExpectedZone,
		DistanceMeters: n.Alert.RoundedDistance(),
		RaisedAt:       n.Alert.RaisedAt,
	})
	if err != nil {
		return eris.Wrap(err, "notify: marshal webhook payload")
	}

	return w.breaker.Do(ctx, func(ctx context.Context) error {
		return resilience.Retry(ctx, w.cfg.Retry, func(ctx context.Context) error {
			return w.post(ctx, body)
		})
	})
}

func (w *WebhookSink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	if w.cfg.Authorization != "" {
		req.Header.Set("Authorization", w.cfg.Authorization)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	return resilience.CheckStatus("notify: webhook", resp.StatusCode)
}
