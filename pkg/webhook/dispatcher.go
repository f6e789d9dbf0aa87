// Package webhook delivers workflow events to the externally configured
// automation endpoints.
package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/logging"
	"github.com/ekaya-inc/content-engine/pkg/metrics"
	"github.com/ekaya-inc/content-engine/pkg/models"
)

// Target is one active endpoint for a webhook type. Secret is plaintext.
type Target struct {
	ID     uuid.UUID
	URL    string
	Secret string
}

// TargetSource returns the active targets for a webhook type.
type TargetSource interface {
	ActiveTargets(ctx context.Context, webhookType string) ([]Target, error)
}

// Trigger is the interface services depend on.
type Trigger interface {
	Trigger(ctx context.Context, webhookType string, payload Payload) (*DispatchResult, error)
}

// Delivery is the outcome of one POST.
type Delivery struct {
	ConfigID   uuid.UUID `json:"config_id"`
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// OK reports whether the target accepted the event.
func (d Delivery) OK() bool {
	return d.Error == ""
}

// DispatchResult reports every delivery made for one trigger.
type DispatchResult struct {
	WebhookType string     `json:"webhook_type"`
	Deliveries  []Delivery `json:"deliveries"`
}

// Succeeded returns the number of accepted deliveries.
func (r *DispatchResult) Succeeded() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.OK() {
			n++
		}
	}
	return n
}

// Config holds dispatcher settings.
type Config struct {
	// IdeaCallbackURL receives callbacks for idea submissions and idea retries.
	IdeaCallbackURL string
	// ContentCallbackURL receives every other callback.
	ContentCallbackURL string
	Timeout            time.Duration
	MaxConcurrency     int
}

// CallbackURL returns the callback URL advertised for webhookType.
func (c Config) CallbackURL(webhookType string) string {
	switch webhookType {
	case models.WebhookTypeIdeaSubmission, models.WebhookTypeIdeaRetry:
		return c.IdeaCallbackURL
	default:
		return c.ContentCallbackURL
	}
}

// Dispatcher POSTs payloads to every active target of a webhook type.
// Deliveries run concurrently up to MaxConcurrency. There is no retry.
type Dispatcher struct {
	targets TargetSource
	client  *resty.Client
	cfg     Config
	logger  *zap.Logger
}

var _ Trigger = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher.
func NewDispatcher(targets TargetSource, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 8
	}
	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "content-engine-webhooks/1.0").
		SetTimeout(cfg.Timeout)
	return &Dispatcher{
		targets: targets,
		client:  client,
		cfg:     cfg,
		logger:  logger.Named("webhook"),
	}
}

// Trigger delivers payload to every active configuration of webhookType.
//
// With no active configuration it returns apperrors.ErrNoWebhookConfigured and
// makes no network call. Individual failures are logged and recorded in the
// result; the error is apperrors.ErrWebhookDeliveryFailed only when every
// target failed. Deliveries are detached from ctx cancellation so a client
// disconnect does not abort them; each is bounded by the delivery timeout.
func (d *Dispatcher) Trigger(ctx context.Context, webhookType string, payload Payload) (*DispatchResult, error) {
	targets, err := d.targets.ActiveTargets(ctx, webhookType)
	if err != nil {
		return nil, fmt.Errorf("load webhook targets for %s: %w", webhookType, err)
	}
	result := &DispatchResult{WebhookType: webhookType}
	if len(targets) == 0 {
		return result, fmt.Errorf("%s: %w", webhookType, apperrors.ErrNoWebhookConfigured)
	}

	payload.Type = webhookType
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now()
	}
	body, err := payload.body(d.cfg.CallbackURL(webhookType))
	if err != nil {
		return nil, fmt.Errorf("marshal webhook payload: %w", err)
	}

	deliveryCtx := context.WithoutCancel(ctx)
	deliveries := make([]Delivery, len(targets))

	var g errgroup.Group
	g.SetLimit(d.cfg.MaxConcurrency)
	for i, target := range targets {
		g.Go(func() error {
			deliveries[i] = d.deliver(deliveryCtx, webhookType, target, body)
			return nil
		})
	}
	_ = g.Wait()

	result.Deliveries = deliveries
	if result.Succeeded() == 0 {
		return result, fmt.Errorf("%s: all %d deliveries failed: %w",
			webhookType, len(deliveries), apperrors.ErrWebhookDeliveryFailed)
	}
	return result, nil
}

func (d *Dispatcher) deliver(ctx context.Context, webhookType string, target Target, body []byte) Delivery {
	delivery := Delivery{ConfigID: target.ID, URL: target.URL}
	start := time.Now()

	req := d.client.R().SetContext(ctx).SetBody(body)
	if target.Secret != "" {
		req.SetHeader(SignatureHeader, Sign(target.Secret, body))
	}
	resp, err := req.Post(target.URL)

	switch {
	case err != nil:
		delivery.Error = logging.SanitizeError(err)
	case resp.IsError():
		delivery.StatusCode = resp.StatusCode()
		delivery.Error = fmt.Sprintf("target responded %d: %s", resp.StatusCode(), logging.TruncateString(resp.String(), 200))
	default:
		delivery.StatusCode = resp.StatusCode()
	}

	metrics.RecordWebhookDelivery(webhookType, delivery.OK(), time.Since(start).Seconds())
	if !delivery.OK() {
		d.logger.Warn("Webhook delivery failed",
			zap.String("webhook_type", webhookType),
			zap.String("config_id", target.ID.String()),
			zap.String("url", logging.SanitizeURL(target.URL)),
			zap.String("error", delivery.Error))
	} else {
		d.logger.Debug("Webhook delivered",
			zap.String("webhook_type", webhookType),
			zap.String("config_id", target.ID.String()),
			zap.Int("status", delivery.StatusCode))
	}
	return delivery
}
