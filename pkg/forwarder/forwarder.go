// Package forwarder relays webhook payloads to the downstream check-in
// service with bounded retries.
package forwarder

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/httpclient"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Config holds the forwarder's downstream settings.
type Config struct {
	BaseURL         string
	ServiceToken    string
	MaxAttempts     int
	InitialDelay    time.Duration
	SignatureHeader string
}

// DeliveryResult is the downstream response relayed back to the caller, plus
// the attempt history that produced it.
type DeliveryResult struct {
	StatusCode  int
	Body        []byte
	ContentType string
	Attempts    []models.DeliveryAttempt
}

// Delivered reports whether the downstream accepted the payload.
func (r *DeliveryResult) Delivered() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Forwarder relays payloads to the check-in service.
type Forwarder struct {
	client *httpclient.Client
	cfg    Config
	logger ectologger.Logger
	sleep  func(time.Duration)
}

// NewForwarder creates a forwarder over the shared HTTP client.
func NewForwarder(client *httpclient.Client, cfg Config, logger ectologger.Logger) *Forwarder {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}

	return &Forwarder{
		client: client,
		cfg:    cfg,
		logger: logger,
		sleep:  time.Sleep,
	}
}

// retryable statuses: server errors and rate limiting. Everything else is
// passed through verbatim on the first attempt.
func retryable(status int) bool {
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}

// Forward relays body to <base>/<owner_id>/<webhook_token>, retrying on
// retryable responses up to the configured attempt budget. The downstream
// response — including a final retryable failure once the budget is spent —
// is returned for verbatim pass-through. Transport-level errors only surface
// as an error when every attempt failed that way.
func (f *Forwarder) Forward(ctx context.Context, target Target, body []byte, signature string) (*DeliveryResult, error) {
	ctx, span := tracing.StartSpan(ctx, "Forwarder.Forward")
	defer span.End()

	if f.cfg.BaseURL == "" || f.cfg.ServiceToken == "" {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "configuration missing")
	}

	url := fmt.Sprintf("%s/%s/%s", strings.TrimRight(f.cfg.BaseURL, "/"), target.OwnerID, target.WebhookToken)

	headers := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + f.cfg.ServiceToken,
	}
	if signature != "" && f.cfg.SignatureHeader != "" {
		headers[f.cfg.SignatureHeader] = signature
	}

	log := f.logger.WithContext(ctx).WithFields(map[string]any{
		"owner_id":      target.OwnerID,
		"webhook_token": target.WebhookToken,
	})

	start := time.Now()
	result := &DeliveryResult{}
	var lastErr error

	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		delay := Backoff(f.cfg.InitialDelay, attempt)
		if delay > 0 {
			log.Warnf("Retrying delivery in %v (attempt %d/%d)", delay, attempt, f.cfg.MaxAttempts)
			f.sleep(delay)
		}

		record := models.DeliveryAttempt{Number: attempt, Delay: delay}

		resp, err := f.client.Post(ctx, url, body, headers)
		if err != nil {
			lastErr = err
			record.Outcome = models.DeliveryOutcomeRetryable
			record.Error = err.Error()
			result.Attempts = append(result.Attempts, record)
			metrics.RecordForwardAttempt("network_error")
			log.WithError(err).Warnf("Delivery attempt %d/%d failed", attempt, f.cfg.MaxAttempts)
			continue
		}

		lastErr = nil
		record.StatusCode = resp.StatusCode
		result.StatusCode = resp.StatusCode
		result.Body = resp.Body
		result.ContentType = resp.ContentType

		if retryable(resp.StatusCode) {
			record.Outcome = models.DeliveryOutcomeRetryable
			result.Attempts = append(result.Attempts, record)
			metrics.RecordForwardAttempt("retryable")
			log.Warnf("Downstream returned %d (attempt %d/%d)", resp.StatusCode, attempt, f.cfg.MaxAttempts)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			record.Outcome = models.DeliveryOutcomeDelivered
			metrics.RecordForwardAttempt("delivered")
		} else {
			record.Outcome = models.DeliveryOutcomeTerminal
			metrics.RecordForwardAttempt("terminal")
		}
		result.Attempts = append(result.Attempts, record)
		metrics.RecordForwardDelivery(record.Outcome, time.Since(start).Seconds())

		log.WithFields(map[string]any{
			"status_code": resp.StatusCode,
			"attempts":    attempt,
		}).Info("delivery finished")
		return result, nil
	}

	if lastErr != nil {
		metrics.RecordForwardDelivery("failed", time.Since(start).Seconds())
		log.WithError(lastErr).Error("delivery failed after exhausting attempts")
		return nil, httperror.WrapError(http.StatusBadGateway, lastErr)
	}

	// budget spent on retryable downstream statuses; pass the last one through
	metrics.RecordForwardDelivery("exhausted", time.Since(start).Seconds())
	log.WithFields(map[string]any{
		"status_code": result.StatusCode,
		"attempts":    f.cfg.MaxAttempts,
	}).Error("delivery exhausted retry budget")
	return result, nil
}
