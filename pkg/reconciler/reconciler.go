// Package reconciler matches inbound broker connection events to pending
// integration records and applies the resulting status transitions.
package reconciler

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Lifecycle event types published after accepted transitions.
const (
	EventIntegrationConnected = "integration.connected"
	EventIntegrationErrored   = "integration.errored"
)

const defaultErrorMessage = "connection failed"

// Store is the narrow persistence surface the reconciler needs.
type Store interface {
	FindByConfigToken(ctx context.Context, token string) ([]models.Integration, error)
	UpdateStatusConfig(ctx context.Context, id uuid.UUID, status string, config map[string]any) error
}

// Publisher emits lifecycle events after accepted transitions. Publishing is
// best effort; failures are logged and never fail the reconcile.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Account is the connected-account payload on a success event.
type Account struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ExternalID string `json:"external_id"`
	Healthy    *bool  `json:"healthy"`
}

// ConnectionEvent is the inbound broker webhook body.
type ConnectionEvent struct {
	Event            string   `json:"event" validate:"required"`
	ConnectToken     string   `json:"connect_token"`
	Environment      string   `json:"environment"`
	ConnectSessionID string   `json:"connect_session_id"`
	Account          *Account `json:"account"`
	Error            string   `json:"error"`
}

// RowResult is the outcome of applying the event to a single matched record.
type RowResult struct {
	ID      uuid.UUID `json:"id"`
	Updated bool      `json:"updated"`
	Error   string    `json:"error,omitempty"`
}

// Result is the reconcile response envelope.
type Result struct {
	Success  bool        `json:"success"`
	Event    string      `json:"event"`
	Strategy string      `json:"strategy,omitempty"`
	Matched  int         `json:"matched"`
	Updated  int         `json:"updated"`
	Rows     []RowResult `json:"results,omitempty"`
}

// Reconciler applies connection events to the integration store.
type Reconciler struct {
	store     Store
	publisher Publisher
	logger    ectologger.Logger
	now       func() time.Time
}

// NewReconciler creates a reconciler. publisher may be nil when lifecycle
// events are disabled.
func NewReconciler(store Store, publisher Publisher, logger ectologger.Logger) *Reconciler {
	return &Reconciler{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Reconcile classifies the event, resolves matching integration records by
// connect token, and applies the transition to every match. Row failures are
// isolated; siblings still get their update.
func (r *Reconciler) Reconcile(ctx context.Context, event *ConnectionEvent) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "Reconciler.Reconcile")
	defer span.End()

	class := Classify(event.Event)

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"event":       event.Event,
		"event_class": string(class),
		"session_id":  event.ConnectSessionID,
	})

	switch class {
	case EventClassSuccess:
		if event.Account == nil || event.Account.ID == "" {
			metrics.RecordReconcileEvent(string(class), "rejected")
			return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "connection event '%s' is missing account id", event.Event)
		}
		return r.apply(ctx, log, event, models.IntegrationStatusConnected, r.successFields(event))
	case EventClassError:
		return r.apply(ctx, log, event, models.IntegrationStatusError, r.errorFields(event))
	default:
		log.Warn("received unrecognized connection event")
		metrics.RecordReconcileEvent(string(class), "rejected")
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "unrecognized connection event '%s'", event.Event)
	}
}

func (r *Reconciler) apply(ctx context.Context, log ectologger.Logger, event *ConnectionEvent, status string, fields map[string]any) (*Result, error) {
	result := &Result{Event: event.Event}

	matches, strategy := r.resolve(ctx, event.ConnectToken)
	result.Strategy = strategy
	result.Matched = len(matches)

	if len(matches) == 0 {
		log.Info("no integration records matched connect token")
		metrics.RecordReconcileEvent(string(Classify(event.Event)), "no_match")
		return result, nil
	}

	now := r.now().UTC()
	for i := range matches {
		integration := &matches[i]
		row := RowResult{ID: integration.ID}

		if err := integration.Transition(status, now); err != nil {
			row.Error = err.Error()
			result.Rows = append(result.Rows, row)
			log.WithError(err).WithFields(map[string]any{
				"integration_id": integration.ID,
				"from_status":    integration.Status,
				"to_status":      status,
			}).Warn("skipping invalid status transition")
			metrics.RecordRowUpdate(status, "invalid_transition")
			continue
		}

		merged := integration.MergeConfig(fields)
		if err := r.store.UpdateStatusConfig(ctx, integration.ID, integration.Status, merged); err != nil {
			row.Error = err.Error()
			result.Rows = append(result.Rows, row)
			log.WithError(err).WithFields(map[string]any{
				"integration_id": integration.ID,
			}).Error("failed to persist integration transition")
			metrics.RecordRowUpdate(status, "store_error")
			continue
		}

		row.Updated = true
		result.Rows = append(result.Rows, row)
		result.Updated++
		metrics.RecordRowUpdate(status, "updated")
		r.publish(ctx, log, integration, event, status)
	}

	result.Success = result.Updated > 0

	outcome := "updated"
	if !result.Success {
		outcome = "failed"
	}
	metrics.RecordReconcileEvent(string(Classify(event.Event)), outcome)

	log.WithFields(map[string]any{
		"strategy": result.Strategy,
		"matched":  result.Matched,
		"updated":  result.Updated,
		"status":   status,
	}).Info("reconciled connection event")
	return result, nil
}

// resolve tries each token encoding in order and stops at the first one with
// at least one match. A store error for one encoding counts as no match for
// that encoding; the remaining encodings are still tried.
func (r *Reconciler) resolve(ctx context.Context, token string) ([]models.Integration, string) {
	for _, candidate := range TokenCandidates(token) {
		matches, err := r.store.FindByConfigToken(ctx, candidate.Token)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"strategy": candidate.Strategy,
			}).Warn("token lookup failed, trying next encoding")
			continue
		}
		if len(matches) > 0 {
			metrics.RecordReconcileMatch(candidate.Strategy, len(matches))
			return matches, candidate.Strategy
		}
	}
	return nil, ""
}

func (r *Reconciler) successFields(event *ConnectionEvent) map[string]any {
	accountName := event.Account.Name
	if accountName == "" {
		accountName = event.Account.ExternalID
	}

	fields := map[string]any{
		"account_id":    event.Account.ID,
		"account_name":  accountName,
		"connect_token": event.ConnectToken,
		"session_id":    event.ConnectSessionID,
		"environment":   event.Environment,
		"connected_at":  r.now().UTC().Format(time.RFC3339),
	}
	if event.Account.Healthy != nil {
		fields["account_healthy"] = *event.Account.Healthy
	}
	return fields
}

func (r *Reconciler) errorFields(event *ConnectionEvent) map[string]any {
	message := event.Error
	if message == "" {
		message = defaultErrorMessage
	}

	return map[string]any{
		"error_message": message,
		"error_at":      r.now().UTC().Format(time.RFC3339),
		"connect_token": event.ConnectToken,
		"session_id":    event.ConnectSessionID,
		"environment":   event.Environment,
	}
}

func (r *Reconciler) publish(ctx context.Context, log ectologger.Logger, integration *models.Integration, event *ConnectionEvent, status string) {
	if r.publisher == nil {
		return
	}

	eventType := EventIntegrationConnected
	if status == models.IntegrationStatusError {
		eventType = EventIntegrationErrored
	}

	payload := map[string]any{
		"integration_id": integration.ID,
		"owner_id":       integration.OwnerID,
		"status":         status,
		"session_id":     event.ConnectSessionID,
		"environment":    event.Environment,
	}
	if err := r.publisher.Publish(ctx, eventType, payload); err != nil {
		log.WithError(err).WithFields(map[string]any{
			"integration_id": integration.ID,
			"event_type":     eventType,
		}).Warn("failed to publish lifecycle event")
	}
}
