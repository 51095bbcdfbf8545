package checkin

import (
	"context"
	"io"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/forwarder"
	"github.com/Ramsey-B/clover/pkg/httpclient"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Publisher emits lifecycle events after deliveries
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Handler relays webhook payloads to the downstream check-in service
type Handler struct {
	forwarder       *forwarder.Forwarder
	publisher       Publisher
	signatureHeader string
	logger          ectologger.Logger
}

// NewHandler creates a check-in webhook handler. publisher may be nil when
// lifecycle events are disabled.
func NewHandler(f *forwarder.Forwarder, publisher Publisher, signatureHeader string, logger ectologger.Logger) *Handler {
	return &Handler{
		forwarder:       f,
		publisher:       publisher,
		signatureHeader: signatureHeader,
		logger:          logger,
	}
}

// Register registers check-in webhook routes. Any catches every method so
// unsupported verbs get a deliberate 405 instead of echo's default 404.
func (h *Handler) Register(g *echo.Group) {
	g.Any("/webhook-checkin", h.Handle)
	g.Any("/webhook-checkin/*", h.Handle)
}

// Handle dispatches on method: OPTIONS answers preflight, POST forwards, and
// everything else is rejected.
func (h *Handler) Handle(c echo.Context) error {
	switch c.Request().Method {
	case http.MethodOptions:
		return c.NoContent(http.StatusNoContent)
	case http.MethodPost:
		return h.forward(c)
	default:
		return httperror.NewHTTPErrorf(http.StatusMethodNotAllowed, "method %s not allowed", c.Request().Method)
	}
}

func (h *Handler) forward(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "CheckinHandler.Forward")
	defer span.End()

	req := c.Request()
	target, debug := forwarder.ExtractTarget(req.URL.Path, req.URL.Query())
	if debug != nil {
		h.logger.WithContext(ctx).WithFields(map[string]any{
			"path": debug.Path,
		}).Warn("could not resolve delivery target from request")
		return c.JSON(http.StatusBadRequest, map[string]any{
			"message": "could not resolve delivery target",
			"debug":   debug,
		})
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, httpclient.MaxRequestSize+1))
	if err != nil {
		return httperror.WrapError(http.StatusBadRequest, err)
	}
	if len(body) > httpclient.MaxRequestSize {
		return httperror.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}

	signature := req.Header.Get(h.signatureHeader)

	result, err := h.forwarder.Forward(ctx, target, body, signature)
	if err != nil {
		return err
	}

	if result.Delivered() && h.publisher != nil {
		payload := map[string]any{
			"owner_id":      target.OwnerID,
			"webhook_token": target.WebhookToken,
			"status_code":   result.StatusCode,
			"attempts":      len(result.Attempts),
		}
		if perr := h.publisher.Publish(ctx, events.EventCheckinDelivered, payload); perr != nil {
			h.logger.WithContext(ctx).WithError(perr).Warn("failed to publish delivery event")
		}
	}

	contentType := result.ContentType
	if contentType == "" {
		contentType = echo.MIMEApplicationJSON
	}
	return c.Blob(result.StatusCode, contentType, result.Body)
}
