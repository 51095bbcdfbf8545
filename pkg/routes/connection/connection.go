package connection

import (
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/reconciler"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/utils"
)

// Handler receives connection webhooks from the OAuth broker
type Handler struct {
	reconciler *reconciler.Reconciler
	logger     ectologger.Logger
}

// NewHandler creates a connection webhook handler
func NewHandler(r *reconciler.Reconciler, logger ectologger.Logger) *Handler {
	return &Handler{reconciler: r, logger: logger}
}

// Register registers connection webhook routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/webhooks/connection", h.Receive)
	g.GET("/webhooks/connection", h.Status)
}

// Receive handles POST /webhooks/connection
func (h *Handler) Receive(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ConnectionHandler.Receive")
	defer span.End()

	event, err := utils.BindRequest[reconciler.ConnectionEvent](c)
	if err != nil {
		return err
	}

	result, err := h.reconciler.Reconcile(ctx, &event)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Status handles GET /webhooks/connection. Brokers probe webhook URLs before
// saving them, so the GET form answers with a static payload.
func (h *Handler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"message": "connection webhook endpoint",
	})
}
