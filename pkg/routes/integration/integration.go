package integration

import (
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/utils"
)

// Register registers the integration routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.POST("", Create)
	g.GET("/:id", Get)
	g.DELETE("/:id", Delete)
}

// CreateIntegrationRequest is the request body for creating an integration
type CreateIntegrationRequest struct {
	Kind   string         `json:"kind" validate:"required"`
	Config map[string]any `json:"config"`
}

// IntegrationResponse is the response for an integration
type IntegrationResponse struct {
	ID           string         `json:"id"`
	OwnerID      string         `json:"owner_id"`
	Kind         string         `json:"kind"`
	Status       string         `json:"status"`
	ConnectToken string         `json:"connect_token"`
	Config       map[string]any `json:"config"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
}

func toResponse(i *models.Integration) *IntegrationResponse {
	return &IntegrationResponse{
		ID:           i.ID.String(),
		OwnerID:      i.OwnerID.String(),
		Kind:         i.Kind,
		Status:       i.Status,
		ConnectToken: i.Token(),
		Config:       i.Config.Data,
		CreatedAt:    i.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    i.UpdatedAt.Format(time.RFC3339),
	}
}

// List handles GET /integrations
func List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "IntegrationHandler.List")
	defer span.End()

	ctx, repo, err := ectoinject.GetContext[*repositories.IntegrationRepository](ctx)
	if err != nil {
		return err
	}

	integrations, err := repo.List(ctx)
	if err != nil {
		return err
	}

	responses := make([]*IntegrationResponse, len(integrations))
	for i := range integrations {
		responses[i] = toResponse(&integrations[i])
	}

	return c.JSON(http.StatusOK, responses)
}

// Create handles POST /integrations
func Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "IntegrationHandler.Create")
	defer span.End()

	req, err := utils.BindRequest[CreateIntegrationRequest](c)
	if err != nil {
		return err
	}

	ctx, repo, err := ectoinject.GetContext[*repositories.IntegrationRepository](ctx)
	if err != nil {
		return err
	}

	integration := &models.Integration{Kind: req.Kind}
	if req.Config != nil {
		integration.Config.Data = req.Config
	}

	if err := repo.Create(ctx, integration); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, toResponse(integration))
}

// Get handles GET /integrations/:id
func Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "IntegrationHandler.Get")
	defer span.End()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid integration ID")
	}

	ctx, repo, err := ectoinject.GetContext[*repositories.IntegrationRepository](ctx)
	if err != nil {
		return err
	}

	integration, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toResponse(integration))
}

// Delete handles DELETE /integrations/:id
func Delete(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "IntegrationHandler.Delete")
	defer span.End()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid integration ID")
	}

	ctx, repo, err := ectoinject.GetContext[*repositories.IntegrationRepository](ctx)
	if err != nil {
		return err
	}

	if err := repo.Delete(ctx, id); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
