package connection_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/reconciler"
	"github.com/Ramsey-B/clover/pkg/routes/connection"
)

type memStore struct {
	rows map[string][]models.Integration
}

func (s *memStore) FindByConfigToken(ctx context.Context, token string) ([]models.Integration, error) {
	return s.rows[token], nil
}

func (s *memStore) UpdateStatusConfig(ctx context.Context, id uuid.UUID, status string, config map[string]any) error {
	return nil
}

func newHandler(store reconciler.Store) *connection.Handler {
	logger := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {})
	return connection.NewHandler(reconciler.NewReconciler(store, nil, logger), logger)
}

func doRequest(t *testing.T, h *connection.Handler, method, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, "/api/v1/webhooks/connection", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var err error
	if method == http.MethodGet {
		err = h.Status(c)
	} else {
		err = h.Receive(c)
	}
	return rec, err
}

func TestReceive_Success(t *testing.T) {
	store := &memStore{rows: map[string][]models.Integration{
		"ctok_abc": {{
			ID:     uuid.New(),
			Status: models.IntegrationStatusPending,
			Config: database.JSONB[map[string]any]{Data: map[string]any{"token": "ctok_abc"}},
		}},
	}}
	h := newHandler(store)

	body := `{"event":"CONNECTION_SUCCESS","connect_token":"ctok_abc","account":{"id":"acct-1","name":"Acme"}}`
	rec, err := doRequest(t, h, http.MethodPost, body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var result reconciler.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, reconciler.StrategyExact, result.Strategy)
}

func TestReceive_NoMatchStill200(t *testing.T) {
	h := newHandler(&memStore{rows: map[string][]models.Integration{}})

	body := `{"event":"CONNECTION_SUCCESS","connect_token":"ctok_nope","account":{"id":"acct-1"}}`
	rec, err := doRequest(t, h, http.MethodPost, body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var result reconciler.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.Matched)
}

func TestReceive_UnknownEvent(t *testing.T) {
	h := newHandler(&memStore{rows: map[string][]models.Integration{}})

	_, err := doRequest(t, h, http.MethodPost, `{"event":"ACCOUNT_DISCONNECTED"}`)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestReceive_MissingAccountID(t *testing.T) {
	h := newHandler(&memStore{rows: map[string][]models.Integration{}})

	_, err := doRequest(t, h, http.MethodPost, `{"event":"CONNECTION_SUCCESS","connect_token":"ctok_abc"}`)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestReceive_MissingEventField(t *testing.T) {
	h := newHandler(&memStore{rows: map[string][]models.Integration{}})

	_, err := doRequest(t, h, http.MethodPost, `{"connect_token":"ctok_abc"}`)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestStatus(t *testing.T) {
	h := newHandler(&memStore{rows: map[string][]models.Integration{}})

	rec, err := doRequest(t, h, http.MethodGet, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
