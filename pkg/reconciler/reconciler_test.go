package reconciler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/reconciler"
)

type fakeStore struct {
	rows       map[string][]models.Integration // keyed by stored token
	lookupErrs map[string]error                // keyed by token
	updateErrs map[uuid.UUID]error
	lookups    []string
	updates    []updateCall
}

type updateCall struct {
	id     uuid.UUID
	status string
	config map[string]any
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows:       map[string][]models.Integration{},
		lookupErrs: map[string]error{},
		updateErrs: map[uuid.UUID]error{},
	}
}

func (s *fakeStore) add(token, status string) models.Integration {
	row := models.Integration{
		ID:      uuid.New(),
		OwnerID: uuid.New(),
		Kind:    "fillout",
		Status:  status,
		Config:  database.JSONB[map[string]any]{Data: map[string]any{"token": token, "kind": "fillout"}},
	}
	s.rows[token] = append(s.rows[token], row)
	return row
}

func (s *fakeStore) FindByConfigToken(ctx context.Context, token string) ([]models.Integration, error) {
	s.lookups = append(s.lookups, token)
	if err := s.lookupErrs[token]; err != nil {
		return nil, err
	}
	return s.rows[token], nil
}

func (s *fakeStore) UpdateStatusConfig(ctx context.Context, id uuid.UUID, status string, config map[string]any) error {
	if err := s.updateErrs[id]; err != nil {
		return err
	}
	s.updates = append(s.updates, updateCall{id: id, status: status, config: config})
	return nil
}

type fakePublisher struct {
	published []string
	err       error
}

func (p *fakePublisher) Publish(ctx context.Context, eventType string, payload any) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, eventType)
	return nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {})
}

func successEvent(token string) *reconciler.ConnectionEvent {
	healthy := true
	return &reconciler.ConnectionEvent{
		Event:            "CONNECTION_SUCCESS",
		ConnectToken:     token,
		Environment:      "production",
		ConnectSessionID: "sess-1",
		Account: &reconciler.Account{
			ID:      "acct-1",
			Name:    "Acme Forms",
			Healthy: &healthy,
		},
	}
}

func assertHTTPStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	require.True(t, httperror.IsHTTPError(err), "expected HTTP error, got: %v", err)
	assert.Equal(t, status, httperror.GetStatusCode(err))
}

func TestReconcile_Success(t *testing.T) {
	store := newFakeStore()
	row := store.add("ctok_abc", models.IntegrationStatusPending)
	publisher := &fakePublisher{}
	r := reconciler.NewReconciler(store, publisher, testLogger())

	result, err := r.Reconcile(context.Background(), successEvent("ctok_abc"))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, reconciler.StrategyExact, result.Strategy)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 1, result.Updated)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, row.ID, result.Rows[0].ID)
	assert.True(t, result.Rows[0].Updated)

	require.Len(t, store.updates, 1)
	update := store.updates[0]
	assert.Equal(t, models.IntegrationStatusConnected, update.status)
	assert.Equal(t, "acct-1", update.config["account_id"])
	assert.Equal(t, "Acme Forms", update.config["account_name"])
	assert.Equal(t, "ctok_abc", update.config["connect_token"])
	assert.Equal(t, "sess-1", update.config["session_id"])
	assert.Equal(t, "production", update.config["environment"])
	assert.Equal(t, true, update.config["account_healthy"])
	assert.Equal(t, "fillout", update.config["kind"], "existing config keys should survive the merge")
	connectedAt, parseErr := time.Parse(time.RFC3339, update.config["connected_at"].(string))
	require.NoError(t, parseErr)
	assert.WithinDuration(t, time.Now().UTC(), connectedAt, time.Minute)

	assert.Equal(t, []string{reconciler.EventIntegrationConnected}, publisher.published)
}

func TestReconcile_AccountNameFallsBackToExternalID(t *testing.T) {
	store := newFakeStore()
	store.add("ctok_abc", models.IntegrationStatusPending)
	r := reconciler.NewReconciler(store, nil, testLogger())

	event := successEvent("ctok_abc")
	event.Account.Name = ""
	event.Account.ExternalID = "ext-42"

	_, err := r.Reconcile(context.Background(), event)
	require.NoError(t, err)
	require.Len(t, store.updates, 1)
	assert.Equal(t, "ext-42", store.updates[0].config["account_name"])
}

func TestReconcile_StrategyOrdering(t *testing.T) {
	t.Run("stored without prefix, event with prefix", func(t *testing.T) {
		store := newFakeStore()
		store.add("abc", models.IntegrationStatusPending)
		r := reconciler.NewReconciler(store, nil, testLogger())

		result, err := r.Reconcile(context.Background(), successEvent("ctok_abc"))
		require.NoError(t, err)
		assert.Equal(t, reconciler.StrategyUnprefixed, result.Strategy)
		assert.Equal(t, 1, result.Updated)
	})

	t.Run("stored with prefix, event without prefix", func(t *testing.T) {
		store := newFakeStore()
		store.add("ctok_abc", models.IntegrationStatusPending)
		r := reconciler.NewReconciler(store, nil, testLogger())

		result, err := r.Reconcile(context.Background(), successEvent("abc"))
		require.NoError(t, err)
		assert.Equal(t, reconciler.StrategyPrefixed, result.Strategy)
		assert.Equal(t, 1, result.Updated)
	})

	t.Run("exact wins before other encodings are tried", func(t *testing.T) {
		store := newFakeStore()
		store.add("ctok_abc", models.IntegrationStatusPending)
		store.add("abc", models.IntegrationStatusPending)
		r := reconciler.NewReconciler(store, nil, testLogger())

		result, err := r.Reconcile(context.Background(), successEvent("ctok_abc"))
		require.NoError(t, err)
		assert.Equal(t, reconciler.StrategyExact, result.Strategy)
		assert.Equal(t, 1, result.Matched)
		assert.Equal(t, []string{"ctok_abc"}, store.lookups)
	})
}

func TestReconcile_NoMatch(t *testing.T) {
	store := newFakeStore()
	r := reconciler.NewReconciler(store, nil, testLogger())

	result, err := r.Reconcile(context.Background(), successEvent("ctok_missing"))
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 0, result.Matched)
	assert.Equal(t, 0, result.Updated)
	assert.Empty(t, result.Rows)
	assert.Empty(t, store.updates)
}

func TestReconcile_LookupErrorDegradesToNextStrategy(t *testing.T) {
	store := newFakeStore()
	store.add("abc", models.IntegrationStatusPending)
	store.lookupErrs["ctok_abc"] = errors.New("connection refused")
	r := reconciler.NewReconciler(store, nil, testLogger())

	result, err := r.Reconcile(context.Background(), successEvent("ctok_abc"))
	require.NoError(t, err)
	assert.Equal(t, reconciler.StrategyUnprefixed, result.Strategy)
	assert.Equal(t, 1, result.Updated)
}

func TestReconcile_MissingAccountID(t *testing.T) {
	store := newFakeStore()
	store.add("ctok_abc", models.IntegrationStatusPending)
	r := reconciler.NewReconciler(store, nil, testLogger())

	event := successEvent("ctok_abc")
	event.Account = nil
	_, err := r.Reconcile(context.Background(), event)
	assertHTTPStatus(t, err, http.StatusBadRequest)

	event = successEvent("ctok_abc")
	event.Account.ID = ""
	_, err = r.Reconcile(context.Background(), event)
	assertHTTPStatus(t, err, http.StatusBadRequest)

	assert.Empty(t, store.lookups, "rejected events should not hit the store")
}

func TestReconcile_UnknownEvent(t *testing.T) {
	store := newFakeStore()
	r := reconciler.NewReconciler(store, nil, testLogger())

	_, err := r.Reconcile(context.Background(), &reconciler.ConnectionEvent{Event: "ACCOUNT_DISCONNECTED"})
	assertHTTPStatus(t, err, http.StatusBadRequest)
	assert.Contains(t, err.Error(), "ACCOUNT_DISCONNECTED")
}

func TestReconcile_ErrorBranch(t *testing.T) {
	store := newFakeStore()
	store.add("ctok_abc", models.IntegrationStatusPending)
	publisher := &fakePublisher{}
	r := reconciler.NewReconciler(store, publisher, testLogger())

	result, err := r.Reconcile(context.Background(), &reconciler.ConnectionEvent{
		Event:            "CONNECTION_ERROR",
		ConnectToken:     "ctok_abc",
		ConnectSessionID: "sess-1",
		Error:            "provider rejected credentials",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	require.Len(t, store.updates, 1)
	update := store.updates[0]
	assert.Equal(t, models.IntegrationStatusError, update.status)
	assert.Equal(t, "provider rejected credentials", update.config["error_message"])
	assert.NotEmpty(t, update.config["error_at"])

	assert.Equal(t, []string{reconciler.EventIntegrationErrored}, publisher.published)
}

func TestReconcile_ErrorBranchDefaultMessage(t *testing.T) {
	store := newFakeStore()
	store.add("ctok_abc", models.IntegrationStatusPending)
	r := reconciler.NewReconciler(store, nil, testLogger())

	_, err := r.Reconcile(context.Background(), &reconciler.ConnectionEvent{
		Event:        "CONNECTION_ERROR",
		ConnectToken: "ctok_abc",
	})
	require.NoError(t, err)
	require.Len(t, store.updates, 1)
	assert.Equal(t, "connection failed", store.updates[0].config["error_message"])
}

func TestReconcile_FanOutIsolation(t *testing.T) {
	store := newFakeStore()
	first := store.add("ctok_abc", models.IntegrationStatusPending)
	second := store.add("ctok_abc", models.IntegrationStatusPending)
	store.updateErrs[first.ID] = errors.New("deadlock detected")
	r := reconciler.NewReconciler(store, nil, testLogger())

	result, err := r.Reconcile(context.Background(), successEvent("ctok_abc"))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Matched)
	assert.Equal(t, 1, result.Updated)
	require.Len(t, result.Rows, 2)
	assert.False(t, result.Rows[0].Updated)
	assert.NotEmpty(t, result.Rows[0].Error)
	assert.True(t, result.Rows[1].Updated)

	require.Len(t, store.updates, 1)
	assert.Equal(t, second.ID, store.updates[0].id)
}

func TestReconcile_Idempotent(t *testing.T) {
	store := newFakeStore()
	store.add("ctok_abc", models.IntegrationStatusConnected)
	r := reconciler.NewReconciler(store, nil, testLogger())

	// a duplicate success event re-applies the terminal status without error
	result, err := r.Reconcile(context.Background(), successEvent("ctok_abc"))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Updated)
	require.Len(t, store.updates, 1)
	assert.Equal(t, models.IntegrationStatusConnected, store.updates[0].status)
}

func TestReconcile_TerminalRowRejectsOppositeTransition(t *testing.T) {
	store := newFakeStore()
	store.add("ctok_abc", models.IntegrationStatusConnected)
	r := reconciler.NewReconciler(store, nil, testLogger())

	result, err := r.Reconcile(context.Background(), &reconciler.ConnectionEvent{
		Event:        "CONNECTION_ERROR",
		ConnectToken: "ctok_abc",
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 0, result.Updated)
	require.Len(t, result.Rows, 1)
	assert.NotEmpty(t, result.Rows[0].Error)
	assert.Empty(t, store.updates)
}

func TestReconcile_PublishFailureDoesNotFailRequest(t *testing.T) {
	store := newFakeStore()
	store.add("ctok_abc", models.IntegrationStatusPending)
	publisher := &fakePublisher{err: errors.New("broker unavailable")}
	r := reconciler.NewReconciler(store, publisher, testLogger())

	result, err := r.Reconcile(context.Background(), successEvent("ctok_abc"))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Updated)
}
