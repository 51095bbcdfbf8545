package models

import (
	"strings"
	"testing"
	"time"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionFromPending(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name    string
		next    string
		wantErr bool
	}{
		{name: "pending to connected", next: IntegrationStatusConnected},
		{name: "pending to error", next: IntegrationStatusError},
		{name: "pending to pending is a no-op", next: IntegrationStatusPending},
		{name: "pending to garbage", next: "deleted", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			integration := &Integration{ID: uuid.New(), Status: IntegrationStatusPending}

			err := integration.Transition(tt.next, now)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidStatusTransition)
				assert.Equal(t, IntegrationStatusPending, integration.Status)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.next, integration.Status)
			assert.Equal(t, now, integration.UpdatedAt)
		})
	}
}

func TestTransitionTerminalIsSticky(t *testing.T) {
	now := time.Now().UTC()
	integration := &Integration{Status: IntegrationStatusConnected}

	// duplicate event re-applies the same terminal status
	require.NoError(t, integration.Transition(IntegrationStatusConnected, now))
	assert.Equal(t, IntegrationStatusConnected, integration.Status)

	// but a terminal record never moves to a different status
	err := integration.Transition(IntegrationStatusError, now)
	require.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.Equal(t, IntegrationStatusConnected, integration.Status)
}

func TestMergeConfigDoesNotMutate(t *testing.T) {
	integration := &Integration{
		Config: database.JSONB[map[string]any]{Data: map[string]any{
			"token": "ctok_abc",
			"kind":  "fillout",
		}},
	}

	merged := integration.MergeConfig(map[string]any{
		"account_id": "acct-1",
		"kind":       "typeform",
	})

	assert.Equal(t, "ctok_abc", merged["token"])
	assert.Equal(t, "acct-1", merged["account_id"])
	assert.Equal(t, "typeform", merged["kind"])
	assert.Equal(t, "fillout", integration.Config.Data["kind"])
}

func TestTokenHelpers(t *testing.T) {
	token := NewConnectToken()
	assert.True(t, strings.HasPrefix(token, ConnectTokenPrefix))
	assert.NotEqual(t, token, NewConnectToken())

	integration := &Integration{
		Config: database.JSONB[map[string]any]{Data: map[string]any{"token": token}},
	}
	assert.Equal(t, token, integration.Token())

	empty := &Integration{}
	assert.Empty(t, empty.Token())
}
