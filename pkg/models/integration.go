package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/google/uuid"
)

var ErrInvalidStatusTransition = errors.New("models: invalid integration status transition")

const (
	// IntegrationStatusPending is the state a record is created in, before the
	// OAuth broker confirms or rejects the connection.
	IntegrationStatusPending = "pending"
	// IntegrationStatusConnected and IntegrationStatusError are terminal.
	IntegrationStatusConnected = "connected"
	IntegrationStatusError     = "error"
)

// ConnectTokenPrefix is the prefix the broker puts on connect tokens. Records
// may hold the token in either form depending on which writer persisted it.
const ConnectTokenPrefix = "ctok_"

// ConfigKeyToken is the config field holding the correlation key.
const ConfigKeyToken = "token"

// Integration represents one external account-linking attempt.
type Integration struct {
	ID        uuid.UUID                      `db:"id" json:"id"`
	OwnerID   uuid.UUID                      `db:"owner_id" json:"owner_id"`
	Kind      string                         `db:"kind" json:"kind"`
	Status    string                         `db:"status" json:"status"`
	Config    database.JSONB[map[string]any] `db:"config" json:"config"`
	CreatedAt time.Time                      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time                      `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Integration) TableName() string {
	return "integrations"
}

// Transition moves the record to a terminal status. Only pending records move;
// re-applying the current terminal status refreshes updated_at and is otherwise
// a no-op, which is what makes duplicate broker events safe.
func (i *Integration) Transition(next string, now time.Time) error {
	if i == nil {
		return nil
	}
	if i.Status == next {
		i.UpdatedAt = now
		return nil
	}
	if i.Status != IntegrationStatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, i.Status, next)
	}
	if next != IntegrationStatusConnected && next != IntegrationStatusError {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, i.Status, next)
	}
	i.Status = next
	i.UpdatedAt = now
	return nil
}

// Token returns the stored correlation key, or "" when absent.
func (i *Integration) Token() string {
	if i == nil || i.Config.Data == nil {
		return ""
	}
	token, _ := i.Config.Data[ConfigKeyToken].(string)
	return token
}

// MergeConfig returns a new config map with the given fields merged over the
// existing ones. The receiver's config is not mutated.
func (i *Integration) MergeConfig(fields map[string]any) map[string]any {
	merged := make(map[string]any, len(i.Config.Data)+len(fields))
	for k, v := range i.Config.Data {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}

// NewConnectToken generates a fresh correlation key in the prefixed form.
func NewConnectToken() string {
	return ConnectTokenPrefix + strings.ReplaceAll(uuid.New().String(), "-", "")
}
