package forwarder

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTarget(t *testing.T) {
	t.Run("from path", func(t *testing.T) {
		target, debug := ExtractTarget("/api/v1/webhook-checkin/owner-1/tok-1", nil)
		require.Nil(t, debug)
		assert.Equal(t, Target{OwnerID: "owner-1", WebhookToken: "tok-1"}, target)
	})

	t.Run("path prefix does not matter", func(t *testing.T) {
		target, debug := ExtractTarget("/v2/internal/webhook-checkin/owner-1/tok-1", nil)
		require.Nil(t, debug)
		assert.Equal(t, "owner-1", target.OwnerID)
	})

	t.Run("trailing slash tolerated", func(t *testing.T) {
		target, debug := ExtractTarget("/api/v1/webhook-checkin/owner-1/tok-1/", nil)
		require.Nil(t, debug)
		assert.Equal(t, "tok-1", target.WebhookToken)
	})

	t.Run("query fallback", func(t *testing.T) {
		query := url.Values{"owner_id": {"owner-2"}, "webhook_token": {"tok-2"}}
		target, debug := ExtractTarget("/api/v1/webhook-checkin", query)
		require.Nil(t, debug)
		assert.Equal(t, Target{OwnerID: "owner-2", WebhookToken: "tok-2"}, target)
	})

	t.Run("path wins over params", func(t *testing.T) {
		query := url.Values{"owner_id": {"owner-2"}, "webhook_token": {"tok-2"}}
		target, debug := ExtractTarget("/api/v1/webhook-checkin/owner-1/tok-1", query)
		require.Nil(t, debug)
		assert.Equal(t, "owner-1", target.OwnerID)
	})

	t.Run("malformed path returns debug detail", func(t *testing.T) {
		target, debug := ExtractTarget("/api/v1/webhook-checkin/owner-only", nil)
		require.NotNil(t, debug)
		assert.Empty(t, target.OwnerID)
		assert.Equal(t, "/api/v1/webhook-checkin/owner-only", debug.Path)
		assert.Equal(t, []string{"api", "v1", "webhook-checkin", "owner-only"}, debug.Parts)
		assert.Empty(t, debug.FromPath.OwnerID)
		assert.Empty(t, debug.FromParams.OwnerID)
	})

	t.Run("partial params still fail", func(t *testing.T) {
		query := url.Values{"owner_id": {"owner-2"}}
		_, debug := ExtractTarget("/api/v1/webhook-checkin", query)
		require.NotNil(t, debug)
		assert.Equal(t, "owner-2", debug.FromParams.OwnerID)
		assert.Empty(t, debug.FromParams.WebhookToken)
	})
}
