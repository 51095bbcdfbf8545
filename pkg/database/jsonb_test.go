package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONBScan(t *testing.T) {
	var col JSONB[map[string]any]

	require.NoError(t, col.Scan([]byte(`{"token":"ctok_abc","healthy":true}`)))
	assert.Equal(t, "ctok_abc", col.Data["token"])
	assert.Equal(t, true, col.Data["healthy"])

	// NULL column resets to the zero value
	require.NoError(t, col.Scan(nil))
	assert.Nil(t, col.Data)

	err := col.Scan("not bytes")
	require.Error(t, err)
}

func TestJSONBValue(t *testing.T) {
	col := JSONB[map[string]any]{Data: map[string]any{"token": "ctok_abc"}}

	v, err := col.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"ctok_abc"}`, string(v.([]byte)))
}
