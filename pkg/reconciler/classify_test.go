package reconciler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		event string
		want  EventClass
	}{
		{"CONNECTION_SUCCESS", EventClassSuccess},
		{"ACCOUNT_CONNECTED", EventClassSuccess},
		{"connection_success", EventClassSuccess},
		{"  account_connected  ", EventClassSuccess},
		{"CONNECTION_ERROR", EventClassError},
		{"ACCOUNT_CONNECTION_FAILED", EventClassError},
		{"PROVIDER_SUCCESS_V2", EventClassSuccess},
		{"PROVIDER_ERROR_V2", EventClassError},
		{"SUCCESS_WITH_ERROR", EventClassSuccess},
		{"ACCOUNT_DISCONNECTED", EventClassUnknown},
		{"", EventClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.event))
		})
	}
}
