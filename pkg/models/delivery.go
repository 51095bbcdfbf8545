package models

import "time"

const (
	// DeliveryOutcomeDelivered means the downstream returned a terminal
	// response (success or pass-through failure) and the attempt loop stopped.
	DeliveryOutcomeDelivered = "delivered"
	// DeliveryOutcomeRetryable means the downstream returned 5xx/429 or the
	// request failed at the transport layer.
	DeliveryOutcomeRetryable = "retryable"
	// DeliveryOutcomeTerminal means a non-retryable downstream status was
	// passed through verbatim.
	DeliveryOutcomeTerminal = "terminal"
)

// DeliveryAttempt records one try of relaying a payload downstream. Attempts
// are transient; they exist for the life of a single forward call.
type DeliveryAttempt struct {
	Number     int           `json:"number"`
	Delay      time.Duration `json:"delay_ms"`
	StatusCode int           `json:"status_code,omitempty"`
	Outcome    string        `json:"outcome"`
	Error      string        `json:"error,omitempty"`
}
