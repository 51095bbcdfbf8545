package reconciler

import "strings"

// EventClass is the normalized class of an inbound connection event.
type EventClass string

const (
	EventClassSuccess EventClass = "success"
	EventClassError   EventClass = "error"
	EventClassUnknown EventClass = "unknown"
)

// Classify maps a raw broker event type onto an EventClass. The broker has
// renamed its event types before, so after the known names we fall back to
// substring matching. SUCCESS is checked before ERROR, which makes names
// containing both count as success.
func Classify(raw string) EventClass {
	event := strings.ToUpper(strings.TrimSpace(raw))

	switch event {
	case "CONNECTION_SUCCESS", "ACCOUNT_CONNECTED":
		return EventClassSuccess
	case "CONNECTION_ERROR", "ACCOUNT_CONNECTION_FAILED":
		return EventClassError
	}

	if strings.Contains(event, "SUCCESS") {
		return EventClassSuccess
	}
	if strings.Contains(event, "ERROR") {
		return EventClassError
	}

	return EventClassUnknown
}
