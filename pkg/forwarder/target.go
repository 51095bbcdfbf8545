package forwarder

import (
	"net/url"
	"strings"
)

const pathMarker = "webhook-checkin"

// Target identifies the downstream destination of a delivery.
type Target struct {
	OwnerID      string
	WebhookToken string
}

// ExtractDebug captures both extraction attempts for the 400 response body
// when a target cannot be resolved from the request.
type ExtractDebug struct {
	Path       string   `json:"path"`
	Parts      []string `json:"parts"`
	FromPath   Target   `json:"from_path"`
	FromParams Target   `json:"from_params"`
}

// ExtractTarget resolves the delivery target from the request path, falling
// back to the owner_id and webhook_token query parameters. The path form is
// .../webhook-checkin/:owner_id/:webhook_token; only the two segments after
// the marker are considered, so route prefixes in front of the marker don't
// matter. Returns debug detail instead of a target when both forms fail.
func ExtractTarget(path string, query url.Values) (Target, *ExtractDebug) {
	parts := splitPath(path)

	var fromPath Target
	for i, part := range parts {
		if part == pathMarker && i+2 < len(parts) {
			fromPath = Target{OwnerID: parts[i+1], WebhookToken: parts[i+2]}
			break
		}
	}

	fromParams := Target{
		OwnerID:      query.Get("owner_id"),
		WebhookToken: query.Get("webhook_token"),
	}

	if fromPath.valid() {
		return fromPath, nil
	}
	if fromParams.valid() {
		return fromParams, nil
	}

	return Target{}, &ExtractDebug{
		Path:       path,
		Parts:      parts,
		FromPath:   fromPath,
		FromParams: fromParams,
	}
}

func (t Target) valid() bool {
	return t.OwnerID != "" && t.WebhookToken != ""
}

func splitPath(path string) []string {
	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
