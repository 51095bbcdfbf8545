package reconciler

import (
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Lookup strategy names, in the order they are tried.
const (
	StrategyExact      = "exact"
	StrategyUnprefixed = "unprefixed"
	StrategyPrefixed   = "prefixed"
)

// Candidate is one token encoding to try against the store.
type Candidate struct {
	Token    string
	Strategy string
}

// TokenCandidates returns the ordered list of token encodings to look up for
// an inbound connect token. Brokers and older records disagree on whether the
// "ctok_" prefix is stored, so the literal value is tried first, then the
// value with the prefix stripped, then the value with the prefix added.
// Encodings that collapse to a duplicate or to the bare prefix are dropped.
func TokenCandidates(token string) []Candidate {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	candidates := []Candidate{{Token: token, Strategy: StrategyExact}}
	seen := map[string]bool{token: true}

	if stripped := strings.TrimPrefix(token, models.ConnectTokenPrefix); stripped != "" && !seen[stripped] {
		candidates = append(candidates, Candidate{Token: stripped, Strategy: StrategyUnprefixed})
		seen[stripped] = true
	}

	if prefixed := models.ConnectTokenPrefix + token; !seen[prefixed] {
		candidates = append(candidates, Candidate{Token: prefixed, Strategy: StrategyPrefixed})
	}

	return candidates
}
