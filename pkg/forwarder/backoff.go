package forwarder

import "time"

// Backoff returns the pre-attempt delay for the given 1-based attempt number.
// The first attempt runs immediately; each retry doubles the previous delay
// starting from initial. No jitter is applied — all retries happen within a
// single inbound request, so thundering-herd smearing buys nothing here.
func Backoff(initial time.Duration, attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delay := initial
	for i := 2; i < attempt; i++ {
		delay *= 2
	}
	return delay
}
