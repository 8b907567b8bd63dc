package jobs

import (
	"time"
)

// RetryBackoff computes the requeue delay after a failed attempt:
// min(cap, base * 2^attempt) plus jitter drawn from [0, base). rnd
// supplies the jitter fraction in [0, 1) so tests can pin it.
func RetryBackoff(base, cap time.Duration, attempt int, rnd func() float64) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if cap < base {
		cap = base
	}
	if attempt < 0 {
		attempt = 0
	}
	// Shift overflows past 62; the cap would win long before that anyway.
	if attempt > 30 {
		attempt = 30
	}
	d := base << uint(attempt)
	if d > cap || d <= 0 {
		d = cap
	}
	var jitter time.Duration
	if rnd != nil {
		jitter = time.Duration(rnd() * float64(base))
		if jitter >= base {
			jitter = base - 1
		}
		if jitter < 0 {
			jitter = 0
		}
	}
	return d + jitter
}
