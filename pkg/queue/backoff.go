package queue

import "time"

// Backoff is an exponential retry schedule: Base doubled per prior attempt,
// capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before retrying after the given 1-based attempt failed.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}

	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}
