package resilience

import "time"

// Backoff produces a capped exponential delay schedule for long-running loops
// such as heartbeat senders. Unlike Retry it has no attempt limit: the caller
// asks for the next delay after each failure and resets after a success.
//
// Backoff is not safe for concurrent use; each loop owns its own instance.
type Backoff struct {
	// Initial is the delay after the first failure.
	Initial time.Duration
	// Max caps the delay.
	Max time.Duration
	// Factor is the multiplier applied per consecutive failure.
	Factor float64

	attempt int
}

// NewBackoff creates a Backoff with the given initial and maximum delay and a
// doubling factor.
func NewBackoff(initial, max time.Duration) *Backoff {
	return &Backoff{Initial: initial, Max: max, Factor: 2.0}
}

// Next returns the delay to wait before the next attempt and advances the
// schedule.
func (b *Backoff) Next() time.Duration {
	if b.Initial <= 0 {
		b.Initial = time.Second
	}
	if b.Max <= 0 {
		b.Max = 30 * time.Second
	}
	if b.Factor <= 0 {
		b.Factor = 2.0
	}

	d := b.Initial
	for i := 0; i < b.attempt; i++ {
		d = time.Duration(float64(d) * b.Factor)
		if d >= b.Max {
			d = b.Max
			break
		}
	}
	b.attempt++
	return d
}

// Reset restarts the schedule after a success.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt returns the number of consecutive failures observed so far.
func (b *Backoff) Attempt() int {
	return b.attempt
}
