package mtp

import "time"

// Backoff yields reconnect delays that double from Min up to Max.
// Reset after a successful connect so the next failure starts small.
type Backoff struct {
	Min time.Duration
	Max time.Duration

	cur time.Duration
}

// NewBackoff returns a backoff with the given bounds. Non-positive
// bounds fall back to 1s and 2m.
func NewBackoff(min, max time.Duration) *Backoff {
	if min <= 0 {
		min = time.Second
	}
	if max < min {
		max = 2 * time.Minute
	}
	return &Backoff{Min: min, Max: max}
}

// Next returns the delay to wait before the next attempt.
func (b *Backoff) Next() time.Duration {
	if b.cur == 0 {
		b.cur = b.Min
		return b.cur
	}
	b.cur *= 2
	if b.cur > b.Max {
		b.cur = b.Max
	}
	return b.cur
}

// Reset restarts the progression from Min.
func (b *Backoff) Reset() {
	b.cur = 0
}
