package connection

import "time"

// ReconnectAttempt describes one scheduled reconnect. It is derived when a
// disconnect is observed and never stored.
type ReconnectAttempt struct {
	Attempt int           // 1-based attempt number after this decision
	Delay   time.Duration // Wait before dialing again
	Limit   int           // Attempt budget for the session lifetime
}

// ReconnectPolicy decides whether another connection attempt is allowed
// given the current attempt counter. ok=false means halt for good; the
// returned Attempt is then the final counter value.
type ReconnectPolicy interface {
	Next(attempts int) (next ReconnectAttempt, ok bool)
}

// FixedPolicy allows Limit connection attempts between successful opens,
// each retry after the same Delay. The failure that brings the counter to
// Limit halts, so the counter never exceeds Limit and no attempt is made
// once it gets there. There is no backoff and no jitter.
type FixedPolicy struct {
	Delay time.Duration
	Limit int
}

// Next implements ReconnectPolicy.
func (p FixedPolicy) Next(attempts int) (ReconnectAttempt, bool) {
	next := attempts + 1
	if next >= p.Limit {
		if next > p.Limit {
			next = p.Limit
		}
		return ReconnectAttempt{Attempt: next, Delay: 0, Limit: p.Limit}, false
	}
	return ReconnectAttempt{
		Attempt: next,
		Delay:   p.Delay,
		Limit:   p.Limit,
	}, true
}
