package main

import (
	"math/rand/v2"
	"time"
)

// backoff doubles from base up to ceiling and adds up to a quarter of jitter, so relays
// started together do not poll in lockstep.
type backoff struct {
	base    time.Duration
	ceiling time.Duration
	current time.Duration
}

func newBackoff(base, ceiling time.Duration) *backoff {
	return &backoff{base: base, ceiling: max(base, ceiling)}
}

func (b *backoff) next() time.Duration {
	if b.current == 0 {
		b.current = b.base
	} else {
		b.current = min(b.current*2, b.ceiling)
	}
	return b.current + time.Duration(rand.Int64N(int64(b.current/4)+1))
}

func (b *backoff) reset() {
	b.current = 0
}
