// Package circuitbreaker sheds load from a dependency that keeps failing.
// The speech client uses one around the batch transcription endpoint so a
// dead ASR box costs each call one cheap refusal instead of a full HTTP
// timeout on every turn.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrOpen = errors.New("circuit open")

// Breaker trips after a run of consecutive failures and refuses requests
// for a cooldown period. The first success after the cooldown closes it
// again; a failure restarts the cooldown.
type Breaker struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	open     bool
	openedAt time.Time
	now      func() time.Time
}

func New(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a request may proceed. While the breaker is open
// and the cooldown has not elapsed it returns ErrOpen; after the cooldown
// requests flow again as probes.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open && b.now().Sub(b.openedAt) < b.cooldown {
		return ErrOpen
	}
	return nil
}

// Observe records the outcome of an allowed request.
func (b *Breaker) Observe(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		b.open = false
		return
	}

	b.failures++
	if b.failures >= b.threshold || b.open {
		b.open = true
		b.openedAt = b.now()
	}
}

// Open reports whether the breaker currently refuses requests.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open && b.now().Sub(b.openedAt) < b.cooldown
}
