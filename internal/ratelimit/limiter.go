// Client side request throttling
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Delay queue entry. Usable once inserted+delay has passed.
type token struct {
	delay    time.Duration
	inserted time.Time
}

func (t token) readyAt() time.Time {
	return t.inserted.Add(t.delay)
}

// Sliding window limiter allowing at most perPeriod calls per period.
// The queue is primed with perPeriod zero delay tokens on first use and each
// consumed token is replaced by one that matures a full period later.
type Limiter struct {
	clock     clock.Clock
	perPeriod int
	period    time.Duration

	mutex  sync.Mutex
	tokens []token
	primed bool
}

// Nil clock uses the system clock
func New(perPeriod int, period time.Duration, clk clock.Clock) (limiter *Limiter) {
	if clk == nil {
		clk = clock.New()
	}
	limiter = &Limiter{
		clock:     clk,
		perPeriod: perPeriod,
		period:    period,
	}
	return
}

// Convenience for per-minute request limits
func PerMinute(requests int, clk clock.Clock) *Limiter {
	return New(requests, time.Minute, clk)
}

func (limiter *Limiter) Enabled() bool {
	return limiter != nil && limiter.perPeriod > 0 && limiter.period > 0
}

// Blocks until a request slot is available. Without a configured limit returns immediately.
// Cancellation returns the token to the front of the queue.
func (limiter *Limiter) Wait(ctx context.Context) (err error) {
	if !limiter.Enabled() {
		return
	}

	next, replace := limiter.take()

	wait := next.readyAt().Sub(limiter.clock.Now())
	if wait > 0 {
		timer := limiter.clock.Timer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			if replace {
				limiter.putBack(next)
			}
			err = ctx.Err()
			return
		case <-timer.C:
		}
	}

	if !replace {
		return
	}
	limiter.mutex.Lock()
	limiter.tokens = append(limiter.tokens, token{delay: limiter.period, inserted: limiter.clock.Now()})
	limiter.mutex.Unlock()
	return
}

// Pops the oldest token, priming the queue on first use.
// Concurrent callers beyond the queue size get a one period token that is not replaced.
func (limiter *Limiter) take() (next token, replace bool) {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	if !limiter.primed {
		now := limiter.clock.Now()
		limiter.tokens = make([]token, 0, limiter.perPeriod)
		for range limiter.perPeriod {
			limiter.tokens = append(limiter.tokens, token{inserted: now})
		}
		limiter.primed = true
	}

	if len(limiter.tokens) == 0 {
		next = token{delay: limiter.period, inserted: limiter.clock.Now()}
		return
	}
	next = limiter.tokens[0]
	limiter.tokens = limiter.tokens[1:]
	replace = true
	return
}

func (limiter *Limiter) putBack(returned token) {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()
	limiter.tokens = append([]token{returned}, limiter.tokens...)
}

// Tokens currently queued (perPeriod once primed and idle)
func (limiter *Limiter) Pending() (count int) {
	if limiter == nil {
		return
	}
	limiter.mutex.Lock()
	count = len(limiter.tokens)
	limiter.mutex.Unlock()
	return
}
