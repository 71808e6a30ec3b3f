// Failover and rotation over interchangeable message sources
package group

import (
	"context"
	"dcsingest/internal/source"
	"dcsingest/pkg/message"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
)

// Source of framed messages that can be (re)initialized from a point in time.
// Framer sessions and groups themselves implement it.
type Member interface {
	Name() string
	Init(ctx context.Context, since time.Time) (err error)
	Next(ctx context.Context) (msg *message.Message, err error)
	Close() (err error)
}

type MemberState int

const (
	Untried MemberState = iota
	Active
	Failed
)

func (state MemberState) String() string {
	switch state {
	case Active:
		return "active"
	case Failed:
		return "failed"
	}
	return "untried"
}

type Option func(opts *options)

type options struct {
	clock clock.Clock
}

func WithClock(clk clock.Clock) Option {
	return func(opts *options) {
		opts.clock = clk
	}
}

func buildOptions(opts []Option) (built options) {
	built.clock = clock.New()
	for _, opt := range opts {
		opt(&built)
	}
	return
}

type readOutcome int

const (
	keepMember readOutcome = iota
	endMember
	dropMember
)

// Unknown platforms and timeouts leave the member connected
func classify(err error) readOutcome {
	switch {
	case err == nil, source.IsUnknownPlatform(err), errors.Is(err, source.ErrTimeout):
		return keepMember
	case errors.Is(err, source.ErrEndOfSource):
		return endMember
	}
	return dropMember
}

// Resume point after the last delivered message
func resumeFrom(since, lastReceived time.Time) time.Time {
	if lastReceived.IsZero() {
		return since
	}
	return lastReceived.Add(time.Second)
}

func deliveredAt(msg *message.Message, clk clock.Clock) time.Time {
	if ts, ok := msg.Timestamp(); ok {
		return ts
	}
	return clk.Now()
}
