package group

import (
	"context"
	"dcsingest/internal/global"
	"dcsingest/internal/logctx"
	"dcsingest/internal/source"
	"dcsingest/pkg/message"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
)

// Rotates through members, advancing on every (re)activation
type RoundRobin struct {
	Namespace []string

	name    string
	members []Member
	clock   clock.Clock

	cursor       int
	active       int
	since        time.Time
	lastReceived time.Time

	metrics MetricStorage
}

func NewRoundRobin(name string, members []Member, opts ...Option) (group *RoundRobin) {
	built := buildOptions(opts)
	group = &RoundRobin{
		Namespace: []string{global.NSGroup, name},
		name:      name,
		members:   members,
		clock:     built.clock,
		active:    -1,
	}
	return
}

func (group *RoundRobin) Name() string { return group.name }

func (group *RoundRobin) Active() (name string) {
	if group.active >= 0 {
		name = group.members[group.active].Name()
	}
	return
}

// Moves on to the next member in rotation. An active single member group stays as is.
func (group *RoundRobin) Init(ctx context.Context, since time.Time) (err error) {
	ctx = logctx.AppendCtxTag(ctx, group.name)
	group.since = since
	group.lastReceived = time.Time{}
	err = group.rotate(ctx)
	return
}

func (group *RoundRobin) Next(ctx context.Context) (msg *message.Message, err error) {
	ctx = logctx.AppendCtxTag(ctx, group.name)

	if group.active < 0 {
		err = group.rotate(ctx)
		if err != nil {
			return
		}
	}

	member := group.members[group.active]
	msg, err = member.Next(ctx)
	if msg != nil {
		group.lastReceived = deliveredAt(msg, group.clock)
	}

	switch classify(err) {
	case keepMember:
	case endMember:
		logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog, "member %s reached end of source\n", member.Name())
		group.deactivate(ctx)
	case dropMember:
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "member %s failed: %v\n", member.Name(), err)
		group.metrics.Failures.Add(1)
		group.deactivate(ctx)
		msg, err = nil, nil
	}
	return
}

func (group *RoundRobin) rotate(ctx context.Context) (err error) {
	if len(group.members) == 0 {
		err = &source.FatalError{Err: fmt.Errorf("group %s has no members", group.name)}
		return
	}

	var attemptErrs error
	for range group.members {
		index := group.cursor
		group.cursor = (group.cursor + 1) % len(group.members)
		if index == group.active {
			return
		}

		member := group.members[index]
		initErr := member.Init(ctx, resumeFrom(group.since, group.lastReceived))
		if initErr != nil {
			attemptErrs = multierr.Append(attemptErrs, fmt.Errorf("member %s: %w", member.Name(), initErr))
			continue
		}

		group.deactivate(ctx)
		group.active = index
		group.metrics.Activations.Add(1)
		logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog, "member %s active\n", member.Name())
		return
	}

	if group.active < 0 {
		err = &source.FatalError{
			Err:       fmt.Errorf("no member of group %s could be initialized: %w", group.name, attemptErrs),
			Reconnect: true,
		}
	}
	return
}

func (group *RoundRobin) deactivate(ctx context.Context) {
	if group.active < 0 {
		return
	}
	member := group.members[group.active]
	closeErr := member.Close()
	if closeErr != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "failed to close member %s: %v\n", member.Name(), closeErr)
	}
	group.active = -1
}

func (group *RoundRobin) Close() (err error) {
	for _, member := range group.members {
		err = multierr.Append(err, member.Close())
	}
	group.active = -1
	return
}
