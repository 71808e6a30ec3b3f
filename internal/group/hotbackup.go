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

// Priority ordered failover. The first member that initializes serves messages; a higher
// priority member is retried every recheck interval and takes over when it comes back.
type HotBackup struct {
	Namespace []string

	name    string
	members []Member
	states  []MemberState
	clock   clock.Clock
	recheck time.Duration
	reprobe time.Duration

	active       int
	justFailed   int
	probeNow     bool // a member just failed, try the others without waiting
	since        time.Time
	lastAttempt  time.Time
	lastRecheck  time.Time
	lastReceived time.Time

	metrics MetricStorage
}

func NewHotBackup(name string, members []Member, recheck, reprobe time.Duration, opts ...Option) (group *HotBackup) {
	built := buildOptions(opts)
	if recheck <= 0 {
		recheck = global.DefaultRecheckInterval
	}
	if reprobe <= 0 {
		reprobe = global.DefaultReprobeInterval
	}
	group = &HotBackup{
		Namespace:  []string{global.NSGroup, name},
		name:       name,
		members:    members,
		states:     make([]MemberState, len(members)),
		clock:      built.clock,
		recheck:    recheck,
		reprobe:    reprobe,
		active:     -1,
		justFailed: -1,
	}
	return
}

func (group *HotBackup) Name() string { return group.name }

// Name of the serving member, empty when none
func (group *HotBackup) Active() (name string) {
	if group.active >= 0 {
		name = group.members[group.active].Name()
	}
	return
}

func (group *HotBackup) State(index int) MemberState {
	return group.states[index]
}

// Starts retrieval from since, activating the highest priority member available
func (group *HotBackup) Init(ctx context.Context, since time.Time) (err error) {
	ctx = logctx.AppendCtxTag(ctx, group.name)

	err = group.Close()
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "failed to close group members: %v\n", err)
	}
	for i := range group.states {
		group.states[i] = Untried
	}
	group.since = since
	group.lastReceived = time.Time{}
	group.lastRecheck = group.clock.Now()
	group.justFailed = -1
	group.probeNow = false

	err = group.activate(ctx)
	return
}

func (group *HotBackup) Next(ctx context.Context) (msg *message.Message, err error) {
	ctx = logctx.AppendCtxTag(ctx, group.name)
	now := group.clock.Now()

	if group.active < 0 {
		if !group.probeNow {
			err = group.awaitReprobe(ctx)
			if err != nil {
				return
			}
		}
		group.probeNow = false

		err = group.activate(ctx)
		if err != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "%v\n", err)
			err = fmt.Errorf("%w: no active member in group %s", source.ErrTimeout, group.name)
			return
		}
	} else if group.active > 0 && now.Sub(group.lastRecheck) >= group.recheck {
		group.lastRecheck = now
		group.promote(ctx)
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
		group.deactivate(ctx, Untried)
	case dropMember:
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "member %s failed: %v\n", member.Name(), err)
		group.metrics.Failures.Add(1)
		group.deactivate(ctx, Failed)
		group.probeNow = true
		msg, err = nil, nil
	}
	return
}

// Attempts members in priority order, skipping the active and the one that just failed
func (group *HotBackup) activate(ctx context.Context) (err error) {
	group.lastAttempt = group.clock.Now()
	skip := group.justFailed
	group.justFailed = -1

	var attemptErrs error
	for index := range group.members {
		if index == group.active || index == skip {
			continue
		}
		initErr := group.initMember(ctx, index)
		if initErr == nil {
			return
		}
		attemptErrs = multierr.Append(attemptErrs, initErr)
	}

	if group.active < 0 {
		if attemptErrs == nil {
			attemptErrs = fmt.Errorf("no other member to try")
		}
		err = &source.FatalError{
			Err:       fmt.Errorf("no member of group %s could be initialized: %w", group.name, attemptErrs),
			Reconnect: true,
		}
	}
	return
}

// Blocks until the reprobe interval since the last activation attempt has passed
func (group *HotBackup) awaitReprobe(ctx context.Context) (err error) {
	if group.lastAttempt.IsZero() {
		return
	}
	remaining := group.lastAttempt.Add(group.reprobe).Sub(group.clock.Now())
	if remaining <= 0 {
		return
	}

	timer := group.clock.Timer(remaining)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		err = fmt.Errorf("%w: %v", source.ErrEndOfSource, ctx.Err())
	case <-timer.C:
	}
	return
}

// Tries to move back to a member ranked above the active one
func (group *HotBackup) promote(ctx context.Context) {
	for index := 0; index < group.active; index++ {
		initErr := group.initMember(ctx, index)
		if initErr == nil {
			return
		}
		logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog,
			"higher priority member %s still unavailable: %v\n", group.members[index].Name(), initErr)
	}
}

// Initializes a member and switches to it, closing the previous active member
func (group *HotBackup) initMember(ctx context.Context, index int) (err error) {
	member := group.members[index]
	start := resumeFrom(group.since, group.lastReceived)

	err = member.Init(ctx, start)
	if err != nil {
		group.states[index] = Failed
		err = fmt.Errorf("member %s: %w", member.Name(), err)
		return
	}

	if group.active >= 0 {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog,
			"switching from member %s to %s\n", group.members[group.active].Name(), member.Name())
		group.deactivate(ctx, Untried)
	}
	group.active = index
	group.states[index] = Active
	group.metrics.Activations.Add(1)

	logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog,
		"member %s active, resuming from %s\n", member.Name(), start.Format(time.RFC3339))
	return
}

func (group *HotBackup) deactivate(ctx context.Context, state MemberState) {
	if group.active < 0 {
		return
	}
	member := group.members[group.active]
	closeErr := member.Close()
	if closeErr != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "failed to close member %s: %v\n", member.Name(), closeErr)
	}
	group.states[group.active] = state
	if state == Failed {
		group.justFailed = group.active
	}
	group.active = -1
}

func (group *HotBackup) Close() (err error) {
	for _, member := range group.members {
		err = multierr.Append(err, member.Close())
	}
	if group.active >= 0 {
		group.states[group.active] = Untried
	}
	group.active = -1
	return
}
