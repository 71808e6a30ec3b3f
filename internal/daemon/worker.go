package daemon

import (
	"context"
	"dcsingest/internal/global"
	"dcsingest/internal/logctx"
	"dcsingest/internal/source"
	"errors"
	"fmt"
	"time"
)

// Frames one top level source until it ends, fails without reconnect, or ctx is done.
// Reconnectable failures reopen the source from just after the last delivered message.
func (daemon *Daemon) runSource(ctx context.Context, entry *worker) (err error) {
	ctx = logctx.AppendCtxTag(ctx, global.NSSource)
	ctx = logctx.AppendCtxTag(ctx, entry.spec.Name)

	since := entry.spec.Since
	var lastReceived time.Time
	backoff := global.DefaultMinReconnectBackoff

	for {
		err = entry.member.Init(ctx, since)
		if err == nil {
			backoff = global.DefaultMinReconnectBackoff
			err = daemon.forward(ctx, entry, &lastReceived)

			closeErr := entry.member.Close()
			if closeErr != nil {
				logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
					"failed to close source: %v\n", closeErr)
			}
		}

		if ctx.Err() != nil {
			err = nil
			return
		}
		if errors.Is(err, source.ErrEndOfSource) {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog, "source finished\n")
			err = nil
			return
		}

		var fatal *source.FatalError
		if !errors.As(err, &fatal) || !fatal.Reconnect {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "source stopped: %v\n", err)
			err = fmt.Errorf("source %s: %w", entry.spec.Name, err)
			return
		}

		if !lastReceived.IsZero() {
			since = lastReceived.Add(time.Second)
		}
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
			"source failed, reconnecting in %v: %v\n", backoff, err)

		select {
		case <-ctx.Done():
			err = nil
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, global.DefaultMaxReconnectBackoff)
	}
}

// Moves framed messages into the output queue until the member returns a terminal error
func (daemon *Daemon) forward(ctx context.Context, entry *worker, lastReceived *time.Time) (err error) {
	for {
		msg, nextErr := entry.member.Next(ctx)
		switch {
		case nextErr == nil && msg == nil:
			continue
		case nextErr == nil:
		case errors.Is(nextErr, source.ErrTimeout):
			logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog, "no data: %v\n", nextErr)
			continue
		case source.IsUnknownPlatform(nextErr):
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "dropped message: %v\n", nextErr)
			continue
		default:
			err = nextErr
			return
		}

		err = daemon.Queue.PushBlocking(ctx, msg)
		if err != nil {
			err = fmt.Errorf("%w: %v", source.ErrEndOfSource, err)
			return
		}
		if timestamp, ok := msg.Timestamp(); ok {
			*lastReceived = timestamp
		}
	}
}
