package framer

import (
	"context"
	"dcsingest/internal/global"
	"dcsingest/internal/logctx"
	"dcsingest/internal/ratelimit"
	"dcsingest/internal/source"
	"dcsingest/pkg/message"
	"errors"
	"fmt"
	"time"
)

// Framer bound to its byte source, usable as a group member
type Session struct {
	name    string
	src     source.ByteSource
	framer  *Framer
	limiter *ratelimit.Limiter
	until   time.Time
	open    bool
}

// Limiter is optional and throttles every Next call
func NewSession(name string, framer *Framer, limiter *ratelimit.Limiter) (session *Session) {
	session = &Session{
		name:    name,
		src:     framer.src,
		framer:  framer,
		limiter: limiter,
	}
	return
}

func (session *Session) Name() string { return session.name }

func (session *Session) Framer() *Framer { return session.framer }

// Upper bound forwarded to time ranged sources on every Init
func (session *Session) SetUntil(until time.Time) {
	session.until = until
}

// (Re)opens the source, resuming from since where the source supports it
func (session *Session) Init(ctx context.Context, since time.Time) (err error) {
	if session.open {
		closeErr := session.Close()
		if closeErr != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"failed to close source %s before reopening: %v\n", session.name, closeErr)
		}
	}

	if ranged, ok := session.src.(source.TimeRanged); ok {
		ranged.SetTimeRange(since, session.until)
	}

	err = session.src.Open(ctx)
	if err != nil {
		err = source.Fatal(fmt.Errorf("failed to open source %s: %w", session.name, err), session.src.CanReconnect())
		return
	}
	session.framer.Reset()
	session.open = true

	logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog, "opened source %s\n", session.name)
	return
}

func (session *Session) Next(ctx context.Context) (msg *message.Message, err error) {
	if !session.open {
		err = &source.FatalError{Err: fmt.Errorf("source %s is not open", session.name), Reconnect: true}
		return
	}

	err = session.limiter.Wait(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", source.ErrEndOfSource, err)
		}
		return
	}

	msg, err = session.framer.Next(ctx)
	return
}

func (session *Session) Close() (err error) {
	if !session.open {
		return
	}
	session.open = false
	err = session.src.Close()
	return
}
