package framer

import (
	"context"
	"dcsingest/internal/global"
	"dcsingest/internal/logctx"
	"dcsingest/internal/source"
	"errors"
	"fmt"
	"io"
	"time"
)

const readChunkSize int = 4096

// Pulls more bytes from the source into pending.
// EOF is retried with backoff (or source wakeups) until the read timeout for retrying sources.
func (framer *Framer) fill(ctx context.Context) (err error) {
	backoff := global.DefaultMinRetryBackoff
	deadline := framer.clock.Now().Add(framer.cfg.ReadTimeout)

	for {
		if framer.aborted.Load() {
			err = source.ErrEndOfSource
			return
		}
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", source.ErrEndOfSource, ctx.Err())
			return
		}

		var n int
		readErr := framer.readErr
		framer.readErr = nil
		if readErr == nil {
			n, readErr = framer.src.Read(framer.chunk)
		}
		if n > 0 {
			framer.pending = append(framer.pending, framer.chunk[:n]...)
			if readErr != nil && !errors.Is(readErr, io.EOF) {
				// Reported on the next fill, after the data is consumed
				framer.readErr = readErr
			}
			return
		}

		switch {
		case readErr == nil, errors.Is(readErr, io.EOF):
			// Nothing available right now
		case framer.aborted.Load():
			err = source.ErrEndOfSource
			return
		case errors.Is(readErr, source.ErrTimeout), errors.Is(readErr, source.ErrEndOfSource):
			err = readErr
			return
		default:
			err = source.Fatal(readErr, framer.src.CanReconnect())
			return
		}

		if !framer.src.RetryOnEOF() {
			err = source.ErrEndOfSource
			return
		}

		remaining := deadline.Sub(framer.clock.Now())
		if remaining <= 0 {
			err = source.ErrTimeout
			return
		}

		if waiter, ok := framer.src.(source.Waiter); ok {
			waitErr := waiter.WaitForData(ctx, remaining)
			if waitErr != nil {
				if errors.Is(waitErr, source.ErrTimeout) || errors.Is(waitErr, source.ErrEndOfSource) {
					err = waitErr
				} else {
					err = fmt.Errorf("%w: %v", source.ErrEndOfSource, waitErr)
				}
				return
			}
			continue
		}

		err = framer.sleep(ctx, min(backoff, remaining))
		if err != nil {
			return
		}
		backoff = min(backoff*2, global.DefaultMaxRetryBackoff)
	}
}

func (framer *Framer) sleep(ctx context.Context, delay time.Duration) (err error) {
	timer := framer.clock.Timer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		err = fmt.Errorf("%w: %v", source.ErrEndOfSource, ctx.Err())
	case <-framer.abortSignal():
		err = source.ErrEndOfSource
	case <-timer.C:
	}
	return
}

func (framer *Framer) readByte(ctx context.Context) (b byte, err error) {
	if len(framer.pending) == 0 {
		err = framer.fill(ctx)
		if err != nil {
			return
		}
	}
	b = framer.pending[0]
	framer.pending = framer.pending[1:]
	return
}

// Reads exactly n bytes. On error the partial bytes are returned too.
func (framer *Framer) readFull(ctx context.Context, n int) (data []byte, err error) {
	data = make([]byte, 0, n)
	for len(data) < n {
		if len(framer.pending) == 0 {
			err = framer.fill(ctx)
			if err != nil {
				return
			}
		}
		take := min(n-len(data), len(framer.pending))
		data = append(data, framer.pending[:take]...)
		framer.pending = framer.pending[take:]
	}
	return
}

// Pushes bytes back to be read again before anything else
func (framer *Framer) unread(data []byte) {
	if len(data) == 0 {
		return
	}
	restored := make([]byte, 0, len(data)+len(framer.pending))
	restored = append(restored, data...)
	restored = append(restored, framer.pending...)
	framer.pending = restored
}

// Counts bytes discarded while searching for a message boundary
func (framer *Framer) skip(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	framer.skipped += uint64(count)
	framer.metrics.SkippedBytes.Add(uint64(count))

	framer.skippedSinceLog += count
	if framer.skippedSinceLog >= global.DefaultSkipLogInterval {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
			"skipped %d bytes searching for message start (%d total), check delimiter configuration\n",
			framer.skippedSinceLog, framer.skipped)
		framer.skippedSinceLog = 0
	}
}

// Consumes bytes until the start delimiter has been read.
// A mismatch after a partial match rescans from the second byte of the attempt.
func (framer *Framer) huntStart(ctx context.Context) (err error) {
	start := framer.cfg.StartDelimiter
	if len(start) == 0 {
		framer.state = haveStart
		return
	}

	matched := 0
	for matched < len(start) {
		var b byte
		b, err = framer.readByte(ctx)
		if err != nil {
			// Rescanned on the next cycle
			framer.unread(start[:matched])
			return
		}
		if b == start[matched] {
			matched++
			continue
		}
		if matched > 0 {
			retry := make([]byte, 0, matched)
			retry = append(retry, start[1:matched]...)
			retry = append(retry, b)
			framer.unread(retry)
			matched = 0
		}
		framer.skip(ctx, 1)
	}
	framer.state = haveStart
	return
}

// Discards the configured end delimiter. Mismatching bytes are pushed back.
// When the read fails the delimiter stays owed and is settled first on the next cycle.
func (framer *Framer) consumeEnd(ctx context.Context) (err error) {
	end := framer.cfg.EndDelimiter
	if len(end) == 0 {
		return
	}
	data, err := framer.readFull(ctx, len(end))
	if err != nil {
		framer.unread(data)
		framer.endOwed = true
		return
	}
	framer.endOwed = false
	if string(data) != string(end) {
		logctx.LogEvent(ctx, global.VerbosityProgress, global.WarnLog,
			"expected end delimiter %q after message but found %q\n", end, data)
		framer.unread(data)
	}
	return
}
