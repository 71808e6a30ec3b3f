package framer

import (
	"bytes"
	"context"
	"dcsingest/internal/global"
	"dcsingest/internal/logctx"
	"dcsingest/internal/source"
	"dcsingest/pkg/message"
	"errors"
)

// Header states the body length: read header, parse, read body, drop end delimiter
func (framer *Framer) nextExplicit(ctx context.Context) (msg *message.Message, err error) {
	if framer.endOwed {
		err = framer.consumeEnd(ctx)
		if err != nil {
			return
		}
	}
	if framer.state == hunting {
		err = framer.huntStart(ctx)
		if err != nil {
			return
		}
	}

	head, err := framer.readFull(ctx, framer.parser.HeaderLength())
	if err != nil {
		framer.unread(head)
		return
	}

	candidate := framer.parseCandidate(ctx, head)
	if candidate == nil {
		framer.resync(ctx, head)
		return
	}

	length, ok := candidate.IntMeasurement(message.Length)
	if !ok {
		framer.metrics.ParseFailures.Add(1)
		logctx.LogEvent(ctx, global.VerbosityProgress, global.WarnLog,
			"format %s header carried no body length\n", framer.parser.Name())
		framer.resync(ctx, head)
		return
	}

	bodyLength := int(length) + framer.cfg.LengthAdjust
	if bodyLength < 0 || bodyLength > framer.cfg.MaxMessageLength {
		framer.metrics.InvalidLengths.Add(1)
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
			"invalid message length %d (parsed %d, adjustment %d, maximum %d), resynchronizing\n",
			bodyLength, length, framer.cfg.LengthAdjust, framer.cfg.MaxMessageLength)
		framer.resync(ctx, head)
		return
	}

	body, err := framer.readFull(ctx, bodyLength)
	if err != nil {
		framer.unread(append(head, body...))
		return
	}
	candidate.Append(body)
	framer.state = hunting

	endErr := framer.consumeEnd(ctx)
	if endErr != nil && source.IsFatal(endErr) {
		err = endErr
		return
	}

	msg = candidate
	return
}

// Drops a rejected header and returns to hunting.
// With a start delimiter the header bytes are rescanned, otherwise the stream slides by one byte.
func (framer *Framer) resync(ctx context.Context, head []byte) {
	framer.state = hunting
	if len(framer.cfg.StartDelimiter) > 0 {
		framer.unread(head)
		return
	}
	if len(head) > 0 {
		framer.unread(head[1:])
		framer.skip(ctx, 1)
	}
}

// Accumulates until the end delimiter, or the next start delimiter when no end delimiter is set
func (framer *Framer) nextDelimited(ctx context.Context) (msg *message.Message, err error) {
	if framer.state == hunting {
		err = framer.huntStart(ctx)
		if err != nil {
			return
		}
	}

	start := framer.cfg.StartDelimiter
	end := framer.cfg.EndDelimiter
	limit := framer.cfg.MaxMessageLength + len(start) + len(end)

	var data []byte
	for data == nil {
		var b byte
		b, err = framer.readByte(ctx)
		if err != nil {
			if !errors.Is(err, source.ErrEndOfSource) {
				return
			}
			if len(end) == 0 && len(framer.partial) > 0 {
				// Last message of a start-delimited stream
				data = framer.partial
				framer.partial = nil
				framer.state = hunting
				err = nil
				break
			}
			framer.skip(ctx, len(framer.partial))
			framer.partial = nil
			return
		}

		framer.partial = append(framer.partial, b)
		switch {
		case len(end) > 0 && bytes.HasSuffix(framer.partial, end):
			data = framer.partial[:len(framer.partial)-len(end)]
			framer.state = hunting
		case len(end) == 0 && bytes.HasSuffix(framer.partial, start):
			// Next start already consumed
			data = framer.partial[:len(framer.partial)-len(start)]
			framer.state = haveStart
		case len(framer.partial) > limit:
			framer.metrics.InvalidLengths.Add(1)
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"no end of message within %d bytes, resynchronizing\n", framer.cfg.MaxMessageLength)
			framer.skip(ctx, len(framer.partial))
			framer.partial = nil
			framer.state = hunting
			return
		}
	}
	framer.partial = nil

	if len(data) == 0 {
		return
	}
	msg = framer.parseCandidate(ctx, data)
	return
}

// Record markers partition the stream. A record is emitted once the following marker
// (or the end of the source) is seen, so output trails input by one record.
func (framer *Framer) nextMarked(ctx context.Context) (msg *message.Message, err error) {
	for {
		var b byte
		b, err = framer.readByte(ctx)
		if err != nil {
			if errors.Is(err, source.ErrEndOfSource) && framer.inRecord {
				data := framer.record
				framer.record = []byte{'\n'}
				framer.inRecord = false
				err = nil
				msg = framer.parseCandidate(ctx, data)
				if msg == nil {
					err = source.ErrEndOfSource
				}
			}
			return
		}
		framer.record = append(framer.record, b)
		marker, at := framer.markerSuffix()

		if !framer.inRecord {
			framer.huntCount++
			if marker != nil {
				framer.skip(ctx, framer.huntCount-len(marker))
				framer.huntCount = 0
				framer.record = append([]byte(nil), marker...)
				framer.inRecord = true
				continue
			}
			if len(framer.record) > framer.markerReach {
				framer.record = framer.record[len(framer.record)-framer.markerReach:]
			}
			continue
		}

		if marker != nil && at > 0 {
			data := framer.record[:at]
			framer.record = append([]byte(nil), marker...)
			msg = framer.parseCandidate(ctx, data)
			return
		}

		if len(framer.record) > framer.cfg.MaxMessageLength {
			framer.metrics.InvalidLengths.Add(1)
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"record exceeds %d bytes without a following marker, resynchronizing\n", framer.cfg.MaxMessageLength)
			framer.skip(ctx, len(framer.record))
			framer.record = []byte{'\n'}
			framer.inRecord = false
			return
		}
	}
}

// Marker ending the record buffer at the start of a line
func (framer *Framer) markerSuffix() (marker []byte, at int) {
	for _, candidate := range framer.markers {
		if !bytes.HasSuffix(framer.record, candidate) {
			continue
		}
		at = len(framer.record) - len(candidate)
		if at > 0 && framer.record[at-1] == '\n' {
			marker = candidate
			return
		}
	}
	at = 0
	return
}

// Reads until end of source or inactivity timeout and parses everything once
func (framer *Framer) nextWhole(ctx context.Context) (msg *message.Message, err error) {
	if framer.wholeDone {
		err = source.ErrEndOfSource
		return
	}

	for err == nil {
		err = framer.fill(ctx)
	}
	if framer.aborted.Load() {
		err = source.ErrEndOfSource
		return
	}
	if !errors.Is(err, source.ErrEndOfSource) && !errors.Is(err, source.ErrTimeout) {
		return
	}
	err = nil
	framer.wholeDone = true

	data := framer.pending
	framer.pending = nil
	if len(data) == 0 {
		err = source.ErrEndOfSource
		return
	}

	msg = framer.parseCandidate(ctx, data)
	return
}
