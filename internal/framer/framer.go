// Stream framer: finds message boundaries in a byte stream and dispatches headers to a parser
package framer

import (
	"context"
	"dcsingest/internal/global"
	"dcsingest/internal/logctx"
	"dcsingest/internal/resolver"
	"dcsingest/internal/source"
	"dcsingest/pkg/header"
	"dcsingest/pkg/message"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
)

type scanState int

const (
	hunting scanState = iota
	haveStart
)

// Owned by a single goroutine, only Abort may be called concurrently
type Framer struct {
	Namespace []string

	name     string
	src      source.ByteSource
	parser   header.Parser
	markers  [][]byte
	cfg      Config
	resolver *resolver.Resolver
	clock    clock.Clock

	state   scanState
	pending []byte // pushback + read ahead
	chunk   []byte
	readErr error // returned by a read that also delivered data

	endOwed bool // end delimiter of the previous message not read yet

	partial []byte // delimited mode accumulation across timeouts

	record      []byte // marker mode, current record (or hunt window)
	inRecord    bool
	huntCount   int
	markerReach int

	wholeDone bool

	skipped         uint64
	skippedSinceLog int

	abortMutex sync.Mutex
	aborted    atomic.Bool
	abort      chan struct{}

	metrics MetricStorage
}

func New(src source.ByteSource, parser header.Parser, cfg Config, opts ...Option) (framer *Framer, err error) {
	if src == nil || parser == nil {
		err = &source.FatalError{Err: fmt.Errorf("framer requires a byte source and a header parser")}
		return
	}
	if cfg.MaxMessageLength < 0 {
		err = &source.FatalError{Err: fmt.Errorf("invalid maximum message length %d", cfg.MaxMessageLength)}
		return
	}
	if cfg.MaxMessageLength == 0 {
		cfg.MaxMessageLength = global.DefaultMaxMessageLength
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = global.DefaultReadTimeout
	}

	newFramer := &Framer{
		src:    src,
		parser: parser,
		cfg:    cfg,
		clock:  clock.New(),
		chunk:  make([]byte, readChunkSize),
		abort:  make(chan struct{}),
	}

	noDelimiters := len(cfg.StartDelimiter) == 0 && len(cfg.EndDelimiter) == 0
	if marked, ok := parser.(header.MarkerParser); ok && noDelimiters && !cfg.OneMessagePerSource {
		newFramer.markers = marked.StartMarkers()
		for _, marker := range newFramer.markers {
			newFramer.markerReach = max(newFramer.markerReach, len(marker)+1)
		}
	}

	switch {
	case cfg.OneMessagePerSource:
	case parser.HasExplicitLength() && parser.HeaderLength() <= 0:
		err = &source.FatalError{Err: fmt.Errorf("format %s states a body length but has no fixed header length", parser.Name())}
		return
	case parser.HasExplicitLength():
	case newFramer.markers != nil:
	case noDelimiters:
		err = &source.FatalError{Err: fmt.Errorf("format %s has no explicit length and requires an end or start delimiter", parser.Name())}
		return
	}

	for _, opt := range opts {
		opt(newFramer)
	}
	if newFramer.name == "" {
		newFramer.name = source.NameOf(src)
	}
	newFramer.Namespace = []string{global.NSFramer, newFramer.name}
	newFramer.Reset()

	framer = newFramer
	return
}

// Clears scan state for a freshly opened source
func (framer *Framer) Reset() {
	framer.state = hunting
	framer.pending = nil
	framer.readErr = nil
	framer.endOwed = false
	framer.partial = nil
	framer.record = []byte{'\n'}
	framer.inRecord = false
	framer.huntCount = 0
	framer.wholeDone = false
	framer.skippedSinceLog = 0

	framer.abortMutex.Lock()
	if framer.aborted.Load() {
		framer.abort = make(chan struct{})
		framer.aborted.Store(false)
	}
	framer.abortMutex.Unlock()
}

// Unblocks an in-flight Next, which then reports end of source.
// Stays in effect until Reset.
func (framer *Framer) Abort() {
	framer.abortMutex.Lock()
	if !framer.aborted.Load() {
		framer.aborted.Store(true)
		close(framer.abort)
	}
	framer.abortMutex.Unlock()

	if interrupter, ok := framer.src.(source.Interrupter); ok {
		interrupter.Interrupt()
	}
}

func (framer *Framer) abortSignal() <-chan struct{} {
	framer.abortMutex.Lock()
	defer framer.abortMutex.Unlock()
	return framer.abort
}

// Total bytes discarded while searching for message boundaries
func (framer *Framer) Skipped() uint64 {
	return framer.skipped
}

func (framer *Framer) Name() string {
	return framer.name
}

// Returns the next framed message.
// A nil message with nil error means nothing complete was found this cycle.
func (framer *Framer) Next(ctx context.Context) (msg *message.Message, err error) {
	if framer.aborted.Load() {
		err = source.ErrEndOfSource
		return
	}
	stop := context.AfterFunc(ctx, framer.Abort)
	defer stop()

	ctx = logctx.AppendCtxTag(ctx, framer.name)

	switch {
	case framer.cfg.OneMessagePerSource:
		msg, err = framer.nextWhole(ctx)
	case framer.markers != nil:
		msg, err = framer.nextMarked(ctx)
	case framer.parser.HasExplicitLength():
		msg, err = framer.nextExplicit(ctx)
	default:
		msg, err = framer.nextDelimited(ctx)
	}
	if msg == nil {
		return
	}

	msg, err = framer.finish(ctx, msg, err)
	return
}

// Parity, default timestamp, transport record and platform resolution
func (framer *Framer) finish(ctx context.Context, msg *message.Message, framingErr error) (finished *message.Message, err error) {
	err = framingErr
	finished = msg

	if framer.cfg.Parity != ParityNone {
		body, replaced := applyParity(framer.cfg.Parity, msg.Body())
		msg.SetBody(body)
		if replaced > 0 {
			framer.metrics.ParityReplaced.Add(uint64(replaced))
			logctx.LogEvent(ctx, global.VerbosityData, global.WarnLog,
				"replaced %d bytes failing %s parity check\n", replaced, framer.cfg.Parity)
		}
	}

	framer.metrics.recordLength(msg.Len())

	if _, ok := msg.Timestamp(); !ok {
		msg.SetTimestamp(framer.clock.Now())
	}

	if framer.resolver != nil {
		resolveErr := framer.resolver.Resolve(ctx, msg, framer.parser.MediumType())
		switch {
		case resolveErr == nil:
		case source.IsUnknownPlatform(resolveErr):
			framer.metrics.UnknownPlatforms.Add(1)
			if !framer.cfg.AllowUnknownPlatform {
				msg.Seal()
				framer.metrics.Messages.Add(1)
				err = resolveErr
				return
			}
			logctx.LogEvent(ctx, global.VerbosityProgress, global.WarnLog, "%v\n", resolveErr)
		default:
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "%v\n", resolveErr)
		}
	}

	msg.Seal()
	framer.metrics.Messages.Add(1)
	return
}

// Runs the parser on a complete candidate, nil when parsing failed
func (framer *Framer) parseCandidate(ctx context.Context, data []byte) (msg *message.Message) {
	candidate := message.New(data)
	err := framer.parser.Parse(ctx, candidate)
	if err != nil {
		framer.metrics.ParseFailures.Add(1)
		logctx.LogEvent(ctx, global.VerbosityProgress, global.WarnLog,
			"discarding %d byte candidate message: %v\n", len(data), err)
		return
	}
	// Taken now, later reads may already belong to the next transport record
	if recorder, ok := framer.src.(source.Recorder); ok {
		candidate.Record = recorder.Record()
	}
	msg = candidate
	return
}
