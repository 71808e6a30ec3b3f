package framer

import (
	"dcsingest/internal/resolver"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

type ParityMode int

const (
	ParityNone ParityMode = iota
	ParityOdd
	ParityEven
	ParityStrip
)

func (mode ParityMode) String() string {
	switch mode {
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	case ParityStrip:
		return "strip"
	}
	return "none"
}

func ParseParity(text string) (mode ParityMode, err error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "", "none":
		mode = ParityNone
	case "odd":
		mode = ParityOdd
	case "even":
		mode = ParityEven
	case "strip":
		mode = ParityStrip
	default:
		err = fmt.Errorf("unknown parity mode %q (expected none, odd, even or strip)", text)
	}
	return
}

// Per-source framing options
type Config struct {
	StartDelimiter       []byte
	EndDelimiter         []byte
	LengthAdjust         int  // added to a parsed body length
	OneMessagePerSource  bool // whole source is one message
	Parity               ParityMode
	MaxMessageLength     int           // zero uses default
	ReadTimeout          time.Duration // zero uses default
	AllowUnknownPlatform bool
}

type Option func(framer *Framer)

// Attach platform metadata after each parse
func WithResolver(r *resolver.Resolver) Option {
	return func(framer *Framer) {
		framer.resolver = r
	}
}

func WithClock(clk clock.Clock) Option {
	return func(framer *Framer) {
		framer.clock = clk
	}
}

// Name used in log tags and metric namespaces
func WithName(name string) Option {
	return func(framer *Framer) {
		framer.name = name
	}
}
