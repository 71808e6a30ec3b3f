// Header parsers for telemetry wire formats.
// A parser extracts medium id, timestamp and length metadata from the header region of a framed message.
package header

import (
	"context"
	"dcsingest/pkg/message"
)

// Header length of formats whose header is found by scanning the message
const VariableLength int = -1

type Parser interface {
	// Registry name of the format
	Name() string

	// Tag used for platform lookup
	MediumType() string

	// Fixed header size in bytes or VariableLength
	HeaderLength() int

	// Header states the body length (Length measurement), no end delimiter required
	HasExplicitLength() bool

	// Sets header length, medium id, optional timestamp and measurements on msg.
	// Explicit length formats receive only the header bytes.
	Parse(ctx context.Context, msg *message.Message) (err error)
}

// Implemented by formats whose records are partitioned by start markers instead of delimiters
type MarkerParser interface {
	Parser
	StartMarkers() [][]byte
}

// Formats without fixed header length or explicit body length can only be framed with an end delimiter
func NeedsEndDelimiter(parser Parser) bool {
	return parser.HeaderLength() == VariableLength && !parser.HasExplicitLength()
}

// Shared descriptor embedded by concrete parsers
type descriptor struct {
	name           string
	mediumType     string
	headerLength   int
	explicitLength bool
}

func (d descriptor) Name() string            { return d.name }
func (d descriptor) MediumType() string      { return d.mediumType }
func (d descriptor) HeaderLength() int       { return d.headerLength }
func (d descriptor) HasExplicitLength() bool { return d.explicitLength }
