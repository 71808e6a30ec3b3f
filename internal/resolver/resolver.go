package resolver

import (
	"context"
	"dcsingest/internal/global"
	"dcsingest/internal/logctx"
	"dcsingest/internal/source"
	"dcsingest/pkg/message"
	"fmt"
	"time"
)

// Platform metadata collaborator. Returns nil platform without error when nothing matches.
type Lookup interface {
	Lookup(ctx context.Context, mediumType, mediumID string, timestamp time.Time) (platform *message.Platform, err error)
}

type Resolver struct {
	lookup Lookup
	legacy bool // legacy GOES channel ranges
}

func New(lookup Lookup, legacyChannelRanges bool) (resolver *Resolver) {
	resolver = &Resolver{lookup: lookup, legacy: legacyChannelRanges}
	return
}

// Attaches platform and transport medium to msg.
// Returns *source.UnknownPlatformError when no record matches.
func (resolver *Resolver) Resolve(ctx context.Context, msg *message.Message, mediumType string) (err error) {
	mediumID, ok := msg.MediumID()
	if !ok {
		err = fmt.Errorf("message has no medium id to resolve")
		return
	}
	timestamp, _ := msg.Timestamp()

	var channel int
	if number, present := msg.IntMeasurement(message.Channel); present {
		channel = int(number)
	}
	unknown := &source.UnknownPlatformError{MediumType: mediumType, MediumID: mediumID, Channel: channel}

	platform, err := resolver.lookup.Lookup(ctx, mediumType, mediumID, timestamp)
	if err != nil {
		err = fmt.Errorf("platform lookup for %q failed: %w", mediumID, err)
		return
	}
	if platform == nil {
		err = unknown
		return
	}

	medium, ok := Match(platform.Media, mediumType, mediumID, channel, resolver.legacy)
	if !ok {
		err = unknown
		return
	}

	msg.Platform = platform
	msg.TransportMedium = medium
	logctx.LogEvent(ctx, global.VerbosityData, global.InfoLog,
		"resolved %s medium %s to platform %s\n", medium.MediumType, mediumID, platform.ID)
	return
}
