// Attaches platform and transport medium metadata to framed messages
package resolver

import (
	"dcsingest/pkg/message"
	"strings"
)

// Channel boundary of the legacy GOES assignment (self-timed below, random above)
const legacyChannelSplit int = 100

func isGOES(mediumType string) bool {
	switch strings.ToLower(mediumType) {
	case message.MediumGOES, message.MediumGOESSelfTimed, message.MediumGOESRandom:
		return true
	}
	return false
}

// Empty requested type accepts any record. GOES generic, self-timed and random
// are interchangeable once a channel is known.
func typeCompatible(recordType, requested string, channel int) bool {
	if requested == "" || strings.EqualFold(recordType, requested) {
		return true
	}
	return channel > 0 && isGOES(recordType) && isGOES(requested)
}

func channelMatches(record message.TransportMedium, channel int, legacy bool) bool {
	if channel <= 0 || record.Channel == channel {
		return true
	}
	if !legacy {
		return false
	}
	switch strings.ToLower(record.MediumType) {
	case message.MediumGOESSelfTimed:
		return channel < legacyChannelSplit
	case message.MediumGOESRandom:
		return channel > legacyChannelSplit
	}
	return false
}

// Selects the first transport medium whose id matches case-insensitively, whose type is
// compatible and whose channel matches (exactly, or by legacy range when enabled).
// Non-positive channel means the caller has none.
func Match(media []message.TransportMedium, mediumType, mediumID string, channel int, legacy bool) (matched *message.TransportMedium, ok bool) {
	for i := range media {
		record := media[i]
		if !strings.EqualFold(record.MediumID, mediumID) {
			continue
		}
		if !typeCompatible(record.MediumType, mediumType, channel) {
			continue
		}
		if !channelMatches(record, channel, legacy) {
			continue
		}
		matched = &media[i]
		ok = true
		return
	}
	return
}
