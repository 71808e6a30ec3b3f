package header

import (
	"context"
	"dcsingest/internal/global"
	"dcsingest/internal/logctx"
	"dcsingest/pkg/message"
	"time"

	"go.uber.org/multierr"
)

const dcpHeaderLength int = 37

// Fields shared by the satellite DCP header layouts.
// Collected first and applied only once every mandatory field parsed.
type dcpHeader struct {
	address   string
	timestamp time.Time
	length    int
	values    map[string]message.Value
}

func newDCPHeader() (h *dcpHeader) {
	h = &dcpHeader{values: make(map[string]message.Value)}
	return
}

func (h *dcpHeader) apply(msg *message.Message, headerLength int) (err error) {
	err = msg.SetHeaderLength(headerLength)
	if err != nil {
		return
	}
	err = msg.SetMediumID(h.address)
	if err != nil {
		return
	}
	err = msg.SetTimestamp(h.timestamp)
	if err != nil {
		return
	}
	for key, value := range h.values {
		msg.SetMeasurement(key, value)
	}
	msg.SetMeasurement(message.Length, message.IntValue(int64(h.length)))
	return
}

// DOMSAT/LRGS DCP header
//
//	[0:8]   DCP address (hex)
//	[8:19]  YYDDDHHMMSS
//	[19]    failure code
//	[20:22] signal strength
//	[22:24] frequency offset (sign + digit)
//	[24]    modulation index
//	[25]    data quality
//	[26:29] channel
//	[29]    spacecraft (E/W)
//	[30:32] uplink carrier status
//	[32:37] message length
func parseDomsat(ctx context.Context, format string, data []byte) (h *dcpHeader, err error) {
	r := &fixedReader{format: format, data: data}
	address := r.hex("address", 0, 8)
	timestamp := r.timestamp("time", 8, 19, layoutYYDDD)
	channel := r.decimal("channel", 26, 29)
	length := r.decimal("length", 32, 37)
	if r.err != nil {
		err = r.err
		return
	}

	h = newDCPHeader()
	h.address = address
	h.timestamp = timestamp
	h.length = length
	h.values[message.Channel] = message.IntValue(int64(channel))

	if code := data[19]; code != ' ' {
		h.values[message.FailureCode] = message.CharValue(code)
	}
	if strength, ok := softInt(ctx, format, "signal strength", data[20:22]); ok {
		h.values[message.SignalStrength] = message.IntValue(strength)
	}
	if offset, ok := softInt(ctx, format, "frequency offset", data[22:24]); ok {
		h.values[message.FrequencyOffset] = message.IntValue(offset)
	}
	if index := data[24]; index != ' ' {
		h.values[message.ModulationIndex] = message.CharValue(index)
	}
	if quality := data[25]; quality != ' ' {
		h.values[message.DataQuality] = message.CharValue(quality)
	}
	switch craft := data[29]; {
	case isLetter(craft):
		h.values[message.Spacecraft] = message.CharValue(craft)
	case craft != ' ':
		softFailure(ctx, format, "spacecraft", data[29:30])
	}
	if carrier := string(data[30:32]); carrier != "  " {
		h.values[message.UplinkCarrier] = message.StringValue(carrier)
	}
	return
}

// Store and forward relay header
//
//	[0:8]   DCP address (hex)
//	[8:12]  relay station
//	[12:25] YYYYDDDHHMMSS
//	[25:28] channel
//	[28]    spacecraft
//	[29:32] reserved
//	[32:37] message length
func parseRelay(ctx context.Context, format string, data []byte) (h *dcpHeader, err error) {
	r := &fixedReader{format: format, data: data}
	address := r.hex("address", 0, 8)
	station := r.text("relay station", 8, 12)
	timestamp := r.timestamp("time", 12, 25, layoutYYYYDDD)
	channel := r.decimal("channel", 25, 28)
	length := r.decimal("length", 32, 37)
	if r.err != nil {
		err = r.err
		return
	}

	h = newDCPHeader()
	h.address = address
	h.timestamp = timestamp
	h.length = length
	h.values[message.Channel] = message.IntValue(int64(channel))
	if station != "" {
		h.values[message.RelayStation] = message.StringValue(station)
	}
	switch craft := data[28]; {
	case isLetter(craft):
		h.values[message.Spacecraft] = message.CharValue(craft)
	case craft != ' ':
		softFailure(ctx, format, "spacecraft", data[28:29])
	}
	return
}

// EUMETSAT DCP header. Length and address fields at [0:4] and [30:34] do not
// match observed data and are skipped.
//
//	[4:12]  DCP address (hex)
//	[12:25] YYYYDDDHHMMSS
//	[25:28] channel
//	[28:30] spacecraft id
//	[34:37] message length
func parseEumetsat(ctx context.Context, format string, data []byte) (h *dcpHeader, err error) {
	r := &fixedReader{format: format, data: data}
	address := r.hex("address", 4, 12)
	timestamp := r.timestamp("time", 12, 25, layoutYYYYDDD)
	channel := r.decimal("channel", 25, 28)
	length := r.decimal("length", 34, 37)
	if r.err != nil {
		err = r.err
		return
	}

	h = newDCPHeader()
	h.address = address
	h.timestamp = timestamp
	h.length = length
	h.values[message.Channel] = message.IntValue(int64(channel))
	if craft, ok := softInt(ctx, format, "spacecraft", data[28:30]); ok {
		h.values[message.Spacecraft] = message.IntValue(craft)
	}
	return
}

type GOES struct {
	descriptor
}

func NewGOES() Parser {
	return &GOES{descriptor{name: "goes", mediumType: message.MediumGOES, headerLength: dcpHeaderLength, explicitLength: true}}
}

func NewGOESSelfTimed() Parser {
	return &GOES{descriptor{name: "goes-self-timed", mediumType: message.MediumGOESSelfTimed, headerLength: dcpHeaderLength, explicitLength: true}}
}

func NewGOESRandom() Parser {
	return &GOES{descriptor{name: "goes-random", mediumType: message.MediumGOESRandom, headerLength: dcpHeaderLength, explicitLength: true}}
}

// LRIT DCS file records carry the DOMSAT layout
func NewLRIT() Parser {
	return &GOES{descriptor{name: "lrit", mediumType: message.MediumGOES, headerLength: dcpHeaderLength, explicitLength: true}}
}

func (p *GOES) Parse(ctx context.Context, msg *message.Message) (err error) {
	h, err := parseDomsat(ctx, p.name, msg.Data())
	if err != nil {
		return
	}
	err = h.apply(msg, p.headerLength)
	return
}

type Relay struct {
	descriptor
}

func NewRelay() Parser {
	return &Relay{descriptor{name: "relay", mediumType: message.MediumGOES, headerLength: dcpHeaderLength, explicitLength: true}}
}

// Relay layout first, DOMSAT layout as fallback. Both errors are kept when both fail.
func (p *Relay) Parse(ctx context.Context, msg *message.Message) (err error) {
	h, relayErr := parseRelay(ctx, p.name, msg.Data())
	if relayErr != nil {
		logctx.LogEvent(ctx, global.VerbosityData, global.InfoLog,
			"relay header did not parse (%v), trying DOMSAT layout\n", relayErr)

		var domsatErr error
		h, domsatErr = parseDomsat(ctx, p.name, msg.Data())
		if domsatErr != nil {
			err = multierr.Combine(relayErr, domsatErr)
			return
		}
	}
	err = h.apply(msg, p.headerLength)
	return
}

type Eumetsat struct {
	descriptor
}

func NewEumetsat() Parser {
	return &Eumetsat{descriptor{name: "eumetsat", mediumType: message.MediumGOES, headerLength: dcpHeaderLength, explicitLength: true}}
}

func (p *Eumetsat) Parse(ctx context.Context, msg *message.Message) (err error) {
	h, err := parseEumetsat(ctx, p.name, msg.Data())
	if err != nil {
		return
	}
	err = h.apply(msg, p.headerLength)
	return
}
