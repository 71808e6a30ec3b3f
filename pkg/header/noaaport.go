package header

import (
	"bytes"
	"context"
	"dcsingest/pkg/message"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NOAAPORT DCP products. Header is a single line terminated by CR LF:
//
//	ADDRESS YYDDDHHMMSS [CHANNEL]
type NOAAPort struct {
	descriptor
}

func NewNOAAPort() Parser {
	return &NOAAPort{descriptor{name: "noaaport", mediumType: message.MediumGOES, headerLength: VariableLength}}
}

func (p *NOAAPort) Parse(ctx context.Context, msg *message.Message) (err error) {
	data := msg.Data()
	end := bytes.Index(data, []byte("\r\n"))
	if end < 0 {
		err = fieldError(p.name, "line terminator", -1, ErrTooShort)
		return
	}

	fields := strings.Fields(string(data[:end]))
	if len(fields) < 2 {
		err = fieldError(p.name, "header", 0, fmt.Errorf("expected at least 2 fields but got %d", len(fields)))
		return
	}

	address := fields[0]
	if len(address) != 8 {
		err = fieldError(p.name, "address", 0, fmt.Errorf("expected 8 characters but got %q", address))
		return
	}
	_, err = strconv.ParseUint(address, 16, 64)
	if err != nil {
		err = fieldError(p.name, "address", 0, fmt.Errorf("invalid hex %q", address))
		return
	}

	timestamp, err := time.ParseInLocation(layoutYYDDD, fields[1], time.UTC)
	if err != nil {
		err = fieldError(p.name, "time", -1, fmt.Errorf("invalid time %q", fields[1]))
		return
	}

	err = msg.SetHeaderLength(end + 2)
	if err != nil {
		return
	}
	err = msg.SetMediumID(strings.ToUpper(address))
	if err != nil {
		return
	}
	err = msg.SetTimestamp(timestamp)
	if err != nil {
		return
	}

	if len(fields) > 2 {
		channel, ok := softInt(ctx, p.name, "channel", []byte(fields[2]))
		if ok {
			msg.SetMeasurement(message.Channel, message.IntValue(channel))
		}
	}
	return
}
