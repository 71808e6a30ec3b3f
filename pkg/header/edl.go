package header

import (
	"bytes"
	"context"
	"dcsingest/pkg/message"
	"fmt"
	"strings"
	"time"
)

const layoutEDL string = "2006/01/02 15:04:05"

// Electronic data logger files. Header is every leading line starting with //:
//
//	//STATION BLKM8
//	//DEVICE END TIME 2024/07/01 12:00:00
//	//SOURCE modem
type EDL struct {
	descriptor
}

func NewEDL() Parser {
	return &EDL{descriptor{name: "edl", mediumType: message.MediumEDL, headerLength: VariableLength}}
}

func (p *EDL) Parse(ctx context.Context, msg *message.Message) (err error) {
	data := msg.Data()

	var station, source string
	var endTime time.Time
	headerEnd := 0
	for headerEnd < len(data) && bytes.HasPrefix(data[headerEnd:], []byte("//")) {
		lineEnd := bytes.IndexByte(data[headerEnd:], '\n')
		next := len(data)
		if lineEnd >= 0 {
			next = headerEnd + lineEnd + 1
		}
		line := strings.TrimSpace(string(data[headerEnd+2 : next]))
		headerEnd = next

		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "STATION"):
			station = strings.TrimSpace(line[len("STATION"):])
		case strings.HasPrefix(upper, "DEVICE END TIME"):
			value := strings.TrimSpace(line[len("DEVICE END TIME"):])
			parsed, parseErr := time.ParseInLocation(layoutEDL, value, time.UTC)
			if parseErr != nil {
				softFailure(ctx, p.name, "device end time", []byte(value))
				continue
			}
			endTime = parsed
		case strings.HasPrefix(upper, "SOURCE"):
			source = strings.TrimSpace(line[len("SOURCE"):])
		}
	}

	if station == "" {
		err = fieldError(p.name, "STATION", -1, fmt.Errorf("missing"))
		return
	}

	err = msg.SetHeaderLength(headerEnd)
	if err != nil {
		return
	}
	err = msg.SetMediumID(station)
	if err != nil {
		return
	}
	if !endTime.IsZero() {
		err = msg.SetTimestamp(endTime)
		if err != nil {
			return
		}
		msg.SetMeasurement(message.DeviceEndTime, message.TimeValue(endTime))
	}
	if source != "" {
		msg.SetMeasurement(message.StationSource, message.StringValue(source))
	}
	return
}
