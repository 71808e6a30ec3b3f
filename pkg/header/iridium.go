package header

import (
	"bytes"
	"context"
	"dcsingest/pkg/message"
	"fmt"
	"strings"
	"time"
)

// Iridium SBD relay header, a single line of comma separated KEY=value pairs:
//
//	ID=300234010123450,TIME=24183120000,STAT=0,MO=12,MT=0,CDR=4711,LAT=38.9,LON=-77.0,RAD=3
type Iridium struct {
	descriptor
}

func NewIridium() Parser {
	return &Iridium{descriptor{name: "iridium", mediumType: message.MediumIridium, headerLength: VariableLength}}
}

var iridiumInts = map[string]string{
	"STAT": message.SessionStatus,
	"MO":   message.MOMSN,
	"MT":   message.MTMSN,
	"CDR":  message.CDRReference,
}

var iridiumFloats = map[string]string{
	"LAT": message.Latitude,
	"LON": message.Longitude,
	"RAD": message.CEPRadius,
}

func (p *Iridium) Parse(ctx context.Context, msg *message.Message) (err error) {
	data := msg.Data()
	end := bytes.IndexByte(data, '\n')
	if end < 0 {
		err = fieldError(p.name, "line terminator", -1, ErrTooShort)
		return
	}

	var imei string
	var timestamp time.Time
	values := make(map[string]message.Value)

	line := strings.TrimRight(string(data[:end]), "\r")
	for _, pair := range strings.Split(line, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found {
			continue
		}
		key = strings.ToUpper(key)

		switch key {
		case "ID":
			if len(value) != 15 || !isDigits(value) {
				err = fieldError(p.name, "ID", -1, fmt.Errorf("expected 15 digit IMEI but got %q", value))
				return
			}
			imei = value
		case "TIME":
			timestamp, err = time.ParseInLocation(layoutYYDDD, value, time.UTC)
			if err != nil {
				err = fieldError(p.name, "TIME", -1, fmt.Errorf("invalid time %q", value))
				return
			}
		default:
			if name, ok := iridiumInts[key]; ok {
				if number, valid := softInt(ctx, p.name, key, []byte(value)); valid {
					values[name] = message.IntValue(number)
				}
			} else if name, ok := iridiumFloats[key]; ok {
				if number, valid := softFloat(ctx, p.name, key, value); valid {
					values[name] = message.FloatValue(number)
				}
			}
		}
	}

	if imei == "" {
		err = fieldError(p.name, "ID", -1, fmt.Errorf("missing"))
		return
	}
	if timestamp.IsZero() {
		err = fieldError(p.name, "TIME", -1, fmt.Errorf("missing"))
		return
	}

	err = msg.SetHeaderLength(end + 1)
	if err != nil {
		return
	}
	err = msg.SetMediumID(imei)
	if err != nil {
		return
	}
	err = msg.SetTimestamp(timestamp)
	if err != nil {
		return
	}
	for key, value := range values {
		msg.SetMeasurement(key, value)
	}
	return
}
