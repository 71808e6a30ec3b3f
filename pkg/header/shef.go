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

// SHEF record types that start a new message
var shefMarkers = [][]byte{
	[]byte(".A "),
	[]byte(".AR "),
	[]byte(".E "),
	[]byte(".ER "),
}

// Standard Hydrometeorological Exchange Format records.
// Header is the record marker, station id and observation date:
//
//	.A BLKM8 20240701 Z DH1200/HG 12.3
type Shef struct {
	descriptor
}

func NewShef() Parser {
	return &Shef{descriptor{name: "shef", mediumType: message.MediumShef, headerLength: VariableLength}}
}

func (p *Shef) StartMarkers() (markers [][]byte) {
	for _, marker := range shefMarkers {
		markers = append(markers, append([]byte(nil), marker...))
	}
	return
}

type shefToken struct {
	text string
	end  int // offset just past the token
}

// Whitespace separated tokens of the first line with their end offsets
func shefTokens(data []byte) (tokens []shefToken) {
	lineEnd := bytes.IndexByte(data, '\n')
	if lineEnd < 0 {
		lineEnd = len(data)
	}

	start := -1
	for i := 0; i <= lineEnd; i++ {
		space := i == lineEnd || data[i] == ' ' || data[i] == '\t' || data[i] == '\r'
		if space && start >= 0 {
			tokens = append(tokens, shefToken{text: string(data[start:i]), end: i})
			start = -1
		} else if !space && start < 0 {
			start = i
		}
	}
	return
}

func (p *Shef) Parse(ctx context.Context, msg *message.Message) (err error) {
	tokens := shefTokens(msg.Data())
	if len(tokens) < 2 {
		err = fieldError(p.name, "station", -1, ErrTooShort)
		return
	}

	recordType := tokens[0].text
	switch recordType {
	case ".A", ".AR", ".E", ".ER":
	default:
		err = fieldError(p.name, "record type", 0, fmt.Errorf("unknown marker %q", recordType))
		return
	}

	station := tokens[1].text
	headerEnd := tokens[1].end

	var timestamp time.Time
	if len(tokens) > 2 {
		date, valid := shefDate(tokens[2].text, time.Now().UTC())
		if valid {
			headerEnd = tokens[2].end
			timestamp = date.Add(shefHour(ctx, p.name, tokens[3:]))
		} else {
			softFailure(ctx, p.name, "date", []byte(tokens[2].text))
		}
	}

	err = msg.SetHeaderLength(headerEnd)
	if err != nil {
		return
	}
	err = msg.SetMediumID(station)
	if err != nil {
		return
	}
	if !timestamp.IsZero() {
		err = msg.SetTimestamp(timestamp)
		if err != nil {
			return
		}
	}
	msg.SetMeasurement(message.ShefType, message.StringValue(strings.TrimPrefix(recordType, ".")))
	return
}

// Accepts YYYYMMDD, YYMMDD or MMDD (year taken from now)
func shefDate(text string, now time.Time) (date time.Time, ok bool) {
	if !isDigits(text) {
		return
	}

	var err error
	switch len(text) {
	case 8:
		date, err = time.ParseInLocation("20060102", text, time.UTC)
	case 6:
		date, err = time.ParseInLocation("060102", text, time.UTC)
	case 4:
		date, err = time.ParseInLocation("20060102", strconv.Itoa(now.Year())+text, time.UTC)
	default:
		return
	}
	ok = err == nil
	return
}

// Offset from the DH (hour/minute) data string if present
func shefHour(ctx context.Context, format string, tokens []shefToken) (offset time.Duration) {
	for _, token := range tokens {
		for _, part := range strings.Split(token.text, "/") {
			if !strings.HasPrefix(part, "DH") {
				continue
			}
			digits := part[2:]
			if !isDigits(digits) || (len(digits) != 2 && len(digits) != 4) {
				softFailure(ctx, format, "DH", []byte(part))
				return
			}
			hours, _ := strconv.Atoi(digits[:2])
			offset = time.Duration(hours) * time.Hour
			if len(digits) == 4 {
				minutes, _ := strconv.Atoi(digits[2:])
				offset += time.Duration(minutes) * time.Minute
			}
			return
		}
	}
	return
}
