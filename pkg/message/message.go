// Framed telemetry message produced by the stream framer
package message

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrSealed = errors.New("message is sealed")

// Owned byte buffer split into header and body regions plus parsed metadata.
// Not safe for concurrent mutation.
type Message struct {
	ID uuid.UUID

	data         []byte
	headerLength int

	timestamp    time.Time
	hasTimestamp bool
	mediumID     string
	hasMediumID  bool

	measurements map[string]Value

	// Set by the resolver, not owned by the message
	Platform        *Platform
	TransportMedium *TransportMedium

	// Lower level transport record passed through untouched (e.g. LRGS message name)
	Record any

	sealed bool
}

// Creates message owning a copy of data
func New(data []byte) (msg *Message) {
	msg = &Message{
		ID:           uuid.New(),
		data:         append([]byte(nil), data...),
		measurements: make(map[string]Value),
	}
	return
}

func (msg *Message) Data() []byte {
	return msg.data
}

func (msg *Message) Len() int {
	return len(msg.data)
}

func (msg *Message) HeaderLength() int {
	return msg.headerLength
}

func (msg *Message) SetHeaderLength(length int) (err error) {
	if length < 0 || length > len(msg.data) {
		err = fmt.Errorf("header length %d outside of message length %d", length, len(msg.data))
		return
	}
	msg.headerLength = length
	return
}

func (msg *Message) Header() []byte {
	return msg.data[:msg.headerLength]
}

func (msg *Message) Body() []byte {
	return msg.data[msg.headerLength:]
}

// Appends raw bytes to the end of the buffer
func (msg *Message) Append(data []byte) {
	msg.data = append(msg.data, data...)
}

// Replaces the body region, header is kept
func (msg *Message) SetBody(body []byte) {
	msg.data = append(msg.data[:msg.headerLength:msg.headerLength], body...)
}

func (msg *Message) MediumID() (id string, ok bool) {
	id, ok = msg.mediumID, msg.hasMediumID
	return
}

func (msg *Message) SetMediumID(id string) (err error) {
	if msg.sealed {
		err = ErrSealed
		return
	}
	msg.mediumID = id
	msg.hasMediumID = true
	return
}

func (msg *Message) Timestamp() (ts time.Time, ok bool) {
	ts, ok = msg.timestamp, msg.hasTimestamp
	return
}

func (msg *Message) SetTimestamp(ts time.Time) (err error) {
	if msg.sealed {
		err = ErrSealed
		return
	}
	msg.timestamp = ts
	msg.hasTimestamp = true
	return
}

// Prevents further changes to medium id and timestamp
func (msg *Message) Seal() {
	msg.sealed = true
}

func (msg *Message) Sealed() bool {
	return msg.sealed
}

func (msg *Message) SetMeasurement(key string, value Value) {
	if msg.measurements == nil {
		msg.measurements = make(map[string]Value)
	}
	msg.measurements[key] = value
}

func (msg *Message) Measurement(key string) (value Value, ok bool) {
	value, ok = msg.measurements[key]
	return
}

func (msg *Message) DeleteMeasurement(key string) {
	delete(msg.measurements, key)
}

// Copy of all measurements
func (msg *Message) Measurements() (all map[string]Value) {
	all = make(map[string]Value, len(msg.measurements))
	for key, value := range msg.measurements {
		all[key] = value
	}
	return
}

// Convenience accessor for integer measurements
func (msg *Message) IntMeasurement(key string) (number int64, ok bool) {
	value, present := msg.measurements[key]
	if !present {
		return
	}
	number, ok = value.Int()
	return
}
