// LRGS DCP data service client.
// Requests and responses are framed as FAF0 + type + 5 digit body length + body.
package lrgs

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	syncPattern     string = "FAF0"
	frameHeaderSize int    = 10
	maxBodyLength   int    = 99999
	nameFieldLength int    = 40
)

// Request and response types
const (
	TypeHello       byte = 'a'
	TypeGoodbye     byte = 'b'
	TypeNextMessage byte = 'f'
	TypeCriteria    byte = 'g'
)

// Server error codes with special meaning
const (
	CodeUntilReached   int = 25
	CodeMessageTimeout int = 55
)

var ErrBadFrame = errors.New("malformed frame")

type Frame struct {
	Type byte
	Body []byte
}

func (frame Frame) Encode() (encoded []byte, err error) {
	if len(frame.Body) > maxBodyLength {
		err = fmt.Errorf("body of %d bytes exceeds frame limit", len(frame.Body))
		return
	}
	encoded = make([]byte, 0, frameHeaderSize+len(frame.Body))
	encoded = append(encoded, syncPattern...)
	encoded = append(encoded, frame.Type)
	encoded = append(encoded, fmt.Sprintf("%05d", len(frame.Body))...)
	encoded = append(encoded, frame.Body...)
	return
}

func ReadFrame(reader io.Reader) (frame Frame, err error) {
	header := make([]byte, frameHeaderSize)
	_, err = io.ReadFull(reader, header)
	if err != nil {
		return
	}
	if string(header[:4]) != syncPattern {
		err = fmt.Errorf("%w: bad sync %q", ErrBadFrame, header[:4])
		return
	}

	length, err := strconv.Atoi(string(header[5:10]))
	if err != nil || length < 0 {
		err = fmt.Errorf("%w: bad length %q", ErrBadFrame, header[5:10])
		return
	}

	frame.Type = header[4]
	frame.Body = make([]byte, length)
	_, err = io.ReadFull(reader, frame.Body)
	if err != nil {
		err = fmt.Errorf("failed reading %d byte frame body: %w", length, err)
		return
	}
	return
}

// Error response: ?code,errno,text
type ServerError struct {
	Code  int
	Errno int
	Text  string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d (errno %d): %s", e.Code, e.Errno, e.Text)
}

// Returns nil when body is not an error response
func parseServerError(body []byte) (serverErr *ServerError) {
	if len(body) == 0 || body[0] != '?' {
		return
	}
	serverErr = &ServerError{Code: -1}

	parts := strings.SplitN(string(body[1:]), ",", 3)
	if code, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
		serverErr.Code = code
	}
	if len(parts) > 1 {
		if errno, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
			serverErr.Errno = errno
		}
	}
	if len(parts) > 2 {
		serverErr.Text = strings.TrimSpace(parts[2])
	}
	return
}
