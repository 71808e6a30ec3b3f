package header

import (
	"errors"
	"fmt"
)

var (
	ErrHeader    = errors.New("invalid header")
	ErrTooShort  = errors.New("header shorter than expected")
	ErrDuplicate = errors.New("format already registered")
	ErrUnknown   = errors.New("unknown format")
)

// Failure to parse a mandatory header field
type Error struct {
	Format string
	Field  string
	Offset int
	Err    error
}

func (e *Error) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s header: field %s at offset %d: %v", e.Format, e.Field, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s header: field %s: %v", e.Format, e.Field, e.Err)
}

// Matches both ErrHeader and the underlying cause
func (e *Error) Unwrap() []error {
	return []error{ErrHeader, e.Err}
}

func fieldError(format, field string, offset int, err error) *Error {
	return &Error{Format: format, Field: field, Offset: offset, Err: err}
}
