package source

import (
	"errors"
	"fmt"
)

var (
	// Clean termination (file end, archive until time reached)
	ErrEndOfSource = errors.New("end of source")

	// No data within the configured window, caller may keep polling
	ErrTimeout = errors.New("timed out waiting for data")
)

// Message parsed but no transport medium matched. Not fatal.
type UnknownPlatformError struct {
	MediumType string
	MediumID   string
	Channel    int
}

func (e *UnknownPlatformError) Error() string {
	if e.Channel > 0 {
		return fmt.Sprintf("no platform for %s medium %q on channel %d", e.MediumType, e.MediumID, e.Channel)
	}
	return fmt.Sprintf("no platform for %s medium %q", e.MediumType, e.MediumID)
}

// Hard I/O or configuration failure. Source must be closed, Reconnect tells whether a
// fresh Open is worth trying.
type FatalError struct {
	Err       error
	Reconnect bool
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal source error: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Wraps err as fatal unless it already carries a category
func Fatal(err error, reconnect bool) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrEndOfSource) || errors.Is(err, ErrTimeout) {
		return err
	}
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return err
	}
	return &FatalError{Err: err, Reconnect: reconnect}
}

func IsUnknownPlatform(err error) bool {
	var unknown *UnknownPlatformError
	return errors.As(err, &unknown)
}

func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
