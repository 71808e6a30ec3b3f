// Byte sources feeding the stream framer
package source

import (
	"context"
	"time"
)

// Transport independent byte stream.
// Read returning io.EOF means no data is currently available; sources with RetryOnEOF
// may produce more later, others have reached their end.
type ByteSource interface {
	Open(ctx context.Context) (err error)
	Read(p []byte) (n int, err error)
	Close() (err error)

	// Short/EOF reads should be retried with backoff (sockets, followed files)
	RetryOnEOF() bool

	// A fresh Open after a fatal error may succeed
	CanReconnect() bool
}

// Unblocks an in-flight Read
type Interrupter interface {
	Interrupt()
}

// Blocks until the source signals new data instead of sleeping between retries
type Waiter interface {
	WaitForData(ctx context.Context, timeout time.Duration) (err error)
}

// Sources able to restrict retrieval to a time window (archive protocols)
type TimeRanged interface {
	SetTimeRange(since, until time.Time)
}

// Sources that already carry a lower level record for the current message
type Recorder interface {
	Record() any
}

// Source identity used for logging and metric namespaces
type Named interface {
	Name() string
}

// Best effort display name
func NameOf(src ByteSource) (name string) {
	if named, ok := src.(Named); ok {
		name = named.Name()
		return
	}
	name = "unnamed"
	return
}
