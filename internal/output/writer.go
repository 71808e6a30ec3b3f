package output

import (
	"context"
	"dcsingest/pkg/message"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

const batchSize int = 20

// Destination for framed messages
type Sink interface {
	Write(ctx context.Context, msg *message.Message) (written int, err error)
	Flush() (flushed int, err error)
	Close() (err error)
}

type line struct {
	timestamp time.Time
	text      string
}

// Text lines to a file or stream, buffered in small batches and ordered by message time
type TextWriter struct {
	sink   io.Writer
	closer io.Closer
	batch  []line
}

// Appends to path, creating it when missing. Returns nil nil if no path.
func NewFile(path string) (writer *TextWriter, err error) {
	if path == "" {
		return
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		err = fmt.Errorf("failed to open output file: %w", err)
		return
	}
	writer = &TextWriter{sink: file, closer: file}
	return
}

// Writer that is never closed by the sink, e.g. stdout
func NewStream(stream io.Writer) (writer *TextWriter) {
	writer = &TextWriter{sink: stream}
	return
}

func NewStdout() *TextWriter {
	return NewStream(os.Stdout)
}

func (writer *TextWriter) Write(ctx context.Context, msg *message.Message) (written int, err error) {
	writer.batch = append(writer.batch, line{
		timestamp: timestampOf(msg),
		text:      FormatText(msg) + "\n",
	})

	if len(writer.batch) >= batchSize {
		written, err = writer.Flush()
	}
	return
}

func (writer *TextWriter) Flush() (flushed int, err error) {
	if len(writer.batch) == 0 {
		return
	}

	sort.SliceStable(writer.batch, func(i, j int) bool {
		return writer.batch[i].timestamp.Before(writer.batch[j].timestamp)
	})

	for _, entry := range writer.batch {
		data := []byte(entry.text)
		for len(data) > 0 {
			var n int
			n, err = writer.sink.Write(data)
			if err != nil {
				writer.batch = writer.batch[flushed:]
				return
			}
			data = data[n:]
		}
		flushed++
	}
	writer.batch = writer.batch[:0]
	return
}

func (writer *TextWriter) Close() (err error) {
	_, err = writer.Flush()
	if writer.closer != nil {
		closeErr := writer.closer.Close()
		if err == nil {
			err = closeErr
		}
	}
	return
}
