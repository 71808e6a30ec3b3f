package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// In-memory content, typically a downloaded file. Each Open rewinds.
type Bytes struct {
	name   string
	data   []byte
	reader *bytes.Reader
}

func NewBytes(name string, data []byte) (src *Bytes) {
	src = &Bytes{name: name, data: data}
	return
}

func (src *Bytes) Name() string { return src.name }

func (src *Bytes) Open(ctx context.Context) (err error) {
	src.reader = bytes.NewReader(src.data)
	return
}

func (src *Bytes) Read(p []byte) (n int, err error) {
	if src.reader == nil {
		err = fmt.Errorf("source %s is not open", src.name)
		return
	}
	n, err = src.reader.Read(p)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return
}

func (src *Bytes) Close() (err error) {
	src.reader = nil
	return
}

func (src *Bytes) RetryOnEOF() bool   { return false }
func (src *Bytes) CanReconnect() bool { return false }
