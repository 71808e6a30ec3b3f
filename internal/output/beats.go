package output

import (
	"context"
	"dcsingest/internal/global"
	"dcsingest/pkg/message"
	"fmt"
	"os"
	"time"

	lumberjack "github.com/elastic/go-lumber/client/v2"
)

// Lumberjack v2 (beats) sink
type Beats struct {
	sink *lumberjack.SyncClient
}

// Connects to a beats endpoint. Returns nil nil if no endpoint.
func NewBeats(endpoint string) (beats *Beats, err error) {
	if endpoint == "" {
		return
	}

	client, err := lumberjack.SyncDial(endpoint,
		lumberjack.CompressionLevel(0),
		lumberjack.Timeout(3*time.Second),
	)
	if err != nil {
		err = fmt.Errorf("failed connection to beats server: %w", err)
		return
	}
	beats = &Beats{sink: client}
	return
}

func (beats *Beats) Write(ctx context.Context, msg *message.Message) (written int, err error) {
	fields := Fields(msg)
	fields["agent"] = map[string]any{
		"program":  global.ProgBaseName,
		"version":  global.ProgVersion,
		"type":     "filebeat",
		"hostname": global.Hostname,
		"pid":      os.Getpid(),
	}

	written, err = beats.sink.Send([]any{fields})
	if err != nil {
		err = fmt.Errorf("failed to send message to beats server: %w", err)
	}
	return
}

// Events are sent synchronously
func (beats *Beats) Flush() (flushed int, err error) {
	return
}

func (beats *Beats) Close() (err error) {
	if beats.sink != nil {
		err = beats.sink.Close()
	}
	return
}
