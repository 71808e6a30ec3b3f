package output

import (
	"bytes"
	"context"
	"dcsingest/internal/global"
	"dcsingest/internal/queue"
	"dcsingest/pkg/message"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	server "github.com/elastic/go-lumber/server/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var july1 = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func framed(t *testing.T, id string, ts time.Time, body string) *message.Message {
	t.Helper()
	msg := message.New([]byte("HDR" + body))
	require.NoError(t, msg.SetHeaderLength(3))
	require.NoError(t, msg.SetMediumID(id))
	require.NoError(t, msg.SetTimestamp(ts))
	msg.SetMeasurement(message.Channel, message.IntValue(123))
	msg.SetMeasurement(message.FailureCode, message.CharValue('G'))
	msg.Seal()
	return msg
}

func TestFormatText(t *testing.T) {
	msg := framed(t, "CE1234AB", july1, "12.5\n")
	msg.Platform = &message.Platform{ID: "site-1"}
	msg.TransportMedium = &message.TransportMedium{MediumType: message.MediumGOESSelfTimed, MediumID: "CE1234AB", Channel: 123}

	line := FormatText(msg)
	assert.Equal(t,
		`2024-07-01T12:00:00Z CE1234AB platform=site-1 medium=goes-self-timed Channel=123 FailureCode=G len=5 "12.5\n"`,
		line)
}

func TestFields(t *testing.T) {
	msg := framed(t, "CE1234AB", july1, "body")

	fields := Fields(msg)
	assert.Equal(t, "body", fields["message"])
	assert.Equal(t, "HDR", fields["header"])
	assert.Equal(t, july1, fields["@timestamp"])
	measurements := fields["measurements"].(map[string]any)
	assert.Equal(t, int64(123), measurements[message.Channel])
	assert.Equal(t, "G", measurements[message.FailureCode])
	_, hasPlatform := fields["platform"]
	assert.False(t, hasPlatform)
}

func TestTextWriter_OrdersBatch(t *testing.T) {
	var buffer bytes.Buffer
	writer := NewStream(&buffer)
	ctx := context.Background()

	_, err := writer.Write(ctx, framed(t, "LATER", july1.Add(time.Hour), "b"))
	require.NoError(t, err)
	_, err = writer.Write(ctx, framed(t, "EARLIER", july1, "a"))
	require.NoError(t, err)
	assert.Zero(t, buffer.Len(), "batched until flush")

	flushed, err := writer.Flush()
	require.NoError(t, err)
	assert.Equal(t, 2, flushed)

	lines := strings.Split(strings.TrimSpace(buffer.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "EARLIER")
	assert.Contains(t, lines[1], "LATER")
}

func TestTextWriter_FlushesFullBatch(t *testing.T) {
	var buffer bytes.Buffer
	writer := NewStream(&buffer)

	var written int
	for i := 0; i < batchSize; i++ {
		n, err := writer.Write(context.Background(), framed(t, "ID", july1, "x"))
		require.NoError(t, err)
		written += n
	}
	assert.Equal(t, batchSize, written)
	assert.Equal(t, batchSize, strings.Count(buffer.String(), "\n"))
}

func TestNewFile(t *testing.T) {
	writer, err := NewFile("")
	assert.NoError(t, err)
	assert.Nil(t, writer)

	path := filepath.Join(t.TempDir(), "messages.log")
	writer, err = NewFile(path)
	require.NoError(t, err)
	_, err = writer.Write(context.Background(), framed(t, "CE1234AB", july1, "data"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `CE1234AB`)
	assert.Contains(t, string(content), `"data"`)
}

type syncBuffer struct {
	mutex  sync.Mutex
	buffer bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buffer.Write(p)
}

func (b *syncBuffer) String() string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buffer.String()
}

func TestWorker_DrainsOnShutdown(t *testing.T) {
	inbox, err := queue.New([]string{global.NSTest}, 16, 2, 64)
	require.NoError(t, err)

	var out syncBuffer
	worker := NewWorker([]string{global.NSTest}, inbox, NewStream(&out), nil)

	for i := 0; i < 5; i++ {
		require.True(t, inbox.Push(framed(t, "CE1234AB", july1.Add(time.Duration(i)*time.Second), "m")))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "\n") == 5
	}, 2*time.Second, 10*time.Millisecond)

	inbox.Push(framed(t, "LAST", july1, "m"))
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Contains(t, out.String(), "LAST")
	assert.Zero(t, inbox.Len())

	collected := worker.CollectMetrics(time.Minute)
	require.Len(t, collected, 3)
	assert.Equal(t, uint64(6), collected[0].Value.Raw)
}

func TestBeats(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv, err := server.NewWithListener(listener)
	require.NoError(t, err)
	defer srv.Close()

	beats, err := NewBeats(listener.Addr().String())
	require.NoError(t, err)
	defer beats.Close()

	received := make(chan []any, 1)
	go func() {
		batch := <-srv.ReceiveChan()
		batch.ACK()
		received <- batch.Events
	}()

	sent, err := beats.Write(context.Background(), framed(t, "CE1234AB", july1, "payload"))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	select {
	case events := <-received:
		require.Len(t, events, 1)
		event := events[0].(map[string]any)
		assert.Equal(t, "payload", event["message"])
		medium := event["medium"].(map[string]any)
		assert.Equal(t, "CE1234AB", medium["id"])
	case <-time.After(3 * time.Second):
		t.Fatal("beats server received nothing")
	}

	none, err := NewBeats("")
	assert.NoError(t, err)
	assert.Nil(t, none)
}
