package framer

import (
	"context"
	"dcsingest/internal/resolver"
	"dcsingest/internal/source"
	"dcsingest/pkg/header"
	"dcsingest/pkg/message"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goesMessage(address string, length int, body string) string {
	return fmt.Sprintf("%s24183120000G45+1NN123E  %05d%s", address, length, body)
}

func openBytes(t *testing.T, data string) *source.Bytes {
	t.Helper()
	src := source.NewBytes("test", []byte(data))
	require.NoError(t, src.Open(context.Background()))
	return src
}

func newFramer(t *testing.T, src source.ByteSource, parser header.Parser, cfg Config, opts ...Option) *Framer {
	t.Helper()
	framer, err := New(src, parser, cfg, opts...)
	require.NoError(t, err)
	return framer
}

// Collects messages until end of source
func drain(t *testing.T, framer *Framer) (messages []*message.Message) {
	t.Helper()
	for range 1000 {
		msg, err := framer.Next(context.Background())
		if errors.Is(err, source.ErrEndOfSource) {
			return
		}
		require.NoError(t, err)
		if msg != nil {
			messages = append(messages, msg)
		}
	}
	t.Fatal("framer never reached end of source")
	return
}

func bodies(messages []*message.Message) (out []string) {
	for _, msg := range messages {
		out = append(out, string(msg.Body()))
	}
	return
}

func TestExplicitLength_BackToBack(t *testing.T) {
	stream := goesMessage("CE1234AB", 10, "0123456789") +
		goesMessage("CE1234AC", 4, "abcd") +
		goesMessage("CE1234AD", 0, "")

	framer := newFramer(t, openBytes(t, stream), header.NewGOES(), Config{})
	messages := drain(t, framer)

	require.Len(t, messages, 3)
	assert.Equal(t, []string{"0123456789", "abcd", ""}, bodies(messages))

	ids := []string{"CE1234AB", "CE1234AC", "CE1234AD"}
	for i, msg := range messages {
		id, _ := msg.MediumID()
		assert.Equal(t, ids[i], id)
		assert.True(t, msg.Sealed())
		assert.Equal(t, 37, msg.HeaderLength())
	}
	assert.Zero(t, framer.Skipped())
}

func TestExplicitLength_Adjustment(t *testing.T) {
	// Header states 8, stream carries 10
	stream := goesMessage("CE1234AB", 8, "0123456789") + goesMessage("CE1234AC", 2, "xyzw")

	framer := newFramer(t, openBytes(t, stream), header.NewGOES(), Config{LengthAdjust: 2})
	messages := drain(t, framer)
	assert.Equal(t, []string{"0123456789", "xyzw"}, bodies(messages))
}

func TestExplicitLength_EndDelimiter(t *testing.T) {
	stream := goesMessage("CE1234AB", 3, "abc") + "\r\n" + goesMessage("CE1234AC", 3, "def") + "\r\n"

	framer := newFramer(t, openBytes(t, stream), header.NewGOES(), Config{EndDelimiter: []byte("\r\n")})
	assert.Equal(t, []string{"abc", "def"}, bodies(drain(t, framer)))
}

func TestSkipAndResync(t *testing.T) {
	stream := "junkSOjunkSOM" + goesMessage("CE1234AB", 5, "hello") + "zzSOM" + goesMessage("CE1234AC", 5, "world")

	framer := newFramer(t, openBytes(t, stream), header.NewGOES(), Config{StartDelimiter: []byte("SOM")})
	messages := drain(t, framer)

	assert.Equal(t, []string{"hello", "world"}, bodies(messages))
	assert.Equal(t, uint64(12), framer.Skipped())
}

func TestInvalidLength_Resyncs(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		middle string
	}{
		{
			name:   "exceeds maximum",
			cfg:    Config{StartDelimiter: []byte("SOM"), MaxMessageLength: 20},
			middle: goesMessage("CE1234AC", 99, "this body is far longer than the configured maximum message length"),
		},
		{
			name:   "negative after adjustment",
			cfg:    Config{StartDelimiter: []byte("SOM"), LengthAdjust: -5},
			middle: goesMessage("CE1234AC", 2, "ab"),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			stream := "SOM" + goesMessage("CE1234AB", 15-test.cfg.LengthAdjust, "first-message!!") +
				"SOM" + test.middle +
				"SOM" + goesMessage("CE1234AD", 15-test.cfg.LengthAdjust, "third-message!!")

			framer := newFramer(t, openBytes(t, stream), header.NewGOES(), test.cfg)
			messages := drain(t, framer)

			assert.Equal(t, []string{"first-message!!", "third-message!!"}, bodies(messages))
			assert.Equal(t, uint64(1), framer.metrics.InvalidLengths.Load())
		})
	}
}

func TestParseFailure_SlidesWithoutStartDelimiter(t *testing.T) {
	stream := "##" + goesMessage("CE1234AB", 3, "abc")

	framer := newFramer(t, openBytes(t, stream), header.NewGOES(), Config{})
	messages := drain(t, framer)

	assert.Equal(t, []string{"abc"}, bodies(messages))
	assert.Equal(t, uint64(2), framer.Skipped())
	assert.Equal(t, uint64(2), framer.metrics.ParseFailures.Load())
}

func TestParity(t *testing.T) {
	// 0xC1 odd parity 'A', 0x41 even parity 'A', '1' odd parity
	body := string([]byte{0xC1, 0x41, '1'})

	tests := []struct {
		mode     ParityMode
		expected []byte
	}{
		{ParityNone, []byte{0xC1, 0x41, '1'}},
		{ParityOdd, []byte{'A', '$', '1'}},
		{ParityEven, []byte{'$', 'A', '$'}},
		{ParityStrip, []byte{'A', 'A', '1'}},
	}

	for _, test := range tests {
		t.Run(test.mode.String(), func(t *testing.T) {
			stream := goesMessage("CE1234AB", 3, body)
			framer := newFramer(t, openBytes(t, stream), header.NewGOES(), Config{Parity: test.mode})
			messages := drain(t, framer)
			require.Len(t, messages, 1)
			assert.Equal(t, test.expected, messages[0].Body())
			assert.Equal(t, goesMessage("CE1234AB", 3, "")[:37], string(messages[0].Header()))
		})
	}
}

func TestParseParity(t *testing.T) {
	for text, expected := range map[string]ParityMode{"": ParityNone, "None": ParityNone, "odd": ParityOdd, "EVEN": ParityEven, "strip": ParityStrip} {
		mode, err := ParseParity(text)
		assert.NoError(t, err, text)
		assert.Equal(t, expected, mode, text)
	}
	_, err := ParseParity("mark")
	assert.Error(t, err)
}

func TestDelimited_EndDelimiter(t *testing.T) {
	stream := "CE1234AB 24183120000 123\r\nBODY1\x03" +
		"garbage without header\x03" +
		"CE1234AC 24183120000\r\nBODY2\x03"

	framer := newFramer(t, openBytes(t, stream), header.NewNOAAPort(), Config{EndDelimiter: []byte{0x03}})
	messages := drain(t, framer)

	assert.Equal(t, []string{"BODY1", "BODY2"}, bodies(messages))
	assert.Equal(t, uint64(1), framer.metrics.ParseFailures.Load())
}

func TestDelimited_StartOnly(t *testing.T) {
	stream := "noise\x01CE1234AB 24183120000\r\nONE\x01CE1234AC 24183120000\r\nTWO"

	framer := newFramer(t, openBytes(t, stream), header.NewNOAAPort(), Config{StartDelimiter: []byte{0x01}})
	messages := drain(t, framer)

	assert.Equal(t, []string{"ONE", "TWO"}, bodies(messages))
	assert.Equal(t, uint64(5), framer.Skipped())
}

func TestNew_ConfigErrors(t *testing.T) {
	src := source.NewBytes("test", nil)

	_, err := New(src, header.NewNOAAPort(), Config{})
	var fatal *source.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.False(t, fatal.Reconnect)

	_, err = New(src, header.NewGOES(), Config{MaxMessageLength: -1})
	assert.True(t, source.IsFatal(err))

	// Whole source and marker modes need no delimiters
	_, err = New(src, header.NewNOAAPort(), Config{OneMessagePerSource: true})
	assert.NoError(t, err)
	_, err = New(src, header.NewShef(), Config{})
	assert.NoError(t, err)
}

// Retrying source fed by the test, reports a timeout when drained
type scriptedSource struct {
	mutex  sync.Mutex
	chunks [][]byte
	done   bool
}

func (src *scriptedSource) push(data string) {
	src.mutex.Lock()
	defer src.mutex.Unlock()
	src.chunks = append(src.chunks, []byte(data))
}

func (src *scriptedSource) finish() {
	src.mutex.Lock()
	defer src.mutex.Unlock()
	src.done = true
}

func (src *scriptedSource) Open(ctx context.Context) error { return nil }
func (src *scriptedSource) Close() error                   { return nil }
func (src *scriptedSource) RetryOnEOF() bool               { return true }
func (src *scriptedSource) CanReconnect() bool             { return true }

func (src *scriptedSource) Read(p []byte) (n int, err error) {
	src.mutex.Lock()
	defer src.mutex.Unlock()
	if len(src.chunks) > 0 {
		n = copy(p, src.chunks[0])
		src.chunks[0] = src.chunks[0][n:]
		if len(src.chunks[0]) == 0 {
			src.chunks = src.chunks[1:]
		}
		return
	}
	if src.done {
		err = source.ErrEndOfSource
		return
	}
	err = source.ErrTimeout
	return
}

func TestStartDelimiter_SplitByTimeout(t *testing.T) {
	src := &scriptedSource{}
	framer := newFramer(t, src, header.NewGOES(), Config{StartDelimiter: []byte("SOM")})

	src.push("SO")
	_, err := framer.Next(context.Background())
	assert.ErrorIs(t, err, source.ErrTimeout)

	src.push("M" + goesMessage("CE1234AB", 5, "hello"))
	src.finish()
	assert.Equal(t, []string{"hello"}, bodies(drain(t, framer)))
	assert.Zero(t, framer.Skipped())
}

func TestEndDelimiter_SplitByTimeout(t *testing.T) {
	src := &scriptedSource{}
	framer := newFramer(t, src, header.NewGOES(), Config{EndDelimiter: []byte("\r\n")})

	src.push(goesMessage("CE1234AB", 3, "abc") + "\r")
	msg, err := framer.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", string(msg.Body()))

	_, err = framer.Next(context.Background())
	assert.ErrorIs(t, err, source.ErrTimeout)

	src.push("\n" + goesMessage("CE1234AC", 3, "def") + "\r\n")
	src.finish()
	assert.Equal(t, []string{"def"}, bodies(drain(t, framer)))
	assert.Zero(t, framer.Skipped())
	assert.Zero(t, framer.metrics.ParseFailures.Load())
}

// Delivers its data together with an error, then reports nothing more
type failingSource struct {
	data []byte
	err  error
}

func (src *failingSource) Open(ctx context.Context) error { return nil }
func (src *failingSource) Close() error                   { return nil }
func (src *failingSource) RetryOnEOF() bool               { return false }
func (src *failingSource) CanReconnect() bool             { return true }

func (src *failingSource) Read(p []byte) (n int, err error) {
	if len(src.data) == 0 {
		err = io.EOF
		return
	}
	n = copy(p, src.data)
	src.data = src.data[n:]
	err = src.err
	return
}

func TestReadError_AfterData(t *testing.T) {
	src := &failingSource{data: []byte(goesMessage("CE1234AB", 5, "hello")), err: errors.New("connection reset")}
	framer := newFramer(t, src, header.NewGOES(), Config{})

	msg, err := framer.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(msg.Body()))

	_, err = framer.Next(context.Background())
	require.True(t, source.IsFatal(err), "expected fatal error but got %v", err)
	assert.ErrorContains(t, err, "connection reset")
}

// Counts reads that returned data, standing in for a per response transport record
type recordedSource struct {
	scriptedSource
	reads int
}

func (src *recordedSource) Read(p []byte) (n int, err error) {
	n, err = src.scriptedSource.Read(p)
	if n > 0 {
		src.reads++
	}
	return
}

func (src *recordedSource) Record() any { return src.reads }

func TestRecord_TakenWithHeader(t *testing.T) {
	src := &recordedSource{}
	src.push(goesMessage("CE1234AB", 3, "abc"))
	src.push("\r\n" + goesMessage("CE1234AC", 3, "def") + "\r\n")
	src.finish()

	framer := newFramer(t, src, header.NewGOES(), Config{EndDelimiter: []byte("\r\n")})
	messages := drain(t, framer)

	require.Len(t, messages, 2)
	assert.Equal(t, 1, messages[0].Record)
	assert.Equal(t, 2, messages[1].Record)
}

func TestShef_RecordLag(t *testing.T) {
	src := &scriptedSource{}
	mock := clock.NewMock()
	mock.Set(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	framer := newFramer(t, src, header.NewShef(), Config{}, WithClock(mock))
	ctx := context.Background()

	first := ".A AAA 20240701 Z DH12/HG 1.0\n"
	second := ".ER BBB 2024XX01 Z DH12/HG 2.0\n"

	src.push("noise\n" + first)
	msg, err := framer.Next(ctx)
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, source.ErrTimeout, "record is held until the next marker")

	src.push(second)
	msg, err = framer.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, first, string(msg.Data()))
	id, _ := msg.MediumID()
	assert.Equal(t, "AAA", id)

	msg, err = framer.Next(ctx)
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, source.ErrTimeout)

	src.finish()
	msg, err = framer.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, second, string(msg.Data()))
	ts, ok := msg.Timestamp()
	assert.True(t, ok)
	assert.Equal(t, mock.Now(), ts, "missing timestamp defaults to framer clock")

	_, err = framer.Next(ctx)
	assert.ErrorIs(t, err, source.ErrEndOfSource)
	assert.Equal(t, uint64(6), framer.Skipped())
}

func TestShef_MarkerMustStartLine(t *testing.T) {
	stream := ".E AAA 20240701 Z DH12/HG 1.0 .A not a marker\n.E BBB 20240701 Z DH12/HG 2.0\n"

	framer := newFramer(t, openBytes(t, stream), header.NewShef(), Config{})
	messages := drain(t, framer)
	require.Len(t, messages, 2)
	assert.Equal(t, ".E AAA 20240701 Z DH12/HG 1.0 .A not a marker\n", string(messages[0].Data()))
}

func TestWholeSource(t *testing.T) {
	content := "ID=300234010123450,TIME=24183120000\nLINE ONE\nLINE TWO\n"

	framer := newFramer(t, openBytes(t, content), header.NewIridium(), Config{OneMessagePerSource: true})
	messages := drain(t, framer)
	require.Len(t, messages, 1)
	assert.Equal(t, "LINE ONE\nLINE TWO\n", string(messages[0].Body()))

	// Inactivity ends a retrying source
	src := &scriptedSource{}
	src.push(content)
	framer = newFramer(t, src, header.NewIridium(), Config{OneMessagePerSource: true})
	msg, err := framer.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, msg)
	_, err = framer.Next(context.Background())
	assert.ErrorIs(t, err, source.ErrEndOfSource)
}

func TestResolution(t *testing.T) {
	lookup := resolver.NewFileLookup([]message.Platform{
		{
			ID:    "site-1",
			Media: []message.TransportMedium{{MediumType: message.MediumGOES, MediumID: "CE1234AB", Channel: 123}},
		},
	})
	stream := goesMessage("CE1234AB", 1, "a") + goesMessage("DD000001", 1, "b")

	framer := newFramer(t, openBytes(t, stream), header.NewGOES(), Config{},
		WithResolver(resolver.New(lookup, false)))

	msg, err := framer.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, msg.Platform)
	assert.Equal(t, "site-1", msg.Platform.ID)
	assert.Equal(t, 123, msg.TransportMedium.Channel)

	msg, err = framer.Next(context.Background())
	assert.True(t, source.IsUnknownPlatform(err))
	require.NotNil(t, msg, "unresolved message is still returned")
	assert.Nil(t, msg.Platform)

	tolerant := newFramer(t, openBytes(t, stream), header.NewGOES(), Config{AllowUnknownPlatform: true},
		WithResolver(resolver.New(lookup, false)))
	messages := drain(t, tolerant)
	assert.Len(t, messages, 2)
	assert.Equal(t, uint64(1), tolerant.metrics.UnknownPlatforms.Load())
}

func TestReadTimeout(t *testing.T) {
	src := &eofSource{}
	framer := newFramer(t, src, header.NewGOES(), Config{ReadTimeout: 40 * time.Millisecond})

	start := time.Now()
	_, err := framer.Next(context.Background())
	assert.ErrorIs(t, err, source.ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Greater(t, src.reads.Load(), int32(1), "partial reads are retried")
}

// Retrying source with nothing to read, Read blocks until interrupted when block is set
type eofSource struct {
	reads     atomic.Int32
	block     bool
	interrupt chan struct{}
	once      sync.Once
}

func (src *eofSource) Open(ctx context.Context) error { return nil }
func (src *eofSource) Close() error                   { return nil }
func (src *eofSource) RetryOnEOF() bool               { return true }
func (src *eofSource) CanReconnect() bool             { return true }

func (src *eofSource) Read(p []byte) (int, error) {
	src.reads.Add(1)
	if src.block {
		<-src.interrupt
	}
	return 0, io.EOF
}

func (src *eofSource) Interrupt() {
	src.once.Do(func() { close(src.interrupt) })
}

func TestAbort(t *testing.T) {
	src := &eofSource{block: true, interrupt: make(chan struct{})}
	framer := newFramer(t, src, header.NewGOES(), Config{})

	result := make(chan error, 1)
	go func() {
		_, err := framer.Next(context.Background())
		result <- err
	}()

	time.Sleep(20 * time.Millisecond)
	framer.Abort()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, source.ErrEndOfSource)
	case <-time.After(2 * time.Second):
		t.Fatal("abort did not unblock the read")
	}

	// Sticky until reset
	_, err := framer.Next(context.Background())
	assert.ErrorIs(t, err, source.ErrEndOfSource)
}

func TestAbort_ContextCancel(t *testing.T) {
	src := &eofSource{block: true, interrupt: make(chan struct{})}
	framer := newFramer(t, src, header.NewGOES(), Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := framer.Next(ctx)
	assert.ErrorIs(t, err, source.ErrEndOfSource)

	framer.Reset()
	assert.False(t, framer.aborted.Load())
}

func TestCollectMetrics(t *testing.T) {
	stream := "x" + goesMessage("CE1234AB", 1, "a")
	framer := newFramer(t, openBytes(t, stream), header.NewGOES(), Config{}, WithName("dcp-feed"))
	drain(t, framer)

	collected := framer.CollectMetrics(time.Minute)
	values := make(map[string]uint64)
	for _, metric := range collected {
		assert.Equal(t, []string{"Framer", "dcp-feed"}, metric.Namespace)
		values[metric.Name] = metric.Value.Raw.(uint64)
	}
	assert.Equal(t, uint64(1), values["messages"])
	assert.Equal(t, uint64(1), values["skipped_bytes"])
	assert.Equal(t, uint64(38), values["message_length_mean"])
	assert.Equal(t, uint64(38), values["message_length_max"])

	// Cleared on read
	cleared := framer.CollectMetrics(time.Minute)
	for _, metric := range cleared {
		assert.Zero(t, metric.Value.Raw.(uint64), metric.Name)
		assert.NotEqual(t, "message_length_max", metric.Name)
	}
}
