package lrgs

import (
	"context"
	"dcsingest/internal/global"
	"dcsingest/internal/logctx"
	"dcsingest/internal/ratelimit"
	"dcsingest/internal/source"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"
)

const layoutCriteria string = "2006/002 15:04:05"

// Name and flags of the archive record a message came from
type MessageInfo struct {
	Server string
	Name   string
}

// Archive retrieval session exposed as a byte source.
// Each next-message response is buffered and handed to the framer unchanged.
type Client struct {
	Address      string
	Username     string
	DCPAddresses []string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	Limiter      *ratelimit.Limiter

	ctx     context.Context
	mutex   sync.Mutex
	conn    net.Conn
	since   time.Time
	until   time.Time
	pending []byte
	record  *MessageInfo
}

func NewClient(address, username string, limiter *ratelimit.Limiter) (client *Client) {
	client = &Client{
		Address:     address,
		Username:    username,
		DialTimeout: global.DialTimeout,
		ReadTimeout: global.DefaultReadTimeout,
		Limiter:     limiter,
	}
	return
}

func (client *Client) Name() string { return "lrgs:" + client.Address }

// Applied on the next Open
func (client *Client) SetTimeRange(since, until time.Time) {
	client.mutex.Lock()
	client.since = since
	client.until = until
	client.mutex.Unlock()
}

func (client *Client) TimeRange() (since, until time.Time) {
	client.mutex.Lock()
	since, until = client.since, client.until
	client.mutex.Unlock()
	return
}

func (client *Client) Open(ctx context.Context) (err error) {
	client.ctx = ctx
	client.pending = nil
	client.record = nil

	dialer := net.Dialer{Timeout: client.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", client.Address)
	if err != nil {
		err = &source.FatalError{Err: fmt.Errorf("failed to connect to LRGS %s: %w", client.Address, err), Reconnect: true}
		return
	}

	client.mutex.Lock()
	client.conn = conn
	client.mutex.Unlock()

	_, err = client.request(ctx, TypeHello, []byte(client.Username))
	if err != nil {
		client.Close()
		err = source.Fatal(fmt.Errorf("hello rejected: %w", err), true)
		return
	}

	_, err = client.request(ctx, TypeCriteria, client.criteria())
	if err != nil {
		client.Close()
		err = source.Fatal(fmt.Errorf("search criteria rejected: %w", err), true)
		return
	}

	logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog,
		"LRGS session open on %s as %s\n", client.Address, client.Username)
	return
}

func (client *Client) criteria() (body []byte) {
	since, until := client.TimeRange()

	var criteria strings.Builder
	if !since.IsZero() {
		fmt.Fprintf(&criteria, "DRS_SINCE: %s\n", since.UTC().Format(layoutCriteria))
	}
	if !until.IsZero() {
		fmt.Fprintf(&criteria, "DRS_UNTIL: %s\n", until.UTC().Format(layoutCriteria))
	}
	for _, address := range client.DCPAddresses {
		fmt.Fprintf(&criteria, "DCP_ADDRESS: %s\n", address)
	}
	body = []byte(criteria.String())
	return
}

// Sends one request and waits for its response. Server errors are returned as *ServerError.
func (client *Client) request(ctx context.Context, requestType byte, body []byte) (response Frame, err error) {
	err = client.Limiter.Wait(ctx)
	if err != nil {
		return
	}

	client.mutex.Lock()
	conn := client.conn
	client.mutex.Unlock()
	if conn == nil {
		err = fmt.Errorf("session is not open")
		return
	}

	encoded, err := Frame{Type: requestType, Body: body}.Encode()
	if err != nil {
		return
	}
	_, err = conn.Write(encoded)
	if err != nil {
		err = fmt.Errorf("failed to send request %q: %w", requestType, err)
		return
	}

	if client.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(client.ReadTimeout))
	}
	response, err = ReadFrame(conn)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		err = source.ErrTimeout
		return
	} else if err != nil {
		err = fmt.Errorf("failed to read response to %q: %w", requestType, err)
		return
	}

	if serverErr := parseServerError(response.Body); serverErr != nil {
		err = serverErr
		return
	}
	if response.Type != requestType {
		err = fmt.Errorf("%w: expected response type %q but got %q", ErrBadFrame, requestType, response.Type)
		return
	}
	return
}

func (client *Client) Read(p []byte) (n int, err error) {
	if len(client.pending) == 0 {
		err = client.fetch()
		if err != nil {
			return
		}
	}

	n = copy(p, client.pending)
	client.pending = client.pending[n:]
	return
}

// Retrieves the next archived message into the pending buffer
func (client *Client) fetch() (err error) {
	ctx := client.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	response, err := client.request(ctx, TypeNextMessage, nil)
	var serverErr *ServerError
	switch {
	case err == nil:
	case errors.As(err, &serverErr) && serverErr.Code == CodeUntilReached:
		err = source.ErrEndOfSource
		return
	case errors.As(err, &serverErr) && serverErr.Code == CodeMessageTimeout:
		err = source.ErrTimeout
		return
	case errors.Is(err, source.ErrTimeout):
		return
	default:
		err = source.Fatal(err, true)
		return
	}

	if len(response.Body) < nameFieldLength {
		err = source.Fatal(fmt.Errorf("%w: message response shorter than name field", ErrBadFrame), true)
		return
	}
	client.record = &MessageInfo{
		Server: client.Address,
		Name:   strings.TrimRight(string(response.Body[:nameFieldLength]), " \x00"),
	}
	client.pending = response.Body[nameFieldLength:]
	return
}

// Archive record of the most recently fetched message
func (client *Client) Record() any {
	if client.record == nil {
		return nil
	}
	return *client.record
}

func (client *Client) Interrupt() {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	if client.conn != nil {
		client.conn.SetDeadline(time.Now())
	}
}

// Sends goodbye (best effort) and disconnects
func (client *Client) Close() (err error) {
	client.mutex.Lock()
	conn := client.conn
	client.conn = nil
	client.mutex.Unlock()

	if conn == nil {
		return
	}

	encoded, _ := Frame{Type: TypeGoodbye}.Encode()
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	conn.Write(encoded)

	err = conn.Close()
	client.pending = nil
	return
}

func (client *Client) RetryOnEOF() bool   { return false }
func (client *Client) CanReconnect() bool { return true }

var _ source.ByteSource = (*Client)(nil)
var _ source.TimeRanged = (*Client)(nil)
