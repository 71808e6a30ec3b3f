package source

import (
	"context"
	"dcsingest/internal/global"
	"dcsingest/internal/logctx"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Raw TCP socket stream (DCP relays, polled loggers)
type TCP struct {
	Address       string
	DialTimeout   time.Duration
	ReadTimeout   time.Duration // zero blocks until data or close
	ReceiveBuffer int           // SO_RCVBUF bytes, zero keeps system default
	Reconnect     bool

	mutex sync.Mutex
	conn  net.Conn
}

func NewTCP(address string, readTimeout time.Duration, reconnect bool) (src *TCP) {
	src = &TCP{
		Address:     address,
		DialTimeout: global.DialTimeout,
		ReadTimeout: readTimeout,
		Reconnect:   reconnect,
	}
	return
}

func (src *TCP) Name() string { return "tcp:" + src.Address }

func (src *TCP) Open(ctx context.Context) (err error) {
	// Using x/sys/unix package for more up-to-date socket option numbers
	dialer := net.Dialer{
		Timeout: src.DialTimeout,
		Control: func(network, address string, c syscall.RawConn) error {
			var err error
			c.Control(func(fd uintptr) {
				err = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
				if err != nil || src.ReceiveBuffer <= 0 {
					return
				}
				err = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, src.ReceiveBuffer)
			})
			return err
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", src.Address)
	if err != nil {
		err = &FatalError{Err: fmt.Errorf("failed to connect to %s: %w", src.Address, err), Reconnect: src.Reconnect}
		return
	}

	src.mutex.Lock()
	src.conn = conn
	src.mutex.Unlock()

	logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog, "connected to %s\n", src.Address)
	return
}

func (src *TCP) Read(p []byte) (n int, err error) {
	src.mutex.Lock()
	conn := src.conn
	src.mutex.Unlock()

	if conn == nil {
		err = &FatalError{Err: fmt.Errorf("connection to %s is not open", src.Address), Reconnect: src.Reconnect}
		return
	}

	if src.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(src.ReadTimeout))
	}

	n, err = conn.Read(p)
	if err == nil || n > 0 {
		err = nil
		return
	}

	if errors.Is(err, os.ErrDeadlineExceeded) {
		err = ErrTimeout
		return
	}
	if errors.Is(err, io.EOF) {
		err = &FatalError{Err: fmt.Errorf("connection closed by %s", src.Address), Reconnect: src.Reconnect}
		return
	}
	err = &FatalError{Err: fmt.Errorf("failed reading from %s: %w", src.Address, err), Reconnect: src.Reconnect}
	return
}

// Forces a blocked Read to return immediately
func (src *TCP) Interrupt() {
	src.mutex.Lock()
	defer src.mutex.Unlock()
	if src.conn != nil {
		src.conn.SetReadDeadline(time.Now())
	}
}

func (src *TCP) Close() (err error) {
	src.mutex.Lock()
	defer src.mutex.Unlock()
	if src.conn == nil {
		return
	}
	err = src.conn.Close()
	src.conn = nil
	return
}

func (src *TCP) RetryOnEOF() bool   { return true }
func (src *TCP) CanReconnect() bool { return src.Reconnect }
