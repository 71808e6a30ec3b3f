package lifecycle

import (
	"context"
	"dcsingest/internal/global"
	"dcsingest/internal/logctx"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type fakeDaemon struct {
	reloads   atomic.Int32
	shutdowns atomic.Int32
	reloadErr error
}

func (daemon *fakeDaemon) Reload(ctx context.Context) error {
	daemon.reloads.Add(1)
	return daemon.reloadErr
}

func (daemon *fakeDaemon) Shutdown() {
	daemon.shutdowns.Add(1)
}

func testContext(t *testing.T) context.Context {
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	return logctx.New(context.Background(), global.NSTest, global.VerbosityNone, done)
}

func listenNotify(t *testing.T) (conn *net.UnixConn) {
	sockPath := filepath.Join(t.TempDir(), "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: sockPath, Net: "unixgram"})
	if err != nil {
		t.Fatalf("failed to listen on notify socket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	t.Setenv("NOTIFY_SOCKET", sockPath)
	return
}

func readNotify(t *testing.T, conn *net.UnixConn) string {
	buf := make([]byte, 256)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("expected notify datagram but got %v", err)
	}
	return string(buf[:n])
}

func TestNotify(t *testing.T) {
	ctx := testContext(t)

	t.Run("no socket", func(t *testing.T) {
		t.Setenv("NOTIFY_SOCKET", "")
		err := NotifyReady(ctx)
		if err != nil {
			t.Fatalf("expected no-op without socket but got %v", err)
		}
	})

	t.Run("missing socket", func(t *testing.T) {
		t.Setenv("NOTIFY_SOCKET", filepath.Join(t.TempDir(), "absent.sock"))
		err := NotifyReady(ctx)
		if err == nil {
			t.Fatalf("expected dial error but got nil")
		}
	})

	t.Run("messages", func(t *testing.T) {
		conn := listenNotify(t)

		tests := []struct {
			name   string
			send   func() error
			prefix string
		}{
			{"ready", func() error { return NotifyReady(ctx) }, "READY=1"},
			{"stopping", func() error { return NotifyStopping(ctx) }, "STOPPING=1"},
			{"status", func() error { return NotifyStatus(ctx, "framing 3 sources") }, "STATUS=framing 3 sources"},
			{"reload", func() error { return NotifyReload(ctx) }, "RELOADING=1\nMONOTONIC_USEC="},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.send()
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				got := readNotify(t, conn)
				if !strings.HasPrefix(got, tt.prefix) {
					t.Fatalf("expected message starting %q but got %q", tt.prefix, got)
				}
			})
		}
	})
}

func TestHandleSignals(t *testing.T) {
	tests := []struct {
		name            string
		signals         []os.Signal
		reloadErr       error
		expectReloads   int32
		expectShutdowns int32
		expectStatus    bool
	}{
		{"terminate", []os.Signal{syscall.SIGTERM}, nil, 0, 1, false},
		{"reload then interrupt", []os.Signal{syscall.SIGHUP, syscall.SIGINT}, nil, 1, 1, false},
		{"failed reload keeps running", []os.Signal{syscall.SIGHUP, syscall.SIGHUP, syscall.SIGQUIT}, fmt.Errorf("bad platforms file"), 2, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testContext(t)
			conn := listenNotify(t)
			daemon := &fakeDaemon{reloadErr: tt.reloadErr}

			sigChan := make(chan os.Signal, len(tt.signals))
			for _, sig := range tt.signals {
				sigChan <- sig
			}

			handleSignals(ctx, daemon, sigChan)

			if daemon.reloads.Load() != tt.expectReloads {
				t.Fatalf("expected %d reloads but got %d", tt.expectReloads, daemon.reloads.Load())
			}
			if daemon.shutdowns.Load() != tt.expectShutdowns {
				t.Fatalf("expected %d shutdowns but got %d", tt.expectShutdowns, daemon.shutdowns.Load())
			}

			var sawStatus bool
			conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
			buf := make([]byte, 256)
			for {
				n, err := conn.Read(buf)
				if err != nil {
					break
				}
				if strings.HasPrefix(string(buf[:n]), "STATUS=") {
					sawStatus = true
				}
			}
			if sawStatus != tt.expectStatus {
				t.Fatalf("expected status notification %v but got %v", tt.expectStatus, sawStatus)
			}
		})
	}
}

func TestHandleSignalsContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext(t))
	cancel()

	daemon := &fakeDaemon{}
	handleSignals(ctx, daemon, make(chan os.Signal))
	if daemon.shutdowns.Load() != 0 {
		t.Fatalf("expected no shutdown after context end but got %d", daemon.shutdowns.Load())
	}
}
