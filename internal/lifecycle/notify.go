// Process lifecycle shared by long running commands (signals, reloads, systemd notification)
package lifecycle

import (
	"context"
	"dcsingest/internal/global"
	"dcsingest/internal/logctx"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Reload start, stamped with the monotonic clock as Type=notify-reload requires
func NotifyReload(ctx context.Context) (err error) {
	var now unix.Timespec
	err = unix.ClockGettime(unix.CLOCK_MONOTONIC, &now)
	if err != nil {
		err = fmt.Errorf("failed to read monotonic clock: %w", err)
		return
	}
	err = notify(ctx, fmt.Sprintf("RELOADING=1\nMONOTONIC_USEC=%d", now.Nano()/1_000))
	return
}

// Startup or reload finished
func NotifyReady(ctx context.Context) (err error) {
	err = notify(ctx, "READY=1")
	return
}

func NotifyStopping(ctx context.Context) (err error) {
	err = notify(ctx, "STOPPING=1")
	return
}

func NotifyStatus(ctx context.Context, msg string) (err error) {
	err = notify(ctx, "STATUS="+msg)
	return
}

// Writes one datagram to $NOTIFY_SOCKET, nothing to do outside systemd
func notify(ctx context.Context, state string) (err error) {
	socket := os.Getenv("NOTIFY_SOCKET")
	if socket == "" {
		return
	}
	if socket[0] == '@' {
		// Abstract namespace
		socket = "\x00" + socket[1:]
	}

	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: socket, Net: "unixgram"})
	if err != nil {
		err = fmt.Errorf("failed to reach notify socket: %w", err)
		return
	}
	defer conn.Close()

	_, err = conn.Write([]byte(state))
	if err != nil {
		err = fmt.Errorf("failed to send state %q: %w", state, err)
		return
	}

	logctx.LogEvent(ctx, global.VerbosityDebug, global.InfoLog, "sent service manager state %q\n", state)
	return
}
