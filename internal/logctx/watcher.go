package logctx

import (
	"dcsingest/internal/global"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	dedupWindow      = 5 * time.Second
	dedupMinRepeats  = 10
	suppressCooldown = 1 * time.Minute
)

// Hold main thread exit until watchers have drained the buffer
func (logger *Logger) Wait() {
	logger.wg.Wait()
}

// Broadcasts to any watcher blocked waiting for events
func (logger *Logger) Wake() {
	logger.mutex.Lock()
	logger.cond.Broadcast()
	logger.mutex.Unlock()
}

// Starts a go routine that drains events to output.
// Exits once Done is closed and the buffer is empty.
func StartWatcher(logger *Logger, output io.Writer) {
	logger.wg.Add(1)

	go func() {
		defer logger.wg.Done()

		var dedup dedupState
		for {
			event, ok := logger.next()
			if !ok {
				return
			}
			if dedup.suppress(event, output) {
				continue
			}
			fmt.Fprint(output, event.Format())
		}
	}()
}

// Blocks until an event is available or logger is done with an empty buffer
func (logger *Logger) next() (event Event, ok bool) {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()

	for len(logger.queue) == 0 {
		select {
		case <-logger.Done:
			return
		default:
		}
		logger.cond.Wait()
	}

	event = logger.queue[0]
	logger.queue = logger.queue[1:]
	ok = true
	return
}

// Repeated identical messages inside the window are counted instead of printed.
// A summary line is written at most once per cooldown.
func (dedup *dedupState) suppress(event Event, output io.Writer) (skip bool) {
	now := time.Now()

	if event.Message == "" || event.Message != dedup.lastMsg || now.Sub(event.Timestamp) > dedupWindow {
		dedup.lastMsg = event.Message
		dedup.repeatCount = 1
		return
	}

	dedup.repeatCount++
	if dedup.repeatCount >= dedupMinRepeats && now.Sub(dedup.lastSuppressTime) >= suppressCooldown {
		fmt.Fprintf(output, "[%s] [%s] [%s] Suppressed %d repeated messages: %s\n",
			padTimestamp(event.Timestamp), strings.Join(event.Tags, "/"), global.InfoLog,
			dedup.repeatCount, strings.TrimSuffix(dedup.lastMsg, "\n"))
		dedup.lastSuppressTime = now
		dedup.repeatCount = 0
	}
	skip = true
	return
}
