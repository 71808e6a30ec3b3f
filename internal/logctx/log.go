package logctx

import (
	"context"
	"dcsingest/internal/global"
	"fmt"
	"strings"
	"time"
)

// Records an event in the context logger.
// Message is only formatted when vars are supplied and the message contains a verb.
func LogEvent(ctx context.Context, eventLevel int, severity string, message string, vars ...any) {
	logger := GetLogger(ctx)
	if logger == nil {
		return
	}

	text := message
	if len(vars) > 0 && strings.Contains(message, "%") {
		text = fmt.Sprintf(message, vars...)
	}

	logger.record(eventLevel, severity, GetTagList(ctx), text)
}

func (logger *Logger) record(eventLevel int, severity string, tags []string, text string) {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()

	// Errors are always kept regardless of verbosity
	if eventLevel > logger.PrintLevel && severity != global.ErrorLog {
		return
	}

	logger.queue = append(logger.queue, Event{
		Timestamp: time.Now(),
		Severity:  severity,
		Tags:      tags,
		Message:   text,
	})
	logger.cond.Signal()
}
