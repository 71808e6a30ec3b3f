package logctx

import (
	"sort"
	"strings"
	"time"
)

// Stringify full event. Only present parts are printed.
// No newline is added, message creator determines newlines.
func (event Event) Format() (text string) {
	var parts []string
	if !event.Timestamp.IsZero() {
		parts = append(parts, "["+padTimestamp(event.Timestamp)+"]")
	}
	if len(event.Tags) > 0 {
		parts = append(parts, "["+strings.Join(event.Tags, "/")+"]")
	}
	if event.Severity != "" {
		parts = append(parts, "["+event.Severity+"]")
	}
	if event.Message != "" {
		parts = append(parts, event.Message)
	}

	text = strings.Join(parts, " ")
	return
}

// Returns all buffered events oldest first, each ending in a newline.
// Buffer is left untouched.
func (logger *Logger) GetFormattedLogLines() (formatted []string) {
	logger.mutex.Lock()
	events := make([]Event, len(logger.queue))
	copy(events, logger.queue)
	logger.mutex.Unlock()

	// Zero timestamps sort last
	sort.SliceStable(events, func(i, j int) bool {
		ti, tj := events[i].Timestamp, events[j].Timestamp
		if ti.IsZero() {
			return false
		}
		if tj.IsZero() {
			return true
		}
		return ti.Before(tj)
	})

	formatted = make([]string, 0, len(events))
	for _, event := range events {
		if event.Message != "" && !strings.HasSuffix(event.Message, "\n") {
			event.Message += "\n"
		}
		formatted = append(formatted, event.Format())
	}
	return
}

// Ensures fixed length strings for timestamps (nanoseconds always 9 digits)
func padTimestamp(timestamp time.Time) (formatted string) {
	if timestamp.Nanosecond() == 0 {
		formatted = timestamp.Format(time.RFC3339)
		return
	}
	formatted = timestamp.Format("2006-01-02T15:04:05.000000000Z07:00")
	return
}
