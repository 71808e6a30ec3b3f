package logctx

import (
	"testing"
	"time"
)

func TestEventFormat(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)
	stamp := "[2026-03-14T09:26:53.589793238Z]"

	tests := []struct {
		name   string
		event  Event
		expect string
	}{
		{"all fields", Event{Timestamp: ts, Severity: "Info", Tags: []string{"Daemon", "Source"}, Message: "ready"}, stamp + " [Daemon/Source] [Info] ready"},
		{"no message", Event{Timestamp: ts, Severity: "Info", Tags: []string{"Daemon"}}, stamp + " [Daemon] [Info]"},
		{"no tags", Event{Timestamp: ts, Severity: "Warn", Message: "slow"}, stamp + " [Warn] slow"},
		{"message only", Event{Message: "bare"}, "bare"},
		{"empty", Event{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.event.Format()
			if got != tt.expect {
				t.Errorf("expected %q but got %q", tt.expect, got)
			}
		})
	}
}

func TestPadTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		expected string
	}{
		{"trailing zeros kept", time.Date(2026, 1, 31, 12, 34, 56, 120000000, time.UTC), "2026-01-31T12:34:56.120000000Z"},
		{"small nanoseconds", time.Date(2026, 1, 31, 12, 34, 56, 7, time.UTC), "2026-01-31T12:34:56.000000007Z"},
		{"positive offset", time.Date(2026, 1, 31, 12, 34, 56, 987654321, time.FixedZone("", 2*3600)), "2026-01-31T12:34:56.987654321+02:00"},
		{"negative offset", time.Date(2026, 1, 31, 12, 34, 56, 765, time.FixedZone("", -8*3600)), "2026-01-31T12:34:56.000000765-08:00"},
		{"zero nanoseconds", time.Date(2026, 1, 31, 12, 34, 56, 0, time.UTC), "2026-01-31T12:34:56Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := padTimestamp(tt.input)
			if got != tt.expected {
				t.Errorf("expected %q but got %q", tt.expected, got)
			}
		})
	}
}
