package header

import (
	"context"
	"dcsingest/internal/global"
	"dcsingest/internal/logctx"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layouts for the date fields of the fixed width formats (day of year based)
const (
	layoutYYDDD   string = "06002150405"
	layoutYYYYDDD string = "2006002150405"
)

// Cursor over a fixed width header. The first failing mandatory field is kept in err.
type fixedReader struct {
	format string
	data   []byte
	err    error
}

func (r *fixedReader) raw(field string, start, end int) (value string, ok bool) {
	if r.err != nil {
		return
	}
	if end > len(r.data) {
		r.err = fieldError(r.format, field, start, ErrTooShort)
		return
	}
	value, ok = string(r.data[start:end]), true
	return
}

func (r *fixedReader) hex(field string, start, end int) (value string) {
	text, ok := r.raw(field, start, end)
	if !ok {
		return
	}
	if _, err := strconv.ParseUint(text, 16, 64); err != nil {
		r.err = fieldError(r.format, field, start, fmt.Errorf("invalid hex %q", text))
		return
	}
	value = strings.ToUpper(text)
	return
}

// Space padded decimal
func (r *fixedReader) decimal(field string, start, end int) (value int) {
	text, ok := r.raw(field, start, end)
	if !ok {
		return
	}
	value, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		r.err = fieldError(r.format, field, start, fmt.Errorf("non-numeric %q", text))
		return
	}
	return
}

func (r *fixedReader) timestamp(field string, start, end int, layout string) (value time.Time) {
	text, ok := r.raw(field, start, end)
	if !ok {
		return
	}
	value, err := time.ParseInLocation(layout, text, time.UTC)
	if err != nil {
		r.err = fieldError(r.format, field, start, fmt.Errorf("invalid time %q", text))
		return
	}
	return
}

func (r *fixedReader) text(field string, start, end int) (value string) {
	text, ok := r.raw(field, start, end)
	if !ok {
		return
	}
	value = strings.TrimSpace(text)
	return
}

// Optional field failures are logged and the field omitted
func softFailure(ctx context.Context, format, field string, raw []byte) {
	logctx.LogEvent(ctx, global.VerbosityProgress, global.WarnLog,
		"%s header: ignoring invalid optional field %s (%q)\n", format, field, raw)
}

// Decimal with optional leading sign, blank means absent
func softInt(ctx context.Context, format, field string, raw []byte) (value int64, ok bool) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return
	}
	value, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		softFailure(ctx, format, field, raw)
		return
	}
	ok = true
	return
}

func softFloat(ctx context.Context, format, field string, raw string) (value float64, ok bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		softFailure(ctx, format, field, []byte(raw))
		return
	}
	ok = true
	return
}

func isLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func isDigits(text string) bool {
	if text == "" {
		return false
	}
	for i := 0; i < len(text); i++ {
		if text[i] < '0' || text[i] > '9' {
			return false
		}
	}
	return true
}
