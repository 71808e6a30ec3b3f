package message

import (
	"strconv"
	"time"
)

type Kind uint8

const (
	KindString Kind = iota + 1
	KindInt
	KindFloat
	KindChar
	KindTime
)

func (kind Kind) String() string {
	switch kind {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindChar:
		return "char"
	case KindTime:
		return "time"
	}
	return "unknown"
}

// Tagged scalar measurement value
type Value struct {
	kind Kind
	str  string
	num  int64
	flt  float64
	char byte
	ts   time.Time
}

func StringValue(s string) Value   { return Value{kind: KindString, str: s} }
func IntValue(n int64) Value       { return Value{kind: KindInt, num: n} }
func FloatValue(f float64) Value   { return Value{kind: KindFloat, flt: f} }
func CharValue(c byte) Value       { return Value{kind: KindChar, char: c} }
func TimeValue(ts time.Time) Value { return Value{kind: KindTime, ts: ts} }
func (value Value) Kind() Kind     { return value.kind }
func (value Value) IsZero() bool   { return value.kind == 0 }

func (value Value) Int() (n int64, ok bool) {
	switch value.kind {
	case KindInt:
		n, ok = value.num, true
	case KindChar:
		n, ok = int64(value.char), true
	case KindFloat:
		n, ok = int64(value.flt), true
	case KindString:
		parsed, err := strconv.ParseInt(value.str, 10, 64)
		if err == nil {
			n, ok = parsed, true
		}
	}
	return
}

func (value Value) Float() (f float64, ok bool) {
	switch value.kind {
	case KindFloat:
		f, ok = value.flt, true
	case KindInt:
		f, ok = float64(value.num), true
	case KindString:
		parsed, err := strconv.ParseFloat(value.str, 64)
		if err == nil {
			f, ok = parsed, true
		}
	}
	return
}

func (value Value) Char() (c byte, ok bool) {
	if value.kind == KindChar {
		c, ok = value.char, true
	}
	return
}

func (value Value) Time() (ts time.Time, ok bool) {
	if value.kind == KindTime {
		ts, ok = value.ts, true
	}
	return
}

// Text form of any kind
func (value Value) String() string {
	switch value.kind {
	case KindString:
		return value.str
	case KindInt:
		return strconv.FormatInt(value.num, 10)
	case KindFloat:
		return strconv.FormatFloat(value.flt, 'f', -1, 64)
	case KindChar:
		return string([]byte{value.char})
	case KindTime:
		return value.ts.UTC().Format(time.RFC3339)
	}
	return ""
}

// Underlying Go value for structured encoders
func (value Value) Native() any {
	switch value.kind {
	case KindString:
		return value.str
	case KindInt:
		return value.num
	case KindFloat:
		return value.flt
	case KindChar:
		return string([]byte{value.char})
	case KindTime:
		return value.ts
	}
	return nil
}
