package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRegions(t *testing.T) {
	msg := New([]byte("HDR:body bytes"))
	assert.Equal(t, 0, msg.HeaderLength())
	assert.Equal(t, []byte("HDR:body bytes"), msg.Body())

	require.NoError(t, msg.SetHeaderLength(4))
	assert.Equal(t, []byte("HDR:"), msg.Header())
	assert.Equal(t, []byte("body bytes"), msg.Body())

	err := msg.SetHeaderLength(15)
	assert.Error(t, err)
	assert.Equal(t, 4, msg.HeaderLength(), "rejected length must not change header")

	msg.SetBody([]byte("new"))
	assert.Equal(t, "HDR:new", string(msg.Data()))
}

func TestMessageOwnsBuffer(t *testing.T) {
	raw := []byte("abc")
	msg := New(raw)
	raw[0] = 'X'
	assert.Equal(t, "abc", string(msg.Data()))
	assert.NotEqual(t, New(nil).ID, msg.ID)
}

func TestMessageNullableFields(t *testing.T) {
	msg := New(nil)

	_, ok := msg.MediumID()
	assert.False(t, ok)
	_, ok = msg.Timestamp()
	assert.False(t, ok)

	ts := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, msg.SetMediumID("CE1234AB"))
	require.NoError(t, msg.SetTimestamp(ts))

	id, ok := msg.MediumID()
	assert.True(t, ok)
	assert.Equal(t, "CE1234AB", id)
	got, ok := msg.Timestamp()
	assert.True(t, ok)
	assert.True(t, ts.Equal(got))
}

func TestMessageSeal(t *testing.T) {
	msg := New(nil)
	require.NoError(t, msg.SetMediumID("first"))
	msg.Seal()

	assert.ErrorIs(t, msg.SetMediumID("second"), ErrSealed)
	assert.ErrorIs(t, msg.SetTimestamp(time.Now()), ErrSealed)

	id, _ := msg.MediumID()
	assert.Equal(t, "first", id)
	_, ok := msg.Timestamp()
	assert.False(t, ok)

	// Measurements stay writable for downstream stages
	msg.SetMeasurement(Channel, IntValue(12))
	n, ok := msg.IntMeasurement(Channel)
	assert.True(t, ok)
	assert.Equal(t, int64(12), n)
}

func TestValueConversions(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name     string
		value    Value
		kind     Kind
		text     string
		intValue int64
		intOK    bool
	}{
		{"string numeric", StringValue("42"), KindString, "42", 42, true},
		{"string text", StringValue("abc"), KindString, "abc", 0, false},
		{"int", IntValue(-7), KindInt, "-7", -7, true},
		{"float", FloatValue(2.5), KindFloat, "2.5", 2, true},
		{"char", CharValue('G'), KindChar, "G", 'G', true},
		{"time", TimeValue(ts), KindTime, "2024-01-02T03:04:05Z", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.value.Kind())
			assert.Equal(t, tt.text, tt.value.String())
			n, ok := tt.value.Int()
			assert.Equal(t, tt.intOK, ok)
			if ok {
				assert.Equal(t, tt.intValue, n)
			}
		})
	}

	assert.True(t, Value{}.IsZero())
	got, ok := TimeValue(ts).Time()
	assert.True(t, ok)
	assert.True(t, ts.Equal(got))
}

func TestMeasurementsCopy(t *testing.T) {
	msg := New(nil)
	msg.SetMeasurement(Length, IntValue(10))
	all := msg.Measurements()
	delete(all, Length)

	_, ok := msg.Measurement(Length)
	assert.True(t, ok)

	msg.DeleteMeasurement(Length)
	_, ok = msg.Measurement(Length)
	assert.False(t, ok)
}
