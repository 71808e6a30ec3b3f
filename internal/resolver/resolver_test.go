package resolver

import (
	"context"
	"dcsingest/internal/source"
	"dcsingest/pkg/message"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var riverGauge = message.Platform{
	ID:     "river-gauge-7",
	Agency: "USGS",
	Media: []message.TransportMedium{
		{MediumType: message.MediumGOESSelfTimed, MediumID: "CE1234AB", Channel: 50},
		{MediumType: message.MediumGOESRandom, MediumID: "CE1234AB", Channel: 150},
		{MediumType: message.MediumIridium, MediumID: "300234010123450"},
	},
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name       string
		mediumType string
		mediumID   string
		channel    int
		legacy     bool
		expectType string
		expectOK   bool
	}{
		{"exact self-timed channel", message.MediumGOES, "ce1234ab", 50, false, message.MediumGOESSelfTimed, true},
		{"exact random channel", message.MediumGOESSelfTimed, "CE1234AB", 150, false, message.MediumGOESRandom, true},
		{"channel mismatch without legacy", message.MediumGOES, "CE1234AB", 30, false, "", false},
		{"legacy self-timed range", message.MediumGOES, "CE1234AB", 30, true, message.MediumGOESSelfTimed, true},
		{"legacy random range", message.MediumGOES, "CE1234AB", 130, true, message.MediumGOESRandom, true},
		{"legacy without caller type", "", "CE1234AB", 130, true, message.MediumGOESRandom, true},
		{"legacy boundary matches neither", message.MediumGOES, "CE1234AB", 100, true, "", false},
		{"goes family needs a channel", message.MediumGOES, "CE1234AB", 0, false, "", false},
		{"no channel keeps type strict", message.MediumGOESRandom, "CE1234AB", 0, false, message.MediumGOESRandom, true},
		{"non goes type", message.MediumIridium, "300234010123450", 0, false, message.MediumIridium, true},
		{"unrelated type", message.MediumShef, "CE1234AB", 0, false, "", false},
		{"unknown id", message.MediumGOES, "FFFFFFFF", 50, true, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched, ok := Match(riverGauge.Media, tt.mediumType, tt.mediumID, tt.channel, tt.legacy)
			require.Equal(t, tt.expectOK, ok)
			if ok {
				assert.Equal(t, tt.expectType, matched.MediumType)
			}
		})
	}
}

func TestMatch_FirstWins(t *testing.T) {
	media := []message.TransportMedium{
		{MediumType: message.MediumGOES, MediumID: "AAAA0001", Channel: 12},
		{MediumType: message.MediumGOESSelfTimed, MediumID: "AAAA0001", Channel: 12},
	}
	matched, ok := Match(media, message.MediumGOESSelfTimed, "AAAA0001", 12, false)
	require.True(t, ok)
	assert.Same(t, &media[0], matched)
}

func newMessage(t *testing.T, id string, channel int64) *message.Message {
	msg := message.New([]byte("x"))
	require.NoError(t, msg.SetMediumID(id))
	require.NoError(t, msg.SetTimestamp(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)))
	if channel > 0 {
		msg.SetMeasurement(message.Channel, message.IntValue(channel))
	}
	return msg
}

func TestResolver(t *testing.T) {
	resolver := New(NewFileLookup([]message.Platform{riverGauge}), true)

	msg := newMessage(t, "CE1234AB", 130)
	require.NoError(t, resolver.Resolve(context.Background(), msg, message.MediumGOES))
	require.NotNil(t, msg.Platform)
	assert.Equal(t, "river-gauge-7", msg.Platform.ID)
	assert.Equal(t, message.MediumGOESRandom, msg.TransportMedium.MediumType)

	// Known id, unmatched channel
	msg = newMessage(t, "CE1234AB", 100)
	err := resolver.Resolve(context.Background(), msg, message.MediumGOES)
	var unknown *source.UnknownPlatformError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, 100, unknown.Channel)
	assert.Nil(t, msg.Platform)

	// Unknown id
	err = resolver.Resolve(context.Background(), newMessage(t, "FFFFFFFF", 0), message.MediumGOES)
	assert.True(t, source.IsUnknownPlatform(err))

	// Nothing to resolve
	err = resolver.Resolve(context.Background(), message.New(nil), message.MediumGOES)
	assert.Error(t, err)
	assert.False(t, source.IsUnknownPlatform(err))
}

type countingLookup struct {
	calls int
	inner Lookup
	err   error
}

func (lookup *countingLookup) Lookup(ctx context.Context, mediumType, mediumID string, timestamp time.Time) (*message.Platform, error) {
	lookup.calls++
	if lookup.err != nil {
		return nil, lookup.err
	}
	return lookup.inner.Lookup(ctx, mediumType, mediumID, timestamp)
}

func TestCachedLookup(t *testing.T) {
	backing := &countingLookup{inner: NewFileLookup([]message.Platform{riverGauge})}
	cached, err := NewCachedLookup(backing, 16)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		platform, lookupErr := cached.Lookup(context.Background(), message.MediumGOESSelfTimed, "ce1234ab", time.Time{})
		require.NoError(t, lookupErr)
		require.NotNil(t, platform)
	}
	// GOES family shares one entry
	_, err = cached.Lookup(context.Background(), message.MediumGOESRandom, "CE1234AB", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, backing.calls)

	// Misses are cached as well
	for i := 0; i < 2; i++ {
		platform, lookupErr := cached.Lookup(context.Background(), message.MediumIridium, "000", time.Time{})
		require.NoError(t, lookupErr)
		assert.Nil(t, platform)
	}
	assert.Equal(t, 2, backing.calls)
	assert.Equal(t, 2, cached.Len())

	cached.Purge()
	_, err = cached.Lookup(context.Background(), message.MediumGOES, "CE1234AB", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, backing.calls)

	_, err = NewCachedLookup(backing, 0)
	assert.Error(t, err)
}

func TestCachedLookup_ErrorsNotCached(t *testing.T) {
	backing := &countingLookup{err: errors.New("database offline")}
	cached, err := NewCachedLookup(backing, 4)
	require.NoError(t, err)

	_, err = cached.Lookup(context.Background(), message.MediumGOES, "CE1234AB", time.Time{})
	assert.Error(t, err)
	_, err = cached.Lookup(context.Background(), message.MediumGOES, "CE1234AB", time.Time{})
	assert.Error(t, err)
	assert.Equal(t, 2, backing.calls)
}

func TestLoadFileLookup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "platforms.json")
	content := `[{"id":"gauge-1","transportMedia":[{"mediumType":"goes-self-timed","mediumId":"CE1234AB","channel":50}]}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	lookup, err := LoadFileLookup(path)
	require.NoError(t, err)
	assert.Equal(t, 1, lookup.Len())

	platform, err := lookup.Lookup(context.Background(), message.MediumGOES, "ce1234ab", time.Time{})
	require.NoError(t, err)
	require.NotNil(t, platform)
	assert.Equal(t, "gauge-1", platform.ID)

	require.NoError(t, os.WriteFile(path, []byte(`[{"transportMedia":[]}]`), 0600))
	_, err = LoadFileLookup(path)
	assert.Error(t, err)

	_, err = LoadFileLookup(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestReloadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "platforms.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"gauge-1","transportMedia":[{"mediumType":"iridium","mediumId":"300234010"}]}]`), 0600))

	reloadable, err := NewReloadableFile(path)
	require.NoError(t, err)

	platform, err := reloadable.Lookup(context.Background(), message.MediumIridium, "300234010", time.Time{})
	require.NoError(t, err)
	require.NotNil(t, platform)
	assert.Equal(t, "gauge-1", platform.ID)

	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"gauge-2","transportMedia":[{"mediumType":"iridium","mediumId":"300234010"}]},{"id":"gauge-3","transportMedia":[]}]`), 0600))
	count, err := reloadable.Reload()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	platform, err = reloadable.Lookup(context.Background(), message.MediumIridium, "300234010", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "gauge-2", platform.ID)

	// Broken file keeps the previous list
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0600))
	_, err = reloadable.Reload()
	assert.Error(t, err)
	platform, err = reloadable.Lookup(context.Background(), message.MediumIridium, "300234010", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "gauge-2", platform.ID)

	_, err = NewReloadableFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
