package schedule

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for _, m := range Modes {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	_, err := ParseMode("night")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestParseChannel(t *testing.T) {
	tests := map[string]Channel{
		"warm":           ChannelWarm,
		"warmBrightness": ChannelWarm,
		"cool":           ChannelCool,
		"coolBrightness": ChannelCool,
	}
	for in, want := range tests {
		got, err := ParseChannel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseChannel("red")
	assert.ErrorIs(t, err, ErrInvalidChannel)
}

func TestClone_IsDeep(t *testing.T) {
	orig := Default()
	cp := orig.Clone()
	cp.BrightnessSchedule[0].WarmBrightness = 99
	cp.Mode = ModeDemo

	assert.Equal(t, 0, orig.BrightnessSchedule[0].WarmBrightness)
	assert.Equal(t, ModeDayNight, orig.Mode)
}

func TestEntryByLabel(t *testing.T) {
	d := Default()

	e, ok := d.EntryByLabel(LabelBedTime)
	require.True(t, ok)
	assert.Equal(t, "23:00", e.Time)

	_, ok = d.EntryByLabel("noon")
	assert.False(t, ok)
}

func TestDefault_AllEntriesShareZeroTimestamp(t *testing.T) {
	d := Default()
	require.Len(t, d.BrightnessSchedule, 6)
	for _, e := range d.BrightnessSchedule {
		assert.Zero(t, e.UnixTime)
		assert.True(t, IsNamed(e.Label), e.Label)
	}
	assert.True(t, IsValid(mustJSON(t, d)))
}

func TestIsTimeEditable(t *testing.T) {
	assert.True(t, IsTimeEditable(LabelBedTime))
	assert.True(t, IsTimeEditable(LabelNightTime))
	assert.False(t, IsTimeEditable(LabelSunrise))
	assert.False(t, IsTimeEditable("scheduled_0700"))
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestData_Equal(t *testing.T) {
	a := Default()
	assert.True(t, a.Equal(Default()))
	assert.True(t, Data{Mode: ModeDemo}.Equal(Data{Mode: ModeDemo, BrightnessSchedule: []Entry{}}))

	changed := Default()
	changed.BrightnessSchedule[2].CoolBrightness = 1
	assert.False(t, a.Equal(changed))

	changed = Default()
	changed.Mode = ModeDemo
	assert.False(t, a.Equal(changed))

	changed = Default()
	changed.ServerTime = 5
	assert.False(t, a.Equal(changed))

	changed = Default()
	changed.BrightnessSchedule = changed.BrightnessSchedule[:5]
	assert.False(t, a.Equal(changed))
}
