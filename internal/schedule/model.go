// Package schedule defines the light schedule document exchanged with the
// remote schedule endpoint.
package schedule

import (
	"errors"
	"fmt"
	"slices"
)

// Mode is the lighting controller's top-level operating behavior.
type Mode string

const (
	ModeDayNight  Mode = "dayNight"
	ModeScheduled Mode = "scheduled"
	ModeDemo      Mode = "demo"
)

// ErrInvalidMode is returned when a mode name is not one of the known modes.
var ErrInvalidMode = errors.New("invalid mode")

// Modes lists every mode in selector order.
var Modes = []Mode{ModeDayNight, ModeScheduled, ModeDemo}

// String returns the wire name of the mode.
func (m Mode) String() string {
	return string(m)
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeDayNight, ModeScheduled, ModeDemo:
		return true
	}
	return false
}

// ParseMode converts a wire name into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
	return m, nil
}

// Channel names a brightness field of an entry.
type Channel string

const (
	ChannelWarm Channel = "warmBrightness"
	ChannelCool Channel = "coolBrightness"
)

// ErrInvalidChannel is returned for an unknown brightness channel.
var ErrInvalidChannel = errors.New("invalid brightness channel")

// ParseChannel accepts the wire field name or the short form ("warm", "cool").
func ParseChannel(s string) (Channel, error) {
	switch s {
	case string(ChannelWarm), "warm":
		return ChannelWarm, nil
	case string(ChannelCool), "cool":
		return ChannelCool, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidChannel, s)
}

// Named entry labels. Twilight, sunrise and sunset times are computed by
// the server; only bed time and night time are set by the user.
const (
	LabelCivilTwilightBegin = "civil_twilight_begin"
	LabelSunrise            = "sunrise"
	LabelSunset             = "sunset"
	LabelCivilTwilightEnd   = "civil_twilight_end"
	LabelBedTime            = "bed_time"
	LabelNightTime          = "night_time"
)

var namedLabels = map[string]bool{
	LabelCivilTwilightBegin: true,
	LabelSunrise:            true,
	LabelSunset:             true,
	LabelCivilTwilightEnd:   true,
	LabelBedTime:            true,
	LabelNightTime:          true,
}

// IsNamed reports whether label is one of the fixed semantic labels.
func IsNamed(label string) bool {
	return namedLabels[label]
}

// IsTimeEditable reports whether the user may change the time of the entry.
func IsTimeEditable(label string) bool {
	return label == LabelBedTime || label == LabelNightTime
}

// Entry is one time-indexed brightness setting.
type Entry struct {
	Time           string `json:"time"` // HH:mm
	UnixTime       int64  `json:"unixTime"`
	WarmBrightness int    `json:"warmBrightness"` // 0-100
	CoolBrightness int    `json:"coolBrightness"` // 0-100
	Label          string `json:"label"`
}

// WithBrightness returns a copy of e with the channel set to value.
func (e Entry) WithBrightness(ch Channel, value int) Entry {
	switch ch {
	case ChannelWarm:
		e.WarmBrightness = value
	case ChannelCool:
		e.CoolBrightness = value
	}
	return e
}

// Data is the schedule document.
type Data struct {
	Mode               Mode    `json:"mode"`
	ServerTime         int64   `json:"serverTime"`
	BrightnessSchedule []Entry `json:"brightnessSchedule"`
}

// Clone returns a deep copy of d.
func (d Data) Clone() Data {
	out := d
	if d.BrightnessSchedule != nil {
		out.BrightnessSchedule = make([]Entry, len(d.BrightnessSchedule))
		copy(out.BrightnessSchedule, d.BrightnessSchedule)
	}
	return out
}

// Equal reports whether d and other hold the same document. A nil and an
// empty schedule are equal.
func (d Data) Equal(other Data) bool {
	return d.Mode == other.Mode &&
		d.ServerTime == other.ServerTime &&
		slices.Equal(d.BrightnessSchedule, other.BrightnessSchedule)
}

// EntryByLabel finds an entry by its label.
func (d Data) EntryByLabel(label string) (Entry, bool) {
	for _, e := range d.BrightnessSchedule {
		if e.Label == label {
			return e, true
		}
	}
	return Entry{}, false
}

// Default returns the placeholder document shown before the first fetch.
func Default() Data {
	return Data{
		Mode:       ModeDayNight,
		ServerTime: 0,
		BrightnessSchedule: []Entry{
			{Time: "06:30", Label: LabelCivilTwilightBegin},
			{Time: "07:00", Label: LabelSunrise},
			{Time: "19:30", Label: LabelSunset},
			{Time: "20:00", Label: LabelCivilTwilightEnd},
			{Time: "23:00", Label: LabelBedTime},
			{Time: "23:30", Label: LabelNightTime},
		},
	}
}
