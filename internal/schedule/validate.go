package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidDocument is returned when a schedule document does not have the
// expected shape.
var ErrInvalidDocument = errors.New("invalid schedule document")

// IsValid reports whether raw is a well-formed schedule document.
func IsValid(raw []byte) bool {
	return Validate(raw) == nil
}

// Validate checks the structure of a raw schedule document. Every failure
// wraps ErrInvalidDocument.
func Validate(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return validateDocument(doc)
}

func validateDocument(doc any) error {
	obj, ok := doc.(map[string]any)
	if !ok {
		return invalid("document is not an object")
	}

	mode, ok := obj["mode"].(string)
	if !ok || !Mode(mode).Valid() {
		return invalid("mode %v is not one of dayNight, scheduled, demo", obj["mode"])
	}

	if !timestamp(obj["serverTime"]) {
		return invalid("serverTime %v is not an integer timestamp", obj["serverTime"])
	}

	entries, ok := obj["brightnessSchedule"].([]any)
	if !ok {
		return invalid("brightnessSchedule is not an array")
	}
	for i, raw := range entries {
		if err := validateEntry(raw); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return nil
}

func validateEntry(raw any) error {
	entry, ok := raw.(map[string]any)
	if !ok {
		return invalid("entry is not an object")
	}
	if !nonEmptyString(entry["time"]) {
		return invalid("time is missing or empty")
	}
	if !timestamp(entry["unixTime"]) {
		return invalid("unixTime %v is not an integer timestamp", entry["unixTime"])
	}
	for _, field := range []string{string(ChannelWarm), string(ChannelCool)} {
		v, ok := number(entry[field])
		if !ok {
			return invalid("%s is not numeric", field)
		}
		if v < 0 || v > 100 {
			return invalid("%s %v out of range [0,100]", field, v)
		}
	}
	if !nonEmptyString(entry["label"]) {
		return invalid("label is missing or empty")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDocument, fmt.Sprintf(format, args...))
}

func number(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

// timestamp reports whether v rounds to a value that fits in an int64.
func timestamp(v any) bool {
	f, ok := number(v)
	if !ok {
		return false
	}
	r := math.Round(f)
	return r >= math.MinInt64 && r < math.MaxInt64
}

func nonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}

// wireEntry mirrors Entry with float fields so that fractional numbers in a
// valid document still decode.
type wireEntry struct {
	Time           string  `json:"time"`
	UnixTime       float64 `json:"unixTime"`
	WarmBrightness float64 `json:"warmBrightness"`
	CoolBrightness float64 `json:"coolBrightness"`
	Label          string  `json:"label"`
}

type wireData struct {
	Mode               Mode        `json:"mode"`
	ServerTime         float64     `json:"serverTime"`
	BrightnessSchedule []wireEntry `json:"brightnessSchedule"`
}

// Decode validates raw and converts it into a Data value. Fractional
// numbers are rounded half away from zero.
func Decode(raw []byte) (Data, error) {
	if err := Validate(raw); err != nil {
		return Data{}, err
	}

	var w wireData
	if err := json.Unmarshal(raw, &w); err != nil {
		return Data{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	d := Data{
		Mode:               w.Mode,
		ServerTime:         int64(math.Round(w.ServerTime)),
		BrightnessSchedule: make([]Entry, 0, len(w.BrightnessSchedule)),
	}
	for _, e := range w.BrightnessSchedule {
		d.BrightnessSchedule = append(d.BrightnessSchedule, Entry{
			Time:           e.Time,
			UnixTime:       int64(math.Round(e.UnixTime)),
			WarmBrightness: int(math.Round(e.WarmBrightness)),
			CoolBrightness: int(math.Round(e.CoolBrightness)),
			Label:          e.Label,
		})
	}
	return d, nil
}
