package schedule

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidBrightness = errors.New("invalid brightness value")
	ErrInvalidTime       = errors.New("invalid time of day")
)

// Brightness bounds shared by both channels.
const (
	MinBrightness = 0
	MaxBrightness = 100
)

// NormalizeBrightness parses a user-entered brightness. The value is rounded
// half away from zero and then clamped to [0,100]. An empty string means 0.
// Numbers too large for a float64 clamp like any other out-of-range value;
// the words "NaN" and "Inf" are rejected.
func NormalizeBrightness(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return MinBrightness, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	switch {
	case errors.Is(err, strconv.ErrRange):
		// overflow: f is ±Inf and clamps below
	case err != nil, math.IsNaN(f), math.IsInf(f, 0):
		return 0, fmt.Errorf("%w: %q", ErrInvalidBrightness, raw)
	}
	return ClampBrightness(math.Round(f)), nil
}

// ClampBrightness limits v to [0,100].
func ClampBrightness(v float64) int {
	if v < MinBrightness {
		return MinBrightness
	}
	if v > MaxBrightness {
		return MaxBrightness
	}
	return int(v)
}

// ParseClock parses a 24-hour "HH:mm" time of day.
func ParseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 || !isDigits(h) || !isDigits(m) {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return hour, minute, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// CanonicalClock returns s normalized to zero-padded "HH:mm".
func CanonicalClock(s string) (string, error) {
	h, m, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

// FormatTime renders a 24-hour "HH:mm" time as "h:mm AM". Unparseable input
// is returned unchanged.
func FormatTime(s string) string {
	h, m, err := ParseClock(s)
	if err != nil {
		return s
	}
	period := "AM"
	if h >= 12 {
		period = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, m, period)
}
