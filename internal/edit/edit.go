// Package edit turns field-level UI changes into new schedule documents and
// submits them to the store. Handlers never perform I/O.
package edit

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dokzlo13/lightsched/internal/metrics"
	"github.com/dokzlo13/lightsched/internal/schedule"
	"github.com/dokzlo13/lightsched/internal/store"
)

var (
	ErrUnknownLabel    = errors.New("no schedule entry with this label")
	ErrNotTimeEditable = errors.New("entry time is computed by the server")
	ErrNamedEntry      = errors.New("named entries cannot be removed")
)

// ScheduledPrefix prefixes labels of user-added entries.
const ScheduledPrefix = "scheduled_"

// Updater is the store surface the handlers need.
type Updater interface {
	Update(fn func(current store.State) ([]store.Action, error)) error
	Dispatch(actions ...store.Action)
}

// Handlers exposes one method per form control.
type Handlers struct {
	store Updater
}

// New creates handlers bound to a store.
func New(u Updater) *Handlers {
	return &Handlers{store: u}
}

// ChangeBrightness sets one brightness channel of the entry with the given
// label. raw is rounded and clamped to [0,100].
func (h *Handlers) ChangeBrightness(label string, ch schedule.Channel, raw string) error {
	value, err := schedule.NormalizeBrightness(raw)
	if err != nil {
		return err
	}
	return h.apply("brightness", func(d schedule.Data) (schedule.Data, error) {
		return SetBrightness(d, label, ch, value)
	})
}

// ChangeTime moves bed_time or night_time. The absolute timestamp is
// cleared; the server recomputes it on the next fetch.
func (h *Handlers) ChangeTime(label, newTime string) error {
	return h.apply("time", func(d schedule.Data) (schedule.Data, error) {
		return SetTime(d, label, newTime)
	})
}

// ChangeMode switches the operating mode.
func (h *Handlers) ChangeMode(mode schedule.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", schedule.ErrInvalidMode, mode)
	}
	h.store.Dispatch(store.SetMode{Mode: mode})
	metrics.IncEdit("mode")
	return nil
}

// Cancel discards unsaved edits.
func (h *Handlers) Cancel() {
	h.store.Dispatch(store.Reset{})
	metrics.IncEdit("cancel")
}

// AddEntry adds a free-form entry for scheduled mode. An existing free-form
// entry at the same time is replaced.
func (h *Handlers) AddEntry(at, warm, cool string) error {
	w, err := schedule.NormalizeBrightness(warm)
	if err != nil {
		return err
	}
	c, err := schedule.NormalizeBrightness(cool)
	if err != nil {
		return err
	}
	return h.apply("add", func(d schedule.Data) (schedule.Data, error) {
		return AddScheduled(d, at, w, c)
	})
}

// RemoveEntry deletes a free-form entry.
func (h *Handlers) RemoveEntry(label string) error {
	return h.apply("remove", func(d schedule.Data) (schedule.Data, error) {
		return RemoveScheduled(d, label)
	})
}

func (h *Handlers) apply(kind string, change func(schedule.Data) (schedule.Data, error)) error {
	err := h.store.Update(func(cur store.State) ([]store.Action, error) {
		next, err := change(cur.Data)
		if err != nil {
			return nil, err
		}
		return []store.Action{store.SetData{Data: next}}, nil
	})
	if err != nil {
		return err
	}
	metrics.IncEdit(kind)
	return nil
}

// SetBrightness returns a copy of d where only the channel of the labeled
// entry holds value.
func SetBrightness(d schedule.Data, label string, ch schedule.Channel, value int) (schedule.Data, error) {
	if ch != schedule.ChannelWarm && ch != schedule.ChannelCool {
		return d, fmt.Errorf("%w: %q", schedule.ErrInvalidChannel, ch)
	}
	return replaceEntry(d, label, func(e schedule.Entry) schedule.Entry {
		return e.WithBrightness(ch, schedule.ClampBrightness(float64(value)))
	})
}

// SetTime returns a copy of d with the labeled entry moved to newTime.
func SetTime(d schedule.Data, label, newTime string) (schedule.Data, error) {
	if !schedule.IsTimeEditable(label) {
		return d, fmt.Errorf("%w: %q", ErrNotTimeEditable, label)
	}
	clock, err := schedule.CanonicalClock(newTime)
	if err != nil {
		return d, err
	}
	return replaceEntry(d, label, func(e schedule.Entry) schedule.Entry {
		e.Time = clock
		e.UnixTime = 0
		return e
	})
}

// AddScheduled returns a copy of d with a free-form entry at the given time.
// Free-form entries stay after the named ones, ordered by time.
func AddScheduled(d schedule.Data, at string, warm, cool int) (schedule.Data, error) {
	clock, err := schedule.CanonicalClock(at)
	if err != nil {
		return d, err
	}
	label := ScheduledPrefix + strings.Replace(clock, ":", "", 1)

	named := make([]schedule.Entry, 0, len(d.BrightnessSchedule))
	var free []schedule.Entry
	for _, e := range d.BrightnessSchedule {
		switch {
		case e.Label == label:
			// replaced below
		case strings.HasPrefix(e.Label, ScheduledPrefix):
			free = append(free, e)
		default:
			named = append(named, e)
		}
	}
	free = append(free, schedule.Entry{
		Time:           clock,
		WarmBrightness: schedule.ClampBrightness(float64(warm)),
		CoolBrightness: schedule.ClampBrightness(float64(cool)),
		Label:          label,
	})
	sort.SliceStable(free, func(i, j int) bool { return free[i].Time < free[j].Time })

	out := d.Clone()
	out.BrightnessSchedule = append(named, free...)
	return out, nil
}

// RemoveScheduled returns a copy of d without the labeled free-form entry.
func RemoveScheduled(d schedule.Data, label string) (schedule.Data, error) {
	if schedule.IsNamed(label) {
		return d, fmt.Errorf("%w: %q", ErrNamedEntry, label)
	}
	out := d.Clone()
	out.BrightnessSchedule = make([]schedule.Entry, 0, len(d.BrightnessSchedule))
	found := false
	for _, e := range d.BrightnessSchedule {
		if e.Label == label {
			found = true
			continue
		}
		out.BrightnessSchedule = append(out.BrightnessSchedule, e)
	}
	if !found {
		return d, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	return out, nil
}

// replaceEntry matches by label only: placeholder entries share unixTime 0.
func replaceEntry(d schedule.Data, label string, fn func(schedule.Entry) schedule.Entry) (schedule.Data, error) {
	out := d.Clone()
	for i, e := range out.BrightnessSchedule {
		if e.Label == label {
			out.BrightnessSchedule[i] = fn(e)
			return out, nil
		}
	}
	return d, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
}
