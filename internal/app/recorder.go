package app

import (
	"time"

	"github.com/dokzlo13/lightsched/internal/eventbus"
	"github.com/dokzlo13/lightsched/internal/ledger"
)

// busRecorder appends sync events to the ledger and announces finished
// operations on the bus. The ledger may be nil when persistence is off.
type busRecorder struct {
	ledger *ledger.Ledger
	bus    *eventbus.Bus
}

func newBusRecorder(l *ledger.Ledger, bus *eventbus.Bus) *busRecorder {
	return &busRecorder{ledger: l, bus: bus}
}

func (r *busRecorder) Append(e ledger.Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	var err error
	if r.ledger != nil {
		err = r.ledger.Append(e)
	}

	switch e.EventType {
	case ledger.EventSyncSucceeded, ledger.EventSyncFailed:
		r.bus.Publish(eventbus.Event{Topic: eventbus.TopicSyncFinished, Payload: e})
	}
	return err
}
