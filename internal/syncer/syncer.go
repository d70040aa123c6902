// Package syncer moves schedule documents between the store and the remote
// schedule endpoint. Failures never escape as panics: they are reported and
// turned into status flags.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightsched/internal/errreport"
	"github.com/dokzlo13/lightsched/internal/ledger"
	"github.com/dokzlo13/lightsched/internal/metrics"
	"github.com/dokzlo13/lightsched/internal/schedule"
	"github.com/dokzlo13/lightsched/internal/store"
)

// ErrSyncInProgress is returned when a fetch or save is already running.
var ErrSyncInProgress = errors.New("schedule sync already in progress")

// Endpoint is the remote schedule resource.
type Endpoint interface {
	Fetch(ctx context.Context, requestID string) ([]byte, error)
	Save(ctx context.Context, requestID string, data schedule.Data) error
}

// Recorder persists sync history.
type Recorder interface {
	Append(e ledger.Entry) error
}

// Syncer runs fetch and save against the endpoint and drives the store.
// At most one operation runs at a time.
type Syncer struct {
	store    *store.Store
	endpoint Endpoint
	reporter errreport.Reporter
	recorder Recorder

	mu       sync.Mutex
	inFlight ledger.Operation

	newID func() string
}

// New creates a Syncer. reporter defaults to log-only reporting and
// recorder may be nil.
func New(st *store.Store, endpoint Endpoint, reporter errreport.Reporter, recorder Recorder) *Syncer {
	if reporter == nil {
		reporter = errreport.LogReporter{}
	}
	return &Syncer{
		store:    st,
		endpoint: endpoint,
		reporter: reporter,
		recorder: recorder,
		newID:    uuid.NewString,
	}
}

// InFlight returns the running operation, or "" when idle.
func (s *Syncer) InFlight() ledger.Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

func (s *Syncer) begin(op ledger.Operation) (ledger.Operation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight != "" {
		return s.inFlight, false
	}
	s.inFlight = op
	return op, true
}

func (s *Syncer) end() {
	s.mu.Lock()
	s.inFlight = ""
	s.mu.Unlock()
}

func (s *Syncer) reject(op, running ledger.Operation) error {
	log.Warn().
		Str("operation", string(op)).
		Str("in_flight", string(running)).
		Msg("Sync rejected, another operation is in flight")
	s.record(ledger.Entry{
		EventType: ledger.EventSyncRejected,
		Operation: op,
		Payload:   map[string]any{"in_flight": string(running)},
	})
	metrics.ObserveSync(string(op), metrics.ResultRejected, 0)
	return fmt.Errorf("%s: %w (%s running)", op, ErrSyncInProgress, running)
}

// Fetch loads the schedule from the endpoint into both the working copy
// and the snapshot. On failure neither is touched and the error flag is set.
func (s *Syncer) Fetch(ctx context.Context) error {
	if running, ok := s.begin(ledger.OpFetch); !ok {
		return s.reject(ledger.OpFetch, running)
	}
	defer s.end()

	id := s.newID()
	start := time.Now()
	s.record(ledger.Entry{EventType: ledger.EventSyncStarted, Operation: ledger.OpFetch, RequestID: id})

	s.store.Dispatch(store.SetLoading{Value: true}, store.SetError{Value: false})

	raw, err := s.endpoint.Fetch(ctx, id)
	var doc schedule.Data
	if err == nil {
		doc, err = schedule.Decode(raw)
	}
	if err != nil {
		s.fail(ledger.OpFetch, id, start, err)
		s.store.Dispatch(store.SetError{Value: true}, store.SetLoading{Value: false})
		return fmt.Errorf("fetch schedule: %w", err)
	}

	s.store.Dispatch(
		store.SetData{Data: doc},
		store.SetLastSaved{Data: doc},
		store.SetLoading{Value: false},
	)
	s.succeed(ledger.OpFetch, id, start, doc)
	return nil
}

// Save posts the working copy. On success it becomes the snapshot; on
// failure the working copy is kept so the user can retry.
func (s *Syncer) Save(ctx context.Context) error {
	if running, ok := s.begin(ledger.OpSave); !ok {
		return s.reject(ledger.OpSave, running)
	}
	defer s.end()

	id := s.newID()
	start := time.Now()
	s.record(ledger.Entry{EventType: ledger.EventSyncStarted, Operation: ledger.OpSave, RequestID: id})

	data := s.store.State().Data
	s.store.Dispatch(store.SetError{Value: false}, store.SetSuccess{Value: false})

	if err := s.endpoint.Save(ctx, id, data); err != nil {
		s.fail(ledger.OpSave, id, start, err)
		s.store.Dispatch(store.SetError{Value: true})
		return fmt.Errorf("save schedule: %w", err)
	}

	// Edits made while the POST was in flight stay unsaved.
	_ = s.store.Update(func(cur store.State) ([]store.Action, error) {
		actions := []store.Action{store.SetLastSaved{Data: data}}
		if !cur.Data.Equal(data) {
			actions = append(actions, store.SetData{Data: cur.Data})
		}
		return append(actions, store.SetSuccess{Value: true}), nil
	})
	s.succeed(ledger.OpSave, id, start, data)
	return nil
}

func (s *Syncer) succeed(op ledger.Operation, id string, start time.Time, doc schedule.Data) {
	elapsed := time.Since(start)
	log.Info().
		Str("operation", string(op)).
		Str("request_id", id).
		Str("mode", doc.Mode.String()).
		Int("entries", len(doc.BrightnessSchedule)).
		Dur("elapsed", elapsed).
		Msg("Schedule synced")

	s.record(ledger.Entry{
		EventType: ledger.EventSyncSucceeded,
		Operation: op,
		RequestID: id,
		Duration:  elapsed,
		Payload: map[string]any{
			"mode":        doc.Mode.String(),
			"entries":     len(doc.BrightnessSchedule),
			"server_time": doc.ServerTime,
		},
	})
	metrics.ObserveSync(string(op), metrics.ResultSuccess, elapsed)
}

func (s *Syncer) fail(op ledger.Operation, id string, start time.Time, err error) {
	elapsed := time.Since(start)
	s.reporter.Report(err, contextName(op), id)

	s.record(ledger.Entry{
		EventType: ledger.EventSyncFailed,
		Operation: op,
		RequestID: id,
		Duration:  elapsed,
		Error:     err.Error(),
	})

	result := metrics.ResultError
	if errors.Is(err, schedule.ErrInvalidDocument) {
		result = metrics.ResultInvalid
	}
	metrics.ObserveSync(string(op), result, elapsed)
}

func (s *Syncer) record(e ledger.Entry) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Append(e); err != nil {
		log.Warn().Err(err).Str("event", string(e.EventType)).Msg("Failed to record sync event")
	}
}

func contextName(op ledger.Operation) string {
	if op == ledger.OpSave {
		return "saveSchedule"
	}
	return "fetchSchedule"
}
