package store

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightsched/internal/eventbus"
)

// Change is published on eventbus.TopicStateChanged after every dispatch.
type Change struct {
	Actions []string
	State   State
}

// Store owns the scheduler state. All writes go through Dispatch; all
// reads return copies.
type Store struct {
	mu    sync.Mutex
	state State
	bus   *eventbus.Bus
}

// New creates a store holding InitialState. bus may be nil, in which case
// no change notifications are sent.
func New(bus *eventbus.Bus) *Store {
	return NewWithState(InitialState(), bus)
}

// NewWithState creates a store starting from the given state.
func NewWithState(initial State, bus *eventbus.Bus) *Store {
	return &Store{
		state: initial.Clone(),
		bus:   bus,
	}
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.Clone()
}

// Dispatch applies the actions in order as one atomic batch.
func (s *Store) Dispatch(actions ...Action) {
	_ = s.Update(func(State) ([]Action, error) {
		return actions, nil
	})
}

// Update computes actions from the current state and applies them before
// any other dispatch can run, so concurrent edits never overwrite each
// other. If fn returns an error nothing is applied.
func (s *Store) Update(fn func(current State) ([]Action, error)) error {
	names, snapshot, err := s.apply(fn)
	if err != nil {
		return err
	}

	if len(names) == 0 {
		return nil
	}

	log.Debug().
		Strs("actions", names).
		Bool("unsaved", snapshot.Status.UnsavedChanges).
		Bool("loading", snapshot.Status.IsLoading).
		Bool("success", snapshot.Status.IsSuccessfullySubmitted).
		Bool("error", snapshot.Status.IsSubmissionError).
		Msg("State updated")
	return nil
}

func (s *Store) apply(fn func(current State) ([]Action, error)) ([]string, State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	actions, err := fn(s.state.Clone())
	if err != nil {
		return nil, State{}, err
	}

	names := make([]string, 0, len(actions))
	for _, a := range actions {
		if a == nil {
			continue
		}
		s.state = Reduce(s.state, a)
		names = append(names, a.Name())
	}
	snapshot := s.state.Clone()

	// enqueued under the lock so notifications follow apply order
	if len(names) > 0 && s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Topic:   eventbus.TopicStateChanged,
			Payload: Change{Actions: names, State: snapshot.Clone()},
		})
	}
	return names, snapshot, nil
}

// Subscribe registers fn to receive every state change. It is a no-op when
// the store has no bus.
func (s *Store) Subscribe(fn func(Change)) {
	if s.bus == nil {
		return
	}
	s.bus.Subscribe(eventbus.TopicStateChanged, func(e eventbus.Event) {
		if c, ok := e.Payload.(Change); ok {
			fn(c)
		}
	})
}
