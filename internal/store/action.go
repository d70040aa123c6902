package store

import "github.com/dokzlo13/lightsched/internal/schedule"

// Action is a state transition. The set of implementations is closed.
type Action interface {
	// Name returns the transition name used in logs and notifications.
	Name() string
	action()
}

// SetData replaces the working copy.
type SetData struct{ Data schedule.Data }

// SetLastSaved replaces the server-confirmed snapshot.
type SetLastSaved struct{ Data schedule.Data }

// SetLoading sets the loading flag.
type SetLoading struct{ Value bool }

// SetSuccess sets the submitted-successfully flag.
type SetSuccess struct{ Value bool }

// SetError sets the submission-error flag.
type SetError struct{ Value bool }

// SetMode changes the mode of the working copy.
type SetMode struct{ Mode schedule.Mode }

// Reset restores the working copy from the snapshot.
type Reset struct{}

func (SetData) Name() string      { return "SET_DATA" }
func (SetLastSaved) Name() string { return "SET_LAST_SAVED" }
func (SetLoading) Name() string   { return "SET_LOADING" }
func (SetSuccess) Name() string   { return "SET_SUCCESS" }
func (SetError) Name() string     { return "SET_ERROR" }
func (SetMode) Name() string      { return "SET_MODE" }
func (Reset) Name() string        { return "RESET" }

func (SetData) action()      {}
func (SetLastSaved) action() {}
func (SetLoading) action()   {}
func (SetSuccess) action()   {}
func (SetError) action()     {}
func (SetMode) action()      {}
func (Reset) action()        {}
