// Package store holds the light scheduler's client state and is the single
// place where it changes.
package store

import "github.com/dokzlo13/lightsched/internal/schedule"

// Status carries the UI feedback flags.
type Status struct {
	IsLoading               bool `json:"isLoading"`
	UnsavedChanges          bool `json:"unsavedChanges"`
	IsSuccessfullySubmitted bool `json:"isSuccessfullySubmitted"`
	IsSubmissionError       bool `json:"isSubmissionError"`
}

// State is the working copy, the last server-confirmed snapshot and status.
type State struct {
	Data          schedule.Data `json:"data"`
	LastSavedData schedule.Data `json:"lastSavedData"`
	Status        Status        `json:"status"`
}

// InitialState is the state before the first fetch completes.
func InitialState() State {
	return State{
		Data:          schedule.Default(),
		LastSavedData: schedule.Default(),
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	return State{
		Data:          s.Data.Clone(),
		LastSavedData: s.LastSavedData.Clone(),
		Status:        s.Status,
	}
}
