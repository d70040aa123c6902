package store

// Reduce applies a to s and returns the new state. s is never modified and
// the result shares no slices with s or with the action payload. A nil
// action returns s unchanged.
func Reduce(s State, a Action) State {
	next := s.Clone()

	switch a := a.(type) {
	case SetData:
		next.Data = a.Data.Clone()
		next.Status.UnsavedChanges = true
		next.Status.IsSubmissionError = false
		next.Status.IsSuccessfullySubmitted = false
	case SetLastSaved:
		next.LastSavedData = a.Data.Clone()
		next.Status.UnsavedChanges = false
	case SetLoading:
		next.Status.IsLoading = a.Value
	case SetSuccess:
		next.Status.IsSuccessfullySubmitted = a.Value
	case SetError:
		next.Status.IsSubmissionError = a.Value
	case SetMode:
		next.Data.Mode = a.Mode
		next.Status.UnsavedChanges = true
		next.Status.IsSuccessfullySubmitted = false
		next.Status.IsSubmissionError = false
	case Reset:
		next.Data = s.LastSavedData.Clone()
		next.Status.UnsavedChanges = false
	default:
		return s
	}

	return next
}
