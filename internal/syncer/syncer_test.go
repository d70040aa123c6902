package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/lightsched/internal/ledger"
	"github.com/dokzlo13/lightsched/internal/remote"
	"github.com/dokzlo13/lightsched/internal/schedule"
	"github.com/dokzlo13/lightsched/internal/store"
)

const scenarioDoc = `{"mode":"dayNight","serverTime":1000,"brightnessSchedule":[{"label":"sunrise","time":"07:00","unixTime":1000,"warmBrightness":0,"coolBrightness":0}]}`

func scenarioData() schedule.Data {
	return schedule.Data{
		Mode:       schedule.ModeDayNight,
		ServerTime: 1000,
		BrightnessSchedule: []schedule.Entry{
			{Label: "sunrise", Time: "07:00", UnixTime: 1000},
		},
	}
}

type fakeEndpoint struct {
	mu        sync.Mutex
	body      []byte
	fetchErr  error
	saveErr   error
	saved     []schedule.Data
	fetchGate chan struct{}
	fetchHit  chan struct{}
	onSave    func()
}

func (f *fakeEndpoint) Fetch(ctx context.Context, requestID string) ([]byte, error) {
	if f.fetchHit != nil {
		f.fetchHit <- struct{}{}
	}
	if f.fetchGate != nil {
		<-f.fetchGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.body, f.fetchErr
}

func (f *fakeEndpoint) Save(ctx context.Context, requestID string, data schedule.Data) error {
	if f.onSave != nil {
		f.onSave()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, data)
	return nil
}

type fakeReporter struct {
	mu    sync.Mutex
	infos []string
	ids   []string
}

func (r *fakeReporter) Report(err error, info, requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, info)
	r.ids = append(r.ids, requestID)
}

func (r *fakeReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.infos)
}

type memRecorder struct {
	mu      sync.Mutex
	entries []ledger.Entry
}

func (m *memRecorder) Append(e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memRecorder) types() []ledger.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.EventType, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.EventType)
	}
	return out
}

func newSyncer(ep Endpoint) (*Syncer, *store.Store, *fakeReporter, *memRecorder) {
	st := store.New(nil)
	rep := &fakeReporter{}
	rec := &memRecorder{}
	return New(st, ep, rep, rec), st, rep, rec
}

func TestFetch_Success(t *testing.T) {
	ep := &fakeEndpoint{body: []byte(scenarioDoc)}
	s, st, rep, rec := newSyncer(ep)

	require.NoError(t, s.Fetch(context.Background()))

	got := st.State()
	assert.Equal(t, scenarioData(), got.Data)
	assert.Equal(t, scenarioData(), got.LastSavedData)
	assert.Equal(t, store.Status{}, got.Status)
	assert.Zero(t, rep.count())
	assert.Equal(t, []ledger.EventType{ledger.EventSyncStarted, ledger.EventSyncSucceeded}, rec.types())
}

func TestFetch_FailureLeavesStateUntouched(t *testing.T) {
	tests := []struct {
		name string
		ep   *fakeEndpoint
	}{
		{name: "transport", ep: &fakeEndpoint{fetchErr: errors.New("connection refused")}},
		{name: "status", ep: &fakeEndpoint{fetchErr: &remote.StatusError{Method: "GET", StatusCode: 502}}},
		{name: "invalid_document", ep: &fakeEndpoint{body: []byte(`{"mode":"disco","serverTime":1,"brightnessSchedule":[]}`)}},
		{name: "out_of_range", ep: &fakeEndpoint{body: []byte(`{"mode":"demo","serverTime":1,"brightnessSchedule":[{"label":"a","time":"01:00","unixTime":0,"warmBrightness":200,"coolBrightness":0}]}`)}},
		{name: "empty_body", ep: &fakeEndpoint{body: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, st, rep, rec := newSyncer(tt.ep)

			// bring the store into a known edited state first
			edited := scenarioData()
			edited.BrightnessSchedule[0].WarmBrightness = 40
			st.Dispatch(store.SetData{Data: scenarioData()}, store.SetLastSaved{Data: scenarioData()}, store.SetData{Data: edited})
			before := st.State()

			err := s.Fetch(context.Background())
			require.Error(t, err)

			after := st.State()
			assert.Equal(t, before.Data, after.Data)
			assert.Equal(t, before.LastSavedData, after.LastSavedData)
			assert.True(t, after.Status.IsSubmissionError)
			assert.False(t, after.Status.IsLoading)
			assert.Equal(t, 1, rep.count())
			assert.Equal(t, []string{"fetchSchedule"}, rep.infos)
			require.Len(t, rep.ids, 1)
			assert.NotEmpty(t, rep.ids[0])
			assert.Equal(t, rec.entries[0].RequestID, rep.ids[0])
			assert.Equal(t, []ledger.EventType{ledger.EventSyncStarted, ledger.EventSyncFailed}, rec.types())
		})
	}
}

func TestFetch_ClearsPreviousError(t *testing.T) {
	ep := &fakeEndpoint{fetchErr: errors.New("offline")}
	s, st, _, _ := newSyncer(ep)

	require.Error(t, s.Fetch(context.Background()))
	require.True(t, st.State().Status.IsSubmissionError)

	ep.mu.Lock()
	ep.fetchErr = nil
	ep.body = []byte(scenarioDoc)
	ep.mu.Unlock()

	require.NoError(t, s.Fetch(context.Background()))
	assert.False(t, st.State().Status.IsSubmissionError)
}

func TestSave_PromotesSnapshot(t *testing.T) {
	ep := &fakeEndpoint{body: []byte(scenarioDoc)}
	s, st, _, rec := newSyncer(ep)
	require.NoError(t, s.Fetch(context.Background()))

	edited := scenarioData()
	edited.BrightnessSchedule[0].WarmBrightness = 85
	st.Dispatch(store.SetData{Data: edited})

	require.NoError(t, s.Save(context.Background()))

	got := st.State()
	assert.Equal(t, 85, got.LastSavedData.BrightnessSchedule[0].WarmBrightness)
	assert.Equal(t, got.Data, got.LastSavedData)
	assert.True(t, got.Status.IsSuccessfullySubmitted)
	assert.False(t, got.Status.UnsavedChanges)
	assert.False(t, got.Status.IsSubmissionError)

	require.Len(t, ep.saved, 1)
	assert.Equal(t, edited, ep.saved[0])
	assert.Equal(t, []ledger.EventType{
		ledger.EventSyncStarted, ledger.EventSyncSucceeded,
		ledger.EventSyncStarted, ledger.EventSyncSucceeded,
	}, rec.types())
}

func TestSave_FailureKeepsEdits(t *testing.T) {
	ep := &fakeEndpoint{body: []byte(scenarioDoc)}
	s, st, rep, _ := newSyncer(ep)
	require.NoError(t, s.Fetch(context.Background()))

	edited := scenarioData()
	edited.BrightnessSchedule[0].CoolBrightness = 10
	st.Dispatch(store.SetData{Data: edited})

	ep.saveErr = &remote.StatusError{Method: "POST", StatusCode: 403}
	err := s.Save(context.Background())
	require.Error(t, err)
	assert.True(t, remote.IsStatus(err))

	got := st.State()
	assert.Equal(t, edited, got.Data)
	assert.Equal(t, scenarioData(), got.LastSavedData)
	assert.True(t, got.Status.IsSubmissionError)
	assert.False(t, got.Status.IsSuccessfullySubmitted)
	assert.True(t, got.Status.UnsavedChanges)
	assert.Equal(t, 1, rep.count())

	// retry succeeds and flips the banners
	ep.saveErr = nil
	require.NoError(t, s.Save(context.Background()))
	got = st.State()
	assert.False(t, got.Status.IsSubmissionError)
	assert.True(t, got.Status.IsSuccessfullySubmitted)
	assert.Equal(t, edited, got.LastSavedData)
}

func TestSync_RejectsWhileInFlight(t *testing.T) {
	ep := &fakeEndpoint{
		body:      []byte(scenarioDoc),
		fetchGate: make(chan struct{}),
		fetchHit:  make(chan struct{}, 1),
	}
	s, st, _, rec := newSyncer(ep)

	done := make(chan error, 1)
	go func() { done <- s.Fetch(context.Background()) }()

	select {
	case <-ep.fetchHit:
	case <-time.After(2 * time.Second):
		require.Fail(t, "fetch never reached the endpoint")
	}
	assert.Equal(t, ledger.OpFetch, s.InFlight())

	before := st.State()
	err := s.Save(context.Background())
	assert.ErrorIs(t, err, ErrSyncInProgress)
	err = s.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.Equal(t, before, st.State())
	assert.Empty(t, ep.saved)

	close(ep.fetchGate)
	require.NoError(t, <-done)
	assert.Equal(t, ledger.Operation(""), s.InFlight())
	assert.Contains(t, rec.types(), ledger.EventSyncRejected)

	// idle again: save goes through
	require.NoError(t, s.Save(context.Background()))
}

func TestNew_DefaultReporter(t *testing.T) {
	s := New(store.New(nil), &fakeEndpoint{fetchErr: errors.New("x")}, nil, nil)
	require.NotPanics(t, func() {
		_ = s.Fetch(context.Background())
	})
}

func TestSave_EditDuringPostStaysUnsaved(t *testing.T) {
	ep := &fakeEndpoint{body: []byte(scenarioDoc)}
	s, st, _, _ := newSyncer(ep)
	require.NoError(t, s.Fetch(context.Background()))

	submitted := scenarioData()
	submitted.BrightnessSchedule[0].WarmBrightness = 85
	st.Dispatch(store.SetData{Data: submitted})

	later := submitted.Clone()
	later.BrightnessSchedule[0].CoolBrightness = 30
	ep.onSave = func() { st.Dispatch(store.SetData{Data: later}) }

	require.NoError(t, s.Save(context.Background()))

	got := st.State()
	assert.Equal(t, submitted, got.LastSavedData)
	assert.Equal(t, later, got.Data)
	assert.True(t, got.Status.UnsavedChanges)
	assert.True(t, got.Status.IsSuccessfullySubmitted)
	require.Len(t, ep.saved, 1)
	assert.Equal(t, submitted, ep.saved[0])
}
