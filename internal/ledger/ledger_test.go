package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/lightsched/internal/db"
)

func openLedger(t *testing.T) *Ledger {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "ledger.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return New(database.DB)
}

func TestLedger_AppendAndRecent(t *testing.T) {
	l := openLedger(t)

	require.NoError(t, l.Append(Entry{EventType: EventSyncStarted, Operation: OpFetch, RequestID: "a"}))
	require.NoError(t, l.Append(Entry{
		EventType: EventSyncSucceeded,
		Operation: OpFetch,
		RequestID: "a",
		Duration:  1500 * time.Millisecond,
		Payload:   map[string]any{"mode": "dayNight", "entries": 6},
	}))
	require.NoError(t, l.Append(Entry{EventType: EventSyncFailed, Operation: OpSave, RequestID: "b", Error: "boom"}))

	recent, err := l.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 3)

	assert.Equal(t, EventSyncFailed, recent[0].EventType)
	assert.Equal(t, OpSave, recent[0].Operation)
	assert.Equal(t, "boom", recent[0].Error)
	assert.Nil(t, recent[0].Payload)

	assert.Equal(t, EventSyncSucceeded, recent[1].EventType)
	assert.Equal(t, 1500*time.Millisecond, recent[1].Duration)
	assert.Equal(t, "dayNight", recent[1].Payload["mode"])
	assert.Equal(t, float64(6), recent[1].Payload["entries"])

	limited, err := l.Recent(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestLedger_ByRequestID(t *testing.T) {
	l := openLedger(t)

	require.NoError(t, l.Append(Entry{EventType: EventSyncStarted, Operation: OpSave, RequestID: "x"}))
	require.NoError(t, l.Append(Entry{EventType: EventSyncStarted, Operation: OpFetch, RequestID: "y"}))
	require.NoError(t, l.Append(Entry{EventType: EventSyncSucceeded, Operation: OpSave, RequestID: "x"}))

	entries, err := l.ByRequestID("x")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, EventSyncStarted, entries[0].EventType)
	assert.Equal(t, EventSyncSucceeded, entries[1].EventType)
}

func TestLedger_DeleteOlderThan(t *testing.T) {
	l := openLedger(t)
	now := time.Now()

	require.NoError(t, l.Append(Entry{EventType: EventSyncSucceeded, Operation: OpFetch, Timestamp: now.Add(-48 * time.Hour)}))
	require.NoError(t, l.Append(Entry{EventType: EventSyncSucceeded, Operation: OpFetch, Timestamp: now}))

	deleted, err := l.DeleteOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	recent, err := l.Recent(10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}
