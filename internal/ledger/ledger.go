// Package ledger keeps an append-only history of sync attempts against the
// schedule endpoint for auditing and troubleshooting.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the outcome recorded in the ledger
type EventType string

const (
	EventSyncStarted   EventType = "sync_started"
	EventSyncSucceeded EventType = "sync_succeeded"
	EventSyncFailed    EventType = "sync_failed"
	EventSyncRejected  EventType = "sync_rejected"
)

// Operation names the sync operation.
type Operation string

const (
	OpFetch Operation = "fetch"
	OpSave  Operation = "save"
)

// Entry represents a single event in the ledger
type Entry struct {
	ID        int64
	EventType EventType
	Operation Operation
	Timestamp time.Time
	RequestID string
	Duration  time.Duration
	Payload   map[string]any
	Error     string
}

// Ledger provides append-only event logging
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Append adds a new event to the ledger.
func (l *Ledger) Append(e Entry) error {
	var payloadJSON []byte
	var err error

	if e.Payload != nil {
		payloadJSON, err = json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = l.now()
	}

	_, err = l.db.Exec(`
		INSERT INTO sync_ledger (event_type, operation, timestamp, request_id, duration_ms, payload, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(e.EventType), string(e.Operation), ts.UTC().Unix(), e.RequestID,
		e.Duration.Milliseconds(), string(payloadJSON), e.Error)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (l *Ledger) Recent(limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, operation, timestamp, request_id, duration_ms, payload, error
		FROM sync_ledger
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ByRequestID returns every entry of one sync attempt in insertion order.
func (l *Ledger) ByRequestID(requestID string) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, operation, timestamp, request_id, duration_ms, payload, error
		FROM sync_ledger
		WHERE request_id = ?
		ORDER BY id ASC
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := l.now().Add(-retention).UTC().Unix()
	result, err := l.db.Exec(`DELETE FROM sync_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var eventType, operation string
		var requestID, payloadStr, errStr sql.NullString
		var timestamp, durationMS int64

		err := rows.Scan(
			&entry.ID, &eventType, &operation, &timestamp, &requestID, &durationMS, &payloadStr, &errStr,
		)
		if err != nil {
			return nil, err
		}

		entry.EventType = EventType(eventType)
		entry.Operation = Operation(operation)
		entry.Timestamp = time.Unix(timestamp, 0).UTC()
		entry.Duration = time.Duration(durationMS) * time.Millisecond
		entry.RequestID = requestID.String
		entry.Error = errStr.String

		if payloadStr.Valid && payloadStr.String != "" {
			entry.Payload = make(map[string]any)
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
