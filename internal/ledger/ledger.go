// Package ledger provides an append-only history of lamp commands.
// It implements lamp.Recorder so a fleet can audit every command it sends.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/luvo/internal/cloud"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventCommandSent   EventType = "command_sent"
	EventCommandFailed EventType = "command_failed"
)

// Entry represents a single event in the ledger
type Entry struct {
	ID        int64
	LampID    string
	EventType EventType
	Timestamp time.Time
	Payload   map[string]any
	Error     string
}

// Ledger provides append-only command logging
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Append adds a new event to the ledger
func (l *Ledger) Append(lampID string, eventType EventType, payload map[string]any, cmdErr error) error {
	var payloadJSON []byte
	var err error

	if payload != nil {
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	var errText sql.NullString
	if cmdErr != nil {
		errText = sql.NullString{String: cmdErr.Error(), Valid: true}
	}

	_, err = l.db.Exec(
		`INSERT INTO command_ledger (lamp_id, event_type, timestamp, payload, error) VALUES (?, ?, ?, ?, ?)`,
		lampID, string(eventType), l.now().UTC().UnixMilli(), string(payloadJSON), errText,
	)
	return err
}

// RecordCommand implements lamp.Recorder.
// Ledger write failures are logged, never surfaced to the command caller.
func (l *Ledger) RecordCommand(lampID string, cmd cloud.Command, cmdErr error) {
	eventType := EventCommandSent
	if cmdErr != nil {
		eventType = EventCommandFailed
	}
	if err := l.Append(lampID, eventType, cmd.Fields(), cmdErr); err != nil {
		log.Warn().Err(err).Str("lamp", lampID).Msg("Failed to record command in ledger")
	}
}

// Recent returns the newest entries across all lamps
func (l *Ledger) Recent(limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, lamp_id, event_type, timestamp, payload, error
		FROM command_ledger
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// ByLamp returns the newest entries for one lamp
func (l *Ledger) ByLamp(lampID string, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, lamp_id, event_type, timestamp, payload, error
		FROM command_ledger
		WHERE lamp_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, lampID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := l.now().Add(-retention).UTC().UnixMilli()
	result, err := l.db.Exec(`DELETE FROM command_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var payloadStr, errText sql.NullString
		var timestamp int64

		if err := rows.Scan(&entry.ID, &entry.LampID, &entry.EventType, &timestamp, &payloadStr, &errText); err != nil {
			return nil, err
		}

		entry.Timestamp = time.UnixMilli(timestamp).UTC()
		if errText.Valid {
			entry.Error = errText.String
		}

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
