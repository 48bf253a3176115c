// Package ledger keeps an append-only history of brightness transitions
// for auditing the automation.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a transition.
type Kind string

const (
	// KindAutoOn is an automatic turn-on (motion in the dark).
	KindAutoOn Kind = "auto_on"

	// KindAutoOff is an automatic turn-off (stay-on time elapsed).
	KindAutoOff Kind = "auto_off"

	// KindManual is a user-initiated change (API or MQTT).
	KindManual Kind = "manual"
)

// Entry is a single recorded transition.
type Entry struct {
	ID        int64
	EntryID   string
	Kind      Kind
	Timestamp time.Time
	Payload   map[string]any
}

// Ledger provides append-only transition logging.
type Ledger struct {
	db *sql.DB
}

// New creates a Ledger on the shared database.
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Append records a transition.
func (l *Ledger) Append(kind Kind, payload map[string]any) error {
	var payloadJSON []byte
	if payload != nil {
		var err error
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal ledger payload: %w", err)
		}
	}

	_, err := l.db.Exec(`
		INSERT INTO transition_ledger (entry_id, kind, timestamp, payload)
		VALUES (?, ?, ?, ?)
	`, uuid.NewString(), string(kind), time.Now().UTC().Unix(), string(payloadJSON))
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// Recent returns the most recent entries, newest first.
func (l *Ledger) Recent(limit int) ([]Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, entry_id, kind, timestamp, payload
		FROM transition_ledger
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind string
		var ts int64
		var payloadStr sql.NullString

		if err := rows.Scan(&e.ID, &e.EntryID, &kind, &ts, &payloadStr); err != nil {
			return nil, err
		}

		e.Kind = Kind(kind)
		e.Timestamp = time.Unix(ts, 0).UTC()
		if payloadStr.Valid && payloadStr.String != "" {
			if err := json.Unmarshal([]byte(payloadStr.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal ledger payload: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteOlderThan removes entries older than the given age and returns
// how many were deleted.
func (l *Ledger) DeleteOlderThan(age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age).UTC().Unix()

	res, err := l.db.Exec(`DELETE FROM transition_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
