// Package storage persists JSON documents, chiefly the usermod config
// document written by the config-export hook and replayed on boot.
package storage

import (
	"database/sql"
	"sync"
	"time"
)

// DocKindUsermodConfig is the document kind for persisted usermod
// settings.
const DocKindUsermodConfig = "usermod_config"

// Store provides versioned JSON document storage keyed by (kind, id).
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore creates a document store on the shared database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get retrieves payload and version for a document. Returns an empty
// payload and version 0 when not found.
func (s *Store) Get(kind, id string) (payload []byte, version int64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payloadStr string
	err = s.db.QueryRow(`
		SELECT payload, version FROM config_docs
		WHERE kind = ? AND id = ?
	`, kind, id).Scan(&payloadStr, &version)

	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	return []byte(payloadStr), version, nil
}

// Set stores a payload, incrementing the version on update.
func (s *Store) Set(kind, id string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Unix()

	_, err := s.db.Exec(`
		INSERT INTO config_docs (kind, id, payload, version, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(kind, id) DO UPDATE SET
			payload = excluded.payload,
			version = version + 1,
			updated_at = excluded.updated_at
	`, kind, id, string(payload), now)

	return err
}

// Delete removes a document.
func (s *Store) Delete(kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM config_docs WHERE kind = ? AND id = ?`, kind, id)
	return err
}

// Clear removes all documents of a kind. An empty kind clears everything.
func (s *Store) Clear(kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kind == "" {
		_, err := s.db.Exec(`DELETE FROM config_docs`)
		return err
	}
	_, err := s.db.Exec(`DELETE FROM config_docs WHERE kind = ?`, kind)
	return err
}
