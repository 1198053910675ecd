package store

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Store implements the local namespace: a SQLite-backed key/value store with
// JSON values and in-process change notifications. It holds the large
// payloads (chat history, archived chats, prompt templates) that the synced
// configuration file must not carry.
type Store struct {
	db *sql.DB

	mu          sync.Mutex
	subscribers []func(key string)
}

// New opens (and if needed initializes) a store at the given path.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			update_timestamp INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, errors.Wrap(err, "creating kv table")
	}

	return &Store{db: db}, nil
}

// Close the underlying database.
func (s *Store) Close() error {
	return errors.Wrap(s.db.Close(), "closing database")
}

// GetJSON decodes the value stored at key into out, reporting whether the key
// existed. A missing key leaves out untouched.
func (s *Store) GetJSON(key string, out any) (bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "querying key")
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		return false, errors.Wrapf(err, "unmarshaling value of '%s'", key)
	}
	return true, nil
}

// SetJSON encodes value and writes it at key, then notifies subscribers.
func (s *Store) SetJSON(key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "marshaling value")
	}

	// REPLACE INTO handles both insert and update cases.
	_, err = s.db.Exec(`
		REPLACE INTO kv (key, value, update_timestamp)
		VALUES (?, ?, ?)
	`, key, string(encoded), time.Now().UnixMicro())
	if err != nil {
		return errors.Wrap(err, "writing key")
	}

	s.notify(key)
	return nil
}

// Delete removes a key, then notifies subscribers.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return errors.Wrap(err, "deleting key")
	}
	s.notify(key)
	return nil
}

// OnChanged registers a callback invoked with the key of every successful
// write. Callbacks run synchronously on the writing goroutine.
func (s *Store) OnChanged(fn func(key string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) notify(key string) {
	s.mu.Lock()
	subscribers := make([]func(string), len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.Unlock()
	for _, fn := range subscribers {
		fn(key)
	}
}
