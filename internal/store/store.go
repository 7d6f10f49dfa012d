// Package store implements the collaborator interfaces on SQLite. The
// realtime core only ever sees the interfaces in pkg/interfaces; this
// package is what a deployment actually wires in, and what the
// surrounding request/response layer shares so both transports apply
// identical membership, mute and persistence rules.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Store owns the database handle. SQLite allows exactly one writer, so
// all mutating statements funnel through writeMu while reads run
// concurrently against the WAL.
type Store struct {
	db      *sql.DB
	log     *zap.Logger
	writeMu sync.Mutex
}

// Open opens (and if needed creates) the database at path and applies
// the schema.
func Open(path string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	log.Info("database opened", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Users returns the IdentityDirectory implementation.
func (s *Store) Users() *Users { return &Users{s} }

// Messages returns the MessageStore implementation.
func (s *Store) Messages() *Messages { return &Messages{s} }

// Groups returns the GroupDirectory implementation.
func (s *Store) Groups() *Groups { return &Groups{s} }

// Friends returns the FriendDirectory implementation.
func (s *Store) Friends() *Friends { return &Friends{s} }

// exec serializes a write statement.
func (s *Store) exec(query string, args ...any) (sql.Result, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.db.Exec(query, args...)
}
