// Package store is the metadata store: tags, tag assignments, notes and
// quick replies persisted in the app-owned SQLite file. It exclusively owns
// all durable metadata; other components mutate only through its methods.
// Successful mutations publish a change notification on the bus.
package store

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/matheus3301/wadesk/internal/bus"
)

// Store wraps the metadata database with the notification bus and a ready
// gate. Until Init completes, every operation fails with ErrUnavailable.
type Store struct {
	db            *DB
	bus           *bus.Bus
	now           func() time.Time
	ready         atomic.Bool
	archivedTagID atomic.Int64
}

// New creates a Store over an open database. Call Init before use.
func New(db *DB, b *bus.Bus) *Store {
	return &Store{db: db, bus: b, now: time.Now}
}

// Init migrates the schema, bootstraps the system tag and marks the store
// ready.
func (s *Store) Init() (*MigrateResult, error) {
	result, err := s.db.Migrate()
	if err != nil {
		return nil, err
	}
	id, err := s.ensureArchivedTag()
	if err != nil {
		return nil, err
	}
	s.archivedTagID.Store(id)
	s.ready.Store(true)
	return result, nil
}

// ArchivedTagID returns the id of the system Archived tag. Valid only
// after Init.
func (s *Store) ArchivedTagID() int64 {
	return s.archivedTagID.Load()
}

// Ready reports whether Init has completed.
func (s *Store) Ready() bool {
	return s.ready.Load()
}

func (s *Store) guard() error {
	if !s.ready.Load() {
		return ErrUnavailable
	}
	return nil
}

func (s *Store) emit(kind string, payload any) {
	if s.bus != nil {
		s.bus.Emit(kind, payload)
	}
}

// ensureArchivedTag creates the permanent system tag if absent and returns
// its id. At most one row may hold the reserved system name.
func (s *Store) ensureArchivedTag() (int64, error) {
	var id int64
	err := s.db.QueryRow(
		`SELECT id FROM tags WHERE name = ? AND is_system = 1 LIMIT 1`,
		ArchivedTagName).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("look up system tag: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO tags (name, color, is_system, created_at) VALUES (?, ?, 1, ?)`,
		ArchivedTagName, ArchivedTagColor, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("create system tag: %w", err)
	}
	return res.LastInsertId()
}
