package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/matheus3301/wadesk/internal/bus"
	"github.com/matheus3301/wadesk/internal/identity"
)

// Tags returns all tags in ascending id order.
func (s *Store) Tags() ([]Tag, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT id, name, color, is_system, created_at FROM tags ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color, &t.System, &t.CreatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// TagByID returns a single tag, or ErrNotFound.
func (s *Store) TagByID(id int64) (*Tag, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	var t Tag
	err := s.db.QueryRow(`SELECT id, name, color, is_system, created_at FROM tags WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Color, &t.System, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTag inserts a user tag and publishes a tags change.
func (s *Store) CreateTag(name, color string) (*Tag, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Field: "name"}
	}
	if strings.TrimSpace(color) == "" {
		return nil, &ValidationError{Field: "color"}
	}
	now := s.now().UnixMilli()
	res, err := s.db.Exec(`INSERT INTO tags (name, color, is_system, created_at) VALUES (?, ?, 0, ?)`,
		name, color, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	s.emit(bus.KindTagsUpdated, nil)
	return &Tag{ID: id, Name: name, Color: color, CreatedAt: now}, nil
}

// UpdateTag renames or recolors a user tag. System tags are immutable.
func (s *Store) UpdateTag(id int64, name, color string) (*Tag, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Field: "name"}
	}
	if strings.TrimSpace(color) == "" {
		return nil, &ValidationError{Field: "color"}
	}
	existing, err := s.TagByID(id)
	if err != nil {
		return nil, err
	}
	if existing.System {
		return nil, ErrForbidden
	}
	if _, err := s.db.Exec(`UPDATE tags SET name = ?, color = ? WHERE id = ?`, name, color, id); err != nil {
		return nil, err
	}
	s.emit(bus.KindTagsUpdated, nil)
	existing.Name = name
	existing.Color = color
	return existing, nil
}

// DeleteTag removes a user tag and cascades deletion of its assignments.
// Deleting the system tag fails with ErrForbidden.
func (s *Store) DeleteTag(id int64) error {
	if err := s.guard(); err != nil {
		return err
	}
	existing, err := s.TagByID(id)
	if err != nil {
		return err
	}
	if existing.System {
		return ErrForbidden
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM tag_assignments WHERE tag_id = ?`, id); err != nil {
		return fmt.Errorf("cascade assignments: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM tags WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.emit(bus.KindTagsUpdated, nil)
	return nil
}

// CountAssignments returns the number of conversations carrying the tag.
// Used to warn before destructive deletion.
func (s *Store) CountAssignments(tagID int64) (int, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tag_assignments WHERE tag_id = ?`, tagID).Scan(&count)
	return count, err
}

// AssignTag links a tag to a conversation, deriving the phone key at write
// time. Idempotent: returns created=false without error when the pair
// already exists.
func (s *Store) AssignTag(tagID int64, chatID string) (created bool, err error) {
	if err := s.guard(); err != nil {
		return false, err
	}
	if chatID == "" {
		return false, &ValidationError{Field: "chat_id"}
	}
	if _, err := s.TagByID(tagID); err != nil {
		return false, err
	}
	created, err = s.insertAssignment(tagID, chatID, identity.PhoneFromChatID(chatID))
	if err != nil {
		return false, err
	}
	if created {
		s.emit(bus.KindTagsUpdated, nil)
	}
	return created, nil
}

// UnassignTag removes the (tag, conversation) link if present. Absent pairs
// are a no-op, not an error.
func (s *Store) UnassignTag(tagID int64, chatID string) error {
	if err := s.guard(); err != nil {
		return err
	}
	res, err := s.db.Exec(`DELETE FROM tag_assignments WHERE tag_id = ? AND chat_id = ?`, tagID, chatID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.emit(bus.KindTagsUpdated, nil)
	}
	return nil
}

// ListTagsForChat returns the ids of all tags assigned to a conversation,
// in assignment order.
func (s *Store) ListTagsForChat(chatID string) ([]int64, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT tag_id FROM tag_assignments WHERE chat_id = ? ORDER BY id`, chatID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// HasAssignment reports whether the (tag, conversation) pair exists.
func (s *Store) HasAssignment(tagID int64, chatID string) (bool, error) {
	if err := s.guard(); err != nil {
		return false, err
	}
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM tag_assignments WHERE tag_id = ? AND chat_id = ?`, tagID, chatID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// Assignments returns every assignment row in ascending id order, for
// export.
func (s *Store) Assignments() ([]TagAssignment, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT id, tag_id, chat_id, COALESCE(phone_number, ''), created_at FROM tag_assignments ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []TagAssignment
	for rows.Next() {
		var a TagAssignment
		if err := rows.Scan(&a.ID, &a.TagID, &a.ChatID, &a.PhoneNumber, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AssignmentChatIDByPhone returns a chat id previously associated with the
// phone key, or "" when none exists. Used for identifier-churn recovery
// during import.
func (s *Store) AssignmentChatIDByPhone(phone string) (string, error) {
	if err := s.guard(); err != nil {
		return "", err
	}
	var chatID string
	err := s.db.QueryRow(`SELECT chat_id FROM tag_assignments WHERE phone_number = ? LIMIT 1`, phone).Scan(&chatID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return chatID, err
}

// InsertTag inserts a tag row without publishing; the import pipeline
// batches its own notification.
func (s *Store) InsertTag(name, color string) (int64, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	res, err := s.db.Exec(`INSERT INTO tags (name, color, is_system, created_at) VALUES (?, ?, 0, ?)`,
		name, color, s.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// insertAssignment performs the idempotent insert shared by AssignTag and
// the import pipeline.
func (s *Store) insertAssignment(tagID int64, chatID, phone string) (bool, error) {
	res, err := s.db.Exec(`
		INSERT INTO tag_assignments (tag_id, chat_id, phone_number, created_at)
		VALUES (?, ?, NULLIF(?, ''), ?)
		ON CONFLICT(tag_id, chat_id) DO NOTHING`,
		tagID, chatID, phone, s.now().UnixMilli())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// InsertAssignment is the import-pipeline insert: no tag existence check
// (incoming ids are best-effort), no notification, dedup reported via the
// created flag.
func (s *Store) InsertAssignment(tagID int64, chatID, phone string) (bool, error) {
	if err := s.guard(); err != nil {
		return false, err
	}
	return s.insertAssignment(tagID, chatID, phone)
}

// PurgeTags deletes all assignments and all non-system tags. The system
// tag survives a replace import.
func (s *Store) PurgeTags() error {
	if err := s.guard(); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM tag_assignments`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM tags WHERE is_system = 0`); err != nil {
		return err
	}
	return tx.Commit()
}
