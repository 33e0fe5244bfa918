package store

import (
	"database/sql"
	"strings"

	"github.com/matheus3301/wadesk/internal/bus"
)

// QuickReplies returns all canned replies in ascending id order.
func (s *Store) QuickReplies() ([]QuickReply, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT id, text, created_at FROM quick_replies ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var replies []QuickReply
	for rows.Next() {
		var r QuickReply
		if err := rows.Scan(&r.ID, &r.Text, &r.CreatedAt); err != nil {
			return nil, err
		}
		replies = append(replies, r)
	}
	return replies, rows.Err()
}

// QuickReplyByID returns a single canned reply, or ErrNotFound.
func (s *Store) QuickReplyByID(id int64) (*QuickReply, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	var r QuickReply
	err := s.db.QueryRow(`SELECT id, text, created_at FROM quick_replies WHERE id = ?`, id).
		Scan(&r.ID, &r.Text, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateQuickReply stores a new canned reply. Text may span lines.
func (s *Store) CreateQuickReply(text string) (*QuickReply, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Field: "text"}
	}
	now := s.now().UnixMilli()
	res, err := s.db.Exec(`INSERT INTO quick_replies (text, created_at) VALUES (?, ?)`, text, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	s.emit(bus.KindRepliesUpdated, nil)
	return &QuickReply{ID: id, Text: text, CreatedAt: now}, nil
}

// UpdateQuickReply replaces a canned reply's text.
func (s *Store) UpdateQuickReply(id int64, text string) (*QuickReply, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Field: "text"}
	}
	existing, err := s.QuickReplyByID(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(`UPDATE quick_replies SET text = ? WHERE id = ?`, text, id); err != nil {
		return nil, err
	}
	s.emit(bus.KindRepliesUpdated, nil)
	existing.Text = text
	return existing, nil
}

// DeleteQuickReply removes a canned reply.
func (s *Store) DeleteQuickReply(id int64) error {
	if err := s.guard(); err != nil {
		return err
	}
	if _, err := s.QuickReplyByID(id); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM quick_replies WHERE id = ?`, id); err != nil {
		return err
	}
	s.emit(bus.KindRepliesUpdated, nil)
	return nil
}

// InsertQuickReply is the import-pipeline insert: duplicates allowed, no
// notification.
func (s *Store) InsertQuickReply(text string, createdAt int64) error {
	if err := s.guard(); err != nil {
		return err
	}
	if createdAt == 0 {
		createdAt = s.now().UnixMilli()
	}
	_, err := s.db.Exec(`INSERT INTO quick_replies (text, created_at) VALUES (?, ?)`, text, createdAt)
	return err
}

// PurgeQuickReplies deletes every canned reply. Used by replace imports.
func (s *Store) PurgeQuickReplies() error {
	if err := s.guard(); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM quick_replies`)
	return err
}
