package store

import (
	"database/sql"
	"strings"

	"github.com/matheus3301/wadesk/internal/bus"
	"github.com/matheus3301/wadesk/internal/identity"
)

const noteColumns = `id, chat_id, COALESCE(phone_number, ''), text, created_at, updated_at`

func scanNote(row interface{ Scan(...any) error }) (*Note, error) {
	var n Note
	var updated sql.NullInt64
	if err := row.Scan(&n.ID, &n.ChatID, &n.PhoneNumber, &n.Text, &n.CreatedAt, &updated); err != nil {
		return nil, err
	}
	if updated.Valid {
		n.UpdatedAt = &updated.Int64
	}
	return &n, nil
}

// NotesForChat returns a conversation's notes, newest first.
func (s *Store) NotesForChat(chatID string) ([]Note, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	return s.queryNotes(`SELECT `+noteColumns+` FROM notes WHERE chat_id = ? ORDER BY id DESC`, chatID)
}

// Notes returns all notes in ascending id order, optionally filtered by
// chat id. The export partner of note import.
func (s *Store) Notes(chatID string) ([]Note, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if chatID != "" {
		return s.queryNotes(`SELECT `+noteColumns+` FROM notes WHERE chat_id = ? ORDER BY id`, chatID)
	}
	return s.queryNotes(`SELECT ` + noteColumns + ` FROM notes ORDER BY id`)
}

func (s *Store) queryNotes(query string, args ...any) ([]Note, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var notes []Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

// NoteByID returns a single note, or ErrNotFound.
func (s *Store) NoteByID(id int64) (*Note, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	n, err := scanNote(s.db.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// CreateNote attaches a note to a conversation, deriving the phone key at
// write time.
func (s *Store) CreateNote(chatID, text string) (*Note, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if chatID == "" {
		return nil, &ValidationError{Field: "chat_id"}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Field: "text"}
	}
	phone := identity.PhoneFromChatID(chatID)
	now := s.now().UnixMilli()
	res, err := s.db.Exec(`INSERT INTO notes (chat_id, phone_number, text, created_at) VALUES (?, NULLIF(?, ''), ?, ?)`,
		chatID, phone, text, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	s.emit(bus.KindNotesUpdated, map[string]string{"chat_id": chatID})
	return &Note{ID: id, ChatID: chatID, PhoneNumber: phone, Text: text, CreatedAt: now}, nil
}

// UpdateNote replaces a note's text and stamps updated_at.
func (s *Store) UpdateNote(id int64, text string) (*Note, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Field: "text"}
	}
	existing, err := s.NoteByID(id)
	if err != nil {
		return nil, err
	}
	now := s.now().UnixMilli()
	if _, err := s.db.Exec(`UPDATE notes SET text = ?, updated_at = ? WHERE id = ?`, text, now, id); err != nil {
		return nil, err
	}
	s.emit(bus.KindNotesUpdated, map[string]string{"chat_id": existing.ChatID})
	existing.Text = text
	existing.UpdatedAt = &now
	return existing, nil
}

// DeleteNote removes a note.
func (s *Store) DeleteNote(id int64) error {
	if err := s.guard(); err != nil {
		return err
	}
	existing, err := s.NoteByID(id)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM notes WHERE id = ?`, id); err != nil {
		return err
	}
	s.emit(bus.KindNotesUpdated, map[string]string{"chat_id": existing.ChatID})
	return nil
}

// NoteCounts returns per-conversation note counts for badge rendering.
func (s *Store) NoteCounts() ([]NoteCount, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT chat_id, COUNT(*) FROM notes GROUP BY chat_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var counts []NoteCount
	for rows.Next() {
		var c NoteCount
		if err := rows.Scan(&c.ChatID, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// NoteExists reports whether a note with the exact (chat, text) pair is
// already stored. The import dedup rule.
func (s *Store) NoteExists(chatID, text string) (bool, error) {
	if err := s.guard(); err != nil {
		return false, err
	}
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM notes WHERE chat_id = ? AND text = ? LIMIT 1`, chatID, text).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// NoteChatIDByPhone returns a chat id previously recorded for the phone
// key in notes, or "".
func (s *Store) NoteChatIDByPhone(phone string) (string, error) {
	if err := s.guard(); err != nil {
		return "", err
	}
	var chatID string
	err := s.db.QueryRow(`SELECT chat_id FROM notes WHERE phone_number = ? LIMIT 1`, phone).Scan(&chatID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return chatID, err
}

// InsertNote is the import-pipeline insert: preserves an incoming created
// timestamp and skips the change notification.
func (s *Store) InsertNote(chatID, phone, text string, createdAt int64) error {
	if err := s.guard(); err != nil {
		return err
	}
	if createdAt == 0 {
		createdAt = s.now().UnixMilli()
	}
	_, err := s.db.Exec(`INSERT INTO notes (chat_id, phone_number, text, created_at) VALUES (?, NULLIF(?, ''), ?, ?)`,
		chatID, phone, text, createdAt)
	return err
}

// PurgeNotes deletes every note. Used by replace imports.
func (s *Store) PurgeNotes() error {
	if err := s.guard(); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM notes`)
	return err
}
