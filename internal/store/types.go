package store

// Tag is a user-defined label with a display color. Exactly one system tag
// ("Archived") exists; it is created at startup and cannot be changed.
type Tag struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	System    bool   `json:"is_system"`
	CreatedAt int64  `json:"created_at"`
}

// TagAssignment links a tag to a conversation. PhoneNumber is derived from
// ChatID at write time and stored redundantly so the link survives chat id
// reassignment.
type TagAssignment struct {
	ID          int64  `json:"id"`
	TagID       int64  `json:"tag_id"`
	ChatID      string `json:"chat_id"`
	PhoneNumber string `json:"phone_number,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

// Note is free text attached to a conversation.
type Note struct {
	ID          int64  `json:"id"`
	ChatID      string `json:"chat_id"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Text        string `json:"text"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   *int64 `json:"updated_at,omitempty"`
}

// NoteCount is the number of notes attached to one conversation.
type NoteCount struct {
	ChatID string `json:"chat_id"`
	Count  int    `json:"count"`
}

// QuickReply is a reusable canned message.
type QuickReply struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at"`
}

// OutboxEntry is a queued quick-reply send.
type OutboxEntry struct {
	ID           int64
	ClientMsgID  string
	ChatID       string
	Body         string
	Status       string // queued, sending, sent, failed
	ErrorMessage string
	ServerMsgID  string
}

// Reserved system tag attributes.
const (
	ArchivedTagName  = "Archived"
	ArchivedTagColor = "#808080"
)
