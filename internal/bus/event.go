package bus

import "time"

// Event kinds published by the core. Subscribers match on namespace prefix,
// so the push layer can forward everything a viewer cares about with a
// handful of subscriptions ("tags.", "notes.", "conversations.", ...).
const (
	KindTagsUpdated    = "tags.updated"
	KindNotesUpdated   = "notes.updated"
	KindRepliesUpdated = "replies.updated"
	KindSnapshot       = "conversations.snapshot"
	KindArchiveResult  = "conversations.archive_result"
	KindRefreshWanted  = "conversations.refresh_requested"
	KindReplySent      = "replies.sent"
	KindReplyFailed    = "replies.send_failed"
	KindQRGenerated    = "session.qr_generated"
	KindStatusChanged  = "session.status_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
