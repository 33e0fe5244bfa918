// Package provider defines the messaging backend surface the rest of the
// daemon programs against. The production implementation lives in
// internal/wa; tests substitute fakes.
package provider

import (
	"context"
	"fmt"
)

// RawConversation is a chat as reported by the backend, before any
// metadata enrichment.
type RawConversation struct {
	ChatID        string
	Name          string
	IsGroup       bool
	UnreadCount   int
	LastTimestamp int64 // unix seconds, 0 when unknown
	Archived      bool
}

// RawMessage is a single message from a conversation's recent history.
type RawMessage struct {
	ID        string
	ChatID    string
	Body      string
	FromMe    bool
	Timestamp int64 // unix seconds
}

// Client is the backend session. All methods may fail with *Error when
// the underlying session rejects the operation.
type Client interface {
	// Ready reports whether the session is authenticated and connected.
	Ready() bool

	// Conversations lists every chat the session currently knows about.
	Conversations(ctx context.Context) ([]RawConversation, error)

	// ConversationByID returns a single chat, or nil when unknown.
	ConversationByID(ctx context.Context, chatID string) (*RawConversation, error)

	// RecentMessages returns up to limit messages for the chat, oldest first.
	RecentMessages(ctx context.Context, chatID string, limit int) ([]RawMessage, error)

	// Archive and Unarchive flip the chat's archive state on the backend.
	Archive(ctx context.Context, chatID string) error
	Unarchive(ctx context.Context, chatID string) error

	// SendText sends a plain text message and returns the server message id.
	SendText(ctx context.Context, chatID, body string) (string, error)
}

// Error wraps a backend failure with the operation that caused it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// Wrap tags err with the failed operation, returning nil for nil.
func Wrap(op string, err error) error { return wrapErr(op, err) }
