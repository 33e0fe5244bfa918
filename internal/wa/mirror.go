package wa

import (
	"sort"
	"sync"

	"github.com/matheus3301/wadesk/internal/provider"
)

// historyCap bounds how many messages the mirror retains per chat. The
// snapshot builder only ever asks for a small window.
const historyCap = 32

type chatState struct {
	name     string
	isGroup  bool
	unread   int
	archived bool
	lastTS   int64
	messages []provider.RawMessage // oldest first
}

// Mirror is the in-memory projection of the provider's chat list, kept
// current by the event handler. Reads never touch the network.
type Mirror struct {
	mu    sync.RWMutex
	chats map[string]*chatState
}

func NewMirror() *Mirror {
	return &Mirror{chats: map[string]*chatState{}}
}

func (m *Mirror) upsert(chatID string) *chatState {
	c, ok := m.chats[chatID]
	if !ok {
		c = &chatState{}
		m.chats[chatID] = c
	}
	return c
}

// RecordMessage appends a message to the chat's history window and bumps
// the unread counter for inbound messages.
func (m *Mirror) RecordMessage(msg provider.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.upsert(msg.ChatID)
	c.messages = append(c.messages, msg)
	if len(c.messages) > historyCap {
		c.messages = c.messages[len(c.messages)-historyCap:]
	}
	if msg.Timestamp > c.lastTS {
		c.lastTS = msg.Timestamp
	}
	if !msg.FromMe {
		c.unread++
	} else {
		c.unread = 0
	}
}

// RecordHistory merges a history-sync batch for one chat. History arrives
// unordered; the window is re-sorted after the merge.
func (m *Mirror) RecordHistory(chatID, name string, isGroup bool, unread int, archived bool, msgs []provider.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.upsert(chatID)
	if name != "" {
		c.name = name
	}
	c.isGroup = isGroup
	c.unread = unread
	c.archived = archived

	seen := map[string]bool{}
	for _, existing := range c.messages {
		seen[existing.ID] = true
	}
	for _, msg := range msgs {
		if msg.ID != "" && seen[msg.ID] {
			continue
		}
		c.messages = append(c.messages, msg)
	}
	sort.SliceStable(c.messages, func(i, j int) bool {
		return c.messages[i].Timestamp < c.messages[j].Timestamp
	})
	if len(c.messages) > historyCap {
		c.messages = c.messages[len(c.messages)-historyCap:]
	}
	if n := len(c.messages); n > 0 && c.messages[n-1].Timestamp > c.lastTS {
		c.lastTS = c.messages[n-1].Timestamp
	}
}

// SetArchived flips the chat's archive flag.
func (m *Mirror) SetArchived(chatID string, archived bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsert(chatID).archived = archived
}

// SetName records a display name when the provider reports one.
func (m *Mirror) SetName(chatID, name string) {
	if name == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsert(chatID).name = name
}

// ClearUnread zeroes the unread count, mirroring a read receipt.
func (m *Mirror) ClearUnread(chatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsert(chatID).unread = 0
}

// Conversations returns every known chat.
func (m *Mirror) Conversations() []provider.RawConversation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]provider.RawConversation, 0, len(m.chats))
	for id, c := range m.chats {
		out = append(out, provider.RawConversation{
			ChatID:        id,
			Name:          c.name,
			IsGroup:       c.isGroup,
			UnreadCount:   c.unread,
			LastTimestamp: c.lastTS,
			Archived:      c.archived,
		})
	}
	return out
}

// Conversation returns one chat, or nil when unknown.
func (m *Mirror) Conversation(chatID string) *provider.RawConversation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.chats[chatID]
	if !ok {
		return nil
	}
	return &provider.RawConversation{
		ChatID:        chatID,
		Name:          c.name,
		IsGroup:       c.isGroup,
		UnreadCount:   c.unread,
		LastTimestamp: c.lastTS,
		Archived:      c.archived,
	}
}

// Messages returns up to limit most recent messages, oldest first.
func (m *Mirror) Messages(chatID string, limit int) []provider.RawMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.chats[chatID]
	if !ok {
		return nil
	}
	msgs := c.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]provider.RawMessage, len(msgs))
	copy(out, msgs)
	return out
}
