// Package snapshot turns the provider's raw chat list into the filtered,
// sorted view handed to viewers, enriched with local metadata.
package snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/wadesk/internal/bus"
	"github.com/matheus3301/wadesk/internal/identity"
	"github.com/matheus3301/wadesk/internal/provider"
	"github.com/matheus3301/wadesk/internal/recon"
	"github.com/matheus3301/wadesk/internal/store"
)

// Message is one entry of a conversation's bounded recent history.
type Message struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	FromMe    bool   `json:"from_me"`
	Timestamp int64  `json:"timestamp"`
}

// Conversation is the per-chat view model. Name stays empty when the
// provider has no display name; it is never derived from the identifier.
type Conversation struct {
	ChatID       string    `json:"chat_id"`
	Name         string    `json:"name,omitempty"`
	IsGroup      bool      `json:"is_group"`
	UnreadCount  int       `json:"unread_count"`
	LastActivity int64     `json:"last_activity"`
	Archived     bool      `json:"archived"`
	History      []Message `json:"history"`
	TagIDs       []int64   `json:"tag_ids"`
	NoteCount    int       `json:"note_count"`
}

// Builder produces conversation snapshots on demand.
type Builder struct {
	client provider.Client
	store  *store.Store
	recon  *recon.Engine
	bus    *bus.Bus
	log    *zap.Logger

	historyLimit   int
	activityWindow time.Duration
	now            func() time.Time
}

func New(client provider.Client, st *store.Store, rc *recon.Engine, b *bus.Bus, log *zap.Logger, historyLimit int, activityWindow time.Duration) *Builder {
	return &Builder{
		client:         client,
		store:          st,
		recon:          rc,
		bus:            b,
		log:            log.Named("snapshot"),
		historyLimit:   historyLimit,
		activityWindow: activityWindow,
		now:            time.Now,
	}
}

// Build fetches the current chat list, applies the activity filter and
// ordering, auto-tags archived conversations and attaches tag/note
// metadata. The result is published as a conversations.snapshot event.
func (b *Builder) Build(ctx context.Context) ([]Conversation, error) {
	// Before pairing completes viewers get an empty dashboard, not an
	// error.
	if !b.client.Ready() {
		out := []Conversation{}
		if b.bus != nil {
			b.bus.Emit(bus.KindSnapshot, out)
		}
		return out, nil
	}

	raw, err := b.client.Conversations(ctx)
	if err != nil {
		return nil, err
	}

	// One consistent metadata read per pass.
	assignments, err := b.store.Assignments()
	if err != nil {
		return nil, err
	}
	noteCounts, err := b.store.NoteCounts()
	if err != nil {
		return nil, err
	}
	tagsByChat := map[string][]int64{}
	tagsByPhone := map[string][]int64{}
	for _, a := range assignments {
		tagsByChat[a.ChatID] = append(tagsByChat[a.ChatID], a.TagID)
		if a.PhoneNumber != "" {
			tagsByPhone[a.PhoneNumber] = append(tagsByPhone[a.PhoneNumber], a.TagID)
		}
	}
	notesByChat := map[string]int{}
	for _, c := range noteCounts {
		notesByChat[c.ChatID] = c.Count
	}

	cutoff := b.now().Add(-b.activityWindow).Unix()
	out := make([]Conversation, 0, len(raw))
	for _, rawConv := range raw {
		conv, err := b.buildOne(ctx, rawConv)
		if err != nil {
			b.log.Warn("skipping conversation", zap.String("chat_id", rawConv.ChatID), zap.Error(err))
			continue
		}
		if conv.UnreadCount <= 0 && conv.LastActivity < cutoff {
			continue
		}

		if conv.Archived {
			if err := b.recon.AutoTagArchived(conv.ChatID); err != nil {
				b.log.Warn("auto-tag failed", zap.String("chat_id", conv.ChatID), zap.Error(err))
			}
		}

		conv.TagIDs = tagsByChat[conv.ChatID]
		if conv.TagIDs == nil {
			// Identifier churn: fall back to the phone key.
			if phone := identity.PhoneFromChatID(conv.ChatID); phone != "" {
				conv.TagIDs = tagsByPhone[phone]
			}
		}
		if conv.Archived && !containsID(conv.TagIDs, b.store.ArchivedTagID()) {
			conv.TagIDs = append(conv.TagIDs, b.store.ArchivedTagID())
		}
		conv.NoteCount = notesByChat[conv.ChatID]

		out = append(out, conv)
	}

	sort.SliceStable(out, func(i, j int) bool {
		iu, ju := out[i].UnreadCount > 0, out[j].UnreadCount > 0
		if iu != ju {
			return iu
		}
		return out[i].LastActivity > out[j].LastActivity
	})

	if b.bus != nil {
		b.bus.Emit(bus.KindSnapshot, out)
	}
	return out, nil
}

func (b *Builder) buildOne(ctx context.Context, raw provider.RawConversation) (Conversation, error) {
	history, err := b.client.RecentMessages(ctx, raw.ChatID, b.historyLimit)
	if err != nil {
		return Conversation{}, err
	}
	msgs := make([]Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, Message{
			ID:        m.ID,
			Body:      m.Body,
			FromMe:    m.FromMe,
			Timestamp: m.Timestamp,
		})
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp < msgs[j].Timestamp })

	var last int64
	if len(msgs) > 0 {
		last = msgs[len(msgs)-1].Timestamp
	}

	return Conversation{
		ChatID:       raw.ChatID,
		Name:         raw.Name,
		IsGroup:      raw.IsGroup,
		UnreadCount:  raw.UnreadCount,
		LastActivity: last,
		Archived:     raw.Archived,
		History:      msgs,
	}, nil
}

// Messages returns one conversation's recent-message window, oldest
// first. Limit <= 0 means everything the provider holds. Unknown chat ids
// map to ErrNotFound.
func (b *Builder) Messages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	conv, err := b.client.ConversationByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %s: %w", chatID, store.ErrNotFound)
	}

	history, err := b.client.RecentMessages(ctx, chatID, limit)
	if err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, Message{
			ID:        m.ID,
			Body:      m.Body,
			FromMe:    m.FromMe,
			Timestamp: m.Timestamp,
		})
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp < msgs[j].Timestamp })
	return msgs, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
