// Package transfer implements bulk export and merge-import of tags,
// notes and quick replies. Imports are best-effort: a malformed item is
// tallied, never fatal for the batch.
package transfer

import (
	"strings"

	"go.uber.org/zap"

	"github.com/matheus3301/wadesk/internal/bus"
	"github.com/matheus3301/wadesk/internal/identity"
	"github.com/matheus3301/wadesk/internal/store"
)

// Report is the outcome of one import call. Failed counts unresolvable or
// malformed items; Skipped counts dedup matches.
type Report struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
	Total    int `json:"total"`
}

// TagItem and AssignmentItem mirror the export file layout.
type TagItem struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type AssignmentItem struct {
	TagID       int64  `json:"tag_id,omitempty"`
	TagName     string `json:"tag_name,omitempty"`
	ChatID      string `json:"chat_id,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// TagBundle is the unit of tag export and import.
type TagBundle struct {
	Tags        []TagItem        `json:"tags"`
	Assignments []AssignmentItem `json:"assignments"`
}

type NoteItem struct {
	ChatID      string `json:"chat_id,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Text        string `json:"text"`
	CreatedAt   int64  `json:"created_at,omitempty"`
}

type ReplyItem struct {
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// Pipeline runs exports and imports against the metadata store.
type Pipeline struct {
	store *store.Store
	bus   *bus.Bus
	log   *zap.Logger
}

func New(st *store.Store, b *bus.Bus, log *zap.Logger) *Pipeline {
	return &Pipeline{store: st, bus: b, log: log.Named("transfer")}
}

// ExportTags dumps every tag and assignment in ascending id order.
func (p *Pipeline) ExportTags() (*TagBundle, error) {
	tags, err := p.store.Tags()
	if err != nil {
		return nil, err
	}
	assignments, err := p.store.Assignments()
	if err != nil {
		return nil, err
	}
	bundle := &TagBundle{
		Tags:        make([]TagItem, 0, len(tags)),
		Assignments: make([]AssignmentItem, 0, len(assignments)),
	}
	for _, t := range tags {
		bundle.Tags = append(bundle.Tags, TagItem{ID: t.ID, Name: t.Name, Color: t.Color})
	}
	nameByID := map[int64]string{}
	for _, t := range tags {
		nameByID[t.ID] = t.Name
	}
	for _, a := range assignments {
		bundle.Assignments = append(bundle.Assignments, AssignmentItem{
			TagID:       a.TagID,
			TagName:     nameByID[a.TagID],
			ChatID:      a.ChatID,
			PhoneNumber: a.PhoneNumber,
		})
	}
	return bundle, nil
}

// ImportTags merges a tag bundle. Incoming assignment tag references
// resolve through the old-id map first, then the name map, then fall back
// to the incoming id verbatim.
func (p *Pipeline) ImportTags(bundle TagBundle, replace bool) (Report, error) {
	var report Report
	report.Total = len(bundle.Tags) + len(bundle.Assignments)

	if replace {
		if err := p.store.PurgeTags(); err != nil {
			return report, err
		}
	}

	existing, err := p.store.Tags()
	if err != nil {
		return report, err
	}
	idMap := map[int64]int64{}
	nameMap := map[string]int64{}
	for _, t := range existing {
		nameMap[t.Name] = t.ID
	}

	for _, item := range bundle.Tags {
		name := strings.TrimSpace(item.Name)
		if name == "" || strings.TrimSpace(item.Color) == "" {
			report.Failed++
			continue
		}
		if id, ok := nameMap[name]; ok {
			// Same-named tag already present: reuse it for remapping.
			if item.ID != 0 {
				idMap[item.ID] = id
			}
			report.Skipped++
			continue
		}
		newID, err := p.store.InsertTag(name, item.Color)
		if err != nil {
			p.log.Warn("tag insert failed", zap.String("name", name), zap.Error(err))
			report.Failed++
			continue
		}
		if item.ID != 0 {
			idMap[item.ID] = newID
		}
		nameMap[name] = newID
		report.Imported++
	}

	for _, item := range bundle.Assignments {
		tagID := item.TagID
		if mapped, ok := idMap[tagID]; ok {
			tagID = mapped
		} else if byName, ok := nameMap[item.TagName]; ok && item.TagName != "" {
			tagID = byName
		}
		if tagID == 0 {
			report.Failed++
			continue
		}
		chatID, phone, ok := p.resolveChat(item.ChatID, item.PhoneNumber)
		if !ok {
			report.Failed++
			continue
		}
		created, err := p.store.InsertAssignment(tagID, chatID, phone)
		if err != nil {
			p.log.Warn("assignment insert failed", zap.String("chat_id", chatID), zap.Error(err))
			report.Failed++
			continue
		}
		if created {
			report.Imported++
		} else {
			report.Skipped++
		}
	}

	p.notify(bus.KindTagsUpdated)
	return report, nil
}

// ExportNotes dumps notes in ascending id order, optionally filtered by
// conversation.
func (p *Pipeline) ExportNotes(chatID string) ([]NoteItem, error) {
	notes, err := p.store.Notes(chatID)
	if err != nil {
		return nil, err
	}
	out := make([]NoteItem, 0, len(notes))
	for _, n := range notes {
		out = append(out, NoteItem{
			ChatID:      n.ChatID,
			PhoneNumber: n.PhoneNumber,
			Text:        n.Text,
			CreatedAt:   n.CreatedAt,
		})
	}
	return out, nil
}

// ImportNotes merges a note list, deduplicating on exact (conversation,
// text) pairs.
func (p *Pipeline) ImportNotes(items []NoteItem, replace bool) (Report, error) {
	var report Report
	report.Total = len(items)

	if replace {
		if err := p.store.PurgeNotes(); err != nil {
			return report, err
		}
	}

	for _, item := range items {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			report.Failed++
			continue
		}
		chatID, phone, ok := p.resolveChat(item.ChatID, item.PhoneNumber)
		if !ok {
			report.Failed++
			continue
		}
		exists, err := p.store.NoteExists(chatID, item.Text)
		if err != nil {
			report.Failed++
			continue
		}
		if exists {
			report.Skipped++
			continue
		}
		if err := p.store.InsertNote(chatID, phone, item.Text, item.CreatedAt); err != nil {
			p.log.Warn("note insert failed", zap.String("chat_id", chatID), zap.Error(err))
			report.Failed++
			continue
		}
		report.Imported++
	}

	p.notify(bus.KindNotesUpdated)
	return report, nil
}

// ExportReplies dumps every quick reply in ascending id order.
func (p *Pipeline) ExportReplies() ([]ReplyItem, error) {
	replies, err := p.store.QuickReplies()
	if err != nil {
		return nil, err
	}
	out := make([]ReplyItem, 0, len(replies))
	for _, r := range replies {
		out = append(out, ReplyItem{Text: r.Text, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

// ImportReplies inserts quick replies. Duplicate text is allowed.
func (p *Pipeline) ImportReplies(items []ReplyItem, replace bool) (Report, error) {
	var report Report
	report.Total = len(items)

	if replace {
		if err := p.store.PurgeQuickReplies(); err != nil {
			return report, err
		}
	}

	for _, item := range items {
		if strings.TrimSpace(item.Text) == "" {
			report.Failed++
			continue
		}
		if err := p.store.InsertQuickReply(item.Text, item.CreatedAt); err != nil {
			report.Failed++
			continue
		}
		report.Imported++
	}

	p.notify(bus.KindRepliesUpdated)
	return report, nil
}

// resolveChat turns an incoming (chat id, phone) pair into a canonical
// conversation id and phone key. With only a phone, a previously recorded
// conversation id for that phone key wins over synthesis.
func (p *Pipeline) resolveChat(chatID, phone string) (string, string, bool) {
	if chatID != "" {
		resolved := identity.SynthesizeChatID(chatID)
		key := identity.PhoneFromChatID(resolved)
		if key == "" {
			key = identity.NormalizePhone(phone)
		}
		return resolved, key, true
	}

	key := identity.NormalizePhone(phone)
	if key == "" {
		return "", "", false
	}
	if prior, err := p.store.AssignmentChatIDByPhone(key); err == nil && prior != "" {
		return prior, key, true
	}
	if prior, err := p.store.NoteChatIDByPhone(key); err == nil && prior != "" {
		return prior, key, true
	}
	return identity.SynthesizeChatID(phone), key, true
}

func (p *Pipeline) notify(kind string) {
	if p.bus != nil {
		p.bus.Emit(kind, nil)
	}
}
