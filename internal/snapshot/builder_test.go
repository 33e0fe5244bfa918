package snapshot

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/wadesk/internal/bus"
	"github.com/matheus3301/wadesk/internal/provider"
	"github.com/matheus3301/wadesk/internal/recon"
	"github.com/matheus3301/wadesk/internal/store"
)

type fakeClient struct {
	notReady bool
	chats    []provider.RawConversation
	messages map[string][]provider.RawMessage
}

func (f *fakeClient) Ready() bool { return !f.notReady }

func (f *fakeClient) Conversations(context.Context) ([]provider.RawConversation, error) {
	return f.chats, nil
}

func (f *fakeClient) ConversationByID(_ context.Context, chatID string) (*provider.RawConversation, error) {
	for _, c := range f.chats {
		if c.ChatID == chatID {
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeClient) RecentMessages(_ context.Context, chatID string, limit int) ([]provider.RawMessage, error) {
	msgs := append([]provider.RawMessage(nil), f.messages[chatID]...)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp < msgs[j].Timestamp })
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (f *fakeClient) Archive(_ context.Context, chatID string) error   { return nil }
func (f *fakeClient) Unarchive(_ context.Context, chatID string) error { return nil }

func (f *fakeClient) SendText(context.Context, string, string) (string, error) {
	return "", nil
}

func testBuilder(t *testing.T, client *fakeClient) (*Builder, *store.Store) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	b := bus.New()
	st := store.New(db, b)
	if _, err := st.Init(); err != nil {
		t.Fatal(err)
	}
	eng := recon.New(st, client, b, zap.NewNop())
	return New(client, st, eng, b, zap.NewNop(), 3, 24*time.Hour), st
}

func TestBuildFiltersStaleRead(t *testing.T) {
	now := time.Now().Unix()
	client := &fakeClient{
		chats: []provider.RawConversation{
			{ChatID: "fresh@c.us", UnreadCount: 0},
			{ChatID: "stale@c.us", UnreadCount: 0},
			{ChatID: "unread@c.us", UnreadCount: 1},
		},
		messages: map[string][]provider.RawMessage{
			"fresh@c.us":  {{ID: "m1", Timestamp: now - 3600}},
			"stale@c.us":  {{ID: "m2", Timestamp: now - 48*3600}},
			"unread@c.us": {{ID: "m3", Timestamp: now - 72*3600}},
		},
	}
	b, _ := testBuilder(t, client)

	out, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]bool{}
	for _, c := range out {
		got[c.ChatID] = true
	}
	if !got["fresh@c.us"] {
		t.Error("recent conversation excluded")
	}
	if got["stale@c.us"] {
		t.Error("stale read conversation included")
	}
	if !got["unread@c.us"] {
		t.Error("unread conversation with old activity excluded")
	}
}

func TestBuildOrdering(t *testing.T) {
	now := time.Now().Unix()
	client := &fakeClient{
		chats: []provider.RawConversation{
			{ChatID: "older@c.us"},
			{ChatID: "newer@c.us"},
			{ChatID: "unread@c.us", UnreadCount: 2},
		},
		messages: map[string][]provider.RawMessage{
			"older@c.us":  {{Timestamp: now - 7200}},
			"newer@c.us":  {{Timestamp: now - 60}},
			"unread@c.us": {{Timestamp: now - 90000}},
		},
	}
	b, _ := testBuilder(t, client)

	out, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"unread@c.us", "newer@c.us", "older@c.us"}
	if len(out) != len(want) {
		t.Fatalf("got %d conversations, want %d", len(out), len(want))
	}
	for i, id := range want {
		if out[i].ChatID != id {
			t.Errorf("position %d = %s, want %s", i, out[i].ChatID, id)
		}
	}
}

func TestBuildHistoryOldestFirst(t *testing.T) {
	now := time.Now().Unix()
	client := &fakeClient{
		chats: []provider.RawConversation{{ChatID: "a@c.us", UnreadCount: 1}},
		messages: map[string][]provider.RawMessage{
			"a@c.us": {
				{ID: "m3", Timestamp: now - 10},
				{ID: "m1", Timestamp: now - 30},
				{ID: "m2", Timestamp: now - 20},
			},
		},
	}
	b, _ := testBuilder(t, client)

	out, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d conversations", len(out))
	}
	hist := out[0].History
	if len(hist) != 3 || hist[0].ID != "m1" || hist[2].ID != "m3" {
		t.Errorf("history order = %+v", hist)
	}
	if out[0].LastActivity != now-10 {
		t.Errorf("LastActivity = %d, want %d", out[0].LastActivity, now-10)
	}
}

func TestBuildEmptyHistoryZeroActivity(t *testing.T) {
	client := &fakeClient{
		chats: []provider.RawConversation{
			{ChatID: "a@c.us", UnreadCount: 1, LastTimestamp: time.Now().Unix()},
		},
	}
	b, _ := testBuilder(t, client)

	out, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].LastActivity != 0 {
		t.Errorf("out = %+v, want LastActivity 0 for empty window", out)
	}
}

func TestBuildAutoTagsArchived(t *testing.T) {
	now := time.Now().Unix()
	client := &fakeClient{
		chats: []provider.RawConversation{{ChatID: "a@c.us", Archived: true}},
		messages: map[string][]provider.RawMessage{
			"a@c.us": {{Timestamp: now - 60}},
		},
	}
	b, st := testBuilder(t, client)

	out, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	has, err := st.HasAssignment(st.ArchivedTagID(), "a@c.us")
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Error("archived conversation not auto-tagged")
	}
	if len(out) != 1 {
		t.Fatalf("got %d conversations", len(out))
	}
	found := false
	for _, id := range out[0].TagIDs {
		if id == st.ArchivedTagID() {
			found = true
		}
	}
	if !found {
		t.Error("view model missing system tag id")
	}

	// Second pass must not duplicate the assignment.
	if _, err := b.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	count, _ := st.CountAssignments(st.ArchivedTagID())
	if count != 1 {
		t.Errorf("assignment count = %d, want 1", count)
	}
}

func TestBuildNeverBackfillsName(t *testing.T) {
	now := time.Now().Unix()
	client := &fakeClient{
		chats: []provider.RawConversation{{ChatID: "5551234567@c.us", UnreadCount: 1}},
		messages: map[string][]provider.RawMessage{
			"5551234567@c.us": {{Timestamp: now - 60}},
		},
	}
	b, _ := testBuilder(t, client)

	out, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Name != "" {
		t.Errorf("Name = %q, want empty when provider has none", out[0].Name)
	}
}

func TestBuildAttachesMetadata(t *testing.T) {
	now := time.Now().Unix()
	client := &fakeClient{
		chats: []provider.RawConversation{{ChatID: "555@c.us", UnreadCount: 1}},
		messages: map[string][]provider.RawMessage{
			"555@c.us": {{Timestamp: now - 60}},
		},
	}
	b, st := testBuilder(t, client)

	tag, err := st.CreateTag("VIP", "#ff0000")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.AssignTag(tag.ID, "555@c.us"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreateNote("555@c.us", "follow up"); err != nil {
		t.Fatal(err)
	}

	out, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(out[0].TagIDs) != 1 || out[0].TagIDs[0] != tag.ID {
		t.Errorf("TagIDs = %v", out[0].TagIDs)
	}
	if out[0].NoteCount != 1 {
		t.Errorf("NoteCount = %d, want 1", out[0].NoteCount)
	}
}

func TestBuildPublishesSnapshot(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	eventBus := bus.New()
	st := store.New(db, eventBus)
	if _, err := st.Init(); err != nil {
		t.Fatal(err)
	}
	client := &fakeClient{
		chats: []provider.RawConversation{{ChatID: "a@c.us", UnreadCount: 1}},
	}
	eng := recon.New(st, client, eventBus, zap.NewNop())
	b := New(client, st, eng, eventBus, zap.NewNop(), 3, 24*time.Hour)

	ch, unsub := eventBus.Subscribe("conversations.snapshot", 4)
	defer unsub()

	if _, err := b.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case evt := <-ch:
		convs, ok := evt.Payload.([]Conversation)
		if !ok || len(convs) != 1 {
			t.Errorf("payload = %v", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot event published")
	}
}

func TestBuildEmptyWhenNotReady(t *testing.T) {
	now := time.Now().Unix()
	client := &fakeClient{
		notReady: true,
		chats:    []provider.RawConversation{{ChatID: "a@c.us", UnreadCount: 1}},
		messages: map[string][]provider.RawMessage{
			"a@c.us": {{ID: "m1", Timestamp: now - 10}},
		},
	}
	b, _ := testBuilder(t, client)

	out, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() before pairing = %v, want empty list", err)
	}
	if len(out) != 0 {
		t.Errorf("out = %+v, want empty", out)
	}
}

func TestMessagesFullWindow(t *testing.T) {
	now := time.Now().Unix()
	client := &fakeClient{
		chats: []provider.RawConversation{{ChatID: "a@c.us"}},
		messages: map[string][]provider.RawMessage{
			"a@c.us": {
				{ID: "m4", Timestamp: now - 5},
				{ID: "m1", Timestamp: now - 40},
				{ID: "m3", Timestamp: now - 10},
				{ID: "m2", Timestamp: now - 20},
			},
		},
	}
	b, _ := testBuilder(t, client)

	// Limit 0 returns past the list view's bounded snippet.
	msgs, err := b.Messages(context.Background(), "a@c.us", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 4 || msgs[0].ID != "m1" || msgs[3].ID != "m4" {
		t.Errorf("messages = %+v, want all four oldest first", msgs)
	}

	msgs, err = b.Messages(context.Background(), "a@c.us", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].ID != "m3" || msgs[1].ID != "m4" {
		t.Errorf("limited messages = %+v, want newest two oldest first", msgs)
	}
}

func TestMessagesUnknownChat(t *testing.T) {
	b, _ := testBuilder(t, &fakeClient{})

	_, err := b.Messages(context.Background(), "nobody@c.us", 0)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Messages(unknown) = %v, want ErrNotFound", err)
	}
}
