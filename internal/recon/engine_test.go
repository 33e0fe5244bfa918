package recon

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/matheus3301/wadesk/internal/bus"
	"github.com/matheus3301/wadesk/internal/provider"
	"github.com/matheus3301/wadesk/internal/store"
)

type fakeClient struct {
	mu         sync.Mutex
	ready      bool
	archived     map[string]bool
	archiveErr   error
	unarchiveErr error
	archives     []string
	unarchives   []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{ready: true, archived: map[string]bool{}}
}

func (f *fakeClient) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeClient) Conversations(context.Context) ([]provider.RawConversation, error) {
	return nil, nil
}

func (f *fakeClient) ConversationByID(_ context.Context, chatID string) (*provider.RawConversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	archived, ok := f.archived[chatID]
	if !ok {
		return nil, nil
	}
	return &provider.RawConversation{ChatID: chatID, Archived: archived}, nil
}

func (f *fakeClient) RecentMessages(context.Context, string, int) ([]provider.RawMessage, error) {
	return nil, nil
}

func (f *fakeClient) Archive(_ context.Context, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.archiveErr != nil {
		return f.archiveErr
	}
	f.archived[chatID] = true
	f.archives = append(f.archives, chatID)
	return nil
}

func (f *fakeClient) Unarchive(_ context.Context, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unarchiveErr != nil {
		return f.unarchiveErr
	}
	f.archived[chatID] = false
	f.unarchives = append(f.unarchives, chatID)
	return nil
}

func (f *fakeClient) SendText(context.Context, string, string) (string, error) {
	return "", errors.New("not implemented")
}

func testEngine(t *testing.T) (*Engine, *store.Store, *fakeClient, *bus.Bus) {
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
	client := newFakeClient()
	return New(st, client, b, zap.NewNop()), st, client, b
}

func TestArchiveTagsConversation(t *testing.T) {
	e, st, client, _ := testEngine(t)
	ctx := context.Background()

	if err := e.Archive(ctx, "555@c.us"); err != nil {
		t.Fatal(err)
	}
	if len(client.archives) != 1 {
		t.Fatalf("archives = %v", client.archives)
	}
	has, err := st.HasAssignment(st.ArchivedTagID(), "555@c.us")
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Error("system tag not assigned after Archive")
	}
}

func TestArchiveProviderFailureWritesNothing(t *testing.T) {
	e, st, client, _ := testEngine(t)
	client.archiveErr = errors.New("session dropped")

	err := e.Archive(context.Background(), "555@c.us")
	if err == nil || err.Error() != "session dropped" {
		t.Fatalf("err = %v, want provider error verbatim", err)
	}
	has, _ := st.HasAssignment(st.ArchivedTagID(), "555@c.us")
	if has {
		t.Error("system tag assigned despite provider failure")
	}
}

func TestArchiveIdempotentTagging(t *testing.T) {
	e, st, _, _ := testEngine(t)
	ctx := context.Background()

	if err := e.Archive(ctx, "555@c.us"); err != nil {
		t.Fatal(err)
	}
	if err := e.Archive(ctx, "555@c.us"); err != nil {
		t.Fatal(err)
	}
	count, err := st.CountAssignments(st.ArchivedTagID())
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("assignment count = %d, want 1", count)
	}
}

func TestUnarchiveRemovesTag(t *testing.T) {
	e, st, _, _ := testEngine(t)
	ctx := context.Background()

	if err := e.Archive(ctx, "555@c.us"); err != nil {
		t.Fatal(err)
	}
	if err := e.Unarchive(ctx, "555@c.us"); err != nil {
		t.Fatal(err)
	}
	has, _ := st.HasAssignment(st.ArchivedTagID(), "555@c.us")
	if has {
		t.Error("system tag still assigned after Unarchive")
	}

	// Unarchiving a never-archived conversation is not an error.
	if err := e.Unarchive(ctx, "other@c.us"); err != nil {
		t.Errorf("Unarchive(fresh) = %v", err)
	}
}

func TestUnassignSystemTagUnarchivesRemote(t *testing.T) {
	e, st, client, _ := testEngine(t)
	ctx := context.Background()

	if err := e.Archive(ctx, "555@c.us"); err != nil {
		t.Fatal(err)
	}
	if err := e.UnassignTag(ctx, st.ArchivedTagID(), "555@c.us"); err != nil {
		t.Fatal(err)
	}
	if len(client.unarchives) != 1 || client.unarchives[0] != "555@c.us" {
		t.Errorf("unarchives = %v, want remote unarchive", client.unarchives)
	}
	has, _ := st.HasAssignment(st.ArchivedTagID(), "555@c.us")
	if has {
		t.Error("assignment survived UnassignTag")
	}
}

func TestUnassignSystemTagSkipsRemoteWhenNotReady(t *testing.T) {
	e, st, client, _ := testEngine(t)
	ctx := context.Background()

	if err := e.Archive(ctx, "555@c.us"); err != nil {
		t.Fatal(err)
	}
	client.mu.Lock()
	client.ready = false
	client.mu.Unlock()

	if err := e.UnassignTag(ctx, st.ArchivedTagID(), "555@c.us"); err != nil {
		t.Fatal(err)
	}
	if len(client.unarchives) != 0 {
		t.Errorf("unarchives = %v, want no remote call", client.unarchives)
	}
	has, _ := st.HasAssignment(st.ArchivedTagID(), "555@c.us")
	if has {
		t.Error("local assignment not deleted")
	}
}

func TestUnassignSystemTagSurvivesRemoteFailure(t *testing.T) {
	e, st, client, _ := testEngine(t)
	ctx := context.Background()

	if err := e.Archive(ctx, "555@c.us"); err != nil {
		t.Fatal(err)
	}
	client.mu.Lock()
	client.unarchiveErr = errors.New("session dropped")
	client.mu.Unlock()

	if err := e.UnassignTag(ctx, st.ArchivedTagID(), "555@c.us"); err != nil {
		t.Fatalf("UnassignTag() = %v, want nil despite backend failure", err)
	}
	has, _ := st.HasAssignment(st.ArchivedTagID(), "555@c.us")
	if has {
		t.Error("local assignment survived failed remote unarchive")
	}
}

func TestUnassignRegularTagNeverTouchesProvider(t *testing.T) {
	e, st, client, _ := testEngine(t)
	tag, err := st.CreateTag("VIP", "#ff0000")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.AssignTag(tag.ID, "555@c.us"); err != nil {
		t.Fatal(err)
	}
	client.archived["555@c.us"] = true

	if err := e.UnassignTag(context.Background(), tag.ID, "555@c.us"); err != nil {
		t.Fatal(err)
	}
	if len(client.unarchives) != 0 {
		t.Errorf("unarchives = %v, want none for regular tag", client.unarchives)
	}
}

func TestArchivePublishesResult(t *testing.T) {
	e, _, _, b := testEngine(t)

	ch, unsub := b.Subscribe("conversations.archive_result", 4)
	defer unsub()

	if err := e.Archive(context.Background(), "555@c.us"); err != nil {
		t.Fatal(err)
	}
	evt := <-ch
	res, ok := evt.Payload.(ActionResult)
	if !ok || !res.OK || res.Action != "archive" || res.ChatID != "555@c.us" {
		t.Errorf("payload = %+v", evt.Payload)
	}
}
