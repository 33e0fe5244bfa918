package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/matheus3301/wadesk/internal/bus"
	"github.com/matheus3301/wadesk/internal/provider"
	"github.com/matheus3301/wadesk/internal/recon"
	"github.com/matheus3301/wadesk/internal/snapshot"
	"github.com/matheus3301/wadesk/internal/status"
	"github.com/matheus3301/wadesk/internal/store"
	"github.com/matheus3301/wadesk/internal/transfer"
)

type fakeClient struct {
	ready    bool
	chats    []provider.RawConversation
	messages map[string][]provider.RawMessage
	archived map[string]bool
	failNext error
}

func newFakeClient() *fakeClient {
	return &fakeClient{ready: true, archived: map[string]bool{}}
}

func (f *fakeClient) Ready() bool { return f.ready }

func (f *fakeClient) Conversations(context.Context) ([]provider.RawConversation, error) {
	if f.failNext != nil {
		return nil, provider.Wrap("conversations", f.failNext)
	}
	return f.chats, nil
}

func (f *fakeClient) ConversationByID(_ context.Context, chatID string) (*provider.RawConversation, error) {
	for _, c := range f.chats {
		if c.ChatID == chatID {
			c.Archived = f.archived[chatID]
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeClient) RecentMessages(_ context.Context, chatID string, limit int) ([]provider.RawMessage, error) {
	return f.messages[chatID], nil
}

func (f *fakeClient) Archive(_ context.Context, chatID string) error {
	if f.failNext != nil {
		return provider.Wrap("archive", f.failNext)
	}
	f.archived[chatID] = true
	return nil
}

func (f *fakeClient) Unarchive(_ context.Context, chatID string) error {
	f.archived[chatID] = false
	return nil
}

func (f *fakeClient) SendText(context.Context, string, string) (string, error) {
	return "server-1", nil
}

func testServer(t *testing.T) (*gin.Engine, *store.Store, *fakeClient) {
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
	log := zap.NewNop()
	engine := recon.New(st, client, b, log)
	builder := snapshot.New(client, st, engine, b, log, 3, 24*time.Hour)
	pipeline := transfer.New(st, b, log)
	machine := status.NewMachine(b)
	srv := NewServer(st, pipeline, engine, builder, machine, nil, b, log)
	return srv.Router(), st, client
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTagEndpoints(t *testing.T) {
	r, _, _ := testServer(t)

	w := doJSON(t, r, http.MethodPost, "/tags", gin.H{"name": "VIP", "color": "#ff0000"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create tag = %d: %s", w.Code, w.Body)
	}
	var created store.Tag
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	w = doJSON(t, r, http.MethodGet, "/tags", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list tags = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/tags/%d/assign", created.ID), gin.H{"chat_id": "555@c.us"})
	if w.Code != http.StatusOK {
		t.Fatalf("assign = %d: %s", w.Code, w.Body)
	}

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/tags/%d/count", created.ID), nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"count":1`)) {
		t.Errorf("count = %d: %s", w.Code, w.Body)
	}

	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/tags/%d", created.ID), nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/tags/%d", created.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestTagValidationMapsTo400(t *testing.T) {
	r, _, _ := testServer(t)
	w := doJSON(t, r, http.MethodPost, "/tags", gin.H{"name": "", "color": "#fff"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty name = %d, want 400", w.Code)
	}
}

func TestSystemTagMapsTo403(t *testing.T) {
	r, st, _ := testServer(t)
	w := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/tags/%d", st.ArchivedTagID()), nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("delete system tag = %d, want 403", w.Code)
	}
}

func TestArchiveEndpoint(t *testing.T) {
	r, st, client := testServer(t)

	w := doJSON(t, r, http.MethodPost, "/conversations/555@c.us/archive", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("archive = %d: %s", w.Code, w.Body)
	}
	if !client.archived["555@c.us"] {
		t.Error("provider not archived")
	}
	has, _ := st.HasAssignment(st.ArchivedTagID(), "555@c.us")
	if !has {
		t.Error("system tag not assigned")
	}

	w = doJSON(t, r, http.MethodPost, "/conversations/555@c.us/unarchive", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unarchive = %d: %s", w.Code, w.Body)
	}
	if client.archived["555@c.us"] {
		t.Error("provider still archived")
	}
}

func TestProviderFailureMapsTo502(t *testing.T) {
	r, _, client := testServer(t)
	client.failNext = fmt.Errorf("session dropped")

	w := doJSON(t, r, http.MethodPost, "/conversations/555@c.us/archive", nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("archive with provider failure = %d, want 502", w.Code)
	}
}

func TestConversationsEndpoint(t *testing.T) {
	r, _, client := testServer(t)
	now := time.Now().Unix()
	client.chats = []provider.RawConversation{{ChatID: "a@c.us", UnreadCount: 1}}
	client.messages = map[string][]provider.RawMessage{
		"a@c.us": {{ID: "m1", Body: "hi", Timestamp: now - 30}},
	}

	w := doJSON(t, r, http.MethodGet, "/conversations", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("conversations = %d: %s", w.Code, w.Body)
	}
	var convs []snapshot.Conversation
	if err := json.Unmarshal(w.Body.Bytes(), &convs); err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 || convs[0].ChatID != "a@c.us" {
		t.Errorf("convs = %+v", convs)
	}
}

func TestConversationsEmptyBeforePairing(t *testing.T) {
	r, _, client := testServer(t)
	client.ready = false
	client.chats = []provider.RawConversation{{ChatID: "a@c.us", UnreadCount: 1}}

	w := doJSON(t, r, http.MethodGet, "/conversations", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("conversations before pairing = %d: %s", w.Code, w.Body)
	}
	var convs []snapshot.Conversation
	if err := json.Unmarshal(w.Body.Bytes(), &convs); err != nil {
		t.Fatal(err)
	}
	if len(convs) != 0 {
		t.Errorf("convs = %+v, want empty list", convs)
	}
}

func TestConversationMessagesEndpoint(t *testing.T) {
	r, _, client := testServer(t)
	now := time.Now().Unix()
	client.chats = []provider.RawConversation{{ChatID: "a@c.us"}}
	client.messages = map[string][]provider.RawMessage{
		"a@c.us": {
			{ID: "m2", Body: "later", Timestamp: now - 10},
			{ID: "m1", Body: "earlier", Timestamp: now - 20},
		},
	}

	w := doJSON(t, r, http.MethodGet, "/conversations/a@c.us/messages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("messages = %d: %s", w.Code, w.Body)
	}
	var msgs []snapshot.Message
	if err := json.Unmarshal(w.Body.Bytes(), &msgs); err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Errorf("msgs = %+v, want oldest first", msgs)
	}

	w = doJSON(t, r, http.MethodGet, "/conversations/nobody@c.us/messages", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("messages for unknown chat = %d, want 404", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/conversations/a@c.us/messages?limit=bogus", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("messages with bad limit = %d, want 400", w.Code)
	}
}

func TestNoteEndpoints(t *testing.T) {
	r, _, _ := testServer(t)

	w := doJSON(t, r, http.MethodPost, "/notes", gin.H{"chat_id": "555@c.us", "text": "call back"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create note = %d: %s", w.Code, w.Body)
	}

	w = doJSON(t, r, http.MethodGet, "/notes?chat_id=555@c.us", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list notes = %d", w.Code)
	}
	var notes []store.Note
	if err := json.Unmarshal(w.Body.Bytes(), &notes); err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].Text != "call back" {
		t.Errorf("notes = %+v", notes)
	}

	w = doJSON(t, r, http.MethodGet, "/notes/counts", nil)
	if w.Code != http.StatusOK {
		t.Errorf("counts = %d", w.Code)
	}
}

func TestImportExportEndpoints(t *testing.T) {
	r, _, _ := testServer(t)

	w := doJSON(t, r, http.MethodPost, "/notes/import", gin.H{
		"notes": []gin.H{{"phone_number": "+1 (555) 000-1111", "text": "hello"}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("import notes = %d: %s", w.Code, w.Body)
	}
	var report transfer.Report
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Imported != 1 {
		t.Errorf("report = %+v", report)
	}

	w = doJSON(t, r, http.MethodGet, "/notes/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export notes = %d", w.Code)
	}
	var items []transfer.NoteItem
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ChatID != "+15550001111@c.us" {
		t.Errorf("export = %+v", items)
	}
}

func TestSendReplyQueuesOutbox(t *testing.T) {
	r, st, _ := testServer(t)

	w := doJSON(t, r, http.MethodPost, "/replies/send", gin.H{"chat_id": "555@c.us", "text": "thanks!"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("send = %d: %s", w.Code, w.Body)
	}
	pending, err := st.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Body != "thanks!" {
		t.Errorf("pending = %+v", pending)
	}
}

func TestSessionStatusEndpoint(t *testing.T) {
	r, _, _ := testServer(t)

	w := doJSON(t, r, http.MethodGet, "/session/status", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("BOOTING")) {
		t.Errorf("status = %d: %s", w.Code, w.Body)
	}
}

func TestSessionQRNotAvailable(t *testing.T) {
	r, _, _ := testServer(t)

	w := doJSON(t, r, http.MethodGet, "/session/qr", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("qr without code = %d, want 404", w.Code)
	}
}
