// Package wa binds whatsmeow to the provider interface the daemon is
// written against: an in-memory chat mirror answers reads, writes go to
// the live session.
package wa

import (
	"context"
	"fmt"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/appstate"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"

	"github.com/matheus3301/wadesk/internal/bus"
	"github.com/matheus3301/wadesk/internal/provider"
	"github.com/matheus3301/wadesk/internal/session"
	"github.com/matheus3301/wadesk/internal/status"
)

// Adapter wraps the whatsmeow client and the chat mirror. It implements
// provider.Client.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	mirror    *Mirror
	machine   *status.Machine
	bus       *bus.Bus
	log       *zap.Logger
}

// NewAdapter opens the credential store and constructs the session client.
func NewAdapter(ctx context.Context, paths session.Paths, machine *status.Machine, b *bus.Bus, log *zap.Logger) (*Adapter, error) {
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("WADesk", [3]uint32{0, 1, 0})

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", paths.SessionDB()),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	return &Adapter{
		client:    whatsmeow.NewClient(deviceStore, nil),
		container: container,
		mirror:    NewMirror(),
		machine:   machine,
		bus:       b,
		log:       log.Named("wa"),
	}, nil
}

// Client returns the underlying whatsmeow client.
func (a *Adapter) Client() *whatsmeow.Client { return a.client }

// Mirror returns the chat mirror fed by the event handler.
func (a *Adapter) Mirror() *Mirror { return a.mirror }

// IsLoggedIn reports whether stored credentials exist.
func (a *Adapter) IsLoggedIn() bool { return a.client.Store.ID != nil }

// Connect initiates the session connection.
func (a *Adapter) Connect() error {
	a.log.Info("connecting session")
	return a.client.Connect()
}

// Disconnect terminates the session connection.
func (a *Adapter) Disconnect() {
	a.log.Info("disconnecting session")
	a.client.Disconnect()
}

// Logout invalidates the session and removes credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

// RegisterEventHandler adds a handler for whatsmeow events.
func (a *Adapter) RegisterEventHandler(handler whatsmeow.EventHandler) {
	a.client.AddEventHandler(handler)
}

// PhoneNumber returns the linked account's number, or "".
func (a *Adapter) PhoneNumber() string {
	if a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.User
}

// Ready implements provider.Client.
func (a *Adapter) Ready() bool {
	return a.machine.Ready() && a.client.IsConnected()
}

// Conversations implements provider.Client from the mirror.
func (a *Adapter) Conversations(context.Context) ([]provider.RawConversation, error) {
	if !a.Ready() {
		return nil, provider.Wrap("conversations", fmt.Errorf("session not ready"))
	}
	return a.mirror.Conversations(), nil
}

// ConversationByID implements provider.Client from the mirror.
func (a *Adapter) ConversationByID(_ context.Context, chatID string) (*provider.RawConversation, error) {
	return a.mirror.Conversation(chatID), nil
}

// RecentMessages implements provider.Client from the mirror.
func (a *Adapter) RecentMessages(_ context.Context, chatID string, limit int) ([]provider.RawMessage, error) {
	return a.mirror.Messages(chatID, limit), nil
}

// Archive implements provider.Client by pushing an app state patch.
func (a *Adapter) Archive(ctx context.Context, chatID string) error {
	return a.setArchived(ctx, chatID, true)
}

// Unarchive implements provider.Client.
func (a *Adapter) Unarchive(ctx context.Context, chatID string) error {
	return a.setArchived(ctx, chatID, false)
}

func (a *Adapter) setArchived(ctx context.Context, chatID string, archived bool) error {
	op := "unarchive"
	if archived {
		op = "archive"
	}
	if !a.Ready() {
		return provider.Wrap(op, fmt.Errorf("session not ready"))
	}
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return provider.Wrap(op, fmt.Errorf("parse chat id: %w", err))
	}
	patch := appstate.BuildArchive(jid, archived, time.Time{}, nil)
	if err := a.client.SendAppState(ctx, patch); err != nil {
		return provider.Wrap(op, err)
	}
	a.mirror.SetArchived(chatID, archived)
	return nil
}

// SendText implements provider.Client. Returns the server message id.
func (a *Adapter) SendText(ctx context.Context, chatID, body string) (string, error) {
	to, err := types.ParseJID(chatID)
	if err != nil {
		return "", provider.Wrap("send", fmt.Errorf("parse chat id: %w", err))
	}
	resp, err := a.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(body),
	})
	if err != nil {
		return "", provider.Wrap("send", err)
	}
	return resp.ID, nil
}

// GetQRChannel returns the QR pairing channel. Must be called before
// Connect.
func (a *Adapter) GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	if a.IsLoggedIn() {
		return nil, fmt.Errorf("already logged in")
	}
	ch, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("get QR channel: %w", err)
	}
	return ch, nil
}
