package wa

import (
	"strings"

	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/matheus3301/wadesk/internal/bus"
	"github.com/matheus3301/wadesk/internal/identity"
	"github.com/matheus3301/wadesk/internal/provider"
	"github.com/matheus3301/wadesk/internal/status"
)

// EventHandler feeds whatsmeow events into the chat mirror, drives the
// session state machine, and asks for a snapshot rebuild when the view
// could have changed.
type EventHandler struct {
	mirror  *Mirror
	machine *status.Machine
	bus     *bus.Bus
	log     *zap.Logger
}

func NewEventHandler(mirror *Mirror, machine *status.Machine, b *bus.Bus, log *zap.Logger) *EventHandler {
	return &EventHandler{
		mirror:  mirror,
		machine: machine,
		bus:     b,
		log:     log.Named("wa.events"),
	}
}

// Handle is the whatsmeow event handler function.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.mirror.RecordMessage(ParseLiveMessage(evt))
		h.mirror.SetName(evt.Info.Chat.String(), chatDisplayName(evt))
		h.requestRefresh()
	case *events.HistorySync:
		h.handleHistorySync(evt)
	case *events.Archive:
		archived := evt.Action.GetArchived()
		h.log.Debug("archive state changed",
			zap.String("chat_id", evt.JID.String()), zap.Bool("archived", archived))
		h.mirror.SetArchived(evt.JID.String(), archived)
		h.requestRefresh()
	case *events.MarkChatAsRead:
		if evt.Action.GetRead() {
			h.mirror.ClearUnread(evt.JID.String())
			h.requestRefresh()
		}
	case *events.Connected:
		h.log.Info("session connected")
		if h.machine.Current() == status.AuthRequired {
			_ = h.machine.Transition(status.Connecting)
		}
		_ = h.machine.Transition(status.Ready)
	case *events.Disconnected:
		h.log.Warn("session disconnected")
		_ = h.machine.Transition(status.Reconnecting)
	case *events.LoggedOut:
		h.log.Warn("session logged out", zap.String("reason", evt.Reason.String()))
		_ = h.machine.Transition(status.AuthRequired)
	}
}

func (h *EventHandler) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	for _, conv := range data.GetConversations() {
		chatID := conv.GetID()
		if chatID == "" {
			continue
		}
		var msgs []provider.RawMessage
		for _, hm := range conv.GetMessages() {
			wmsg := hm.GetMessage()
			if wmsg == nil || wmsg.GetMessage() == nil {
				continue
			}
			msgs = append(msgs, provider.RawMessage{
				ID:        wmsg.GetKey().GetID(),
				ChatID:    chatID,
				Body:      messageBody(wmsg.GetMessage()),
				FromMe:    wmsg.GetKey().GetFromMe(),
				Timestamp: int64(wmsg.GetMessageTimestamp()),
			})
		}
		h.mirror.RecordHistory(
			chatID,
			conv.GetName(),
			strings.HasSuffix(chatID, identity.GroupSuffix),
			int(conv.GetUnreadCount()),
			conv.GetArchived(),
			msgs,
		)
	}
	h.requestRefresh()
}

func (h *EventHandler) requestRefresh() {
	if h.bus != nil {
		h.bus.Emit(bus.KindRefreshWanted, nil)
	}
}

func chatDisplayName(evt *events.Message) string {
	// Push names identify the sender, not the chat; only trust them for
	// direct conversations.
	if evt.Info.IsGroup || evt.Info.IsFromMe {
		return ""
	}
	return evt.Info.PushName
}
