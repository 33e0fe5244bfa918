package wa

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/matheus3301/wadesk/internal/provider"
)

// ParseLiveMessage normalizes a live whatsmeow message event into the
// provider message shape. Media messages carry a short descriptor instead
// of a body.
func ParseLiveMessage(evt *events.Message) provider.RawMessage {
	return provider.RawMessage{
		ID:        evt.Info.ID,
		ChatID:    evt.Info.Chat.String(),
		Body:      messageBody(evt.Message),
		FromMe:    evt.Info.IsFromMe,
		Timestamp: evt.Info.Timestamp.Unix(),
	}
}

func messageBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	if desc := mediaDescriptor(msg); desc != "" {
		return desc
	}
	return ""
}

func mediaDescriptor(msg *waE2E.Message) string {
	switch {
	case msg.GetImageMessage() != nil:
		return "[image]"
	case msg.GetVideoMessage() != nil:
		return "[video]"
	case msg.GetAudioMessage() != nil:
		return "[audio]"
	case msg.GetDocumentMessage() != nil:
		return "[document]"
	case msg.GetStickerMessage() != nil:
		return "[sticker]"
	case msg.GetContactMessage() != nil:
		return "[contact]"
	case msg.GetLocationMessage() != nil:
		return "[location]"
	default:
		return ""
	}
}
