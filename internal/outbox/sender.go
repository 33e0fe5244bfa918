// Package outbox drains queued quick-reply sends through the provider.
package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/wadesk/internal/bus"
	"github.com/matheus3301/wadesk/internal/provider"
	"github.com/matheus3301/wadesk/internal/store"
)

// Sender polls the outbox table and pushes pending messages through the
// provider session.
type Sender struct {
	store  *store.Store
	client provider.Client
	bus    *bus.Bus
	log    *zap.Logger
	cancel context.CancelFunc
}

func NewSender(st *store.Store, client provider.Client, b *bus.Bus, log *zap.Logger) *Sender {
	return &Sender{
		store:  st,
		client: client,
		bus:    b,
		log:    log.Named("outbox"),
	}
}

// Start begins polling for pending messages.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.ProcessPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessPending sends every queued entry once. Entries stay in failed
// state on error rather than being retried automatically.
func (s *Sender) ProcessPending(ctx context.Context) {
	if !s.client.Ready() {
		return
	}
	pending, err := s.store.PendingOutbox()
	if err != nil {
		s.log.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if err := s.store.MarkOutboxSending(entry.ClientMsgID); err != nil {
			s.log.Error("failed to mark sending", zap.Error(err),
				zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}

		serverMsgID, err := s.client.SendText(ctx, entry.ChatID, entry.Body)
		if err != nil {
			s.log.Error("failed to send message", zap.Error(err),
				zap.String("client_msg_id", entry.ClientMsgID))
			_ = s.store.MarkOutboxFailed(entry.ClientMsgID, err.Error())
			s.publish(bus.KindReplyFailed, map[string]string{
				"client_msg_id": entry.ClientMsgID,
				"chat_id":       entry.ChatID,
				"error":         err.Error(),
			})
			continue
		}

		if err := s.store.MarkOutboxSent(entry.ClientMsgID, serverMsgID); err != nil {
			s.log.Error("failed to mark sent", zap.Error(err),
				zap.String("client_msg_id", entry.ClientMsgID))
		}
		s.log.Info("message sent",
			zap.String("client_msg_id", entry.ClientMsgID),
			zap.String("server_msg_id", serverMsgID))
		s.publish(bus.KindReplySent, map[string]string{
			"client_msg_id": entry.ClientMsgID,
			"chat_id":       entry.ChatID,
			"server_msg_id": serverMsgID,
		})
	}
}

func (s *Sender) publish(kind string, payload map[string]string) {
	if s.bus != nil {
		s.bus.Emit(kind, payload)
	}
}
