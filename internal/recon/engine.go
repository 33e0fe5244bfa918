// Package recon keeps the backend archive state and the local system-tag
// assignments consistent with each other.
package recon

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/wadesk/internal/bus"
	"github.com/matheus3301/wadesk/internal/provider"
	"github.com/matheus3301/wadesk/internal/store"
)

// ActionResult is published on the bus after every archive or unarchive
// attempt, successful or not.
type ActionResult struct {
	ChatID string `json:"chat_id"`
	Action string `json:"action"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// Engine serializes archive-state mutations per conversation and mirrors
// them into the metadata store's system tag.
type Engine struct {
	store  *store.Store
	client provider.Client
	bus    *bus.Bus
	log    *zap.Logger

	mu    sync.Mutex
	chats map[string]*sync.Mutex
}

func New(st *store.Store, client provider.Client, b *bus.Bus, log *zap.Logger) *Engine {
	return &Engine{
		store:  st,
		client: client,
		bus:    b,
		log:    log.Named("recon"),
		chats:  map[string]*sync.Mutex{},
	}
}

// chatLock returns the mutex for chatID, creating it on first use. Locks
// are never released back; the set of chats a session touches is small.
func (e *Engine) chatLock(chatID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.chats[chatID]
	if !ok {
		l = &sync.Mutex{}
		e.chats[chatID] = l
	}
	return l
}

// AutoTagArchived assigns the system tag to chatID if it is not already
// assigned. The caller has already established that the conversation is
// archived on the backend.
func (e *Engine) AutoTagArchived(chatID string) error {
	created, err := e.store.AssignTag(e.store.ArchivedTagID(), chatID)
	if err != nil {
		return err
	}
	if created {
		e.log.Debug("auto-tagged archived conversation", zap.String("chat_id", chatID))
	}
	return nil
}

// Archive archives the conversation on the backend and then assigns the
// system tag locally. The backend call comes first: on failure nothing is
// written and the provider error is returned as-is.
func (e *Engine) Archive(ctx context.Context, chatID string) error {
	l := e.chatLock(chatID)
	l.Lock()
	defer l.Unlock()

	if err := e.client.Archive(ctx, chatID); err != nil {
		e.publishResult(chatID, "archive", err)
		return err
	}
	if err := e.AutoTagArchived(chatID); err != nil {
		e.publishResult(chatID, "archive", err)
		return err
	}
	e.publishResult(chatID, "archive", nil)
	e.requestRefresh()
	return nil
}

// Unarchive is the inverse of Archive: backend first, then the local
// system-tag assignment is removed (absent is fine).
func (e *Engine) Unarchive(ctx context.Context, chatID string) error {
	l := e.chatLock(chatID)
	l.Lock()
	defer l.Unlock()

	if err := e.client.Unarchive(ctx, chatID); err != nil {
		e.publishResult(chatID, "unarchive", err)
		return err
	}
	if err := e.store.UnassignTag(e.store.ArchivedTagID(), chatID); err != nil {
		e.publishResult(chatID, "unarchive", err)
		return err
	}
	e.publishResult(chatID, "unarchive", nil)
	e.requestRefresh()
	return nil
}

// UnassignTag removes a tag assignment. Removing the system tag from a
// conversation that is archived on the backend also unarchives it there
// when possible; a not-ready session or a failed backend call skips the
// remote side, the local row is always deleted.
func (e *Engine) UnassignTag(ctx context.Context, tagID int64, chatID string) error {
	if tagID != e.store.ArchivedTagID() {
		return e.store.UnassignTag(tagID, chatID)
	}

	l := e.chatLock(chatID)
	l.Lock()
	defer l.Unlock()

	if !e.client.Ready() {
		e.log.Warn("session not ready, skipping remote unarchive",
			zap.String("chat_id", chatID))
		return e.store.UnassignTag(tagID, chatID)
	}

	conv, err := e.client.ConversationByID(ctx, chatID)
	if err != nil {
		e.log.Warn("conversation lookup failed, skipping remote unarchive",
			zap.String("chat_id", chatID), zap.Error(err))
	} else if conv != nil && conv.Archived {
		// Best effort: the user's unassign wins even when the backend
		// call fails; the next snapshot pass re-tags if it is still
		// archived there.
		if err := e.client.Unarchive(ctx, chatID); err != nil {
			e.log.Warn("remote unarchive failed",
				zap.String("chat_id", chatID), zap.Error(err))
			e.publishResult(chatID, "unarchive", err)
		} else {
			e.publishResult(chatID, "unarchive", nil)
			e.requestRefresh()
		}
	}
	return e.store.UnassignTag(tagID, chatID)
}

func (e *Engine) publishResult(chatID, action string, err error) {
	if e.bus == nil {
		return
	}
	res := ActionResult{ChatID: chatID, Action: action, OK: err == nil}
	if err != nil {
		res.Error = err.Error()
	}
	e.bus.Emit(bus.KindArchiveResult, res)
}

func (e *Engine) requestRefresh() {
	if e.bus == nil {
		return
	}
	e.bus.Emit(bus.KindRefreshWanted, nil)
}
