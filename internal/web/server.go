// Package web exposes the daemon's HTTP surface: REST routes for metadata
// and conversations, plus a websocket feed of bus events.
package web

import (
	"context"
	"errors"
	"net/http"
	"sync"

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

// SessionControl is the slice of the session adapter the web layer needs.
type SessionControl interface {
	Logout(ctx context.Context) error
}

// Server wires the HTTP handlers to the core components.
type Server struct {
	store    *store.Store
	pipeline *transfer.Pipeline
	engine   *recon.Engine
	builder  *snapshot.Builder
	machine  *status.Machine
	session  SessionControl
	bus      *bus.Bus
	log      *zap.Logger

	qrMu   sync.RWMutex
	lastQR string
}

func NewServer(st *store.Store, pipeline *transfer.Pipeline, engine *recon.Engine, builder *snapshot.Builder, machine *status.Machine, sess SessionControl, b *bus.Bus, log *zap.Logger) *Server {
	s := &Server{
		store:    st,
		pipeline: pipeline,
		engine:   engine,
		builder:  builder,
		machine:  machine,
		session:  sess,
		bus:      b,
		log:      log.Named("web"),
	}
	s.watchQR()
	return s
}

// watchQR keeps the latest pairing code so GET /session/qr can render it
// on demand.
func (s *Server) watchQR() {
	if s.bus == nil {
		return
	}
	ch, _ := s.bus.Subscribe("session.", 16)
	go func() {
		for evt := range ch {
			switch evt.Kind {
			case bus.KindQRGenerated:
				if code, ok := evt.Payload.(string); ok {
					s.qrMu.Lock()
					s.lastQR = code
					s.qrMu.Unlock()
				}
			case bus.KindStatusChanged:
				if change, ok := evt.Payload.(status.Change); ok && change.To == status.Ready {
					s.qrMu.Lock()
					s.lastQR = ""
					s.qrMu.Unlock()
				}
			}
		}
	}()
}

// Router builds the gin engine with every route mounted.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	sess := r.Group("/session")
	{
		sess.GET("/status", s.sessionStatus)
		sess.GET("/qr", s.sessionQR)
		sess.POST("/logout", s.sessionLogout)
	}

	tags := r.Group("/tags")
	{
		tags.GET("", s.listTags)
		tags.POST("", s.createTag)
		tags.PUT("/:id", s.updateTag)
		tags.DELETE("/:id", s.deleteTag)
		tags.GET("/:id/count", s.countAssignments)
		tags.POST("/:id/assign", s.assignTag)
		tags.POST("/:id/unassign", s.unassignTag)
		tags.GET("/export", s.exportTags)
		tags.POST("/import", s.importTags)
	}

	notes := r.Group("/notes")
	{
		notes.GET("", s.listNotes)
		notes.POST("", s.createNote)
		notes.PUT("/:id", s.updateNote)
		notes.DELETE("/:id", s.deleteNote)
		notes.GET("/counts", s.noteCounts)
		notes.GET("/export", s.exportNotes)
		notes.POST("/import", s.importNotes)
	}

	replies := r.Group("/replies")
	{
		replies.GET("", s.listReplies)
		replies.POST("", s.createReply)
		replies.PUT("/:id", s.updateReply)
		replies.DELETE("/:id", s.deleteReply)
		replies.POST("/send", s.sendReply)
		replies.GET("/export", s.exportReplies)
		replies.POST("/import", s.importReplies)
	}

	convs := r.Group("/conversations")
	{
		convs.GET("", s.listConversations)
		convs.GET("/:id/messages", s.conversationMessages)
		convs.POST("/refresh", s.refreshConversations)
		convs.POST("/:id/archive", s.archiveConversation)
		convs.POST("/:id/unarchive", s.unarchiveConversation)
	}

	r.GET("/ws", s.serveWS)

	return r
}

// fail maps core errors onto HTTP status codes.
func (s *Server) fail(c *gin.Context, err error) {
	var pErr *provider.Error
	switch {
	case store.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.As(err, &pErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		s.log.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
