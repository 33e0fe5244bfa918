package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/matheus3301/wadesk/internal/transfer"
)

type replyInput struct {
	Text string `json:"text"`
}

func (s *Server) listReplies(c *gin.Context) {
	replies, err := s.store.QuickReplies()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, replies)
}

func (s *Server) createReply(c *gin.Context) {
	var input replyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reply, err := s.store.CreateQuickReply(input.Text)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, reply)
}

func (s *Server) updateReply(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var input replyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reply, err := s.store.UpdateQuickReply(id, input.Text)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (s *Server) deleteReply(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.store.DeleteQuickReply(id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type sendInput struct {
	ChatID string `json:"chat_id" binding:"required"`
	Text   string `json:"text" binding:"required"`
}

// sendReply queues the message on the outbox; the sender loop delivers it
// and reports the result on the bus.
func (s *Server) sendReply(c *gin.Context) {
	var input sendInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	clientMsgID := uuid.NewString()
	if err := s.store.QueueOutbox(clientMsgID, input.ChatID, input.Text); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"client_msg_id": clientMsgID})
}

func (s *Server) exportReplies(c *gin.Context) {
	items, err := s.pipeline.ExportReplies()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

type replyImportInput struct {
	Replace bool                 `json:"replace"`
	Replies []transfer.ReplyItem `json:"replies"`
}

func (s *Server) importReplies(c *gin.Context) {
	var input replyImportInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	report, err := s.pipeline.ImportReplies(input.Replies, input.Replace)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
