package web

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) listConversations(c *gin.Context) {
	convs, err := s.builder.Build(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

// refreshConversations rebuilds the snapshot; connected websocket viewers
// receive it as a conversations.snapshot event.
func (s *Server) refreshConversations(c *gin.Context) {
	if _, err := s.builder.Build(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// conversationMessages serves the full recent-message window for one
// chat; the list view only carries the bounded history snippet.
func (s *Server) conversationMessages(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	msgs, err := s.builder.Messages(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (s *Server) archiveConversation(c *gin.Context) {
	chatID := c.Param("id")
	if err := s.engine.Archive(c.Request.Context(), chatID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID, "archived": true})
}

func (s *Server) unarchiveConversation(c *gin.Context) {
	chatID := c.Param("id")
	if err := s.engine.Unarchive(c.Request.Context(), chatID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID, "archived": false})
}
