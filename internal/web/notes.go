package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/matheus3301/wadesk/internal/transfer"
)

type noteInput struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

func (s *Server) listNotes(c *gin.Context) {
	chatID := c.Query("chat_id")
	if chatID != "" {
		notes, err := s.store.NotesForChat(chatID)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, notes)
		return
	}
	notes, err := s.store.Notes("")
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

func (s *Server) createNote(c *gin.Context) {
	var input noteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	note, err := s.store.CreateNote(input.ChatID, input.Text)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

func (s *Server) updateNote(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var input noteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	note, err := s.store.UpdateNote(id, input.Text)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (s *Server) deleteNote(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.store.DeleteNote(id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) noteCounts(c *gin.Context) {
	counts, err := s.store.NoteCounts()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (s *Server) exportNotes(c *gin.Context) {
	items, err := s.pipeline.ExportNotes(c.Query("chat_id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

type noteImportInput struct {
	Replace bool                `json:"replace"`
	Notes   []transfer.NoteItem `json:"notes"`
}

func (s *Server) importNotes(c *gin.Context) {
	var input noteImportInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	report, err := s.pipeline.ImportNotes(input.Notes, input.Replace)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
