package web

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/matheus3301/wadesk/internal/transfer"
)

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

type tagInput struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type chatInput struct {
	ChatID string `json:"chat_id" binding:"required"`
}

func (s *Server) listTags(c *gin.Context) {
	tags, err := s.store.Tags()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

func (s *Server) createTag(c *gin.Context) {
	var input tagInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tag, err := s.store.CreateTag(input.Name, input.Color)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

func (s *Server) updateTag(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var input tagInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tag, err := s.store.UpdateTag(id, input.Name, input.Color)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tag)
}

func (s *Server) deleteTag(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.store.DeleteTag(id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) countAssignments(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := s.store.TagByID(id); err != nil {
		s.fail(c, err)
		return
	}
	count, err := s.store.CountAssignments(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (s *Server) assignTag(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var input chatInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := s.store.AssignTag(id, input.ChatID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created})
}

// unassignTag routes through the reconciliation engine so removing the
// system tag also unarchives the conversation on the backend.
func (s *Server) unassignTag(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var input chatInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.engine.UnassignTag(c.Request.Context(), id, input.ChatID); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) exportTags(c *gin.Context) {
	bundle, err := s.pipeline.ExportTags()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bundle)
}

type tagImportInput struct {
	Replace     bool                      `json:"replace"`
	Tags        []transfer.TagItem        `json:"tags"`
	Assignments []transfer.AssignmentItem `json:"assignments"`
}

func (s *Server) importTags(c *gin.Context) {
	var input tagImportInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	report, err := s.pipeline.ImportTags(transfer.TagBundle{
		Tags:        input.Tags,
		Assignments: input.Assignments,
	}, input.Replace)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
