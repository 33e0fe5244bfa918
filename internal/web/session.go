package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
)

func (s *Server) sessionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": s.machine.Current()})
}

// sessionQR renders the latest pairing code as a PNG. 404 until a code
// has been generated, and again once the session is linked.
func (s *Server) sessionQR(c *gin.Context) {
	s.qrMu.RLock()
	code := s.lastQR
	s.qrMu.RUnlock()

	if code == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pairing code available"})
		return
	}
	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) sessionLogout(c *gin.Context) {
	if s.session == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no active session"})
		return
	}
	if err := s.session.Logout(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
