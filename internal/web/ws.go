package web

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// wsNamespaces are the bus prefixes forwarded to connected viewers.
var wsNamespaces = []string{"tags.", "notes.", "replies.", "conversations.", "session."}

// frame is the wire shape of one forwarded event.
type frame struct {
	Kind      string `json:"kind"`
	Timestamp int64  `json:"timestamp"`
	Payload   any    `json:"payload,omitempty"`
}

// serveWS upgrades the request and streams bus events until the viewer
// disconnects. Delivery is at-most-once; a slow viewer loses events
// rather than blocking publishers.
func (s *Server) serveWS(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := conn.CloseRead(c.Request.Context())

	merged := make(chan frame, 64)
	var unsubs []func()
	for _, ns := range wsNamespaces {
		ch, unsub := s.bus.Subscribe(ns, 64)
		unsubs = append(unsubs, unsub)
		go func() {
			for evt := range ch {
				select {
				case merged <- frame{
					Kind:      evt.Kind,
					Timestamp: evt.Timestamp.UnixMilli(),
					Payload:   evt.Payload,
				}:
				default:
					// Viewer is behind; drop.
				}
			}
		}()
	}
	defer func() {
		for _, u := range unsubs {
			u()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case f := <-merged:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, f)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
