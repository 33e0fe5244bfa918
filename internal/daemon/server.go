package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/wadesk/internal/config"
	"github.com/matheus3301/wadesk/internal/web"
)

// Server manages the HTTP server lifecycle.
type Server struct {
	http   *http.Server
	addr   string
	logger *zap.Logger
}

// NewServer binds the web router to the configured address.
func NewServer(p Params, cfg *config.Config, webSrv *web.Server, logger *zap.Logger) *Server {
	addr := p.Addr
	if addr == "" {
		addr = fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           webSrv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		addr:   addr,
		logger: logger,
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.addr }

// Start begins serving HTTP requests. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.addr))
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop performs a graceful shutdown.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("http server stopping")
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown", zap.Error(err))
	}
}
