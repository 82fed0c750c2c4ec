package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/card-directory/pkg/config"
)

// Server runs the gin router with graceful shutdown
type Server struct {
	server *http.Server
	cfg    config.ServerConfig
	log    *logrus.Entry
}

// NewServer wraps router in an http.Server configured from cfg
func NewServer(cfg config.ServerConfig, router *gin.Engine, log *logrus.Entry) *Server {
	return &Server{
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		cfg: cfg,
		log: log.WithField("component", "http_server"),
	}
}

// Run serves until ctx is cancelled, then shuts down within the configured timeout
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.server.Addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.WithField("timeout", s.cfg.ShutdownTimeout).Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}
