package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/yungbote/cvetrack-backend/internal/platform/logger"
)

type ServerConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

type Server struct {
	cfg    ServerConfig
	log    *logger.Logger
	server *http.Server
}

func NewServer(cfg ServerConfig, log *logger.Logger, rcfg RouterConfig) *Server {
	return &Server{
		cfg: cfg,
		log: log,
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewRouter(rcfg),
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			// Batch uploads can take minutes to commit.
			WriteTimeout: 0,
			ErrorLog:     log.StdLog(),
		},
	}
}

func (s *Server) Handler() http.Handler { return s.server.Handler }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", s.cfg.Addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		s.log.Info("HTTP server shutting down")
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
