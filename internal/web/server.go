package web

import (
	"context"
	"net/http"
	"time"

	"cdr.dev/slog"
	"github.com/pkg/errors"

	"github.com/teamclock/teamclock/internal/config"
)

type Server struct {
	config  *config.Config
	handler *Handler
	server  *http.Server
	log     slog.Logger
}

// NewServer builds the HTTP server. WebSocket connections outlive any
// request timeout, so only header reads and idle keep-alives are bounded.
func NewServer(cfg *config.Config, deps Deps) *Server {
	handler := NewHandler(cfg, deps)

	httpServer := &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		config:  cfg,
		handler: handler,
		server:  httpServer,
		log:     deps.Logger.Named("web"),
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info(context.Background(), "starting web server", slog.F("address", "http://"+s.server.Addr))
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info(ctx, "shutting down web server")
	return s.server.Shutdown(ctx)
}

func (s *Server) GetAddress() string {
	return s.server.Addr
}
