package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"edaplot/internal/config"
	"edaplot/internal/logging"
)

// Pipeline is the subset of pipeline.Runner the HTTP handlers call.
type Pipeline interface {
	Board(ctx context.Context, boardPath, outputFolder string) ([]byte, error)
	Schematic(ctx context.Context, repo, revA, revB string) ([]byte, error)
	CleanerAvailable() bool
}

// Server serves the HTTP API.
type Server struct {
	cfg      *config.Config
	pipeline Pipeline
	logger   *slog.Logger
	router   chi.Router
	server   *http.Server
}

// New builds the router. Call Run to start listening.
func New(cfg *config.Config, p Pipeline, logger *slog.Logger) (*Server, error) {
	if cfg == nil || p == nil {
		return nil, errors.New("api server requires configuration and pipeline")
	}
	s := &Server{
		cfg:      cfg,
		pipeline: p,
		logger:   logging.NewComponentLogger(logger, "api-server"),
	}

	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/layers", s.handleLayers)
		r.Post("/board", s.handleBoard)
		r.Post("/schematic", s.handleSchematic)
	})
	s.router = r

	s.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on server.bind and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Server.Bind)
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.String(logging.FieldEventType, "server_listening"),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	s.logger.Info("api server stopped", logging.String(logging.FieldEventType, "server_stopped"))
	return nil
}
