package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shelf-sh/shelf/internal/db"
)

type Server struct {
	config   *Config
	server   *http.Server
	services *Services
	sqlDB    *sqlx.DB
}

func New(config *Config) (*Server, error) {
	sqlDB, err := db.NewSqliteDB(db.WithPath(config.DBPath))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	services, err := NewServices(config, sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	handler, err := SetupRoutes(config, services)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	addr := config.HTTP.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	return &Server{
		config:   config,
		services: services,
		sqlDB:    sqlDB,
		server: &http.Server{
			Addr:    addr,
			Handler: handler,
		},
	}, nil
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	slog.Info("shelf server start", "addr", s.server.Addr)
	defer slog.Info("shelf server stop")

	if err := s.services.Start(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.runHTTPServer(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shelf shutdown signal")
	}

	return s.Stop(context.Background())
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	if err := s.services.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return s.sqlDB.Close()
}

func (s *Server) runHTTPServer() error {
	if s.config.HTTP.TLSEnabled() {
		slog.Info("server start tls", "addr", s.server.Addr)
		return s.server.ListenAndServeTLS(s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	return s.server.ListenAndServe()
}
