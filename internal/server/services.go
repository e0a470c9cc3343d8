package server

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shelf-sh/shelf/internal/server/auth"
	"github.com/shelf-sh/shelf/internal/server/blob"
	"github.com/shelf-sh/shelf/internal/server/registry"
	syncsvc "github.com/shelf-sh/shelf/internal/server/sync"
)

type Services struct {
	Blob     *blob.Service
	Registry *registry.Registry
	Sync     *syncsvc.Service
	Auth     *auth.AuthService
}

func NewServices(config *Config, db *sqlx.DB) (*Services, error) {
	blobSvc, err := blob.NewService(&config.Blob, db)
	if err != nil {
		return nil, fmt.Errorf("create blob service: %w", err)
	}

	registrySvc, err := registry.New(db)
	if err != nil {
		return nil, fmt.Errorf("create registry: %w", err)
	}

	authSvc, err := auth.NewAuthService(&config.Auth, db)
	if err != nil {
		return nil, fmt.Errorf("create auth service: %w", err)
	}

	syncSvc := syncsvc.NewService(blobSvc, registrySvc)

	return &Services{
		Blob:     blobSvc,
		Registry: registrySvc,
		Sync:     syncSvc,
		Auth:     authSvc,
	}, nil
}

func (s *Services) Start(ctx context.Context) error {
	// blob first, it owns the sweeper
	if err := s.Blob.Start(ctx); err != nil {
		return fmt.Errorf("start blob service: %w", err)
	}
	return nil
}

func (s *Services) Shutdown(ctx context.Context) error {
	if err := s.Blob.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop blob service: %w", err)
	}
	return nil
}
