package server

import (
	"context"

	"github.com/google/uuid"
)

type ServerRepository interface {
	Create(ctx context.Context, s *Server) error
	GetByID(ctx context.Context, id uuid.UUID) (*Server, error)
	GetByName(ctx context.Context, name string) (*Server, error)
	Update(ctx context.Context, s *Server) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*Server, error)
}
