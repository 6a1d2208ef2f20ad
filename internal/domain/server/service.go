package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/interlink/engine/internal/platform/health"
)

var (
	ErrNotFound    = errors.New("server not found")
	ErrNameTaken   = errors.New("server with this name already exists")
	ErrUnreachable = errors.New("server is not reachable or unhealthy")
)

type Service struct {
	servers ServerRepository
	prober  health.Prober
}

func NewService(servers ServerRepository, prober health.Prober) *Service {
	return &Service{servers: servers, prober: prober}
}

var validProtocols = map[string]bool{ProtocolFHIR: true, ProtocolHL7: true}

// CreateServer registers a new server. The target must answer its
// /health endpoint before it is accepted.
func (s *Service) CreateServer(ctx context.Context, srv *Server) error {
	if srv.Name == "" || srv.IP == "" || srv.Port == 0 {
		return fmt.Errorf("name, ip, and port are required")
	}
	if !validProtocols[srv.Protocol] {
		return fmt.Errorf("invalid protocol: %s", srv.Protocol)
	}
	if _, err := s.servers.GetByName(ctx, srv.Name); err == nil {
		return ErrNameTaken
	}
	if !s.prober.Healthy(ctx, srv.IP, srv.Port) {
		return ErrUnreachable
	}
	srv.Status = StatusActive
	return s.servers.Create(ctx, srv)
}

func (s *Service) GetServer(ctx context.Context, id uuid.UUID) (*Server, error) {
	srv, err := s.servers.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	return srv, nil
}

func (s *Service) ListServers(ctx context.Context) ([]*Server, error) {
	return s.servers.List(ctx)
}

// UpdateServer replaces a server's connection details. The new name must
// not belong to a different server.
func (s *Service) UpdateServer(ctx context.Context, srv *Server) error {
	existing, err := s.servers.GetByID(ctx, srv.ID)
	if err != nil {
		return ErrNotFound
	}
	if srv.Protocol != "" && !validProtocols[srv.Protocol] {
		return fmt.Errorf("invalid protocol: %s", srv.Protocol)
	}
	if other, err := s.servers.GetByName(ctx, srv.Name); err == nil && other.ID != existing.ID {
		return ErrNameTaken
	}
	return s.servers.Update(ctx, srv)
}

func (s *Service) DeleteServer(ctx context.Context, id uuid.UUID) error {
	if _, err := s.servers.GetByID(ctx, id); err != nil {
		return ErrNotFound
	}
	return s.servers.Delete(ctx, id)
}
