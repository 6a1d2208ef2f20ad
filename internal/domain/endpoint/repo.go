package endpoint

import (
	"context"

	"github.com/google/uuid"
)

type EndpointRepository interface {
	// CreateWithFields writes the endpoint and its discovered fields
	// atomically.
	CreateWithFields(ctx context.Context, e *Endpoint, fields []*Field) error
	GetByID(ctx context.Context, id uuid.UUID) (*Endpoint, error)
	// GetByURL resolves an ingest URL to its endpoint.
	GetByURL(ctx context.Context, url string) (*Endpoint, error)
	GetByServerAndURL(ctx context.Context, serverID uuid.UUID, url string) (*Endpoint, error)
	ListByServer(ctx context.Context, serverID uuid.UUID) ([]*Endpoint, error)
	ListFields(ctx context.Context, endpointID uuid.UUID) ([]*Field, error)
}
