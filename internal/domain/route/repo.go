package route

import (
	"context"

	"github.com/google/uuid"
)

type RouteRepository interface {
	// CreateWithRules writes the route and its expanded rule rows
	// atomically.
	CreateWithRules(ctx context.Context, r *Route, rules []*MappingRule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Route, error)
	GetByName(ctx context.Context, name string) (*Route, error)
	GetByEndpoints(ctx context.Context, srcEndpointID, destEndpointID uuid.UUID) (*Route, error)
	List(ctx context.Context) ([]*Route, error)
	ListBySrcEndpoint(ctx context.Context, srcEndpointID uuid.UUID) ([]*Route, error)
	ListRules(ctx context.Context, routeID uuid.UUID) ([]*MappingRule, error)
}
