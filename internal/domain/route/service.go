package route

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/interlink/engine/internal/domain/endpoint"
	"github.com/interlink/engine/internal/domain/server"
	"github.com/interlink/engine/internal/engine/transform"
)

var (
	ErrNotFound         = errors.New("route not found")
	ErrNameTaken        = errors.New("route name already exists")
	ErrPairTaken        = errors.New("a route with the same src/dest endpoint pair already exists")
	ErrServerNotFound   = errors.New("server id not found")
	ErrEndpointNotFound = errors.New("endpoint id not found")
	ErrMultiSrcDest     = errors.New("a single rule cannot have multiple source and multiple destination fields")
)

// ServerLookup is the slice of the server registry this package needs.
type ServerLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*server.Server, error)
}

// EndpointLookup is the slice of the endpoint registry this package needs.
type EndpointLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*endpoint.Endpoint, error)
	ListFields(ctx context.Context, endpointID uuid.UUID) ([]*endpoint.Field, error)
}

type Service struct {
	routes    RouteRepository
	servers   ServerLookup
	endpoints EndpointLookup
	logger    zerolog.Logger
}

func NewService(routes RouteRepository, servers ServerLookup, endpoints EndpointLookup, logger zerolog.Logger) *Service {
	return &Service{routes: routes, servers: servers, endpoints: endpoints, logger: logger}
}

// RuleSpec is one mapping declaration in a route creation request.
// Copy, map, and format take one source and one destination; split
// takes one source and many destinations; concat many sources and one
// destination.
type RuleSpec struct {
	SrcFieldIDs  []uuid.UUID            `json:"src_paths"`
	DestFieldIDs []uuid.UUID            `json:"dest_paths"`
	Transform    string                 `json:"transform"`
	Config       map[string]interface{} `json:"config"`
}

// CreateRouteRequest registers a route plus its mapping rules.
type CreateRouteRequest struct {
	Name           string     `json:"name"`
	SrcServerID    uuid.UUID  `json:"src_server_id"`
	SrcEndpointID  uuid.UUID  `json:"src_endpoint_id"`
	DestServerID   uuid.UUID  `json:"dest_server_id"`
	DestEndpointID uuid.UUID  `json:"dest_endpoint_id"`
	MsgType        string     `json:"msg_type"`
	Rules          []RuleSpec `json:"rules"`
}

// CreateRoute validates the request, expands split/concat specs into
// one stored row per leg, and writes route and rules in one
// transaction. Either everything lands or nothing does.
func (s *Service) CreateRoute(ctx context.Context, req CreateRouteRequest) (*Route, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if _, err := s.routes.GetByName(ctx, req.Name); err == nil {
		return nil, ErrNameTaken
	}
	if _, err := s.routes.GetByEndpoints(ctx, req.SrcEndpointID, req.DestEndpointID); err == nil {
		return nil, ErrPairTaken
	}
	for _, id := range []uuid.UUID{req.SrcServerID, req.DestServerID} {
		if _, err := s.servers.GetByID(ctx, id); err != nil {
			return nil, ErrServerNotFound
		}
	}
	for _, id := range []uuid.UUID{req.SrcEndpointID, req.DestEndpointID} {
		if _, err := s.endpoints.GetByID(ctx, id); err != nil {
			return nil, ErrEndpointNotFound
		}
	}

	rules, err := expandRules(req.Rules)
	if err != nil {
		return nil, err
	}

	rt := &Route{
		Name:           req.Name,
		SrcServerID:    req.SrcServerID,
		SrcEndpointID:  req.SrcEndpointID,
		DestServerID:   req.DestServerID,
		DestEndpointID: req.DestEndpointID,
		MsgType:        req.MsgType,
	}
	if err := s.routes.CreateWithRules(ctx, rt, rules); err != nil {
		return nil, err
	}
	s.logger.Info().Str("route", rt.Name).Int("rules", len(rules)).Msg("route registered")
	return rt, nil
}

// expandRules turns rule specs into stored rows, validating shape and
// config as it goes.
func expandRules(specs []RuleSpec) ([]*MappingRule, error) {
	var rules []*MappingRule
	for _, spec := range specs {
		if len(spec.SrcFieldIDs) > 1 && len(spec.DestFieldIDs) > 1 {
			return nil, ErrMultiSrcDest
		}
		if len(spec.SrcFieldIDs) == 0 || len(spec.DestFieldIDs) == 0 {
			return nil, fmt.Errorf("rule needs at least one source and one destination field")
		}
		if !transform.ValidKind(spec.Transform) {
			return nil, fmt.Errorf("transform type not valid: %q", spec.Transform)
		}
		if _, err := transform.Parse(spec.Transform, spec.Config); err != nil {
			return nil, err
		}

		switch transform.Kind(spec.Transform) {
		case transform.KindConcat:
			for _, srcID := range spec.SrcFieldIDs {
				rules = append(rules, &MappingRule{
					SrcFieldID:    srcID,
					DestFieldID:   spec.DestFieldIDs[0],
					TransformType: spec.Transform,
					Config:        spec.Config,
				})
			}
		case transform.KindSplit:
			for _, destID := range spec.DestFieldIDs {
				rules = append(rules, &MappingRule{
					SrcFieldID:    spec.SrcFieldIDs[0],
					DestFieldID:   destID,
					TransformType: spec.Transform,
					Config:        spec.Config,
				})
			}
		default:
			rules = append(rules, &MappingRule{
				SrcFieldID:    spec.SrcFieldIDs[0],
				DestFieldID:   spec.DestFieldIDs[0],
				TransformType: spec.Transform,
				Config:        spec.Config,
			})
		}
	}
	return rules, nil
}

// RouteDetail is the listing view, with the servers and endpoints
// resolved to their names and URLs.
type RouteDetail struct {
	ID           uuid.UUID `json:"route_id"`
	Name         string    `json:"name"`
	SrcServer    PeerRef   `json:"src_server"`
	SrcEndpoint  PeerRef   `json:"src_endpoint"`
	DestServer   PeerRef   `json:"dest_server"`
	DestEndpoint PeerRef   `json:"dest_endpoint"`
	MsgType      string    `json:"msg_type"`
}

// PeerRef points at a server or endpoint by id plus its display label.
type PeerRef struct {
	ID    uuid.UUID `json:"id"`
	Label string    `json:"label"`
}

// ListRoutes returns every route with its peers resolved.
func (s *Service) ListRoutes(ctx context.Context) ([]*RouteDetail, error) {
	routes, err := s.routes.List(ctx)
	if err != nil {
		return nil, err
	}
	details := make([]*RouteDetail, 0, len(routes))
	for _, rt := range routes {
		detail := &RouteDetail{ID: rt.ID, Name: rt.Name, MsgType: rt.MsgType}
		if srv, err := s.servers.GetByID(ctx, rt.SrcServerID); err == nil {
			detail.SrcServer = PeerRef{ID: srv.ID, Label: srv.Name}
		}
		if srv, err := s.servers.GetByID(ctx, rt.DestServerID); err == nil {
			detail.DestServer = PeerRef{ID: srv.ID, Label: srv.Name}
		}
		if e, err := s.endpoints.GetByID(ctx, rt.SrcEndpointID); err == nil {
			detail.SrcEndpoint = PeerRef{ID: e.ID, Label: e.URL}
		}
		if e, err := s.endpoints.GetByID(ctx, rt.DestEndpointID); err == nil {
			detail.DestEndpoint = PeerRef{ID: e.ID, Label: e.URL}
		}
		details = append(details, detail)
	}
	return details, nil
}

// FieldRef labels a field id with its catalog entry.
type FieldRef struct {
	FieldID  uuid.UUID `json:"field_id"`
	Resource string    `json:"resource"`
	Path     string    `json:"path"`
	Name     string    `json:"name"`
}

// DirectRuleView is a copy, map, or format rule.
type DirectRuleView struct {
	RuleID    uuid.UUID              `json:"rule_id"`
	SrcField  FieldRef               `json:"src_field"`
	DestField FieldRef               `json:"dest_field"`
	Transform string                 `json:"transform"`
	Config    map[string]interface{} `json:"config"`
}

// SplitRuleView is a split group: one source, ordered destinations.
type SplitRuleView struct {
	SrcField   FieldRef               `json:"src_field"`
	DestFields []FieldRef             `json:"dest_fields"`
	Transform  string                 `json:"transform"`
	Config     map[string]interface{} `json:"config"`
}

// ConcatRuleView is a concat group: ordered sources, one destination.
type ConcatRuleView struct {
	SrcFields []FieldRef             `json:"src_fields"`
	DestField FieldRef               `json:"dest_field"`
	Transform string                 `json:"transform"`
	Config    map[string]interface{} `json:"config"`
}

// RulesView groups a route's rules by transform family, the shape the
// configuration UI consumes.
type RulesView struct {
	Direct []DirectRuleView `json:"direct"`
	Split  []SplitRuleView  `json:"split"`
	Concat []ConcatRuleView `json:"concat"`
}

// GetRules returns the route's rules with field ids resolved against
// both endpoints' catalogs, regrouped from the stored per-leg rows.
func (s *Service) GetRules(ctx context.Context, routeID uuid.UUID) (*RulesView, error) {
	rt, err := s.routes.GetByID(ctx, routeID)
	if err != nil {
		return nil, ErrNotFound
	}
	rules, err := s.routes.ListRules(ctx, routeID)
	if err != nil {
		return nil, err
	}
	fields, err := s.fieldIndex(ctx, rt)
	if err != nil {
		return nil, err
	}

	view := &RulesView{}
	splitIdx := make(map[uuid.UUID]int)
	concatIdx := make(map[uuid.UUID]int)

	for _, rule := range rules {
		switch transform.Kind(rule.TransformType) {
		case transform.KindSplit:
			if i, ok := splitIdx[rule.SrcFieldID]; ok {
				view.Split[i].DestFields = append(view.Split[i].DestFields, fields[rule.DestFieldID])
				continue
			}
			splitIdx[rule.SrcFieldID] = len(view.Split)
			view.Split = append(view.Split, SplitRuleView{
				SrcField:   fields[rule.SrcFieldID],
				DestFields: []FieldRef{fields[rule.DestFieldID]},
				Transform:  rule.TransformType,
				Config:     rule.Config,
			})
		case transform.KindConcat:
			if i, ok := concatIdx[rule.DestFieldID]; ok {
				view.Concat[i].SrcFields = append(view.Concat[i].SrcFields, fields[rule.SrcFieldID])
				continue
			}
			concatIdx[rule.DestFieldID] = len(view.Concat)
			view.Concat = append(view.Concat, ConcatRuleView{
				SrcFields: []FieldRef{fields[rule.SrcFieldID]},
				DestField: fields[rule.DestFieldID],
				Transform: rule.TransformType,
				Config:    rule.Config,
			})
		default:
			view.Direct = append(view.Direct, DirectRuleView{
				RuleID:    rule.ID,
				SrcField:  fields[rule.SrcFieldID],
				DestField: fields[rule.DestFieldID],
				Transform: rule.TransformType,
				Config:    rule.Config,
			})
		}
	}
	return view, nil
}

// fieldIndex maps field ids of both endpoints to their catalog entries.
func (s *Service) fieldIndex(ctx context.Context, rt *Route) (map[uuid.UUID]FieldRef, error) {
	index := make(map[uuid.UUID]FieldRef)
	for _, endpointID := range []uuid.UUID{rt.SrcEndpointID, rt.DestEndpointID} {
		fields, err := s.endpoints.ListFields(ctx, endpointID)
		if err != nil {
			return nil, err
		}
		for _, f := range fields {
			index[f.ID] = FieldRef{FieldID: f.ID, Resource: f.Resource, Path: f.Path, Name: f.Name}
		}
	}
	return index, nil
}
