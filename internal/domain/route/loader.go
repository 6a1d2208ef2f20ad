package route

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/interlink/engine/internal/engine/runtime"
	"github.com/interlink/engine/internal/engine/transform"
)

// Service implements runtime.SnapshotLoader: the manager lists routes
// through it and each worker loads its startup snapshot through it.

func (s *Service) ListRouteInfos(ctx context.Context) ([]runtime.RouteInfo, error) {
	routes, err := s.routes.List(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]runtime.RouteInfo, 0, len(routes))
	for _, rt := range routes {
		infos = append(infos, runtime.RouteInfo{
			ID:            rt.ID,
			Name:          rt.Name,
			MsgType:       rt.MsgType,
			SrcEndpointID: rt.SrcEndpointID,
		})
	}
	return infos, nil
}

// LoadSnapshot resolves everything a worker needs up front: the
// destination address, both field catalogs, and the parsed rules.
func (s *Service) LoadSnapshot(ctx context.Context, routeID uuid.UUID) (*runtime.Snapshot, error) {
	rt, err := s.routes.GetByID(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("load route %s: %w", routeID, err)
	}
	srcServer, err := s.servers.GetByID(ctx, rt.SrcServerID)
	if err != nil {
		return nil, fmt.Errorf("load src server: %w", err)
	}
	destServer, err := s.servers.GetByID(ctx, rt.DestServerID)
	if err != nil {
		return nil, fmt.Errorf("load dest server: %w", err)
	}
	destEndpoint, err := s.endpoints.GetByID(ctx, rt.DestEndpointID)
	if err != nil {
		return nil, fmt.Errorf("load dest endpoint: %w", err)
	}

	snapshot := &runtime.Snapshot{
		DestURL:            fmt.Sprintf("http://%s:%d%s", destServer.IP, destServer.Port, destEndpoint.URL),
		DestProtocol:       destServer.Protocol,
		SrcSystem:          srcServer.Name,
		DestSystem:         destServer.Name,
		SrcPathByField:     make(map[uuid.UUID]string),
		DestPathByField:    make(map[uuid.UUID]string),
		DestResourceByPath: make(map[string]string),
	}

	srcFields, err := s.endpoints.ListFields(ctx, rt.SrcEndpointID)
	if err != nil {
		return nil, fmt.Errorf("load src fields: %w", err)
	}
	for _, f := range srcFields {
		snapshot.SrcPathByField[f.ID] = f.Path
	}
	destFields, err := s.endpoints.ListFields(ctx, rt.DestEndpointID)
	if err != nil {
		return nil, fmt.Errorf("load dest fields: %w", err)
	}
	for _, f := range destFields {
		snapshot.DestPathByField[f.ID] = f.Path
		snapshot.DestResourceByPath[f.Path] = f.Resource
	}

	rules, err := s.routes.ListRules(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	for _, rule := range rules {
		parsed, err := transform.Parse(rule.TransformType, rule.Config)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		snapshot.Rules = append(snapshot.Rules, transform.Rule{
			ID:          rule.ID,
			SrcFieldID:  rule.SrcFieldID,
			DestFieldID: rule.DestFieldID,
			Transform:   parsed,
		})
	}
	return snapshot, nil
}
