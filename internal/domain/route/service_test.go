package route

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/interlink/engine/internal/domain/endpoint"
	"github.com/interlink/engine/internal/domain/server"
	"github.com/interlink/engine/internal/engine/transform"
)

// -- Mock Repository --

type mockRouteRepo struct {
	routes map[uuid.UUID]*Route
	rules  map[uuid.UUID][]*MappingRule
}

func newMockRouteRepo() *mockRouteRepo {
	return &mockRouteRepo{
		routes: make(map[uuid.UUID]*Route),
		rules:  make(map[uuid.UUID][]*MappingRule),
	}
}

func (m *mockRouteRepo) CreateWithRules(_ context.Context, r *Route, rules []*MappingRule) error {
	r.ID = uuid.New()
	m.routes[r.ID] = r
	for i, rule := range rules {
		rule.ID = uuid.New()
		rule.RouteID = r.ID
		rule.Position = i
	}
	m.rules[r.ID] = rules
	return nil
}

func (m *mockRouteRepo) GetByID(_ context.Context, id uuid.UUID) (*Route, error) {
	r, ok := m.routes[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return r, nil
}

func (m *mockRouteRepo) GetByName(_ context.Context, name string) (*Route, error) {
	for _, r := range m.routes {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockRouteRepo) GetByEndpoints(_ context.Context, src, dest uuid.UUID) (*Route, error) {
	for _, r := range m.routes {
		if r.SrcEndpointID == src && r.DestEndpointID == dest {
			return r, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockRouteRepo) List(_ context.Context) ([]*Route, error) {
	var r []*Route
	for _, rt := range m.routes {
		r = append(r, rt)
	}
	return r, nil
}

func (m *mockRouteRepo) ListBySrcEndpoint(_ context.Context, src uuid.UUID) ([]*Route, error) {
	var r []*Route
	for _, rt := range m.routes {
		if rt.SrcEndpointID == src {
			r = append(r, rt)
		}
	}
	return r, nil
}

func (m *mockRouteRepo) ListRules(_ context.Context, routeID uuid.UUID) ([]*MappingRule, error) {
	return m.rules[routeID], nil
}

// -- Lookup stubs --

type stubServers struct{ known map[uuid.UUID]*server.Server }

func (s *stubServers) GetByID(_ context.Context, id uuid.UUID) (*server.Server, error) {
	srv, ok := s.known[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return srv, nil
}

type stubEndpoints struct {
	known  map[uuid.UUID]*endpoint.Endpoint
	fields map[uuid.UUID][]*endpoint.Field
}

func (s *stubEndpoints) GetByID(_ context.Context, id uuid.UUID) (*endpoint.Endpoint, error) {
	e, ok := s.known[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return e, nil
}

func (s *stubEndpoints) ListFields(_ context.Context, id uuid.UUID) ([]*endpoint.Field, error) {
	return s.fields[id], nil
}

// fixture wires two servers, two endpoints, and a field on each side.
type fixture struct {
	svc        *Service
	repo       *mockRouteRepo
	srcServer  *server.Server
	destServer *server.Server
	srcEP      *endpoint.Endpoint
	destEP     *endpoint.Endpoint
	srcField   *endpoint.Field
	destField  *endpoint.Field
}

func newFixture() *fixture {
	srcServer := &server.Server{ID: uuid.New(), Name: "EHR", IP: "10.0.0.1", Port: 8001, Protocol: server.ProtocolFHIR}
	destServer := &server.Server{ID: uuid.New(), Name: "EMR", IP: "10.0.0.2", Port: 8002, Protocol: server.ProtocolHL7}
	srcEP := &endpoint.Endpoint{ID: uuid.New(), ServerID: srcServer.ID, URL: "/patients"}
	destEP := &endpoint.Endpoint{ID: uuid.New(), ServerID: destServer.ID, URL: "/adt"}
	srcField := &endpoint.Field{ID: uuid.New(), EndpointID: srcEP.ID, Resource: "Patient", Path: "gender", Name: "gender"}
	destField := &endpoint.Field{ID: uuid.New(), EndpointID: destEP.ID, Resource: "PID", Path: "PID-8", Name: "gender"}

	repo := newMockRouteRepo()
	servers := &stubServers{known: map[uuid.UUID]*server.Server{srcServer.ID: srcServer, destServer.ID: destServer}}
	endpoints := &stubEndpoints{
		known: map[uuid.UUID]*endpoint.Endpoint{srcEP.ID: srcEP, destEP.ID: destEP},
		fields: map[uuid.UUID][]*endpoint.Field{
			srcEP.ID:  {srcField},
			destEP.ID: {destField},
		},
	}
	return &fixture{
		svc:        NewService(repo, servers, endpoints, zerolog.Nop()),
		repo:       repo,
		srcServer:  srcServer,
		destServer: destServer,
		srcEP:      srcEP,
		destEP:     destEP,
		srcField:   srcField,
		destField:  destField,
	}
}

func (f *fixture) request() CreateRouteRequest {
	return CreateRouteRequest{
		Name:           "ehr-to-emr",
		SrcServerID:    f.srcServer.ID,
		SrcEndpointID:  f.srcEP.ID,
		DestServerID:   f.destServer.ID,
		DestEndpointID: f.destEP.ID,
		MsgType:        "ADT^A01",
		Rules: []RuleSpec{{
			SrcFieldIDs:  []uuid.UUID{f.srcField.ID},
			DestFieldIDs: []uuid.UUID{f.destField.ID},
			Transform:    "map",
			Config:       map[string]interface{}{"male": "M", "female": "F"},
		}},
	}
}

// -- Service Tests --

func TestCreateRoute_Success(t *testing.T) {
	f := newFixture()
	rt, err := f.svc.CreateRoute(context.Background(), f.request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rt.ID == uuid.Nil {
		t.Error("expected route id to be set")
	}
	rules, _ := f.repo.ListRules(context.Background(), rt.ID)
	if len(rules) != 1 {
		t.Fatalf("expected 1 stored rule, got %d", len(rules))
	}
	if rules[0].TransformType != "map" {
		t.Errorf("transform = %q, want map", rules[0].TransformType)
	}
}

func TestCreateRoute_NameTaken(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.CreateRoute(context.Background(), f.request()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := f.request()
	// Different pair, same name.
	req.SrcEndpointID = uuid.New()
	_, err := f.svc.CreateRoute(context.Background(), req)
	if !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
}

func TestCreateRoute_PairTaken(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.CreateRoute(context.Background(), f.request()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := f.request()
	req.Name = "another-name"
	_, err := f.svc.CreateRoute(context.Background(), req)
	if !errors.Is(err, ErrPairTaken) {
		t.Fatalf("expected ErrPairTaken, got %v", err)
	}
}

func TestCreateRoute_MissingPeers(t *testing.T) {
	f := newFixture()

	req := f.request()
	req.SrcServerID = uuid.New()
	if _, err := f.svc.CreateRoute(context.Background(), req); !errors.Is(err, ErrServerNotFound) {
		t.Fatalf("expected ErrServerNotFound, got %v", err)
	}

	req = f.request()
	req.DestEndpointID = uuid.New()
	if _, err := f.svc.CreateRoute(context.Background(), req); !errors.Is(err, ErrEndpointNotFound) {
		t.Fatalf("expected ErrEndpointNotFound, got %v", err)
	}
}

func TestCreateRoute_MultiSrcAndDestRejected(t *testing.T) {
	f := newFixture()
	req := f.request()
	req.Rules = []RuleSpec{{
		SrcFieldIDs:  []uuid.UUID{uuid.New(), uuid.New()},
		DestFieldIDs: []uuid.UUID{uuid.New(), uuid.New()},
		Transform:    "concat",
	}}
	if _, err := f.svc.CreateRoute(context.Background(), req); !errors.Is(err, ErrMultiSrcDest) {
		t.Fatalf("expected ErrMultiSrcDest, got %v", err)
	}
	if len(f.repo.routes) != 0 {
		t.Error("no route may be stored when a rule is rejected")
	}
}

func TestCreateRoute_InvalidTransform(t *testing.T) {
	f := newFixture()
	req := f.request()
	req.Rules[0].Transform = "uppercase"
	if _, err := f.svc.CreateRoute(context.Background(), req); err == nil {
		t.Fatal("expected error for invalid transform kind")
	}
}

func TestCreateRoute_ExpandsConcatAndSplit(t *testing.T) {
	f := newFixture()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	req := f.request()
	req.Rules = []RuleSpec{
		{
			SrcFieldIDs:  []uuid.UUID{a, b},
			DestFieldIDs: []uuid.UUID{c},
			Transform:    "concat",
			Config:       map[string]interface{}{"delimiter": " "},
		},
		{
			SrcFieldIDs:  []uuid.UUID{c},
			DestFieldIDs: []uuid.UUID{a, b},
			Transform:    "split",
			Config:       map[string]interface{}{"delimiter": " "},
		},
	}
	rt, err := f.svc.CreateRoute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rules, _ := f.repo.ListRules(context.Background(), rt.ID)
	if len(rules) != 4 {
		t.Fatalf("expected 4 expanded rows, got %d", len(rules))
	}
	// Concat legs share the destination; split legs keep declared order.
	if rules[0].SrcFieldID != a || rules[1].SrcFieldID != b || rules[0].DestFieldID != c {
		t.Error("concat expansion rows are wrong")
	}
	if rules[2].DestFieldID != a || rules[3].DestFieldID != b || rules[3].SrcFieldID != c {
		t.Error("split expansion rows are wrong")
	}
}

func TestGetRules_GroupedView(t *testing.T) {
	f := newFixture()
	rt, err := f.svc.CreateRoute(context.Background(), f.request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	view, err := f.svc.GetRules(context.Background(), rt.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Direct) != 1 || len(view.Split) != 0 || len(view.Concat) != 0 {
		t.Fatalf("view = %+v, want one direct rule", view)
	}
	direct := view.Direct[0]
	if direct.SrcField.Path != "gender" || direct.DestField.Path != "PID-8" {
		t.Errorf("direct rule fields = %+v", direct)
	}
}

func TestGetRules_RouteMissing(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.GetRules(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// -- Snapshot loader tests --

func TestLoadSnapshot(t *testing.T) {
	f := newFixture()
	rt, err := f.svc.CreateRoute(context.Background(), f.request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, err := f.svc.LoadSnapshot(context.Background(), rt.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.DestURL != "http://10.0.0.2:8002/adt" {
		t.Errorf("DestURL = %q", snap.DestURL)
	}
	if snap.DestProtocol != server.ProtocolHL7 {
		t.Errorf("DestProtocol = %q", snap.DestProtocol)
	}
	if snap.SrcSystem != "EHR" || snap.DestSystem != "EMR" {
		t.Errorf("systems = %q/%q", snap.SrcSystem, snap.DestSystem)
	}
	if snap.SrcPathByField[f.srcField.ID] != "gender" {
		t.Error("src field path missing from snapshot")
	}
	if snap.DestPathByField[f.destField.ID] != "PID-8" {
		t.Error("dest field path missing from snapshot")
	}
	if snap.DestResourceByPath["PID-8"] != "PID" {
		t.Error("dest resource index missing from snapshot")
	}
	if len(snap.Rules) != 1 || snap.Rules[0].Transform.Kind != transform.KindMap {
		t.Fatalf("rules = %+v", snap.Rules)
	}
	if snap.Rules[0].Transform.Table["male"] != "M" {
		t.Error("map table not parsed into the snapshot")
	}
}

func TestListRouteInfos(t *testing.T) {
	f := newFixture()
	rt, _ := f.svc.CreateRoute(context.Background(), f.request())

	infos, err := f.svc.ListRouteInfos(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 route info, got %d", len(infos))
	}
	if infos[0].ID != rt.ID || infos[0].SrcEndpointID != f.srcEP.ID || infos[0].MsgType != "ADT^A01" {
		t.Errorf("info = %+v", infos[0])
	}
}
